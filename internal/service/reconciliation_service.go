package service

import (
	"context"
	"errors"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/purchase"
	"github.com/rewardhub/internal/repository"

	"gorm.io/gorm"
)

const reconcileBatchSize = 50

// ReconciliationService 采购对账服务
// 超时缺口修复：本地 pending 而远端可能已出卡的采购单，
// 按幂等键回查远端并补齐本地状态。
type ReconciliationService struct {
	db             *gorm.DB
	purchaseRepo   repository.ExternalPurchaseRepository
	cardRepo       repository.InventoryCardRepository
	assignmentRepo repository.AssignmentRepository
	pricingSvc     *PricingService
	billingSvc     *BillingService
	gateway        PurchaseGateway
	minAge         time.Duration
}

// ReconcileSummary 单轮对账结果
type ReconcileSummary struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// NewReconciliationService 创建对账服务
func NewReconciliationService(
	db *gorm.DB,
	purchaseRepo repository.ExternalPurchaseRepository,
	cardRepo repository.InventoryCardRepository,
	assignmentRepo repository.AssignmentRepository,
	pricingSvc *PricingService,
	billingSvc *BillingService,
	gateway PurchaseGateway,
	minAgeSeconds int,
) *ReconciliationService {
	minAge := time.Duration(minAgeSeconds) * time.Second
	if minAge <= 0 {
		minAge = time.Duration(constants.DefaultReconcileMinAgeSecs) * time.Second
	}
	return &ReconciliationService{
		db:             db,
		purchaseRepo:   purchaseRepo,
		cardRepo:       cardRepo,
		assignmentRepo: assignmentRepo,
		pricingSvc:     pricingSvc,
		billingSvc:     billingSvc,
		gateway:        gateway,
		minAge:         minAge,
	}
}

// ReconcileOnce 执行一轮对账扫描
func (s *ReconciliationService) ReconcileOnce(ctx context.Context) (*ReconcileSummary, error) {
	if s.gateway == nil {
		return nil, ErrPurchaseMisconfigured
	}
	stale, err := s.purchaseRepo.ListStalePending(time.Now().Add(-s.minAge), reconcileBatchSize)
	if err != nil {
		return nil, err
	}

	summary := &ReconcileSummary{Scanned: len(stale)}
	for i := range stale {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		order := stale[i]
		switch err := s.reconcileOrder(ctx, &order); {
		case err == nil:
			summary.Completed++
		case errors.Is(err, errOrderStillPending):
			summary.Pending++
		case errors.Is(err, errOrderFailed):
			summary.Failed++
		default:
			// 网络类错误留到下一轮
			summary.Pending++
			logger.Warnw("reconcile order deferred",
				"purchase_id", order.ID,
				"idempotency_key", order.IdempotencyKey,
				"error", err)
		}
	}
	return summary, nil
}

var (
	errOrderStillPending = errors.New("purchase order still pending remotely")
	errOrderFailed       = errors.New("purchase order failed remotely")
)

func (s *ReconciliationService) reconcileOrder(ctx context.Context, order *models.ExternalPurchase) error {
	result, status, err := s.gateway.Lookup(ctx, order.IdempotencyKey)
	now := time.Now()
	if err != nil {
		if errors.Is(err, purchase.ErrOrderNotFound) {
			// 远端从未收到请求，本地单据可以安全关闭
			if _, markErr := s.purchaseRepo.MarkFailed(order.ID, "remote order not found", now); markErr != nil {
				return markErr
			}
			return errOrderFailed
		}
		return err
	}
	switch status {
	case purchase.StatusProcessing:
		return errOrderStillPending
	case purchase.StatusFailed:
		if _, markErr := s.purchaseRepo.MarkFailed(order.ID, "remote order failed", now); markErr != nil {
			return markErr
		}
		return errOrderFailed
	}
	if result == nil {
		return errOrderStillPending
	}
	return s.completeOrder(order, result, now)
}

// completeOrder 补齐远端已出卡的采购：落卡、完成采购单，
// 发放键未被占用时补建发放记录与计费流水；
// 已被其它路径满足的发放把卡转为可用外部库存。
func (s *ReconciliationService) completeOrder(order *models.ExternalPurchase, result *purchase.PurchaseResult, now time.Time) error {
	existingCard, err := s.cardRepo.GetByPurchaseKey(order.IdempotencyKey)
	if err != nil {
		return err
	}
	if existingCard != nil {
		// 卡已落库但采购单状态掉队
		cost := resolvePurchaseCost(order, result)
		_, err := s.purchaseRepo.MarkCompleted(order.ID, cost, now)
		return err
	}

	quote, err := s.pricingSvc.ResolvePrice(order.BrandID, order.Denomination, constants.CardSourceExternal)
	if err != nil {
		return err
	}
	cost := resolvePurchaseCost(order, result)

	conditionNumber := order.ConditionNumber
	if conditionNumber <= 0 {
		conditionNumber = 1
	}
	existing, err := s.assignmentRepo.GetByGrant(order.RecipientID, order.CampaignID, conditionNumber)
	if err != nil {
		return err
	}

	key := order.IdempotencyKey
	card := &models.InventoryCard{
		BrandID:      order.BrandID,
		Denomination: order.Denomination,
		CardCode:     result.CardCode,
		PurchaseKey:  &key,
		ExpiresAt:    result.ExpiresAt,
	}
	if result.CardNumber != "" {
		number := result.CardNumber
		card.CardNumber = &number
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if existing != nil {
			// 发放已经走了别的路径，这张卡转为可用库存
			card.Status = constants.CardStatusAvailable
			card.Source = constants.CardSourceExternal
			if err := tx.Create(card).Error; err != nil {
				return err
			}
			_, err := s.purchaseRepo.WithTx(tx).MarkCompleted(order.ID, cost, now)
			return err
		}

		recipientID := order.RecipientID
		campaignID := order.CampaignID
		card.AssignedRecipientID = &recipientID
		card.AssignedCampaignID = &campaignID
		card.AssignedAt = &now
		if err := s.cardRepo.WithTx(tx).RecordExternalCard(card); err != nil {
			return err
		}
		if _, err := s.purchaseRepo.WithTx(tx).MarkCompleted(order.ID, cost, now); err != nil {
			return err
		}

		cardID := card.ID
		assignment := &models.Assignment{
			RecipientID:     order.RecipientID,
			CampaignID:      order.CampaignID,
			ConditionNumber: conditionNumber,
			BrandID:         order.BrandID,
			Denomination:    order.Denomination,
			InventoryCardID: &cardID,
			Source:          constants.CardSourceExternal,
			DeliveryStatus:  constants.AssignmentStatusProvisioned,
			CorrelationID:   order.CorrelationID,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.assignmentRepo.WithTx(tx).Create(assignment); err != nil {
			return err
		}
		assignmentID := assignment.ID
		_, err := s.billingSvc.RecordBilling(tx, RecordBillingInput{
			AssignmentID: &assignmentID,
			RecipientID:  order.RecipientID,
			CampaignID:   order.CampaignID,
			BrandID:      order.BrandID,
			Denomination: quote.Denomination,
			CostBasis:    cost,
			ClientPrice:  quote.ClientPrice,
			Source:       constants.CardSourceExternal,
			BilledAt:     now,
		})
		return err
	})
}

func resolvePurchaseCost(order *models.ExternalPurchase, result *purchase.PurchaseResult) models.Money {
	if result.Cost != "" {
		if parsed, err := models.NewMoneyFromString(result.Cost); err == nil {
			return parsed
		}
	}
	if order.Cost != nil {
		return *order.Cost
	}
	return order.Denomination
}
