package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/purchase"
	"github.com/rewardhub/internal/repository"
	"github.com/rewardhub/internal/taxonomy"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseGateway 外部采购网关接口
type PurchaseGateway interface {
	Purchase(ctx context.Context, input purchase.PurchaseInput) (*purchase.PurchaseResult, error)
	Lookup(ctx context.Context, idempotencyKey string) (*purchase.PurchaseResult, int, error)
}

// DeliveryNotifier 交付通知接口，由队列客户端实现
type DeliveryNotifier interface {
	EnqueueDeliver(assignmentID uint, correlationID string) error
}

// ProvisioningService 奖励发放服务
// 瀑布式出卡：CSV 库存优先，外部实时采购兜底。
type ProvisioningService struct {
	db             *gorm.DB
	brandRepo      repository.BrandRepository
	recipientRepo  repository.RecipientRepository
	cardRepo       repository.InventoryCardRepository
	assignmentRepo repository.AssignmentRepository
	purchaseRepo   repository.ExternalPurchaseRepository
	attemptRepo    repository.ProvisionAttemptRepository
	pricingSvc     *PricingService
	billingSvc     *BillingService
	gateway        PurchaseGateway
	notifier       DeliveryNotifier
	purchaseWait   time.Duration
}

// ProvisionInput 发放请求输入
type ProvisionInput struct {
	RecipientID     uint
	CampaignID      uint
	ConditionNumber int
	BrandID         uint
	Denomination    models.Money
	CorrelationID   string
}

// ProvisionResult 发放结果
type ProvisionResult struct {
	Assignment    *models.Assignment    `json:"assignment"`
	Card          *models.InventoryCard `json:"card"`
	Quote         *PriceQuote           `json:"quote"`
	Source        string                `json:"source"`
	CorrelationID string                `json:"correlation_id"`
}

// NewProvisioningService 创建发放服务
func NewProvisioningService(
	db *gorm.DB,
	brandRepo repository.BrandRepository,
	recipientRepo repository.RecipientRepository,
	cardRepo repository.InventoryCardRepository,
	assignmentRepo repository.AssignmentRepository,
	purchaseRepo repository.ExternalPurchaseRepository,
	attemptRepo repository.ProvisionAttemptRepository,
	pricingSvc *PricingService,
	billingSvc *BillingService,
	gateway PurchaseGateway,
	notifier DeliveryNotifier,
	purchaseTimeoutSeconds int,
) *ProvisioningService {
	wait := time.Duration(purchaseTimeoutSeconds) * time.Second
	if wait <= 0 {
		wait = time.Duration(constants.DefaultPurchaseTimeoutSeconds) * time.Second
	}
	return &ProvisioningService{
		db:             db,
		brandRepo:      brandRepo,
		recipientRepo:  recipientRepo,
		cardRepo:       cardRepo,
		assignmentRepo: assignmentRepo,
		purchaseRepo:   purchaseRepo,
		attemptRepo:    attemptRepo,
		pricingSvc:     pricingSvc,
		billingSvc:     billingSvc,
		gateway:        gateway,
		notifier:       notifier,
		purchaseWait:   wait,
	}
}

// Provision 执行一次发放瀑布
// 每次调用写入一行尝试日志，失败时带稳定错误码。
func (s *ProvisioningService) Provision(ctx context.Context, input ProvisionInput) (*ProvisionResult, error) {
	startedAt := time.Now()
	correlationID := strings.TrimSpace(input.CorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if input.ConditionNumber <= 0 {
		input.ConditionNumber = 1
	}

	trace := newAttemptTrace()
	result, err := s.provision(ctx, input, correlationID, trace)
	s.recordAttempt(input, correlationID, startedAt, result, err, trace)
	if err != nil {
		return nil, err
	}
	s.notifyDelivery(result)
	return result, nil
}

func (s *ProvisioningService) provision(ctx context.Context, input ProvisionInput, correlationID string, trace *attemptTrace) (*ProvisionResult, error) {
	recipient, err := s.recipientRepo.GetByID(input.RecipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, ErrRecipientNotFound
	}

	existing, err := s.assignmentRepo.GetByGrant(input.RecipientID, input.CampaignID, input.ConditionNumber)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		trace.add("duplicate_check", "rejected")
		return nil, ErrAlreadyProvisioned
	}
	trace.add("duplicate_check", "passed")

	brand, err := s.brandRepo.GetByID(input.BrandID)
	if err != nil {
		return nil, err
	}
	if brand == nil {
		return nil, ErrBrandNotFound
	}
	if !brand.IsActive {
		return nil, ErrBrandDisabled
	}

	// 面额校验前置：未配置面额在任何认领或采购前拒绝。
	// 额度准入是调用方的前置职责（两阶段设计），发放流程本身不查额度。
	quote, err := s.pricingSvc.ResolvePrice(input.BrandID, input.Denomination, constants.CardSourceCSV)
	if err != nil {
		return nil, err
	}
	trace.add("denomination_check", "passed")

	result, err := s.provisionFromInventory(input, correlationID, quote, trace)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, repository.ErrNoAvailableCard) {
		return nil, err
	}
	trace.add("inventory_claim", "empty")

	if !brand.ExternalPurchaseEnabled() {
		return nil, ErrInventoryEmptyNoFallback
	}
	return s.provisionFromExternal(ctx, input, correlationID, brand, trace)
}

// provisionFromInventory 从 CSV 库存认领并落账
func (s *ProvisioningService) provisionFromInventory(input ProvisionInput, correlationID string, quote *PriceQuote, trace *attemptTrace) (*ProvisionResult, error) {
	now := time.Now()
	card, err := s.cardRepo.ClaimAvailable(input.BrandID, input.Denomination, input.RecipientID, input.CampaignID, now)
	if err != nil {
		return nil, err
	}
	trace.add("inventory_claim", "claimed")

	result, err := s.finalizeAssignment(input, correlationID, card, quote, constants.CardSourceCSV, now)
	if err != nil {
		// 回滚认领，卡重新可用
		if _, releaseErr := s.cardRepo.Release(card.ID); releaseErr != nil {
			logger.Errorw("release claimed card after failed assignment",
				"card_id", card.ID, "correlation_id", correlationID, "error", releaseErr)
		}
		return nil, err
	}
	return result, nil
}

// provisionFromExternal 外部实时采购兜底
// 采购单在发起远端调用前落盘，远端成功但本地断电的孤儿
// 采购由对账任务按幂等键回查修复。
func (s *ProvisioningService) provisionFromExternal(ctx context.Context, input ProvisionInput, correlationID string, brand *models.Brand, trace *attemptTrace) (*ProvisionResult, error) {
	if s.gateway == nil {
		return nil, ErrPurchaseMisconfigured
	}

	quote, err := s.pricingSvc.ResolvePrice(input.BrandID, input.Denomination, constants.CardSourceExternal)
	if err != nil {
		return nil, err
	}

	order := &models.ExternalPurchase{
		IdempotencyKey:  uuid.NewString(),
		CorrelationID:   correlationID,
		BrandID:         input.BrandID,
		RecipientID:     input.RecipientID,
		CampaignID:      input.CampaignID,
		ConditionNumber: input.ConditionNumber,
		Denomination:    input.Denomination,
		Status:          constants.PurchaseStatusPending,
	}
	if err := s.purchaseRepo.Create(order); err != nil {
		return nil, err
	}
	trace.add("purchase_order", "created")

	callCtx, cancel := context.WithTimeout(ctx, s.purchaseWait)
	defer cancel()
	purchased, err := s.gateway.Purchase(callCtx, purchase.PurchaseInput{
		IdempotencyKey: order.IdempotencyKey,
		BrandCode:      brand.ExternalPurchaseCode,
		Denomination:   input.Denomination.String(),
	})
	if err != nil {
		trace.add("purchase_call", "failed")
		now := time.Now()
		if errors.Is(err, purchase.ErrRequestTimeout) {
			// 超时的采购单保持 pending，远端可能已出卡，交由对账任务回查
			return nil, ErrPurchaseTimeout
		}
		if _, markErr := s.purchaseRepo.MarkFailed(order.ID, err.Error(), now); markErr != nil {
			logger.Errorw("mark purchase failed", "purchase_id", order.ID, "error", markErr)
		}
		if errors.Is(err, purchase.ErrResponseInvalid) {
			return nil, ErrPurchaseResponseInvalid
		}
		if errors.Is(err, purchase.ErrConfigInvalid) {
			return nil, ErrPurchaseMisconfigured
		}
		return nil, ErrPurchaseRequestFailed
	}
	trace.add("purchase_call", "fulfilled")

	now := time.Now()
	cost := quote.CostBasis
	if purchased.Cost != "" {
		if parsed, parseErr := models.NewMoneyFromString(purchased.Cost); parseErr == nil {
			cost = parsed
		}
	}

	recipientID := input.RecipientID
	campaignID := input.CampaignID
	key := order.IdempotencyKey
	card := &models.InventoryCard{
		BrandID:             input.BrandID,
		Denomination:        input.Denomination,
		CardCode:            purchased.CardCode,
		PurchaseKey:         &key,
		AssignedRecipientID: &recipientID,
		AssignedCampaignID:  &campaignID,
		AssignedAt:          &now,
		ExpiresAt:           purchased.ExpiresAt,
	}
	if purchased.CardNumber != "" {
		number := purchased.CardNumber
		card.CardNumber = &number
	}

	externalQuote := &PriceQuote{
		Denomination: quote.Denomination,
		CostBasis:    cost,
		ClientPrice:  quote.ClientPrice,
		Source:       constants.CardSourceExternal,
	}

	var result *ProvisionResult
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.cardRepo.WithTx(tx).RecordExternalCard(card); err != nil {
			return err
		}
		if _, err := s.purchaseRepo.WithTx(tx).MarkCompleted(order.ID, cost, now); err != nil {
			return err
		}
		var txErr error
		result, txErr = s.createAssignmentWithBilling(tx, input, correlationID, card, externalQuote, constants.CardSourceExternal, now)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	trace.add("assignment", "created")
	return result, nil
}

// finalizeAssignment 在事务内创建发放记录并落计费流水
func (s *ProvisioningService) finalizeAssignment(input ProvisionInput, correlationID string, card *models.InventoryCard, quote *PriceQuote, source string, now time.Time) (*ProvisionResult, error) {
	var result *ProvisionResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		result, txErr = s.createAssignmentWithBilling(tx, input, correlationID, card, quote, source, now)
		return txErr
	})
	if err != nil {
		if isDuplicateGrantError(err) {
			return nil, ErrAlreadyProvisioned
		}
		return nil, err
	}
	return result, nil
}

func (s *ProvisioningService) createAssignmentWithBilling(tx *gorm.DB, input ProvisionInput, correlationID string, card *models.InventoryCard, quote *PriceQuote, source string, now time.Time) (*ProvisionResult, error) {
	cardID := card.ID
	assignment := &models.Assignment{
		RecipientID:     input.RecipientID,
		CampaignID:      input.CampaignID,
		ConditionNumber: input.ConditionNumber,
		BrandID:         input.BrandID,
		Denomination:    input.Denomination,
		InventoryCardID: &cardID,
		Source:          source,
		DeliveryStatus:  constants.AssignmentStatusProvisioned,
		CorrelationID:   correlationID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.assignmentRepo.WithTx(tx).Create(assignment); err != nil {
		return nil, err
	}

	assignmentID := assignment.ID
	if _, err := s.billingSvc.RecordBilling(tx, RecordBillingInput{
		AssignmentID: &assignmentID,
		RecipientID:  input.RecipientID,
		CampaignID:   input.CampaignID,
		BrandID:      input.BrandID,
		Denomination: quote.Denomination,
		CostBasis:    quote.CostBasis,
		ClientPrice:  quote.ClientPrice,
		Source:       source,
		BilledAt:     now,
	}); err != nil {
		return nil, err
	}

	return &ProvisionResult{
		Assignment:    assignment,
		Card:          card,
		Quote:         quote,
		Source:        source,
		CorrelationID: correlationID,
	}, nil
}

// recordAttempt 写入发放尝试日志；日志写入失败只告警不阻断
func (s *ProvisioningService) recordAttempt(input ProvisionInput, correlationID string, startedAt time.Time, result *ProvisionResult, provisionErr error, trace *attemptTrace) {
	attempt := &models.ProvisionAttempt{
		CorrelationID: correlationID,
		CampaignID:    input.CampaignID,
		RecipientID:   input.RecipientID,
		BrandID:       input.BrandID,
		Denomination:  input.Denomination,
		Success:       provisionErr == nil,
		DurationMs:    time.Since(startedAt).Milliseconds(),
		Steps:         trace.steps,
		StartedAt:     startedAt,
	}
	if provisionErr != nil {
		attempt.ErrorCode = string(ClassifyError(provisionErr))
	} else if result != nil {
		attempt.Source = result.Source
	}
	if err := s.attemptRepo.Create(attempt); err != nil {
		logger.Errorw("record provision attempt", "correlation_id", correlationID, "error", err)
	}
}

// notifyDelivery 发放成功后投递交付任务；入队失败不回滚发放
func (s *ProvisioningService) notifyDelivery(result *ProvisionResult) {
	if s.notifier == nil || result == nil || result.Assignment == nil {
		return
	}
	if err := s.notifier.EnqueueDeliver(result.Assignment.ID, result.CorrelationID); err != nil {
		logger.Errorw("enqueue delivery task",
			"assignment_id", result.Assignment.ID,
			"correlation_id", result.CorrelationID,
			"error_code", taxonomy.CodeDeliveryNotifyFailed,
			"error", err)
	}
}

type attemptTrace struct {
	steps models.JSONList
}

func newAttemptTrace() *attemptTrace {
	return &attemptTrace{steps: models.JSONList{}}
}

func (t *attemptTrace) add(step, status string) {
	t.steps = append(t.steps, map[string]interface{}{"step": step, "status": status})
}

// isDuplicateGrantError 识别唯一约束冲突（并发重复发放兜底）
func isDuplicateGrantError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}
