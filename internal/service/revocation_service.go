package service

import (
	"strings"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/repository"

	"gorm.io/gorm"
)

// RevocationService 奖励撤销服务
// 标记发放记录、负向调整计费、写入审计快照在单事务内完成；
// 卡回收在事务提交后尽力执行，失败只记日志，撤销本身以
// 发放记录为准。计费流水永不改写，只追加调整单。
type RevocationService struct {
	db             *gorm.DB
	assignmentRepo repository.AssignmentRepository
	cardRepo       repository.InventoryCardRepository
	recipientRepo  repository.RecipientRepository
	brandRepo      repository.BrandRepository
	ledgerRepo     repository.BillingLedgerRepository
	revokeLogRepo  repository.RevokeLogRepository
	billingSvc     *BillingService
}

// RevokeInput 撤销输入
type RevokeInput struct {
	AssignmentID uint
	RevokedBy    uint
	Reason       string
}

// RevokeResult 撤销结果
type RevokeResult struct {
	Assignment   *models.Assignment `json:"assignment"`
	Log          *models.RevokeLog  `json:"log"`
	CardReturned bool               `json:"card_returned"`
}

// NewRevocationService 创建撤销服务
func NewRevocationService(
	db *gorm.DB,
	assignmentRepo repository.AssignmentRepository,
	cardRepo repository.InventoryCardRepository,
	recipientRepo repository.RecipientRepository,
	brandRepo repository.BrandRepository,
	ledgerRepo repository.BillingLedgerRepository,
	revokeLogRepo repository.RevokeLogRepository,
	billingSvc *BillingService,
) *RevocationService {
	return &RevocationService{
		db:             db,
		assignmentRepo: assignmentRepo,
		cardRepo:       cardRepo,
		recipientRepo:  recipientRepo,
		brandRepo:      brandRepo,
		ledgerRepo:     ledgerRepo,
		revokeLogRepo:  revokeLogRepo,
		billingSvc:     billingSvc,
	}
}

// Revoke 撤销一次发放
func (s *RevocationService) Revoke(input RevokeInput) (*RevokeResult, error) {
	reason := strings.TrimSpace(input.Reason)
	if len([]rune(reason)) < constants.RevokeReasonMinLength {
		return nil, ErrRevokeReasonTooShort
	}

	assignment, err := s.assignmentRepo.GetByID(input.AssignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrAssignmentNotFound
	}
	if assignment.DeliveryStatus == constants.AssignmentStatusRevoked {
		return nil, ErrAlreadyRevoked
	}

	now := time.Now()
	card, cardValue, brandName, err := s.loadCardSnapshot(assignment)
	if err != nil {
		return nil, err
	}

	result := &RevokeResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		marked, err := s.assignmentRepo.WithTx(tx).MarkRevoked(assignment.ID, input.RevokedBy, reason, now)
		if err != nil {
			return err
		}
		if !marked {
			// 条件更新落空：并发撤销抢先
			return ErrAlreadyRevoked
		}

		if brandName == "" {
			if brand, err := s.brandRepo.WithTx(tx).GetByID(assignment.BrandID); err == nil && brand != nil {
				brandName = brand.Name
			}
		}

		if cardValue == nil {
			value, err := s.resolveLegacyCardValue(tx, assignment)
			if err != nil {
				return err
			}
			cardValue = value
		}

		if err := s.adjustBilling(tx, assignment, now); err != nil {
			return err
		}

		recipientName := ""
		if assignment.Recipient != nil {
			recipientName = assignment.Recipient.Name
		}
		log := &models.RevokeLog{
			AssignmentID:    assignment.ID,
			InventoryCardID: assignment.InventoryCardID,
			RecipientID:     assignment.RecipientID,
			RecipientName:   recipientName,
			CampaignID:      assignment.CampaignID,
			RevokedBy:       input.RevokedBy,
			Reason:          reason,
			OriginalStatus:  assignment.DeliveryStatus,
			CardValue:       *cardValue,
			BrandName:       brandName,
			CardReturned:    false,
			RevokedAt:       now,
		}
		if err := s.revokeLogRepo.WithTx(tx).Create(log); err != nil {
			return err
		}
		result.Log = log
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 撤销已落账，此后卡回收失败不再回滚，只记日志
	if s.reclaimCard(card, now) {
		result.CardReturned = true
		result.Log.CardReturned = true
		if err := s.db.Model(&models.RevokeLog{}).
			Where("id = ?", result.Log.ID).
			Update("card_returned", true).Error; err != nil {
			logger.Warnw("revoke log card_returned update failed", "log_id", result.Log.ID, "error", err)
		}
	}

	assignment.DeliveryStatus = constants.AssignmentStatusRevoked
	assignment.RevokedAt = &now
	assignment.RevokedBy = &input.RevokedBy
	assignment.RevokeReason = reason
	result.Assignment = assignment
	return result, nil
}

// loadCardSnapshot 事务前读取关联卡，供审计快照和事后回收使用
func (s *RevocationService) loadCardSnapshot(assignment *models.Assignment) (*models.InventoryCard, *models.Money, string, error) {
	if assignment.InventoryCardID == nil {
		return nil, nil, "", nil
	}
	card, err := s.cardRepo.GetByID(*assignment.InventoryCardID)
	if err != nil {
		return nil, nil, "", err
	}
	if card == nil {
		logger.Warnw("revoke references missing card", "assignment_id", assignment.ID, "card_id", *assignment.InventoryCardID)
		return nil, nil, "", nil
	}
	brandName := ""
	if card.Brand != nil {
		brandName = card.Brand.Name
	}
	value := card.Denomination
	return card, &value, brandName, nil
}

// reclaimCard 撤销落账后的库存回收
// CSV 卡未兑换时回收入库重新可用；已兑换的卡无法回收；
// 外部采购卡只标记撤销，不进入库存。失败不影响撤销结果。
func (s *RevocationService) reclaimCard(card *models.InventoryCard, now time.Time) bool {
	if card == nil {
		return false
	}
	if card.Status == constants.CardStatusRedeemed {
		return false
	}
	if card.Source == constants.CardSourceExternal {
		if err := s.markCardRevoked(card.ID, now); err != nil {
			logger.Errorw("revoke mark external card failed", "card_id", card.ID, "error", err)
		}
		return false
	}
	returned, err := s.cardRepo.Release(card.ID)
	if err != nil {
		logger.Errorw("revoke release card failed", "card_id", card.ID, "error", err)
		return false
	}
	return returned
}

func (s *RevocationService) markCardRevoked(cardID uint, now time.Time) error {
	return s.db.Model(&models.InventoryCard{}).
		Where("id = ? AND status <> ?", cardID, constants.CardStatusRedeemed).
		Updates(map[string]interface{}{
			"status":     constants.CardStatusRevoked,
			"updated_at": now,
		}).Error
}

// resolveLegacyCardValue 历史发放记录缺失卡引用时，
// 回溯计费流水确定卡面值；连流水都没有时退回面额字段。
func (s *RevocationService) resolveLegacyCardValue(tx *gorm.DB, assignment *models.Assignment) (*models.Money, error) {
	entry, err := s.ledgerRepo.WithTx(tx).GetByAssignment(assignment.ID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		entry, err = s.ledgerRepo.WithTx(tx).LatestMatching(assignment.RecipientID, assignment.CampaignID, assignment.BrandID)
		if err != nil {
			return nil, err
		}
	}
	if entry != nil {
		value := entry.Denomination
		return &value, nil
	}
	value := assignment.Denomination
	return &value, nil
}

// adjustBilling 追加负向调整单冲销原计费
func (s *RevocationService) adjustBilling(tx *gorm.DB, assignment *models.Assignment, now time.Time) error {
	entry, err := s.ledgerRepo.WithTx(tx).GetByAssignment(assignment.ID)
	if err != nil {
		return err
	}
	if entry == nil {
		entry, err = s.ledgerRepo.WithTx(tx).LatestMatching(assignment.RecipientID, assignment.CampaignID, assignment.BrandID)
		if err != nil {
			return err
		}
	}
	if entry == nil {
		logger.Warnw("revoke found no billing entry to adjust", "assignment_id", assignment.ID)
		return nil
	}
	_, err = s.billingSvc.RecordAdjustment(tx, entry, now)
	return err
}
