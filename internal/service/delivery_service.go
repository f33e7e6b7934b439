package service

import (
	"errors"
	"strings"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/repository"

	"gorm.io/gorm"
)

// DeliveryService 交付与兑换服务
// 交付由队列任务驱动：把已发放的卡标记为已交付并通知收件人。
type DeliveryService struct {
	db             *gorm.DB
	assignmentRepo repository.AssignmentRepository
	cardRepo       repository.InventoryCardRepository
}

// NewDeliveryService 创建交付服务
func NewDeliveryService(db *gorm.DB, assignmentRepo repository.AssignmentRepository, cardRepo repository.InventoryCardRepository) *DeliveryService {
	return &DeliveryService{db: db, assignmentRepo: assignmentRepo, cardRepo: cardRepo}
}

// Deliver 交付一次发放
// 幂等：已交付或已撤销的发放直接跳过，任务重试不产生副作用。
func (s *DeliveryService) Deliver(assignmentID uint, correlationID string) error {
	assignment, err := s.assignmentRepo.GetByID(assignmentID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return ErrAssignmentNotFound
	}
	if assignment.DeliveryStatus != constants.AssignmentStatusProvisioned {
		logger.Infow("delivery skipped",
			"assignment_id", assignmentID,
			"delivery_status", assignment.DeliveryStatus,
			"correlation_id", correlationID)
		return nil
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		updated, err := s.assignmentRepo.WithTx(tx).UpdateDeliveryStatus(assignmentID, constants.AssignmentStatusProvisioned, constants.AssignmentStatusDelivered)
		if err != nil {
			return err
		}
		if !updated {
			return nil
		}
		if assignment.InventoryCardID != nil {
			if _, err := s.cardRepo.WithTx(tx).MarkDelivered(*assignment.InventoryCardID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	recipientEmail := ""
	if assignment.Recipient != nil {
		recipientEmail = assignment.Recipient.Email
	}
	logger.Infow("reward delivered",
		"assignment_id", assignmentID,
		"recipient_email", recipientEmail,
		"correlation_id", correlationID)
	return nil
}

// Redeem 按卡密加收件人兑换
// 仅已交付且分配给该收件人的卡可兑换；发放记录随之流转为已兑换。
func (s *DeliveryService) Redeem(cardCode string, recipientID uint) (*models.InventoryCard, error) {
	code := strings.TrimSpace(cardCode)
	if code == "" || recipientID == 0 {
		return nil, ErrCardStateInvalid
	}
	card, err := s.cardRepo.GetByCode(code)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrCardStateInvalid
	}
	if card.AssignedRecipientID == nil || *card.AssignedRecipientID != recipientID {
		return nil, ErrCardStateInvalid
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		updated, err := s.cardRepo.WithTx(tx).MarkRedeemed(card.ID, now)
		if err != nil {
			return err
		}
		if !updated {
			return ErrCardStateInvalid
		}
		if card.AssignedRecipientID != nil && card.AssignedCampaignID != nil {
			assignment, err := s.findAssignmentForCard(tx, card.ID)
			if err != nil {
				return err
			}
			if assignment != nil {
				if _, err := s.assignmentRepo.WithTx(tx).UpdateDeliveryStatus(assignment.ID, constants.AssignmentStatusDelivered, constants.AssignmentStatusRedeemed); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	card.Status = constants.CardStatusRedeemed
	return card, nil
}

func (s *DeliveryService) findAssignmentForCard(tx *gorm.DB, cardID uint) (*models.Assignment, error) {
	var assignment models.Assignment
	err := tx.Where("inventory_card_id = ?", cardID).Order("id desc").First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}
