package repository

import (
	"errors"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// AssignmentRepository 发放记录数据访问接口
type AssignmentRepository interface {
	Create(assignment *models.Assignment) error
	GetByID(id uint) (*models.Assignment, error)
	GetByGrant(recipientID, campaignID uint, conditionNumber int) (*models.Assignment, error)
	ListByRecipient(recipientID uint, page, pageSize int) ([]models.Assignment, int64, error)
	UpdateDeliveryStatus(id uint, from, to string) (bool, error)
	MarkRevoked(id uint, revokedBy uint, reason string, at time.Time) (bool, error)
	WithTx(tx *gorm.DB) *GormAssignmentRepository
}

// GormAssignmentRepository GORM 实现
type GormAssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建发放记录仓库
func NewAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAssignmentRepository) WithTx(tx *gorm.DB) *GormAssignmentRepository {
	if tx == nil {
		return r
	}
	return &GormAssignmentRepository{db: tx}
}

// Create 创建发放记录
func (r *GormAssignmentRepository) Create(assignment *models.Assignment) error {
	return r.db.Create(assignment).Error
}

// GetByID 根据 ID 获取发放记录（含卡与收件人）
func (r *GormAssignmentRepository) GetByID(id uint) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.Preload("InventoryCard").Preload("Recipient").First(&assignment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// GetByGrant 根据发放键（收件人+活动+条件序号）查询
func (r *GormAssignmentRepository) GetByGrant(recipientID, campaignID uint, conditionNumber int) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.
		Where("recipient_id = ? AND campaign_id = ? AND condition_number = ?", recipientID, campaignID, conditionNumber).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// ListByRecipient 收件人发放记录分页列表
func (r *GormAssignmentRepository) ListByRecipient(recipientID uint, page, pageSize int) ([]models.Assignment, int64, error) {
	query := r.db.Model(&models.Assignment{}).Where("recipient_id = ?", recipientID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.Assignment
	if err := applyPagination(query, page, pageSize).Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateDeliveryStatus 条件更新交付状态，旧状态不匹配则不生效
func (r *GormAssignmentRepository) UpdateDeliveryStatus(id uint, from, to string) (bool, error) {
	result := r.db.Model(&models.Assignment{}).
		Where("id = ? AND delivery_status = ?", id, from).
		Updates(map[string]interface{}{
			"delivery_status": to,
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkRevoked 标记撤销，以"尚未撤销"为前置条件防止重复撤销
func (r *GormAssignmentRepository) MarkRevoked(id uint, revokedBy uint, reason string, at time.Time) (bool, error) {
	result := r.db.Model(&models.Assignment{}).
		Where("id = ? AND delivery_status <> ?", id, constants.AssignmentStatusRevoked).
		Updates(map[string]interface{}{
			"delivery_status": constants.AssignmentStatusRevoked,
			"revoked_at":      at,
			"revoked_by":      revokedBy,
			"revoke_reason":   reason,
			"updated_at":      at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
