package repository

import (
	"errors"
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// ExternalPurchaseRepository 外部采购单数据访问接口
type ExternalPurchaseRepository interface {
	Create(purchase *models.ExternalPurchase) error
	GetByIdempotencyKey(key string) (*models.ExternalPurchase, error)
	MarkCompleted(id uint, cost models.Money, at time.Time) (bool, error)
	MarkFailed(id uint, note string, at time.Time) (bool, error)
	ListStalePending(olderThan time.Time, limit int) ([]models.ExternalPurchase, error)
	WithTx(tx *gorm.DB) *GormExternalPurchaseRepository
}

// GormExternalPurchaseRepository GORM 实现
type GormExternalPurchaseRepository struct {
	db *gorm.DB
}

// NewExternalPurchaseRepository 创建采购单仓库
func NewExternalPurchaseRepository(db *gorm.DB) *GormExternalPurchaseRepository {
	return &GormExternalPurchaseRepository{db: db}
}

// WithTx 绑定事务
func (r *GormExternalPurchaseRepository) WithTx(tx *gorm.DB) *GormExternalPurchaseRepository {
	if tx == nil {
		return r
	}
	return &GormExternalPurchaseRepository{db: tx}
}

// Create 创建采购单，必须在发起远端调用之前落盘
func (r *GormExternalPurchaseRepository) Create(purchase *models.ExternalPurchase) error {
	return r.db.Create(purchase).Error
}

// GetByIdempotencyKey 根据幂等键查询采购单
func (r *GormExternalPurchaseRepository) GetByIdempotencyKey(key string) (*models.ExternalPurchase, error) {
	var purchase models.ExternalPurchase
	if err := r.db.Where("idempotency_key = ?", key).First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &purchase, nil
}

// MarkCompleted 标记采购完成，仅 pending 可流转
func (r *GormExternalPurchaseRepository) MarkCompleted(id uint, cost models.Money, at time.Time) (bool, error) {
	result := r.db.Model(&models.ExternalPurchase{}).
		Where("id = ? AND status = ?", id, constants.PurchaseStatusPending).
		Updates(map[string]interface{}{
			"status":       constants.PurchaseStatusCompleted,
			"cost":         cost,
			"completed_at": at,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkFailed 标记采购失败，仅 pending 可流转
func (r *GormExternalPurchaseRepository) MarkFailed(id uint, note string, at time.Time) (bool, error) {
	result := r.db.Model(&models.ExternalPurchase{}).
		Where("id = ? AND status = ?", id, constants.PurchaseStatusPending).
		Updates(map[string]interface{}{
			"status":       constants.PurchaseStatusFailed,
			"failure_note": note,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListStalePending 查询滞留的待定采购单，供对账任务回查
func (r *GormExternalPurchaseRepository) ListStalePending(olderThan time.Time, limit int) ([]models.ExternalPurchase, error) {
	if limit <= 0 {
		limit = 50
	}
	var purchases []models.ExternalPurchase
	err := r.db.
		Where("status = ? AND created_at < ?", constants.PurchaseStatusPending, olderThan).
		Order("id asc").
		Limit(limit).
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}
