package repository

import (
	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// RevokeLogRepository 撤销审计日志数据访问接口
type RevokeLogRepository interface {
	Create(log *models.RevokeLog) error
	ListByCampaign(campaignID uint, page, pageSize int) ([]models.RevokeLog, int64, error)
	WithTx(tx *gorm.DB) *GormRevokeLogRepository
}

// GormRevokeLogRepository GORM 实现
type GormRevokeLogRepository struct {
	db *gorm.DB
}

// NewRevokeLogRepository 创建撤销日志仓库
func NewRevokeLogRepository(db *gorm.DB) *GormRevokeLogRepository {
	return &GormRevokeLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRevokeLogRepository) WithTx(tx *gorm.DB) *GormRevokeLogRepository {
	if tx == nil {
		return r
	}
	return &GormRevokeLogRepository{db: tx}
}

// Create 写入撤销审计日志
func (r *GormRevokeLogRepository) Create(log *models.RevokeLog) error {
	return r.db.Create(log).Error
}

// ListByCampaign 活动撤销记录分页列表
func (r *GormRevokeLogRepository) ListByCampaign(campaignID uint, page, pageSize int) ([]models.RevokeLog, int64, error) {
	query := r.db.Model(&models.RevokeLog{}).Where("campaign_id = ?", campaignID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.RevokeLog
	if err := applyPagination(query, page, pageSize).Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
