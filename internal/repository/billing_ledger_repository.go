package repository

import (
	"errors"

	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// BillingLedgerRepository 计费流水数据访问接口
// 流水仅追加，不提供更新与删除方法。
type BillingLedgerRepository interface {
	Create(entry *models.BillingLedgerEntry) error
	GetByAssignment(assignmentID uint) (*models.BillingLedgerEntry, error)
	LatestMatching(recipientID, campaignID, brandID uint) (*models.BillingLedgerEntry, error)
	SumBilledByCampaign(campaignID uint) (models.Money, error)
	ListByCampaign(campaignID uint, page, pageSize int) ([]models.BillingLedgerEntry, int64, error)
	WithTx(tx *gorm.DB) *GormBillingLedgerRepository
}

// GormBillingLedgerRepository GORM 实现
type GormBillingLedgerRepository struct {
	db *gorm.DB
}

// NewBillingLedgerRepository 创建计费流水仓库
func NewBillingLedgerRepository(db *gorm.DB) *GormBillingLedgerRepository {
	return &GormBillingLedgerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBillingLedgerRepository) WithTx(tx *gorm.DB) *GormBillingLedgerRepository {
	if tx == nil {
		return r
	}
	return &GormBillingLedgerRepository{db: tx}
}

// Create 追加计费流水
func (r *GormBillingLedgerRepository) Create(entry *models.BillingLedgerEntry) error {
	return r.db.Create(entry).Error
}

// GetByAssignment 根据发放记录查询流水
func (r *GormBillingLedgerRepository) GetByAssignment(assignmentID uint) (*models.BillingLedgerEntry, error) {
	var entry models.BillingLedgerEntry
	err := r.db.Where("assignment_id = ?", assignmentID).Order("id desc").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// LatestMatching 查询最近一条匹配的流水，用于缺失卡引用的
// 历史发放记录在撤销时回溯卡面值
func (r *GormBillingLedgerRepository) LatestMatching(recipientID, campaignID, brandID uint) (*models.BillingLedgerEntry, error) {
	var entry models.BillingLedgerEntry
	err := r.db.
		Where("recipient_id = ? AND campaign_id = ? AND brand_id = ?", recipientID, campaignID, brandID).
		Order("billed_at desc, id desc").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// SumBilledByCampaign 活动已计费合计（按客户价）
func (r *GormBillingLedgerRepository) SumBilledByCampaign(campaignID uint) (models.Money, error) {
	var result struct {
		Total models.Money
	}
	err := r.db.Model(&models.BillingLedgerEntry{}).
		Select("COALESCE(SUM(client_price), 0) as total").
		Where("campaign_id = ?", campaignID).
		Scan(&result).Error
	if err != nil {
		return models.Money{}, err
	}
	return result.Total, nil
}

// ListByCampaign 活动计费流水分页列表
func (r *GormBillingLedgerRepository) ListByCampaign(campaignID uint, page, pageSize int) ([]models.BillingLedgerEntry, int64, error) {
	query := r.db.Model(&models.BillingLedgerEntry{}).Where("campaign_id = ?", campaignID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.BillingLedgerEntry
	if err := applyPagination(query, page, pageSize).Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
