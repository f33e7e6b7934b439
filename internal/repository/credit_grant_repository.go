package repository

import (
	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// CreditGrantRepository 预充额度数据访问接口
type CreditGrantRepository interface {
	Create(grant *models.CreditGrant) error
	SumGrants(entityType string, entityID uint) (models.Money, error)
	ListByEntity(entityType string, entityID uint, page, pageSize int) ([]models.CreditGrant, int64, error)
	WithTx(tx *gorm.DB) *GormCreditGrantRepository
}

// GormCreditGrantRepository GORM 实现
type GormCreditGrantRepository struct {
	db *gorm.DB
}

// NewCreditGrantRepository 创建额度仓库
func NewCreditGrantRepository(db *gorm.DB) *GormCreditGrantRepository {
	return &GormCreditGrantRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCreditGrantRepository) WithTx(tx *gorm.DB) *GormCreditGrantRepository {
	if tx == nil {
		return r
	}
	return &GormCreditGrantRepository{db: tx}
}

// Create 新增充值记录
func (r *GormCreditGrantRepository) Create(grant *models.CreditGrant) error {
	return r.db.Create(grant).Error
}

// SumGrants 账户充值合计
func (r *GormCreditGrantRepository) SumGrants(entityType string, entityID uint) (models.Money, error) {
	var result struct {
		Total models.Money
	}
	err := r.db.Model(&models.CreditGrant{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Scan(&result).Error
	if err != nil {
		return models.Money{}, err
	}
	return result.Total, nil
}

// ListByEntity 账户充值记录分页列表
func (r *GormCreditGrantRepository) ListByEntity(entityType string, entityID uint, page, pageSize int) ([]models.CreditGrant, int64, error) {
	query := r.db.Model(&models.CreditGrant{}).Where("entity_type = ? AND entity_id = ?", entityType, entityID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.CreditGrant
	if err := applyPagination(query, page, pageSize).Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
