package repository

import (
	"errors"

	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// PricingRepository 品牌面额定价数据访问接口
type PricingRepository interface {
	GetByBrandDenomination(brandID uint, denomination models.Money) (*models.BrandDenomination, error)
	ListByBrand(brandID uint) ([]models.BrandDenomination, error)
	Create(entry *models.BrandDenomination) error
	Update(entry *models.BrandDenomination) error
	WithTx(tx *gorm.DB) *GormPricingRepository
}

// GormPricingRepository GORM 实现
type GormPricingRepository struct {
	db *gorm.DB
}

// NewPricingRepository 创建定价仓库
func NewPricingRepository(db *gorm.DB) *GormPricingRepository {
	return &GormPricingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPricingRepository) WithTx(tx *gorm.DB) *GormPricingRepository {
	if tx == nil {
		return r
	}
	return &GormPricingRepository{db: tx}
}

// GetByBrandDenomination 查询品牌面额定价配置
func (r *GormPricingRepository) GetByBrandDenomination(brandID uint, denomination models.Money) (*models.BrandDenomination, error) {
	var entry models.BrandDenomination
	err := r.db.Where("brand_id = ? AND denomination = ?", brandID, denomination).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListByBrand 获取品牌全部面额配置
func (r *GormPricingRepository) ListByBrand(brandID uint) ([]models.BrandDenomination, error) {
	var entries []models.BrandDenomination
	if err := r.db.Where("brand_id = ?", brandID).Order("denomination asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// Create 新增面额配置
func (r *GormPricingRepository) Create(entry *models.BrandDenomination) error {
	return r.db.Create(entry).Error
}

// Update 更新面额配置
func (r *GormPricingRepository) Update(entry *models.BrandDenomination) error {
	return r.db.Save(entry).Error
}
