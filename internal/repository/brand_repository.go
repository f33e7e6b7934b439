package repository

import (
	"errors"

	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// BrandRepository 品牌数据访问接口
type BrandRepository interface {
	GetByID(id uint) (*models.Brand, error)
	GetByName(name string) (*models.Brand, error)
	List(page, pageSize int, activeOnly bool) ([]models.Brand, int64, error)
	Create(brand *models.Brand) error
	Update(brand *models.Brand) error
	WithTx(tx *gorm.DB) *GormBrandRepository
}

// GormBrandRepository GORM 实现
type GormBrandRepository struct {
	db *gorm.DB
}

// NewBrandRepository 创建品牌仓库
func NewBrandRepository(db *gorm.DB) *GormBrandRepository {
	return &GormBrandRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBrandRepository) WithTx(tx *gorm.DB) *GormBrandRepository {
	if tx == nil {
		return r
	}
	return &GormBrandRepository{db: tx}
}

// GetByID 根据 ID 获取品牌
func (r *GormBrandRepository) GetByID(id uint) (*models.Brand, error) {
	var brand models.Brand
	if err := r.db.First(&brand, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &brand, nil
}

// GetByName 根据品牌名称获取品牌
func (r *GormBrandRepository) GetByName(name string) (*models.Brand, error) {
	var brand models.Brand
	if err := r.db.Where("name = ?", name).First(&brand).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &brand, nil
}

// List 品牌分页列表
func (r *GormBrandRepository) List(page, pageSize int, activeOnly bool) ([]models.Brand, int64, error) {
	query := r.db.Model(&models.Brand{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var brands []models.Brand
	if err := applyPagination(query, page, pageSize).Order("id asc").Find(&brands).Error; err != nil {
		return nil, 0, err
	}
	return brands, total, nil
}

// Create 创建品牌
func (r *GormBrandRepository) Create(brand *models.Brand) error {
	return r.db.Create(brand).Error
}

// Update 更新品牌
func (r *GormBrandRepository) Update(brand *models.Brand) error {
	return r.db.Save(brand).Error
}
