package repository

import (
	"errors"

	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// InventoryBatchRepository 库存批次数据访问接口
type InventoryBatchRepository interface {
	Create(batch *models.InventoryBatch) error
	GetByID(id uint) (*models.InventoryBatch, error)
	GetByBatchNo(batchNo string) (*models.InventoryBatch, error)
	List(page, pageSize int) ([]models.InventoryBatch, int64, error)
	WithTx(tx *gorm.DB) *GormInventoryBatchRepository
}

// GormInventoryBatchRepository GORM 实现
type GormInventoryBatchRepository struct {
	db *gorm.DB
}

// NewInventoryBatchRepository 创建批次仓库
func NewInventoryBatchRepository(db *gorm.DB) *GormInventoryBatchRepository {
	return &GormInventoryBatchRepository{db: db}
}

// WithTx 绑定事务
func (r *GormInventoryBatchRepository) WithTx(tx *gorm.DB) *GormInventoryBatchRepository {
	if tx == nil {
		return r
	}
	return &GormInventoryBatchRepository{db: tx}
}

// Create 创建批次
func (r *GormInventoryBatchRepository) Create(batch *models.InventoryBatch) error {
	return r.db.Create(batch).Error
}

// GetByID 根据 ID 获取批次
func (r *GormInventoryBatchRepository) GetByID(id uint) (*models.InventoryBatch, error) {
	var batch models.InventoryBatch
	if err := r.db.First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetByBatchNo 根据批次号获取批次
func (r *GormInventoryBatchRepository) GetByBatchNo(batchNo string) (*models.InventoryBatch, error) {
	var batch models.InventoryBatch
	if err := r.db.Where("batch_no = ?", batchNo).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// List 批次分页列表
func (r *GormInventoryBatchRepository) List(page, pageSize int) ([]models.InventoryBatch, int64, error) {
	query := r.db.Model(&models.InventoryBatch{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.InventoryBatch
	if err := applyPagination(query, page, pageSize).Order("id desc").Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
