package repository

import (
	"errors"

	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// RecipientRepository 收件人数据访问接口
type RecipientRepository interface {
	GetByID(id uint) (*models.Recipient, error)
	Create(recipient *models.Recipient) error
	WithTx(tx *gorm.DB) *GormRecipientRepository
}

// GormRecipientRepository GORM 实现
type GormRecipientRepository struct {
	db *gorm.DB
}

// NewRecipientRepository 创建收件人仓库
func NewRecipientRepository(db *gorm.DB) *GormRecipientRepository {
	return &GormRecipientRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRecipientRepository) WithTx(tx *gorm.DB) *GormRecipientRepository {
	if tx == nil {
		return r
	}
	return &GormRecipientRepository{db: tx}
}

// GetByID 根据 ID 获取收件人
func (r *GormRecipientRepository) GetByID(id uint) (*models.Recipient, error) {
	var recipient models.Recipient
	if err := r.db.First(&recipient, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &recipient, nil
}

// Create 创建收件人（测试与种子数据使用）
func (r *GormRecipientRepository) Create(recipient *models.Recipient) error {
	return r.db.Create(recipient).Error
}
