package repository

import (
	"time"

	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/models"

	"gorm.io/gorm"
)

// HealthRepository 健康监控聚合查询接口
// 说明：仅聚合统计数据，不承载业务规则。
type HealthRepository interface {
	GetInventoryLevels() ([]InventoryLevelRow, error)
	CountLowInventoryBrands(threshold int64) (int64, error)
	CountStalePendingPurchases(olderThan time.Time) (int64, error)
}

// InventoryLevelRow 品牌面额的可用库存原始行
type InventoryLevelRow struct {
	BrandID      uint
	BrandName    string
	Denomination models.Money
	Available    int64
}

// GormHealthRepository GORM 聚合实现
type GormHealthRepository struct {
	db *gorm.DB
}

// NewHealthRepository 创建健康监控仓库
func NewHealthRepository(db *gorm.DB) *GormHealthRepository {
	return &GormHealthRepository{db: db}
}

// GetInventoryLevels 按品牌面额统计可用库存
func (r *GormHealthRepository) GetInventoryLevels() ([]InventoryLevelRow, error) {
	var rows []InventoryLevelRow
	err := r.db.Model(&models.InventoryCard{}).
		Select("inventory_cards.brand_id as brand_id, brands.name as brand_name, inventory_cards.denomination as denomination, COUNT(*) as available").
		Joins("JOIN brands ON brands.id = inventory_cards.brand_id").
		Where("inventory_cards.status = ?", constants.CardStatusAvailable).
		Group("inventory_cards.brand_id, brands.name, inventory_cards.denomination").
		Order("inventory_cards.brand_id asc, inventory_cards.denomination asc").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountLowInventoryBrands 统计可用库存低于阈值的品牌数
func (r *GormHealthRepository) CountLowInventoryBrands(threshold int64) (int64, error) {
	var count int64
	err := r.db.
		Table("(?) as levels",
			r.db.Model(&models.InventoryCard{}).
				Select("brand_id, COUNT(*) as available").
				Where("status = ?", constants.CardStatusAvailable).
				Group("brand_id"),
		).
		Where("available < ?", threshold).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountStalePendingPurchases 统计滞留待定的采购单数
func (r *GormHealthRepository) CountStalePendingPurchases(olderThan time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.ExternalPurchase{}).
		Where("status = ? AND created_at < ?", constants.PurchaseStatusPending, olderThan).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
