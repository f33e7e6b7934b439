package models

import (
	"time"

	"gorm.io/gorm"
)

// Brand 礼品卡品牌表
type Brand struct {
	ID                   uint           `gorm:"primarykey" json:"id"`                                // 主键
	Name                 string         `gorm:"type:varchar(120);uniqueIndex;not null" json:"name"`  // 品牌名称
	ExternalPurchaseCode string         `gorm:"type:varchar(80)" json:"external_purchase_code"`      // 外部采购编码（非空时启用实时采购兜底）
	IsActive             bool           `gorm:"not null;default:true;index" json:"is_active"`        // 是否启用
	CreatedAt            time.Time      `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt            time.Time      `gorm:"index" json:"updated_at"`                             // 更新时间
	DeletedAt            gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间

	Denominations []BrandDenomination `gorm:"foreignKey:BrandID" json:"denominations,omitempty"` // 面额配置
}

// TableName 指定表名
func (Brand) TableName() string {
	return "brands"
}

// ExternalPurchaseEnabled 判断品牌是否支持外部实时采购
func (b *Brand) ExternalPurchaseEnabled() bool {
	return b != nil && b.ExternalPurchaseCode != ""
}
