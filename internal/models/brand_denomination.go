package models

import (
	"time"

	"gorm.io/gorm"
)

// BrandDenomination 品牌面额定价表
// 不变量：useCustomPricing 为 false 时，客户价恒等于面额。
type BrandDenomination struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                                      // 主键
	BrandID          uint           `gorm:"index:idx_brand_denomination,unique,priority:1;not null" json:"brand_id"`   // 品牌ID
	Denomination     Money          `gorm:"type:decimal(20,2);index:idx_brand_denomination,unique,priority:2;not null" json:"denomination"` // 面额
	CostBasis        *Money         `gorm:"type:decimal(20,2)" json:"cost_basis"`                                      // CSV 库存成本（未配置时按面额计）
	ExternalCost     *Money         `gorm:"type:decimal(20,2)" json:"external_cost"`                                   // 外部采购单卡成本（未配置时按面额计）
	ClientPrice      *Money         `gorm:"type:decimal(20,2)" json:"client_price"`                                    // 自定义客户价
	UseCustomPricing bool           `gorm:"not null;default:false" json:"use_custom_pricing"`                          // 是否启用自定义客户价
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                                   // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                                   // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                                            // 软删除时间
}

// TableName 指定表名
func (BrandDenomination) TableName() string {
	return "brand_denominations"
}
