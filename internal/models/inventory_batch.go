package models

import (
	"time"

	"gorm.io/gorm"
)

// InventoryBatch 库存导入批次表
type InventoryBatch struct {
	ID         uint           `gorm:"primarykey" json:"id"`                 // 主键
	BrandID    uint           `gorm:"index;not null" json:"brand_id"`       // 品牌ID
	BatchNo    string         `gorm:"uniqueIndex;not null" json:"batch_no"` // 批次号
	Source     string         `gorm:"not null" json:"source"`               // 来源（csv/manual/seed）
	TotalCount int            `gorm:"not null" json:"total_count"`          // 总数量
	Note       string         `gorm:"type:text" json:"note"`                // 备注
	CreatedBy  *uint          `gorm:"index" json:"created_by,omitempty"`    // 创建管理员ID
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`              // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`              // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                       // 软删除时间
}

// TableName 指定表名
func (InventoryBatch) TableName() string {
	return "inventory_batches"
}
