package models

import (
	"time"

	"gorm.io/gorm"
)

// InventoryCard 礼品卡库存表
// 不变量：status 为 available 时，分配字段必须全部为空；反之必须填写。
type InventoryCard struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                                            // 主键
	BrandID             uint           `gorm:"index;not null" json:"brand_id"`                                  // 品牌ID
	BatchID             *uint          `gorm:"index" json:"batch_id,omitempty"`                                 // 导入批次ID（外部采购卡无批次）
	Denomination        Money          `gorm:"type:decimal(20,2);index;not null" json:"denomination"`           // 面额
	Status              string         `gorm:"type:varchar(24);index;not null;default:'available'" json:"status"` // 状态
	Source              string         `gorm:"type:varchar(16);index;not null;default:'csv'" json:"source"`     // 来源（csv/external）
	CardCode            string         `gorm:"type:varchar(120);uniqueIndex;not null" json:"card_code"`         // 卡密
	CardNumber          *string        `gorm:"type:varchar(80)" json:"card_number,omitempty"`                   // 卡号（可选）
	PurchaseKey         *string        `gorm:"type:varchar(64);index" json:"-"`                                 // 外部采购幂等键
	AssignedRecipientID *uint          `gorm:"index" json:"assigned_recipient_id,omitempty"`                    // 分配的收件人ID
	AssignedCampaignID  *uint          `gorm:"index" json:"assigned_campaign_id,omitempty"`                     // 分配的活动ID
	AssignedAt          *time.Time     `gorm:"index" json:"assigned_at,omitempty"`                              // 分配时间
	ExpiresAt           *time.Time     `gorm:"index" json:"expires_at,omitempty"`                               // 过期时间
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                                         // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                                         // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                                  // 软删除时间

	Brand *Brand          `gorm:"foreignKey:BrandID" json:"brand,omitempty"` // 品牌信息
	Batch *InventoryBatch `gorm:"foreignKey:BatchID" json:"batch,omitempty"` // 批次信息
}

// TableName 指定表名
func (InventoryCard) TableName() string {
	return "inventory_cards"
}
