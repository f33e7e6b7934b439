package models

import (
	"time"

	"gorm.io/gorm"
)

// Assignment 奖励发放记录表
// (recipient_id, campaign_id, condition_number) 唯一约束兜底
// "是否已发放" 检查在重试下的竞态。
// InventoryCardID 为单一可空引用；历史数据中缺失该引用的记录
// 在撤销时回退到账单流水定位卡面值（迁移完成后可收紧为必填）。
type Assignment struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	RecipientID     uint           `gorm:"index:idx_assignment_grant,unique,priority:1;not null" json:"recipient_id"`
	CampaignID      uint           `gorm:"index:idx_assignment_grant,unique,priority:2;not null" json:"campaign_id"`
	ConditionNumber int            `gorm:"index:idx_assignment_grant,unique,priority:3;not null;default:1" json:"condition_number"`
	BrandID         uint           `gorm:"index;not null" json:"brand_id"`
	Denomination    Money          `gorm:"type:decimal(20,2);not null" json:"denomination"`
	InventoryCardID *uint          `gorm:"index" json:"inventory_card_id,omitempty"`
	Source          string         `gorm:"type:varchar(16);not null" json:"source"` // csv/external
	DeliveryStatus  string         `gorm:"type:varchar(24);index;not null;default:'provisioned'" json:"delivery_status"`
	CorrelationID   string         `gorm:"type:varchar(64);index" json:"correlation_id"` // 发放尝试关联ID
	RevokedAt       *time.Time     `gorm:"index" json:"revoked_at,omitempty"`
	RevokedBy       *uint          `gorm:"index" json:"revoked_by,omitempty"`
	RevokeReason    string         `gorm:"type:text" json:"revoke_reason,omitempty"`
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"index" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	InventoryCard *InventoryCard `gorm:"foreignKey:InventoryCardID" json:"inventory_card,omitempty"`
	Recipient     *Recipient     `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
}

// TableName 指定表名
func (Assignment) TableName() string {
	return "assignments"
}
