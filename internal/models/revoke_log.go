package models

import "time"

// RevokeLog 撤销审计日志表
// 反范式快照：字段在撤销时落盘，不依赖关联行继续存在。
type RevokeLog struct {
	ID              uint      `gorm:"primarykey" json:"id"`                                  // 主键
	AssignmentID    uint      `gorm:"index;not null" json:"assignment_id"`                   // 发放记录ID
	InventoryCardID *uint     `gorm:"index" json:"inventory_card_id,omitempty"`              // 库存卡ID（历史数据可能为空）
	RecipientID     uint      `gorm:"index;not null" json:"recipient_id"`                    // 收件人ID
	RecipientName   string    `gorm:"type:varchar(120)" json:"recipient_name"`               // 收件人姓名快照
	CampaignID      uint      `gorm:"index;not null" json:"campaign_id"`                     // 活动ID
	RevokedBy       uint      `gorm:"index;not null" json:"revoked_by"`                      // 操作管理员ID
	Reason          string    `gorm:"type:text;not null" json:"reason"`                      // 撤销原因（≥10 字符）
	OriginalStatus  string    `gorm:"type:varchar(24);not null" json:"original_status"`      // 撤销前交付状态快照
	CardValue       Money     `gorm:"type:decimal(20,2);not null" json:"card_value"`         // 卡面值快照
	BrandName       string    `gorm:"type:varchar(120)" json:"brand_name"`                   // 品牌名称快照
	CardReturned    bool      `gorm:"not null;default:false" json:"card_returned"`           // 是否已回收入库
	RevokedAt       time.Time `gorm:"index;not null" json:"revoked_at"`                      // 撤销时间
}

// TableName 指定表名
func (RevokeLog) TableName() string {
	return "revoke_logs"
}
