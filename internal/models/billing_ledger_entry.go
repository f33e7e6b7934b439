package models

import "time"

// BillingLedgerEntry 计费流水表
// 仅追加：正常运行中永不更新或删除，供开票对账使用。
type BillingLedgerEntry struct {
	ID           uint      `gorm:"primarykey" json:"id"`                            // 主键
	AssignmentID *uint     `gorm:"index" json:"assignment_id,omitempty"`            // 发放记录ID
	RecipientID  uint      `gorm:"index;not null" json:"recipient_id"`              // 收件人ID
	CampaignID   uint      `gorm:"index;not null" json:"campaign_id"`               // 活动ID
	BrandID      uint      `gorm:"index;not null" json:"brand_id"`                  // 品牌ID
	Denomination Money     `gorm:"type:decimal(20,2);not null" json:"denomination"` // 面额
	CostBasis    Money     `gorm:"type:decimal(20,2);not null" json:"cost_basis"`   // 成本
	ClientPrice  Money     `gorm:"type:decimal(20,2);not null" json:"client_price"` // 客户价
	Source       string    `gorm:"type:varchar(16);not null" json:"source"`         // 出卡来源
	BilledAt     time.Time `gorm:"index;not null" json:"billed_at"`                 // 计费时间
}

// TableName 指定表名
func (BillingLedgerEntry) TableName() string {
	return "billing_ledger_entries"
}
