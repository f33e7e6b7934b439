package models

import "time"

// ExternalPurchase 外部采购单表
// 幂等键在发起 HTTP 调用前落盘；远端成功但本地未持久化的
// 采购由对账任务按幂等键回查修复。
type ExternalPurchase struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                           // 主键
	IdempotencyKey string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"idempotency_key"`   // 采购幂等键
	CorrelationID  string     `gorm:"type:varchar(64);index" json:"correlation_id"`                   // 发放尝试关联ID
	BrandID        uint       `gorm:"index;not null" json:"brand_id"`                                 // 品牌ID
	RecipientID    uint       `gorm:"index;not null" json:"recipient_id"`                             // 收件人ID
	CampaignID      uint      `gorm:"index;not null" json:"campaign_id"`                              // 活动ID
	ConditionNumber int       `gorm:"not null;default:1" json:"condition_number"`                     // 条件序号
	Denomination   Money      `gorm:"type:decimal(20,2);not null" json:"denomination"`                // 面额
	Status         string     `gorm:"type:varchar(16);index;not null;default:'pending'" json:"status"` // 状态（pending/completed/failed）
	Cost           *Money     `gorm:"type:decimal(20,2)" json:"cost,omitempty"`                       // 实际采购成本
	FailureNote    string     `gorm:"type:text" json:"failure_note,omitempty"`                        // 失败说明
	CompletedAt    *time.Time `gorm:"index" json:"completed_at,omitempty"`                            // 完成时间
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                                        // 创建时间
	UpdatedAt      time.Time  `gorm:"index" json:"updated_at"`                                        // 更新时间
}

// TableName 指定表名
func (ExternalPurchase) TableName() string {
	return "external_purchases"
}
