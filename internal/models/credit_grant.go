package models

import "time"

// CreditGrant 预充额度表
// 外部准入控制在发放前读取可用额度（额度 = 充值合计 - 计费合计）。
type CreditGrant struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                                  // 主键
	EntityType string    `gorm:"type:varchar(24);index:idx_credit_entity,priority:1;not null" json:"entity_type"` // 账户类型（campaign/client）
	EntityID   uint      `gorm:"index:idx_credit_entity,priority:2;not null" json:"entity_id"`          // 账户ID
	Amount     Money     `gorm:"type:decimal(20,2);not null" json:"amount"`                             // 充值金额
	Note       string    `gorm:"type:text" json:"note"`                                                 // 备注
	GrantedBy  *uint     `gorm:"index" json:"granted_by,omitempty"`                                     // 操作管理员ID
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                                               // 创建时间
}

// TableName 指定表名
func (CreditGrant) TableName() string {
	return "credit_grants"
}
