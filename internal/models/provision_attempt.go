package models

import "time"

// ProvisionAttempt 发放尝试日志表
// 每次瀑布执行写入一行，按关联ID可逐步还原执行轨迹；
// 健康监控只读该表做滚动窗口聚合。
type ProvisionAttempt struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                      // 主键
	CorrelationID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"correlation_id"` // 关联ID
	CampaignID    uint      `gorm:"index;not null" json:"campaign_id"`                         // 活动ID
	RecipientID   uint      `gorm:"index;not null" json:"recipient_id"`                        // 收件人ID
	BrandID       uint      `gorm:"index;not null" json:"brand_id"`                            // 品牌ID
	Denomination  Money     `gorm:"type:decimal(20,2);not null" json:"denomination"`           // 面额
	Source        string    `gorm:"type:varchar(16)" json:"source"`                            // 最终出卡来源（失败时为空）
	Success       bool      `gorm:"index;not null" json:"success"`                             // 是否成功
	ErrorCode     string    `gorm:"type:varchar(64);index" json:"error_code"`                  // 稳定错误码（成功时为空）
	DurationMs    int64     `gorm:"not null" json:"duration_ms"`                               // 耗时（毫秒）
	Steps         JSONList  `gorm:"type:text" json:"steps"`                                    // 步骤轨迹
	StartedAt     time.Time `gorm:"index;not null" json:"started_at"`                          // 开始时间
	CreatedAt     time.Time `gorm:"index" json:"created_at"`                                   // 创建时间
}

// TableName 指定表名
func (ProvisionAttempt) TableName() string {
	return "provision_attempts"
}
