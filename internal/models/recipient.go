package models

import (
	"time"

	"gorm.io/gorm"
)

// Recipient 活动收件人表
// 收件人/活动的维护由外部系统负责，本引擎只读。
type Recipient struct {
	ID        uint           `gorm:"primarykey" json:"id"`                   // 主键
	Name      string         `gorm:"type:varchar(120);not null" json:"name"` // 姓名
	Email     string         `gorm:"type:varchar(255);index" json:"email"`   // 邮箱
	Phone     string         `gorm:"type:varchar(40)" json:"phone"`          // 手机号
	CreatedAt time.Time      `gorm:"index" json:"created_at"`                // 创建时间
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`                // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                         // 软删除时间
}

// TableName 指定表名
func (Recipient) TableName() string {
	return "recipients"
}
