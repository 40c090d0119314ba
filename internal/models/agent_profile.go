package models

import (
	"time"

	"gorm.io/gorm"
)

// AgentProfile 推广代理档案
type AgentProfile struct {
	ID           uint           `gorm:"primarykey" json:"id"`                              // 主键
	UserID       uint           `gorm:"not null;uniqueIndex" json:"user_id"`               // 用户ID
	ReferralCode string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"code"` // 推广短码
	RateOverride *Money         `gorm:"type:decimal(10,2)" json:"rate_override,omitempty"` // 专属佣金比例（为空时用全局比例）
	Status       string         `gorm:"type:varchar(20);not null;index" json:"status"`     // 状态
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                           // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                           // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                    // 软删除时间

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"` // 用户信息
}

// TableName 指定表名
func (AgentProfile) TableName() string {
	return "agent_profiles"
}
