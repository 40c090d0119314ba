package models

import "time"

// ReferralClick 推广链接点击记录
type ReferralClick struct {
	ID             uint      `gorm:"primarykey" json:"id"`                           // 主键
	AgentProfileID uint      `gorm:"not null;index" json:"agent_profile_id"`         // 代理档案ID
	VisitorKey     string    `gorm:"type:varchar(64);index" json:"visitor_key"`      // 访客标识
	LandingPath    string    `gorm:"type:varchar(255)" json:"landing_path"`          // 落地路径
	Referrer       string    `gorm:"type:varchar(255)" json:"referrer,omitempty"`    // 来源页
	ClientIP       string    `gorm:"type:varchar(64)" json:"client_ip,omitempty"`    // 客户端IP
	UserAgent      string    `gorm:"type:varchar(512)" json:"user_agent,omitempty"`  // User-Agent
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                        // 创建时间

	AgentProfile AgentProfile `gorm:"foreignKey:AgentProfileID" json:"-"` // 代理档案
}

// TableName 指定表名
func (ReferralClick) TableName() string {
	return "referral_clicks"
}
