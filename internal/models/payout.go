package models

import (
	"time"

	"gorm.io/gorm"
)

// PayoutStatus 提现单状态枚举
type PayoutStatus string

// 提现单状态常量
const (
	PayoutStatusPending  PayoutStatus = "pending"
	PayoutStatusApproved PayoutStatus = "approved"
	PayoutStatusPaid     PayoutStatus = "paid"
	PayoutStatusRejected PayoutStatus = "rejected"
)

// Valid 判断是否为合法提现状态
func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutStatusPending, PayoutStatusApproved, PayoutStatusPaid, PayoutStatusRejected:
		return true
	}
	return false
}

// Active 判断该状态下的提现单是否仍占用佣金
func (s PayoutStatus) Active() bool {
	return s != PayoutStatusRejected
}

// Processed 判断该状态是否已消耗佣金（终局占用）
func (s PayoutStatus) Processed() bool {
	return s == PayoutStatusApproved || s == PayoutStatusPaid
}

// PayoutActiveStatuses 仍占用佣金的状态集合
func PayoutActiveStatuses() []PayoutStatus {
	return []PayoutStatus{PayoutStatusPending, PayoutStatusApproved, PayoutStatusPaid}
}

// PayoutProcessedStatuses 已消耗佣金的状态集合
func PayoutProcessedStatuses() []PayoutStatus {
	return []PayoutStatus{PayoutStatusApproved, PayoutStatusPaid}
}

// CanTransitionTo 判断状态能否前向流转。
// 状态机：pending -> {approved, rejected}，approved -> {paid, rejected}，
// paid 与 rejected 为终态，不允许回退或重开。
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	switch s {
	case PayoutStatusPending:
		return next == PayoutStatusApproved || next == PayoutStatusRejected
	case PayoutStatusApproved:
		return next == PayoutStatusPaid || next == PayoutStatusRejected
	}
	return false
}

// Payout 提现单表
type Payout struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                      // 主键
	PayoutNo      string         `gorm:"uniqueIndex;not null" json:"payout_no"`                     // 提现单编号
	UserID        uint           `gorm:"not null;index" json:"user_id"`                             // 代理用户ID
	Amount        Money          `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`       // 申请金额
	Status        PayoutStatus   `gorm:"type:varchar(20);not null;index" json:"status"`             // 提现状态
	Channel       string         `gorm:"type:varchar(50)" json:"channel,omitempty"`                 // 收款渠道
	Account       string         `gorm:"type:varchar(255)" json:"account,omitempty"`                // 收款账号
	TransactionID string         `gorm:"type:varchar(128);index" json:"transaction_id,omitempty"`   // 外部流水号
	RejectReason  string         `gorm:"type:varchar(255)" json:"reject_reason,omitempty"`          // 驳回原因
	ProcessedBy   *uint          `gorm:"index" json:"processed_by,omitempty"`                       // 处理人（管理员ID）
	ApprovedAt    *time.Time     `gorm:"index" json:"approved_at,omitempty"`                        // 批准时间
	PaidAt        *time.Time     `gorm:"index" json:"paid_at,omitempty"`                            // 打款时间
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt     time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	User  User               `gorm:"foreignKey:UserID" json:"user,omitempty"`  // 代理用户
	Links []PayoutCommission `gorm:"foreignKey:PayoutID" json:"links,omitempty"` // 佣金占用链接
}

// TableName 指定表名
func (Payout) TableName() string {
	return "payouts"
}
