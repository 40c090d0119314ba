package models

import (
	"time"

	"gorm.io/gorm"
)

// CommissionStatus 佣金状态枚举
type CommissionStatus string

// 佣金状态常量
const (
	CommissionStatusPending  CommissionStatus = "pending"
	CommissionStatusApproved CommissionStatus = "approved"
	CommissionStatusPaid     CommissionStatus = "paid"
	CommissionStatusBlocked  CommissionStatus = "blocked"
)

// Valid 判断是否为合法佣金状态
func (s CommissionStatus) Valid() bool {
	switch s {
	case CommissionStatusPending, CommissionStatusApproved, CommissionStatusPaid, CommissionStatusBlocked:
		return true
	}
	return false
}

// CountsTowardEarned 判断该状态是否计入累计佣金
func (s CommissionStatus) CountsTowardEarned() bool {
	switch s {
	case CommissionStatusPending, CommissionStatusApproved, CommissionStatusPaid:
		return true
	}
	return false
}

// Allocatable 判断该状态下的佣金能否被提现单占用
func (s CommissionStatus) Allocatable() bool {
	return s == CommissionStatusPending || s == CommissionStatusApproved
}

// CommissionEarnedStatuses 计入累计佣金的状态集合
func CommissionEarnedStatuses() []CommissionStatus {
	return []CommissionStatus{CommissionStatusPending, CommissionStatusApproved, CommissionStatusPaid}
}

// CommissionAllocatableStatuses 可被提现单占用的状态集合
func CommissionAllocatableStatuses() []CommissionStatus {
	return []CommissionStatus{CommissionStatusPending, CommissionStatusApproved}
}

// Commission 佣金记录表
type Commission struct {
	ID          uint             `gorm:"primarykey" json:"id"`                                                     // 主键
	UserID      uint             `gorm:"not null;index;index:idx_commission_order_user,unique" json:"user_id"`     // 代理用户ID
	OrderID     uint             `gorm:"not null;index;index:idx_commission_order_user,unique" json:"order_id"`    // 关联订单ID
	BaseAmount  Money            `gorm:"type:decimal(20,2);not null;default:0" json:"base_amount"`                 // 佣金基数金额
	RatePercent Money            `gorm:"type:decimal(10,2);not null;default:0" json:"rate_percent"`                // 佣金比例（百分比）
	Amount      Money            `gorm:"type:decimal(20,2);not null;default:0" json:"amount"`                      // 佣金金额
	Status      CommissionStatus `gorm:"type:varchar(20);not null;index" json:"status"`                            // 佣金状态
	ConfirmAt   *time.Time       `gorm:"index" json:"confirm_at,omitempty"`                                        // 待确认到期时间
	BlockReason string           `gorm:"type:varchar(255)" json:"block_reason,omitempty"`                          // 冻结原因
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`                                                  // 创建时间
	UpdatedAt   time.Time        `gorm:"index" json:"updated_at"`                                                  // 更新时间
	DeletedAt   gorm.DeletedAt   `gorm:"index" json:"-"`                                                           // 软删除时间

	User  User  `gorm:"foreignKey:UserID" json:"user,omitempty"`   // 代理用户
	Order Order `gorm:"foreignKey:OrderID" json:"order,omitempty"` // 关联订单
}

// TableName 指定表名
func (Commission) TableName() string {
	return "commissions"
}
