package constants

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 订单状态常量
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusCompleted      = "completed"
	OrderStatusCanceled       = "canceled"
)

// 推广代理档案状态常量
const (
	AgentProfileStatusActive   = "active"
	AgentProfileStatusDisabled = "disabled"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 异步任务类型常量
const (
	TaskCommissionAccrue = "commission:accrue"
	TaskCommissionRevoke = "commission:revoke"
)
