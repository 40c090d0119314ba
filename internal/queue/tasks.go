package queue

import (
	"encoding/json"

	"github.com/refmart/refmart/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskCommissionAccrue 佣金计提任务
	TaskCommissionAccrue = constants.TaskCommissionAccrue
	// TaskCommissionRevoke 佣金逆向任务
	TaskCommissionRevoke = constants.TaskCommissionRevoke
)

// CommissionAccruePayload 佣金计提任务载荷
type CommissionAccruePayload struct {
	OrderID uint `json:"order_id"`
}

// CommissionRevokePayload 佣金逆向任务载荷
type CommissionRevokePayload struct {
	OrderID uint   `json:"order_id"`
	Reason  string `json:"reason"`
}

// NewCommissionAccrueTask 创建佣金计提任务
func NewCommissionAccrueTask(payload CommissionAccruePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionAccrue, body), nil
}

// NewCommissionRevokeTask 创建佣金逆向任务
func NewCommissionRevokeTask(payload CommissionRevokePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCommissionRevoke, body), nil
}
