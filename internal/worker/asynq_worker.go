package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/refmart/refmart/internal/logger"
	"github.com/refmart/refmart/internal/provider"
	"github.com/refmart/refmart/internal/queue"
	"github.com/refmart/refmart/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCommissionAccrue, c.handleCommissionAccrue)
	mux.HandleFunc(queue.TaskCommissionRevoke, c.handleCommissionRevoke)
}

func (c *Consumer) handleCommissionAccrue(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_commission_accrue_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionAccruePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_commission_accrue_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_commission_accrue_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.ReferralService == nil {
		logger.Warnw("worker_commission_accrue_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.ReferralService.HandleOrderPaid(payload.OrderID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_commission_accrue_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrOrderStatusInvalid):
			logger.Debugw("worker_commission_accrue_skip_invalid_status", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_commission_accrue_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleCommissionRevoke(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_commission_revoke_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.CommissionRevokePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_commission_revoke_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_commission_revoke_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.ReferralService == nil {
		logger.Warnw("worker_commission_revoke_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	if err := c.ReferralService.HandleOrderCanceled(payload.OrderID, payload.Reason); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			logger.Debugw("worker_commission_revoke_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_commission_revoke_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}
