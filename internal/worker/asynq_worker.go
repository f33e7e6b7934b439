package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rewardhub/internal/logger"
	"github.com/rewardhub/internal/provider"
	"github.com/rewardhub/internal/queue"
	"github.com/rewardhub/internal/service"

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
	mux.HandleFunc(queue.TaskRewardDeliver, c.handleRewardDeliver)
	mux.HandleFunc(queue.TaskPurchaseReconcile, c.handlePurchaseReconcile)
}

func (c *Consumer) handleRewardDeliver(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_reward_deliver_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.RewardDeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_reward_deliver_unmarshal_failed", "error", err)
		return err
	}
	if payload.AssignmentID == 0 {
		logger.Debugw("worker_reward_deliver_skip_invalid_payload", "assignment_id", payload.AssignmentID)
		return nil
	}
	if c.DeliveryService == nil {
		logger.Warnw("worker_reward_deliver_skip_delivery_service_nil", "assignment_id", payload.AssignmentID)
		return nil
	}
	if err := c.DeliveryService.Deliver(payload.AssignmentID, payload.CorrelationID); err != nil {
		switch {
		case errors.Is(err, service.ErrAssignmentNotFound):
			logger.Debugw("worker_reward_deliver_skip_assignment_not_found",
				"assignment_id", payload.AssignmentID,
				"correlation_id", payload.CorrelationID,
			)
			return nil
		default:
			logger.Warnw("worker_reward_deliver_failed",
				"assignment_id", payload.AssignmentID,
				"correlation_id", payload.CorrelationID,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (c *Consumer) handlePurchaseReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_purchase_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PurchaseReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_purchase_reconcile_unmarshal_failed", "error", err)
		return err
	}
	if c.ReconciliationService == nil {
		logger.Warnw("worker_purchase_reconcile_skip_service_nil", "triggered_by", payload.TriggeredBy)
		return nil
	}
	summary, err := c.ReconciliationService.ReconcileOnce(ctx)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPurchaseMisconfigured):
			logger.Debugw("worker_purchase_reconcile_skip_gateway_disabled", "triggered_by", payload.TriggeredBy)
			return nil
		default:
			logger.Warnw("worker_purchase_reconcile_failed", "triggered_by", payload.TriggeredBy, "error", err)
			return err
		}
	}
	if summary != nil && summary.Scanned > 0 {
		logger.Infow("worker_purchase_reconcile_done",
			"triggered_by", payload.TriggeredBy,
			"scanned", summary.Scanned,
			"completed", summary.Completed,
			"failed", summary.Failed,
			"pending", summary.Pending,
		)
	}
	return nil
}
