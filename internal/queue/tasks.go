package queue

import (
	"encoding/json"

	"github.com/rewardhub/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskRewardDeliver 发放结果投递任务
	TaskRewardDeliver = constants.TaskRewardDeliver
	// TaskPurchaseReconcile 采购单对账任务
	TaskPurchaseReconcile = constants.TaskPurchaseReconcile
)

// RewardDeliverPayload 发放投递任务载荷
type RewardDeliverPayload struct {
	AssignmentID  uint   `json:"assignment_id"`
	CorrelationID string `json:"correlation_id"`
}

// PurchaseReconcilePayload 采购对账任务载荷
type PurchaseReconcilePayload struct {
	TriggeredBy string `json:"triggered_by"`
}

// NewRewardDeliverTask 创建发放投递任务
func NewRewardDeliverTask(payload RewardDeliverPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRewardDeliver, body), nil
}

// NewPurchaseReconcileTask 创建采购对账任务
func NewPurchaseReconcileTask(payload PurchaseReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurchaseReconcile, body), nil
}
