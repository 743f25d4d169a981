package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeBlobDelete     = "blob:delete"
	TypeUsageReconcile = "usage:reconcile"
)

// BlobDeletePayload 描述要从对象存储删除的文件键。
type BlobDeletePayload struct {
	ObjectKeys    []string `json:"object_keys"`
	CorrelationID string   `json:"correlation_id"`
}

// NewBlobDeleteTask 构造一个对象存储清理任务。
func NewBlobDeleteTask(objectKeys []string, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(BlobDeletePayload{
		ObjectKeys:    objectKeys,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeBlobDelete, payload), nil
}

// UsageReconcilePayload 描述一次用量对账。UserID 为 0 时对账全部用户。
type UsageReconcilePayload struct {
	UserID uint `json:"user_id"`
}

// NewUsageReconcileTask 构造一个用量对账任务。
func NewUsageReconcileTask(userID uint) (*asynq.Task, error) {
	payload, err := json.Marshal(UsageReconcilePayload{UserID: userID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeUsageReconcile, payload), nil
}
