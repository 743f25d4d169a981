package tasks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// CleanupEnqueuer 把对象删除请求丢进任务队列，HTTP 请求路径不等待对象存储。
type CleanupEnqueuer struct {
	client *asynq.Client
}

func NewCleanupEnqueuer(client *asynq.Client) *CleanupEnqueuer {
	return &CleanupEnqueuer{client: client}
}

// Remove 入队一个清理任务。
func (e *CleanupEnqueuer) Remove(ctx context.Context, objectKeys ...string) error {
	if len(objectKeys) == 0 {
		return nil
	}

	task, err := NewBlobDeleteTask(objectKeys, uuid.NewString())
	if err != nil {
		return fmt.Errorf("build blob delete task: %w", err)
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue blob delete task: %w", err)
	}
	return nil
}
