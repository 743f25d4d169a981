package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"tailorcv/internal/storage"
	"tailorcv/internal/tasks"
)

// BlobCleanupHandler 负责消费对象存储清理任务。删除简历后其 CV 文件和照片
// 在这里异步移除，HTTP 请求路径不等待对象存储。
type BlobCleanupHandler struct {
	storage *storage.Client
	logger  *slog.Logger
}

func NewBlobCleanupHandler(storage *storage.Client, logger *slog.Logger) *BlobCleanupHandler {
	return &BlobCleanupHandler{storage: storage, logger: logger}
}

// ProcessTask 实现 asynq.Handler。对已不存在的对象删除是幂等的，
// 因此任务重试不会产生副作用。
func (h *BlobCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.BlobDeletePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log := h.logger.With(slog.String("correlation_id", payload.CorrelationID))

	for _, key := range payload.ObjectKeys {
		if key == "" {
			continue
		}
		if err := h.storage.DeleteObject(ctx, key); err != nil {
			log.Error("delete object failed", slog.String("object_key", key), slog.Any("error", err))
			return err
		}
		log.Info("object deleted", slog.String("object_key", key))
	}
	return nil
}
