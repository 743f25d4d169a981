package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"tailorcv/internal/database"
	"tailorcv/internal/tasks"
)

// UsageReconcileHandler 定期把 user_usages.resume_count 与 resumes 表的真实
// 行数对齐。配额递增和简历删除是两次独立写入，进程崩溃可能留下偏差。
type UsageReconcileHandler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewUsageReconcileHandler(db *gorm.DB, logger *slog.Logger) *UsageReconcileHandler {
	return &UsageReconcileHandler{db: db, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *UsageReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.UsageReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	if payload.UserID != 0 {
		return h.reconcileUser(ctx, payload.UserID)
	}

	var userIDs []uint
	if err := h.db.WithContext(ctx).
		Model(&database.UserUsage{}).
		Pluck("user_id", &userIDs).Error; err != nil {
		return err
	}
	for _, userID := range userIDs {
		if err := h.reconcileUser(ctx, userID); err != nil {
			h.logger.Error("reconcile usage failed", slog.Uint64("user_id", uint64(userID)), slog.Any("error", err))
			return err
		}
	}
	return nil
}

func (h *UsageReconcileHandler) reconcileUser(ctx context.Context, userID uint) error {
	var actual int64
	if err := h.db.WithContext(ctx).
		Model(&database.Resume{}).
		Where("user_id = ?", userID).
		Count(&actual).Error; err != nil {
		return err
	}

	result := h.db.WithContext(ctx).
		Model(&database.UserUsage{}).
		Where("user_id = ? AND resume_count <> ?", userID, actual).
		UpdateColumn("resume_count", actual)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		h.logger.Info("resume count reconciled",
			slog.Uint64("user_id", uint64(userID)),
			slog.Int64("actual", actual),
		)
	}
	return nil
}
