package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// 统一的 WebSocket 消息协议（通过 Redis Pub/Sub 转发给前端）。
// 注意：这里的字段名与前端解析保持一致。
type GenerationNotifyMessage struct {
	Status        string `json:"status"`
	ResumeID      uint   `json:"resume_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
}

// Publisher 将生成进度推送到用户的 Redis 通知通道。
type Publisher struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewPublisher(redisClient *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{redisClient: redisClient, logger: logger}
}

// GenerationStatus 发布一条进度消息。推送失败不影响主流程，只记录日志。
func (p *Publisher) GenerationStatus(ctx context.Context, userID uint, status string, resumeID uint, errCode int, correlationID string) {
	msg := GenerationNotifyMessage{
		Status:        status,
		ResumeID:      resumeID,
		ErrorCode:     errCode,
		CorrelationID: correlationID,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("marshal notification payload failed", "error", err)
		return
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := p.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Warn("publish notification failed", "channel", channel, "error", err)
	}
}
