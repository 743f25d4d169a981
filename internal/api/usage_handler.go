package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tailorcv/internal/errcode"
	"tailorcv/internal/quota"
)

// UsageHandler 暴露用量查询端点，前端用它渲染剩余额度与升级提示。
type UsageHandler struct {
	gate             *quota.Gate
	maxResumes       int
	maxAIGenerations int
}

func NewUsageHandler(gate *quota.Gate, maxResumes, maxAIGenerations int) *UsageHandler {
	return &UsageHandler{
		gate:             gate,
		maxResumes:       maxResumes,
		maxAIGenerations: maxAIGenerations,
	}
}

// GetUsage 返回当前计数与套餐限额。
func (h *UsageHandler) GetUsage(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	usage, err := h.gate.Snapshot(c.Request.Context(), userID)
	if err != nil {
		Internal(c, "failed to query usage")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"usage": usage,
		"limits": gin.H{
			"max_resumes":        h.maxResumes,
			"max_ai_generations": h.maxAIGenerations,
		},
	})
}

// IncrementResume 供客户端在本地创建流程中显式占用一个简历额度。
func (h *UsageHandler) IncrementResume(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ok, err := h.gate.IncrementResumeCount(c.Request.Context(), userID)
	if err != nil {
		Internal(c, "failed to update usage")
		return
	}
	if !ok {
		RespondDomainError(c, errcode.ErrResumeQuotaExceeded)
		return
	}
	c.Status(http.StatusNoContent)
}

// IncrementAIGeneration 显式占用一次 AI 生成额度。
func (h *UsageHandler) IncrementAIGeneration(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ok, err := h.gate.IncrementAIGenerationCount(c.Request.Context(), userID)
	if err != nil {
		Internal(c, "failed to update usage")
		return
	}
	if !ok {
		RespondDomainError(c, errcode.ErrAIQuotaExceeded)
		return
	}
	c.Status(http.StatusNoContent)
}
