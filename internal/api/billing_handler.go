package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"tailorcv/internal/api/middleware"
	"tailorcv/internal/billing"
	"tailorcv/internal/database"
)

const webhookMaxBytes = 64 << 10

// BillingHandler 暴露订阅结账、自助门户与支付回调端点。
type BillingHandler struct {
	client    *billing.Client
	processor *billing.Processor
	db        *gorm.DB
}

func NewBillingHandler(client *billing.Client, processor *billing.Processor, db *gorm.DB) *BillingHandler {
	return &BillingHandler{client: client, processor: processor, db: db}
}

// CreateCheckout 发起订阅结账，返回托管支付页 URL。
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	url, err := h.client.CreateCheckoutSession(c.Request.Context(), userID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("create checkout failed", "error", err)
		Internal(c, "failed to create checkout session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// CreatePortal 为已有订阅的用户打开自助管理门户。
func (h *BillingHandler) CreatePortal(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var sub database.UserSubscription
	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		First(&sub).Error
	if err != nil || sub.CustomerID == "" {
		NotFound(c, "no subscription on file")
		return
	}

	url, err := h.client.CreatePortalSession(c.Request.Context(), sub.CustomerID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("create portal failed", "error", err)
		Internal(c, "failed to create portal session")
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GetSubscription 返回当前用户的订阅状态。
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var sub database.UserSubscription
	err := h.db.WithContext(c.Request.Context()).
		Where("user_id = ?", userID).
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusOK, gin.H{"plan": database.PlanFree})
		return
	}
	if err != nil {
		Internal(c, "failed to query subscription")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plan":                 sub.Plan,
		"current_period_end":   sub.CurrentPeriodEnd,
		"cancel_at_period_end": sub.CancelAtPeriodEnd,
	})
}

// HandleWebhook 验证签名后应用支付提供方事件。该端点不走认证中间件，
// 签名即身份。
func (h *BillingHandler) HandleWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookMaxBytes))
	if err != nil {
		BadRequest(c, "failed to read payload")
		return
	}

	if err := h.processor.VerifySignature(payload, c.GetHeader("Stripe-Signature")); err != nil {
		middleware.LoggerFromContext(c).Warn("webhook signature rejected", "error", err)
		BadRequest(c, "invalid signature")
		return
	}

	if err := h.processor.HandleEvent(c.Request.Context(), payload); err != nil {
		middleware.LoggerFromContext(c).Error("webhook event failed", "error", err)
		// 非 2xx 让提供方按退避策略重发。
		Internal(c, "failed to process event")
		return
	}

	c.Status(http.StatusOK)
}
