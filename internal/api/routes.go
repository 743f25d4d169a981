package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"tailorcv/internal/api/middleware"
	"tailorcv/internal/auth"
	"tailorcv/internal/billing"
	"tailorcv/internal/llm"
	"tailorcv/internal/metrics"
	"tailorcv/internal/quota"
	"tailorcv/internal/resume"
	"tailorcv/internal/storage"
	"tailorcv/internal/tailor"
)

// Dependencies 汇集路由层需要的全部服务。
type Dependencies struct {
	DB               *gorm.DB
	Redis            *redis.Client
	Storage          *storage.Client
	Verifier         *auth.Verifier
	ResumeService    *resume.Service
	TailorService    *tailor.Service
	LLMClient        *llm.Client
	QuotaGate        *quota.Gate
	BillingClient    *billing.Client
	BillingProcessor *billing.Processor
	Logger           *slog.Logger
	ClamdAddr        string
	AllowedOrigins   []string
	MaxResumes       int
	MaxAIGenerations int
}

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(deps.Logger),
		metrics.GinMiddleware(),
	)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	resumeHandler := NewResumeHandler(deps.ResumeService, deps.Storage)
	photoHandler := NewPhotoHandler(resumeHandler, deps.ClamdAddr)
	generateHandler := NewGenerateHandler(deps.TailorService, deps.LLMClient, deps.ResumeService, deps.QuotaGate, deps.Redis, deps.ClamdAddr)
	usageHandler := NewUsageHandler(deps.QuotaGate, deps.MaxResumes, deps.MaxAIGenerations)
	billingHandler := NewBillingHandler(deps.BillingClient, deps.BillingProcessor, deps.DB)
	groupHandler := NewGroupHandler(deps.ResumeService)
	wsHandler := NewWsHandler(deps.Redis, deps.Verifier, deps.Logger, deps.AllowedOrigins)
	authMiddleware := middleware.AuthMiddleware(deps.Verifier)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		// 支付回调不走认证，签名即身份。
		v1.POST("/billing/webhook", billingHandler.HandleWebhook)

		resumeGroup := v1.Group("/resumes")
		resumeGroup.Use(authMiddleware)
		{
			resumeGroup.POST("", resumeHandler.CreateResume)
			resumeGroup.GET("", resumeHandler.ListResumes)
			resumeGroup.GET("/:id", resumeHandler.GetResume)
			resumeGroup.PUT("/:id", resumeHandler.UpdateResume)
			resumeGroup.DELETE("/:id", resumeHandler.DeleteResume)
			resumeGroup.POST("/:id/duplicate", resumeHandler.DuplicateResume)
			resumeGroup.GET("/:id/job-description", resumeHandler.GetJobDescription)
			resumeGroup.PUT("/:id/job-description", resumeHandler.SetJobDescription)
			resumeGroup.DELETE("/:id/job-description", resumeHandler.ClearJobDescription)
			resumeGroup.POST("/:id/photo", photoHandler.UploadPhoto)
			resumeGroup.GET("/:id/photo", resumeHandler.GetPhotoLink)
			resumeGroup.GET("/:id/cv-file", resumeHandler.GetCVFileLink)
		}

		groupGroup := v1.Group("/groups")
		groupGroup.Use(authMiddleware)
		{
			groupGroup.POST("", groupHandler.CreateGroup)
			groupGroup.GET("", groupHandler.ListGroups)
			groupGroup.PUT("/:id", groupHandler.UpdateGroup)
			groupGroup.DELETE("/:id", groupHandler.DeleteGroup)
		}

		generateGroup := v1.Group("/generate")
		generateGroup.Use(authMiddleware)
		{
			generateGroup.POST("", generateHandler.GenerateResume)
			generateGroup.POST("/cover-letter", generateHandler.GenerateCoverLetter)
			generateGroup.POST("/hr-message", generateHandler.GenerateHRMessage)
		}

		usageGroup := v1.Group("/usage")
		usageGroup.Use(authMiddleware)
		{
			usageGroup.GET("", usageHandler.GetUsage)
			usageGroup.POST("/increment-resume", usageHandler.IncrementResume)
			usageGroup.POST("/increment-ai-generation", usageHandler.IncrementAIGeneration)
		}

		billingGroup := v1.Group("/billing")
		billingGroup.Use(authMiddleware)
		{
			billingGroup.POST("/checkout-session", billingHandler.CreateCheckout)
			billingGroup.POST("/portal-session", billingHandler.CreatePortal)
			billingGroup.GET("/subscription", billingHandler.GetSubscription)
		}
	}
}
