package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"tailorcv/internal/api"
	"tailorcv/internal/auth"
	"tailorcv/internal/billing"
	"tailorcv/internal/config"
	"tailorcv/internal/database"
	"tailorcv/internal/extract"
	"tailorcv/internal/llm"
	"tailorcv/internal/quota"
	"tailorcv/internal/resume"
	"tailorcv/internal/storage"
	"tailorcv/internal/tailor"
	"tailorcv/internal/tasks"
	"tailorcv/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	log.Printf("database ready, host=%s db=%s", cfg.Database.Host, cfg.Database.Name)

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.JWTPublicKeyPEM))
	if err != nil {
		log.Fatalf("init token verifier: %v", err)
	}

	gate := quota.NewGate(db, cfg.Limits.FreeMaxResumes, cfg.Limits.FreeMaxAIGenerations)

	llmClient, err := llm.NewClient(context.Background(), cfg.Gemini, logger)
	if err != nil {
		log.Fatalf("init llm client: %v", err)
	}

	cleanup := tasks.NewCleanupEnqueuer(asynqClient)
	resumeService := resume.NewService(db, gate, cleanup, logger)
	extractor := extract.NewExtractor(llmClient)
	notifier := worker.NewPublisher(redisClient, logger)
	tailorService := tailor.NewService(storageClient, extractor, llmClient, resumeService, notifier, logger)

	billingClient := billing.NewClient(cfg.Billing, cfg.API.BaseURL)
	billingProcessor := billing.NewProcessor(db, redisClient, cfg.Billing.WebhookSecret, logger)

	router := api.NewRouter(cfg)
	api.RegisterRoutes(router, api.Dependencies{
		DB:               db,
		Redis:            redisClient,
		Storage:          storageClient,
		Verifier:         verifier,
		ResumeService:    resumeService,
		TailorService:    tailorService,
		LLMClient:        llmClient,
		QuotaGate:        gate,
		BillingClient:    billingClient,
		BillingProcessor: billingProcessor,
		Logger:           logger,
		ClamdAddr:        cfg.API.ClamdAddr,
		AllowedOrigins:   cfg.API.Origins(),
		MaxResumes:       cfg.Limits.FreeMaxResumes,
		MaxAIGenerations: cfg.Limits.FreeMaxAIGenerations,
	})

	address := fmt.Sprintf(":%d", cfg.API.Port)
	log.Printf("api listening on %s", address)
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
