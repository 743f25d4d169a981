package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"tailorcv/internal/config"
	"tailorcv/internal/database"
	"tailorcv/internal/metrics"
	"tailorcv/internal/storage"
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
	log.Println("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	log.Printf("storage client ready, bucket=%s", cfg.MinIO.Bucket)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr()}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
	})

	cleanupHandler := worker.NewBlobCleanupHandler(storageClient, logger)
	reconcileHandler := worker.NewUsageReconcileHandler(db, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeBlobDelete, cleanupHandler)
	mux.Handle(tasks.TypeUsageReconcile, reconcileHandler)

	// 定时对账：每 6 小时把所有用户的简历计数与实际行数拉平。
	reconcileTask, err := tasks.NewUsageReconcileTask(0)
	if err != nil {
		log.Fatalf("build reconcile task: %v", err)
	}
	scheduler := asynq.NewScheduler(redisOpt, nil)
	if _, err := scheduler.Register("@every 6h", reconcileTask); err != nil {
		log.Fatalf("register reconcile schedule: %v", err)
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error("scheduler stopped", slog.Any("error", err))
		}
	}()

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
