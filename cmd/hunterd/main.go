package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/api"
	"github.com/tlslibhunter/tlslibhunter-go/internal/api/handlers"
	"github.com/tlslibhunter/tlslibhunter-go/internal/config"
	"github.com/tlslibhunter/tlslibhunter-go/internal/middleware"
	"github.com/tlslibhunter/tlslibhunter-go/internal/queue"
	"github.com/tlslibhunter/tlslibhunter-go/internal/repository"
	"github.com/tlslibhunter/tlslibhunter-go/internal/utils"
	"github.com/tlslibhunter/tlslibhunter-go/internal/worker"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	fmt.Printf("TLS Library Hunter - Scan Service\n")
	fmt.Printf("Version: %s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n\n", GitCommit)

	// 加载配置
	configPath := "./configs/config.yaml"
	if len(os.Args) > 1 && os.Args[1] == "--config" && len(os.Args) > 2 {
		configPath = os.Args[2]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	logger := config.InitLogger(&cfg.Log)
	logger.Infof("Starting TLS Library Hunter service %s", Version)
	logger.Infof("Config loaded from: %s", configPath)

	// 初始化数据库
	db, err := repository.InitDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to init database: %v", err)
	}
	logger.Info("Database connected successfully")

	// 优化数据库连接池
	if err := utils.OptimizeDBPool(db); err != nil {
		logger.WithError(err).Warn("Failed to optimize DB pool")
	}

	// 初始化 RabbitMQ
	// prefetch count = worker concurrency，支持并行消费
	mqConfig := &queue.RabbitMQConfig{
		Host:     cfg.RabbitMQ.Host,
		Port:     cfg.RabbitMQ.Port,
		User:     cfg.RabbitMQ.User,
		Password: cfg.RabbitMQ.Password,
		VHost:    cfg.RabbitMQ.VHost,
	}
	workerCount := cfg.Worker.Concurrency
	if workerCount <= 0 {
		workerCount = 1
	}
	mq, err := queue.NewRabbitMQWithPrefetch(mqConfig, cfg.RabbitMQ.Queue, workerCount, logger)
	if err != nil {
		logger.Fatalf("Failed to init RabbitMQ: %v", err)
	}
	defer mq.Close()
	logger.WithField("prefetch_count", workerCount).Info("RabbitMQ connected successfully")

	// 初始化仓库与生产者
	scanRepo := repository.NewScanRepository(db, logger)
	producer := queue.NewProducer(mq, logger)

	// 初始化内存监控
	memMonitor := middleware.NewMemoryMonitor(logger, 30*time.Second)
	memMonitor.Start()
	defer memMonitor.Stop()
	logger.Info("Memory monitor started")

	// 初始化 Prometheus 指标
	promMetrics := middleware.NewPrometheusMetrics(logger, "tlslibhunter")

	// 初始化进度推送
	progressHub := handlers.NewProgressHub(logger)
	progressHub.Start()
	logger.Info("Scan progress hub started")

	// 初始化执行器与 Worker Pool
	executor := worker.NewExecutor(scanRepo, producer, promMetrics, progressHub, cfg, logger)
	workerPool := worker.NewPool(cfg.Worker.Concurrency, cfg.Worker.QueueSize, executor, logger)
	workerPool.Start(context.Background())
	defer workerPool.Stop()
	logger.Infof("Worker pool started with %d workers", workerPool.Size())

	// 指标更新协程
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := memMonitor.GetStats()
			promMetrics.UpdateMemoryStats(stats)

			sqlDB, _ := db.DB()
			dbStats := sqlDB.Stats()
			promMetrics.UpdateDBStats(dbStats.OpenConnections, dbStats.Idle, dbStats.InUse)

			promMetrics.UpdateWorkerPoolStats(workerPool.Size(), 0, workerPool.GetQueueSize())
		}
	}()

	// 启动任务消费者 (从 RabbitMQ 读取任务并提交到 Worker Pool)
	consumer := queue.NewConsumer(mq, createScanTaskHandler(workerPool, logger), cfg.Worker.Concurrency, logger)
	if err := consumer.Start(context.Background()); err != nil {
		logger.Fatalf("Failed to start consumer: %v", err)
	}
	defer consumer.Stop()
	logger.Infof("Scan task consumer started with %d workers", cfg.Worker.Concurrency)

	// 设置 HTTP Server
	scanHandler := handlers.NewScanHandler(scanRepo, producer, promMetrics, logger)
	router := api.SetupRouter(cfg, logger, mq, memMonitor, promMetrics, scanHandler, progressHub)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动 HTTP Server
	go func() {
		logger.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")

	// 优雅关闭 (30秒超时)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP server shutdown error: %v", err)
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("Server stopped")
}

// createScanTaskHandler 创建任务处理器 (从 RabbitMQ 消息提交到 Worker Pool)
// 重试决策由执行器内部完成：重新入队成功时返回nil，原消息可直接确认
func createScanTaskHandler(workerPool *worker.Pool, logger *logrus.Logger) queue.ScanTaskHandler {
	return func(ctx context.Context, msg *queue.ScanTaskMessage) error {
		logger.WithFields(logrus.Fields{
			"scan_id": msg.ScanID,
			"target":  msg.Target,
		}).Info("Received scan task from RabbitMQ, submitting to worker pool")

		task := &worker.ScanTask{Message: msg}
		if err := workerPool.SubmitAndWait(ctx, task); err != nil {
			logger.WithError(err).WithField("scan_id", msg.ScanID).Error("Scan task execution failed")
			return err
		}

		logger.WithField("scan_id", msg.ScanID).Info("Scan task processed")
		return nil
	}
}
