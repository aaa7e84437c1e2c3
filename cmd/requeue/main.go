package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/config"
	"github.com/tlslibhunter/tlslibhunter-go/internal/domain"
	"github.com/tlslibhunter/tlslibhunter-go/internal/queue"
	"github.com/tlslibhunter/tlslibhunter-go/internal/repository"
)

// 运维工具：将失败的扫描任务重置并重新入队
func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	configPath := "./configs/config.yaml"
	if len(os.Args) > 1 && os.Args[1] == "--config" && len(os.Args) > 2 {
		configPath = os.Args[2]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := repository.InitDB(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	mqConfig := &queue.RabbitMQConfig{
		Host:     cfg.RabbitMQ.Host,
		Port:     cfg.RabbitMQ.Port,
		User:     cfg.RabbitMQ.User,
		Password: cfg.RabbitMQ.Password,
		VHost:    cfg.RabbitMQ.VHost,
	}
	mq, err := queue.NewRabbitMQ(mqConfig, cfg.RabbitMQ.Queue, logger)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer mq.Close()

	producer := queue.NewProducer(mq, logger)
	repo := repository.NewScanRepository(db, logger)

	// 查询所有失败的扫描任务
	var failedScans []domain.ScanRecord
	if err := db.Where("status = ?", domain.ScanStatusFailed).Find(&failedScans).Error; err != nil {
		log.Fatalf("Failed to query failed scans: %v", err)
	}

	fmt.Printf("Found %d failed scans\n", len(failedScans))

	ctx := context.Background()
	successCount := 0
	for i, scan := range failedScans {
		if err := repo.ResetForRetry(ctx, scan.ID); err != nil {
			log.Printf("Failed to reset scan %s: %v", scan.ID, err)
			continue
		}

		msg := &queue.ScanTaskMessage{
			ScanID:  scan.ID,
			Target:  scan.Target,
			Extract: scan.ExtractRequested,
		}
		if err := producer.PublishScanTask(ctx, msg); err != nil {
			log.Printf("Failed to publish scan %s: %v", scan.ID, err)
			continue
		}

		successCount++
		if (i+1)%100 == 0 {
			fmt.Printf("Progress: %d/%d\n", i+1, len(failedScans))
		}
	}

	fmt.Printf("\nRequeued %d/%d scans\n", successCount, len(failedScans))
}
