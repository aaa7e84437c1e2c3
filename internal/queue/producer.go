package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ScanTaskMessage 扫描任务消息
type ScanTaskMessage struct {
	ScanID  string `json:"scan_id"`
	Target  string `json:"target"`            // 进程名、PID或包名
	Mobile  bool   `json:"mobile,omitempty"`  // 连接第一个USB设备
	Serial  string `json:"serial,omitempty"`  // 指定设备序列号
	Host    string `json:"host,omitempty"`    // 远程frida-server地址
	Spawn   bool   `json:"spawn,omitempty"`   // 启动新进程而非附加
	Extract bool   `json:"extract,omitempty"` // 扫描后提取检出的库
}

// Producer 消息生产者
type Producer struct {
	mq     *RabbitMQ
	logger *logrus.Logger
}

// NewProducer 创建生产者
func NewProducer(mq *RabbitMQ, logger *logrus.Logger) *Producer {
	return &Producer{
		mq:     mq,
		logger: logger,
	}
}

// PublishScanTask 发布扫描任务消息
func (p *Producer) PublishScanTask(ctx context.Context, msg *ScanTaskMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := p.mq.Publish(ctx, body); err != nil {
		p.logger.WithError(err).WithField("scan_id", msg.ScanID).Error("Failed to publish scan task")
		return fmt.Errorf("failed to publish: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"scan_id": msg.ScanID,
		"target":  msg.Target,
	}).Info("Scan task published to queue")

	return nil
}

// GetQueueSize 获取队列大小
func (p *Producer) GetQueueSize() (int, error) {
	messageCount, _, err := p.mq.GetQueueStats()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue stats: %w", err)
	}
	return messageCount, nil
}
