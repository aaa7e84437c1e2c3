package worker

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
	"github.com/tlslibhunter/tlslibhunter-go/internal/config"
	"github.com/tlslibhunter/tlslibhunter-go/internal/domain"
	"github.com/tlslibhunter/tlslibhunter-go/internal/hunter"
	"github.com/tlslibhunter/tlslibhunter-go/internal/middleware"
	"github.com/tlslibhunter/tlslibhunter-go/internal/queue"
	"github.com/tlslibhunter/tlslibhunter-go/internal/repository"
	"github.com/tlslibhunter/tlslibhunter-go/internal/retry"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// ProgressNotifier 任务进度通知接口, 由WebSocket Hub实现
type ProgressNotifier interface {
	PublishProgress(scanID string, status string, detail string)
}

// scanHunter 执行器依赖的扫描编排接口, 测试时可注入桩
type scanHunter interface {
	Scan(ctx context.Context) (*scanner.ScanResult, error)
	Extract(ctx context.Context, scanResult *scanner.ScanResult, outputDir string) ([]*scanner.ExtractionResult, error)
	Platform() string
	Close()
}

// Executor 扫描任务执行器：驱动单个任务从附加到持久化的完整流程
type Executor struct {
	repo     repository.ScanRepository
	producer *queue.Producer
	metrics  *middleware.PrometheusMetrics
	notifier ProgressNotifier
	cfg      *config.Config
	logger   *logrus.Logger

	// newHunter 工厂函数, 测试时替换
	newHunter func(opts hunter.Options) (scanHunter, error)
}

// NewExecutor 创建扫描任务执行器
func NewExecutor(
	repo repository.ScanRepository,
	producer *queue.Producer,
	metrics *middleware.PrometheusMetrics,
	notifier ProgressNotifier,
	cfg *config.Config,
	logger *logrus.Logger,
) *Executor {
	return &Executor{
		repo:     repo,
		producer: producer,
		metrics:  metrics,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		newHunter: func(opts hunter.Options) (scanHunter, error) {
			return hunter.New(opts)
		},
	}
}

// notify 进度通知（通知器可为空）
func (e *Executor) notify(scanID, status, detail string) {
	if e.notifier != nil {
		e.notifier.PublishProgress(scanID, status, detail)
	}
}

// Execute 执行单个扫描任务
// 失败时按失败类型决定是否重置并重新入队
func (e *Executor) Execute(ctx context.Context, msg *queue.ScanTaskMessage) error {
	startTime := time.Now()

	e.metrics.RecordScanStarted()
	e.notify(msg.ScanID, string(domain.ScanStatusAttaching), "Attaching to "+msg.Target)

	if err := e.repo.MarkStarted(ctx, msg.ScanID, ""); err != nil {
		e.logger.WithError(err).WithField("scan_id", msg.ScanID).Error("Failed to mark scan started")
	}

	// 消息未指定连接参数时回退到服务配置
	serial := msg.Serial
	if serial == "" {
		serial = e.cfg.Frida.Serial
	}
	host := msg.Host
	if host == "" {
		host = e.cfg.Frida.Host
	}

	h, err := e.newHunter(hunter.Options{
		Target:  msg.Target,
		Mobile:  msg.Mobile || e.cfg.Frida.Mobile,
		Serial:  serial,
		Host:    host,
		Spawn:   msg.Spawn,
		Timeout: time.Duration(e.cfg.Frida.Timeout) * time.Second,
		Logger:  e.logger,
	})
	if err != nil {
		return e.fail(ctx, msg, startTime, err)
	}
	defer h.Close()

	e.repo.UpdateStatus(ctx, msg.ScanID, domain.ScanStatusScanning)
	e.notify(msg.ScanID, string(domain.ScanStatusScanning), "Scanning loaded modules")

	result, err := h.Scan(ctx)
	if err != nil {
		return e.fail(ctx, msg, startTime, err)
	}

	if err := e.repo.SaveScanResult(ctx, msg.ScanID, result); err != nil {
		return e.fail(ctx, msg, startTime, err)
	}
	for _, lib := range result.Libraries {
		e.metrics.RecordLibraryDetected(lib.LibraryType)
	}

	if msg.Extract && result.TLSLibraryCount() > 0 {
		e.repo.UpdateStatus(ctx, msg.ScanID, domain.ScanStatusExtracting)
		e.notify(msg.ScanID, string(domain.ScanStatusExtracting), "Extracting detected libraries")

		outputDir := filepath.Join(e.cfg.Extract.OutputDir, msg.ScanID)
		extractions, err := h.Extract(ctx, result, outputDir)
		if err != nil {
			return e.fail(ctx, msg, startTime, err)
		}

		for _, ext := range extractions {
			e.metrics.RecordExtraction(ext.Method, ext.Success, ext.SizeBytes)
		}
		if err := e.repo.SaveExtractions(ctx, msg.ScanID, extractions); err != nil {
			return e.fail(ctx, msg, startTime, err)
		}
	}

	if err := e.repo.MarkCompleted(ctx, msg.ScanID); err != nil {
		return e.fail(ctx, msg, startTime, err)
	}

	e.metrics.RecordScanCompleted(time.Since(startTime))
	e.notify(msg.ScanID, string(domain.ScanStatusCompleted), "")

	e.logger.WithFields(logrus.Fields{
		"scan_id":   msg.ScanID,
		"target":    msg.Target,
		"libraries": result.TLSLibraryCount(),
	}).Info("Scan task finished")
	return nil
}

// fail 记录失败并按失败类型决定重试
// 重新入队成功时返回nil（原消息可确认）
func (e *Executor) fail(ctx context.Context, msg *queue.ScanTaskMessage, startTime time.Time, cause error) error {
	failureType := classifyFailure(cause)

	e.logger.WithError(cause).WithFields(logrus.Fields{
		"scan_id":      msg.ScanID,
		"failure_type": failureType,
		"severity":     failureType.GetSeverity(),
	}).Error("Scan task failed")

	if err := e.repo.UpdateFailure(ctx, msg.ScanID, failureType, cause.Error()); err != nil {
		e.logger.WithError(err).WithField("scan_id", msg.ScanID).Error("Failed to record scan failure")
	}
	e.metrics.RecordScanFailed(time.Since(startTime))
	e.notify(msg.ScanID, string(domain.ScanStatusFailed), cause.Error())

	if !failureType.CanRetry() {
		return cause
	}

	retryCount, err := e.repo.IncrementRetryCount(ctx, msg.ScanID)
	if err != nil {
		e.logger.WithError(err).WithField("scan_id", msg.ScanID).Error("Failed to increment retry count")
		return cause
	}
	if retryCount > failureType.GetMaxRetryCount() {
		e.logger.WithFields(logrus.Fields{
			"scan_id":     msg.ScanID,
			"retry_count": retryCount,
			"max_retry":   failureType.GetMaxRetryCount(),
		}).Warn("Max retries exhausted, giving up")
		return cause
	}

	if err := e.repo.ResetForRetry(ctx, msg.ScanID); err != nil {
		e.logger.WithError(err).WithField("scan_id", msg.ScanID).Error("Failed to reset scan for retry")
		return cause
	}

	// 重新入队本身也可能因连接抖动失败, 带重试发布
	publishErr := retry.RetryWithAttempts(ctx, 3, func(ctx context.Context) error {
		return e.producer.PublishScanTask(ctx, msg)
	})
	if publishErr != nil {
		e.logger.WithError(publishErr).WithField("scan_id", msg.ScanID).Error("Failed to republish scan task")
		return cause
	}

	e.metrics.RecordRetryAttempt(string(failureType))
	e.logger.WithFields(logrus.Fields{
		"scan_id":     msg.ScanID,
		"retry_count": retryCount,
	}).Warn("Scan task reset for retry and re-published to queue")
	return nil
}

// classifyFailure 将底层错误归类为失败类型
func classifyFailure(err error) domain.FailureType {
	switch {
	case errors.Is(err, backend.ErrDeviceNotFound):
		return domain.FailureTypeDeviceNotFound
	case errors.Is(err, backend.ErrProcessNotFound):
		return domain.FailureTypeProcessNotFound
	case errors.Is(err, backend.ErrAttachment):
		return domain.FailureTypeAttachFailed
	case errors.Is(err, backend.ErrScript):
		return domain.FailureTypeScriptError
	case errors.Is(err, context.DeadlineExceeded):
		return domain.FailureTypeTimeout
	default:
		return domain.FailureTypeUnknown
	}
}
