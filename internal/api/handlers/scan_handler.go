package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tlslibhunter/tlslibhunter-go/internal/domain"
	"github.com/tlslibhunter/tlslibhunter-go/internal/middleware"
	"github.com/tlslibhunter/tlslibhunter-go/internal/queue"
	"github.com/tlslibhunter/tlslibhunter-go/internal/repository"
)

// TaskPublisher 任务发布接口, 由 queue.Producer 实现
type TaskPublisher interface {
	PublishScanTask(ctx context.Context, msg *queue.ScanTaskMessage) error
	GetQueueSize() (int, error)
}

// ScanHandler 扫描任务处理器
type ScanHandler struct {
	repo     repository.ScanRepository
	producer TaskPublisher
	metrics  *middleware.PrometheusMetrics
	logger   *logrus.Logger
}

// NewScanHandler 创建扫描任务处理器实例
func NewScanHandler(repo repository.ScanRepository, producer TaskPublisher, metrics *middleware.PrometheusMetrics, logger *logrus.Logger) *ScanHandler {
	return &ScanHandler{
		repo:     repo,
		producer: producer,
		metrics:  metrics,
		logger:   logger,
	}
}

// CreateScanRequest 创建扫描任务请求体
type CreateScanRequest struct {
	Target  string `json:"target" binding:"required"`
	Mobile  bool   `json:"mobile"`
	Serial  string `json:"serial"`
	Host    string `json:"host"`
	Spawn   bool   `json:"spawn"`
	Extract bool   `json:"extract"`
}

// CreateScan 创建扫描任务并入队
// POST /api/scans
func (h *ScanHandler) CreateScan(c *gin.Context) {
	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "target is required",
		})
		return
	}

	scanID := uuid.New().String()
	record := &domain.ScanRecord{
		ID:               scanID,
		Target:           req.Target,
		Backend:          "frida",
		Status:           domain.ScanStatusQueued,
		ExtractRequested: req.Extract,
	}

	if err := h.repo.Create(c.Request.Context(), record); err != nil {
		h.logger.WithError(err).Error("Failed to create scan record")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to create scan",
		})
		return
	}

	msg := &queue.ScanTaskMessage{
		ScanID:  scanID,
		Target:  req.Target,
		Mobile:  req.Mobile,
		Serial:  req.Serial,
		Host:    req.Host,
		Spawn:   req.Spawn,
		Extract: req.Extract,
	}
	if err := h.producer.PublishScanTask(c.Request.Context(), msg); err != nil {
		// 入库成功但入队失败, 标记任务失败避免永久排队
		h.repo.UpdateFailure(c.Request.Context(), scanID, domain.FailureTypeUnknown, "failed to enqueue scan task")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "failed to enqueue scan task",
		})
		return
	}

	h.metrics.RecordScanCreated()
	h.logger.WithFields(logrus.Fields{
		"scan_id": scanID,
		"target":  req.Target,
	}).Info("Scan task created")

	c.JSON(http.StatusAccepted, gin.H{
		"scan_id": scanID,
		"status":  domain.ScanStatusQueued,
	})
}

// GetScan 获取单个扫描任务（含检出库和提取明细）
// GET /api/scans/:id
func (h *ScanHandler) GetScan(c *gin.Context) {
	id := c.Param("id")

	record, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "scan not found",
			})
			return
		}
		h.logger.WithError(err).WithField("scan_id", id).Error("Failed to get scan")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to get scan",
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListScans 分页获取扫描任务列表
// GET /api/scans?page=1&page_size=20
func (h *ScanHandler) ListScans(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	records, total, err := h.repo.ListWithPagination(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list scans")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to list scans",
		})
		return
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)
	c.JSON(http.StatusOK, gin.H{
		"scans":       records,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages,
	})
}

// DeleteScan 删除扫描任务及其明细
// DELETE /api/scans/:id
func (h *ScanHandler) DeleteScan(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.repo.FindByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "scan not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to get scan",
		})
		return
	}

	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.logger.WithError(err).WithField("scan_id", id).Error("Failed to delete scan")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to delete scan",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "scan deleted",
	})
}

// GetStats 系统统计：任务状态分布与队列积压
// GET /api/stats
func (h *ScanHandler) GetStats(c *gin.Context) {
	counts, total, err := h.repo.GetStatusCounts(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to get status counts")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to get stats",
		})
		return
	}

	stats := gin.H{
		"total":     total,
		"by_status": counts,
	}

	if queueSize, err := h.producer.GetQueueSize(); err == nil {
		stats["queue_size"] = queueSize
	}

	c.JSON(http.StatusOK, stats)
}
