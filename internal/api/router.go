package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/api/handlers"
	"github.com/tlslibhunter/tlslibhunter-go/internal/config"
	"github.com/tlslibhunter/tlslibhunter-go/internal/middleware"
	"github.com/tlslibhunter/tlslibhunter-go/internal/queue"
)

func SetupRouter(cfg *config.Config, logger *logrus.Logger, mq *queue.RabbitMQ, memMonitor *middleware.MemoryMonitor, promMetrics *middleware.PrometheusMetrics, scanHandler *handlers.ScanHandler, progressHub *handlers.ProgressHub) *gin.Engine {
	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	// Prometheus 监控中间件
	if promMetrics != nil {
		r.Use(promMetrics.HTTPMiddleware())
	}

	// 扫描进度推送
	r.GET("/ws/scans/:scan_id", progressHub.HandleWebSocket)

	// 内存监控端点
	r.GET("/metrics", memMonitor.MetricsEndpoint())
	r.POST("/debug/gc", middleware.ForceGC())

	// Prometheus 指标端点
	if promMetrics != nil {
		r.GET("/metrics/prometheus", promMetrics.Handler())
	}

	// API v1
	v1 := r.Group("/api")
	{
		// 健康检查
		v1.GET("/health", func(c *gin.Context) {
			status := "ok"
			code := 200
			if mq != nil && !mq.IsConnected() {
				status = "degraded"
				code = 503
			}
			c.JSON(code, gin.H{
				"status":  status,
				"version": "1.0.0",
			})
		})

		// 系统统计
		v1.GET("/stats", scanHandler.GetStats)

		// 扫描任务管理
		v1.POST("/scans", scanHandler.CreateScan)
		v1.GET("/scans", scanHandler.ListScans)
		v1.GET("/scans/:id", scanHandler.GetScan)
		v1.DELETE("/scans/:id", scanHandler.DeleteScan)
	}

	return r
}

// LoggerMiddleware 日志中间件
func LoggerMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		method := c.Request.Method
		path := c.Request.URL.Path

		logger.WithFields(logrus.Fields{
			"status":  statusCode,
			"method":  method,
			"path":    path,
			"latency": latency.Milliseconds(),
		}).Info("HTTP Request")
	}
}

// CORSMiddleware CORS 中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
