package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

// setupTestMetrics 创建测试用的 Prometheus 指标收集器
func setupTestMetrics(t *testing.T) *PrometheusMetrics {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	// 使用唯一的 namespace 避免指标冲突
	namespace := "test_" + t.Name() + "_" + time.Now().Format("20060102150405999999999")
	return NewPrometheusMetrics(logger, namespace)
}

// TestPrometheusMetrics_Initialization 测试指标初始化
func TestPrometheusMetrics_Initialization(t *testing.T) {
	pm := setupTestMetrics(t)

	assert.NotNil(t, pm)
	assert.NotNil(t, pm.httpRequestsTotal)
	assert.NotNil(t, pm.scansTotal)
	assert.NotNil(t, pm.librariesDetectedTotal)
	assert.NotNil(t, pm.extractionsTotal)
	assert.NotNil(t, pm.retryAttemptsTotal)
}

// TestHTTPMiddleware 测试 HTTP 中间件
func TestHTTPMiddleware(t *testing.T) {
	pm := setupTestMetrics(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(pm.HTTPMiddleware())
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	count := testutil.CollectAndCount(pm.httpRequestsTotal)
	assert.Greater(t, count, 0, "HTTP request metric should be recorded")
}

// TestRecordScanMetrics 测试扫描任务指标记录
func TestRecordScanMetrics(t *testing.T) {
	pm := setupTestMetrics(t)

	pm.RecordScanCreated()
	pm.RecordScanStarted()
	pm.RecordScanStarted()
	pm.RecordScanCompleted(30 * time.Second)
	pm.RecordScanFailed(5 * time.Second)

	count := testutil.CollectAndCount(pm.scansTotal)
	assert.Greater(t, count, 0, "Scan metrics should be recorded")

	// 两次开始, 完成与失败各一次, 进行中归零
	assert.Equal(t, float64(0), testutil.ToFloat64(pm.scansInProgress))
}

// TestRecordLibraryAndExtraction 测试库检出与提取指标
func TestRecordLibraryAndExtraction(t *testing.T) {
	pm := setupTestMetrics(t)

	pm.RecordLibraryDetected("boringssl")
	pm.RecordLibraryDetected("boringssl")
	pm.RecordLibraryDetected("openssl")

	assert.Equal(t, float64(2), testutil.ToFloat64(pm.librariesDetectedTotal.WithLabelValues("boringssl")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.librariesDetectedTotal.WithLabelValues("openssl")))

	pm.RecordExtraction("adb_pull", true, 1024)
	pm.RecordExtraction("memory_dump", false, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(pm.extractionsTotal.WithLabelValues("adb_pull", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.extractionsTotal.WithLabelValues("memory_dump", "failure")))
	assert.Equal(t, float64(1024), testutil.ToFloat64(pm.extractionBytesTotal))
}

// TestMetricsHandler 测试指标导出端点
func TestMetricsHandler(t *testing.T) {
	pm := setupTestMetrics(t)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/metrics", pm.Handler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
