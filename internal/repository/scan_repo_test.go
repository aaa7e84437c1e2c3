package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tlslibhunter/tlslibhunter-go/internal/domain"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// setupTestDB 创建测试数据库
func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "Failed to open test database")

	tables := []interface{}{
		&domain.ScanRecord{},
		&domain.LibraryRecord{},
		&domain.ExtractionRecord{},
	}

	for _, table := range tables {
		err = db.AutoMigrate(table)
		// Ignore "index already exists" errors (happens in test environment)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			require.NoError(t, err, "Failed to migrate test database")
		}
	}

	return db
}

func newRepo(t *testing.T) (ScanRepository, context.Context) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewScanRepository(setupTestDB(t), logger), context.Background()
}

// TestScanRepository_Create 测试创建扫描任务
func TestScanRepository_Create(t *testing.T) {
	repo, ctx := newRepo(t)

	record := &domain.ScanRecord{
		ID:     "scan-001",
		Target: "com.example.app",
		Status: domain.ScanStatusQueued,
	}

	err := repo.Create(ctx, record)
	assert.NoError(t, err, "Create should not return error")

	found, err := repo.FindByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "com.example.app", found.Target)
	assert.Equal(t, domain.ScanStatusQueued, found.Status)
	assert.Equal(t, "frida", found.Backend)
}

// TestScanRepository_Create_Duplicate 测试创建重复任务
func TestScanRepository_Create_Duplicate(t *testing.T) {
	repo, ctx := newRepo(t)

	record := &domain.ScanRecord{ID: "scan-002", Target: "firefox", Status: domain.ScanStatusQueued}
	require.NoError(t, repo.Create(ctx, record))

	err := repo.Create(ctx, &domain.ScanRecord{ID: "scan-002", Target: "firefox"})
	assert.Error(t, err, "Creating duplicate scan should return error")
}

// TestScanRepository_StatusTransitions 测试状态流转与失败记录
func TestScanRepository_StatusTransitions(t *testing.T) {
	repo, ctx := newRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.ScanRecord{ID: "scan-003", Target: "firefox", Status: domain.ScanStatusQueued}))

	require.NoError(t, repo.MarkStarted(ctx, "scan-003", "linux"))
	found, err := repo.FindByID(ctx, "scan-003")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusAttaching, found.Status)
	assert.Equal(t, "linux", found.Platform)
	assert.NotNil(t, found.StartedAt)

	require.NoError(t, repo.UpdateFailure(ctx, "scan-003", domain.FailureTypeProcessNotFound, "process not found"))
	found, err = repo.FindByID(ctx, "scan-003")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusFailed, found.Status)
	assert.Equal(t, domain.FailureTypeProcessNotFound, found.FailureType)
	assert.NotNil(t, found.CompletedAt)

	// 重置后可重新入队
	require.NoError(t, repo.ResetForRetry(ctx, "scan-003"))
	found, err = repo.FindByID(ctx, "scan-003")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusQueued, found.Status)
	assert.Equal(t, domain.FailureTypeNone, found.FailureType)
	assert.Nil(t, found.StartedAt)
}

// TestScanRepository_SaveScanResult 测试扫描结果与库明细的持久化
func TestScanRepository_SaveScanResult(t *testing.T) {
	repo, ctx := newRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.ScanRecord{ID: "scan-004", Target: "com.example.app", Status: domain.ScanStatusScanning}))

	result := scanner.NewScanResult("com.example.app", "android")
	result.TotalModulesScanned = 88
	result.ScanDurationSeconds = 2.5
	result.Libraries = append(result.Libraries, scanner.DetectedLibrary{
		Name:            "libssl.so",
		Path:            "/system/lib64/libssl.so",
		Size:            524288,
		LibraryType:     "boringssl",
		Classification:  "system",
		MatchedPatterns: []string{"SSL_CTX_new"},
	})

	require.NoError(t, repo.SaveScanResult(ctx, "scan-004", result))
	require.NoError(t, repo.MarkCompleted(ctx, "scan-004"))

	found, err := repo.FindByID(ctx, "scan-004")
	require.NoError(t, err)
	assert.Equal(t, domain.ScanStatusCompleted, found.Status)
	assert.Equal(t, 88, found.TotalModulesScanned)
	assert.Equal(t, 1, found.LibraryCount)
	require.Len(t, found.Libraries, 1)
	assert.Equal(t, "boringssl", found.Libraries[0].LibraryType)
	assert.Contains(t, found.Libraries[0].MatchedPatternsJSON, "SSL_CTX_new")
}

// TestScanRepository_SaveExtractions 测试提取结果的持久化
func TestScanRepository_SaveExtractions(t *testing.T) {
	repo, ctx := newRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.ScanRecord{ID: "scan-005", Target: "firefox", Status: domain.ScanStatusExtracting}))

	extractions := []*scanner.ExtractionResult{
		{Library: scanner.DetectedLibrary{Name: "libssl.so.3"}, Success: true, Method: "disk_copy", OutputPath: "/tmp/libssl.so.3", SizeBytes: 1024},
		{Library: scanner.DetectedLibrary{Name: "libnss3.so"}, Success: false, Method: "memory_dump", Error: "transfer timed out after 300s"},
	}

	require.NoError(t, repo.SaveExtractions(ctx, "scan-005", extractions))

	found, err := repo.FindByID(ctx, "scan-005")
	require.NoError(t, err)
	require.Len(t, found.Extractions, 2)
	assert.True(t, found.Extractions[0].Success)
	assert.Equal(t, "memory_dump", found.Extractions[1].Method)
	assert.Equal(t, "transfer timed out after 300s", found.Extractions[1].Error)
}

// TestScanRepository_RetryCount 测试重试计数递增
func TestScanRepository_RetryCount(t *testing.T) {
	repo, ctx := newRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.ScanRecord{ID: "scan-006", Target: "firefox", Status: domain.ScanStatusFailed}))

	count, err := repo.IncrementRetryCount(ctx, "scan-006")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.IncrementRetryCount(ctx, "scan-006")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// TestScanRepository_StatusCounts 测试状态统计聚合
func TestScanRepository_StatusCounts(t *testing.T) {
	repo, ctx := newRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.ScanRecord{ID: "a", Target: "x", Status: domain.ScanStatusQueued}))
	require.NoError(t, repo.Create(ctx, &domain.ScanRecord{ID: "b", Target: "y", Status: domain.ScanStatusQueued}))
	require.NoError(t, repo.Create(ctx, &domain.ScanRecord{ID: "c", Target: "z", Status: domain.ScanStatusCompleted}))

	counts, total, err := repo.GetStatusCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(2), counts["queued"])
	assert.Equal(t, int64(1), counts["completed"])
}

// TestScanRepository_Pagination 测试分页查询
func TestScanRepository_Pagination(t *testing.T) {
	repo, ctx := newRepo(t)

	for _, id := range []string{"p1", "p2", "p3"} {
		require.NoError(t, repo.Create(ctx, &domain.ScanRecord{ID: id, Target: id, Status: domain.ScanStatusQueued}))
	}

	records, total, err := repo.ListWithPagination(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, records, 2)

	records, _, err = repo.ListWithPagination(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// TestScanRepository_Delete 测试删除任务级联清理明细
func TestScanRepository_Delete(t *testing.T) {
	repo, ctx := newRepo(t)

	require.NoError(t, repo.Create(ctx, &domain.ScanRecord{ID: "scan-007", Target: "firefox", Status: domain.ScanStatusCompleted}))
	result := scanner.NewScanResult("firefox", "linux")
	result.Libraries = append(result.Libraries, scanner.DetectedLibrary{Name: "libssl.so.3"})
	require.NoError(t, repo.SaveScanResult(ctx, "scan-007", result))

	require.NoError(t, repo.Delete(ctx, "scan-007"))
	_, err := repo.FindByID(ctx, "scan-007")
	assert.Error(t, err)
}
