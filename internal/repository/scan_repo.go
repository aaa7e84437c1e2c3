package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tlslibhunter/tlslibhunter-go/internal/domain"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

type ScanRepository interface {
	Create(ctx context.Context, record *domain.ScanRecord) error
	FindByID(ctx context.Context, id string) (*domain.ScanRecord, error)
	ListWithPagination(ctx context.Context, page int, pageSize int) ([]*domain.ScanRecord, int64, error)
	Delete(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status domain.ScanStatus) error
	MarkStarted(ctx context.Context, id string, platform string) error
	// 更新任务失败信息（包含失败类型）
	UpdateFailure(ctx context.Context, id string, failureType domain.FailureType, errorMessage string) error
	// 保存扫描结果与检出库明细
	SaveScanResult(ctx context.Context, id string, result *scanner.ScanResult) error
	// 保存提取结果明细
	SaveExtractions(ctx context.Context, id string, extractions []*scanner.ExtractionResult) error
	MarkCompleted(ctx context.Context, id string) error
	// 重试相关方法
	IncrementRetryCount(ctx context.Context, id string) (int, error)
	ResetForRetry(ctx context.Context, id string) error
	// 获取各状态任务数量统计（使用数据库聚合查询）
	GetStatusCounts(ctx context.Context) (map[string]int64, int64, error)
}

type scanRepo struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewScanRepository(db *gorm.DB, logger *logrus.Logger) ScanRepository {
	return &scanRepo{
		db:     db,
		logger: logger,
	}
}

func (r *scanRepo) Create(ctx context.Context, record *domain.ScanRecord) error {
	record.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *scanRepo) FindByID(ctx context.Context, id string) (*domain.ScanRecord, error) {
	var record domain.ScanRecord
	err := r.db.WithContext(ctx).
		Preload("Libraries").
		Preload("Extractions").
		First(&record, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *scanRepo) ListWithPagination(ctx context.Context, page int, pageSize int) ([]*domain.ScanRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&domain.ScanRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []*domain.ScanRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	return records, total, err
}

func (r *scanRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("scan_id = ?", id).Delete(&domain.LibraryRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("scan_id = ?", id).Delete(&domain.ExtractionRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.ScanRecord{}, "id = ?", id).Error
	})
}

func (r *scanRepo) UpdateStatus(ctx context.Context, id string, status domain.ScanStatus) error {
	return r.db.WithContext(ctx).
		Model(&domain.ScanRecord{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *scanRepo) MarkStarted(ctx context.Context, id string, platform string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&domain.ScanRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.ScanStatusAttaching,
			"platform":   platform,
			"started_at": &now,
		}).Error
}

func (r *scanRepo) UpdateFailure(ctx context.Context, id string, failureType domain.FailureType, errorMessage string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).
		Model(&domain.ScanRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.ScanStatusFailed,
			"failure_type":  failureType,
			"error_message": errorMessage,
			"completed_at":  &now,
		}).Error
	if err != nil {
		r.logger.WithError(err).WithField("scan_id", id).Error("Failed to record scan failure")
	}
	return err
}

// SaveScanResult 保存扫描结果：更新主表计数并写入库明细
func (r *scanRepo) SaveScanResult(ctx context.Context, id string, result *scanner.ScanResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&domain.ScanRecord{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"platform":              result.Platform,
				"total_modules_scanned": result.TotalModulesScanned,
				"scan_duration_seconds": result.ScanDurationSeconds,
				"library_count":         result.TLSLibraryCount(),
			}).Error
		if err != nil {
			return err
		}

		for _, lib := range result.Libraries {
			patternsJSON, _ := json.Marshal(lib.MatchedPatterns)
			exportsJSON, _ := json.Marshal(lib.MatchedExports)
			record := domain.LibraryRecord{
				ScanID:              id,
				Name:                lib.Name,
				Path:                lib.Path,
				BaseAddress:         lib.BaseAddress,
				Size:                lib.Size,
				LibraryType:         lib.LibraryType,
				Classification:      lib.Classification,
				DetectedVersion:     lib.DetectedVersion,
				MatchedPatternsJSON: string(patternsJSON),
				MatchedExportsJSON:  string(exportsJSON),
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *scanRepo) SaveExtractions(ctx context.Context, id string, extractions []*scanner.ExtractionResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ext := range extractions {
			record := domain.ExtractionRecord{
				ScanID:      id,
				LibraryName: ext.Library.Name,
				Success:     ext.Success,
				Method:      ext.Method,
				OutputPath:  ext.OutputPath,
				SizeBytes:   ext.SizeBytes,
				Error:       ext.Error,
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *scanRepo) MarkCompleted(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).
		Model(&domain.ScanRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       domain.ScanStatusCompleted,
			"completed_at": &now,
		}).Error
}

// IncrementRetryCount 原子递增重试计数并返回新值
func (r *scanRepo) IncrementRetryCount(ctx context.Context, id string) (int, error) {
	err := r.db.WithContext(ctx).
		Model(&domain.ScanRecord{}).
		Where("id = ?", id).
		Update("retry_count", gorm.Expr("retry_count + 1")).Error
	if err != nil {
		return 0, err
	}

	var record domain.ScanRecord
	if err := r.db.WithContext(ctx).Select("retry_count").First(&record, "id = ?", id).Error; err != nil {
		return 0, err
	}
	return record.RetryCount, nil
}

func (r *scanRepo) ResetForRetry(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&domain.ScanRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        domain.ScanStatusQueued,
			"failure_type":  domain.FailureTypeNone,
			"error_message": "",
			"started_at":    nil,
			"completed_at":  nil,
		}).Error
}

func (r *scanRepo) GetStatusCounts(ctx context.Context) (map[string]int64, int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&domain.ScanRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	counts := make(map[string]int64, len(rows))
	var total int64
	for _, row := range rows {
		counts[row.Status] = row.Count
		total += row.Count
	}
	return counts, total, nil
}
