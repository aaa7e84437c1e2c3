package domain

import (
	"time"
)

type ScanStatus string

const (
	ScanStatusQueued     ScanStatus = "queued"
	ScanStatusAttaching  ScanStatus = "attaching"
	ScanStatusScanning   ScanStatus = "scanning"
	ScanStatusExtracting ScanStatus = "extracting"
	ScanStatusCompleted  ScanStatus = "completed"
	ScanStatusFailed     ScanStatus = "failed"
	ScanStatusCancelled  ScanStatus = "cancelled"
)

// FailureType 失败类型
type FailureType string

const (
	FailureTypeNone            FailureType = ""                  // 无失败（成功或进行中）
	FailureTypeDeviceNotFound  FailureType = "device_not_found"  // 设备不存在或不可达（正常-设备未接入）
	FailureTypeProcessNotFound FailureType = "process_not_found" // 目标进程不存在（警告-目标问题）
	FailureTypeAttachFailed    FailureType = "attach_failed"     // 进程附加失败（异常-环境问题）
	FailureTypeScriptError     FailureType = "script_error"      // 代理脚本加载失败（异常-环境问题）
	FailureTypeExtractionError FailureType = "extraction_error"  // 库提取失败（警告）
	FailureTypeTimeout         FailureType = "timeout"           // 任务执行超时（警告）
	FailureTypeUnknown         FailureType = "unknown"           // 未知错误（异常）
)

// FailureSeverity 失败严重程度
type FailureSeverity string

const (
	FailureSeverityNormal  FailureSeverity = "normal"  // 正常（资源限制，可重试）
	FailureSeverityWarning FailureSeverity = "warning" // 警告（需要关注）
	FailureSeverityError   FailureSeverity = "error"   // 错误（需要排查）
)

// GetSeverity 获取失败类型对应的严重程度
func (ft FailureType) GetSeverity() FailureSeverity {
	switch ft {
	case FailureTypeNone, FailureTypeDeviceNotFound:
		return FailureSeverityNormal
	case FailureTypeProcessNotFound, FailureTypeExtractionError, FailureTypeTimeout:
		return FailureSeverityWarning
	case FailureTypeAttachFailed, FailureTypeScriptError, FailureTypeUnknown:
		return FailureSeverityError
	default:
		return FailureSeverityError
	}
}

// GetMaxRetryCount 获取失败类型对应的最大重试次数
// 返回 0 表示不重试
func (ft FailureType) GetMaxRetryCount() int {
	switch ft {
	case FailureTypeNone:
		return 0 // 成功不需要重试
	case FailureTypeProcessNotFound:
		return 0 // 目标进程不存在，重试无意义
	case FailureTypeDeviceNotFound, FailureTypeAttachFailed, FailureTypeScriptError, FailureTypeTimeout:
		return 3 // 环境问题，可重试3次
	case FailureTypeExtractionError, FailureTypeUnknown:
		return 1
	default:
		return 1
	}
}

// CanRetry 检查失败类型是否可以重试
func (ft FailureType) CanRetry() bool {
	return ft.GetMaxRetryCount() > 0
}

// ScanRecord 扫描任务主表
type ScanRecord struct {
	ID           string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Target       string      `gorm:"type:varchar(255);not null" json:"target"`
	Platform     string      `gorm:"type:varchar(20)" json:"platform,omitempty"`
	Backend      string      `gorm:"type:varchar(20);default:'frida'" json:"backend"`
	Status       ScanStatus  `gorm:"type:varchar(20);not null;default:'queued'" json:"status"`
	FailureType  FailureType `gorm:"type:varchar(30);default:''" json:"failure_type,omitempty"`
	ErrorMessage string      `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount   int         `gorm:"type:tinyint;default:0" json:"retry_count"`

	TotalModulesScanned int     `gorm:"default:0" json:"total_modules_scanned"`
	ScanDurationSeconds float64 `gorm:"type:decimal(10,3);default:0" json:"scan_duration_seconds"`
	LibraryCount        int     `gorm:"default:0" json:"library_count"`
	ExtractRequested    bool    `gorm:"default:false" json:"extract_requested"`

	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// 关联
	Libraries   []LibraryRecord    `gorm:"foreignKey:ScanID;references:ID" json:"libraries,omitempty"`
	Extractions []ExtractionRecord `gorm:"foreignKey:ScanID;references:ID" json:"extractions,omitempty"`
}

func (ScanRecord) TableName() string {
	return "scan_tasks"
}

// LibraryRecord 检出库明细表
type LibraryRecord struct {
	ID                  uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ScanID              string    `gorm:"type:varchar(36);index:idx_scan_id;not null" json:"scan_id"`
	Name                string    `gorm:"type:varchar(255);not null" json:"name"`
	Path                string    `gorm:"type:varchar(1000)" json:"path,omitempty"`
	BaseAddress         string    `gorm:"type:varchar(20)" json:"base_address,omitempty"`
	Size                int64     `gorm:"default:0" json:"size"`
	LibraryType         string    `gorm:"type:varchar(30);index:idx_library_type" json:"library_type"`
	Classification      string    `gorm:"type:varchar(10)" json:"classification"`
	DetectedVersion     string    `gorm:"type:varchar(50)" json:"detected_version,omitempty"`
	MatchedPatternsJSON string    `gorm:"type:text" json:"matched_patterns_json,omitempty"`
	MatchedExportsJSON  string    `gorm:"type:text" json:"matched_exports_json,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

func (LibraryRecord) TableName() string {
	return "scan_libraries"
}

// ExtractionRecord 库提取结果表
type ExtractionRecord struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ScanID      string    `gorm:"type:varchar(36);index:idx_scan_id;not null" json:"scan_id"`
	LibraryName string    `gorm:"type:varchar(255);not null" json:"library_name"`
	Success     bool      `gorm:"default:false" json:"success"`
	Method      string    `gorm:"type:varchar(20)" json:"method,omitempty"`
	OutputPath  string    `gorm:"type:varchar(1000)" json:"output_path,omitempty"`
	SizeBytes   int64     `gorm:"default:0" json:"size_bytes"`
	Error       string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ExtractionRecord) TableName() string {
	return "scan_extractions"
}
