package scanner

// DetectedLibrary 单个被检出的TLS/SSL库
type DetectedLibrary struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	BaseAddress string `json:"base_address"`
	Size        int64  `json:"size"`
	// openssl, boringssl, gnutls, wolfssl, mbedtls, schannel, nss, securetransport, unknown
	LibraryType string `json:"library_type"`
	// system, app, unknown
	Classification      string   `json:"classification"`
	MatchedPatterns     []string `json:"matched_patterns"`
	MatchedExports      []string `json:"matched_exports"`
	MatchedFingerprints []string `json:"matched_fingerprints"`
	DetectedVersion     string   `json:"detected_version"`
}

// ScanResult 完整扫描结果与元数据
type ScanResult struct {
	Target              string            `json:"target"`
	Platform            string            `json:"platform"`
	Backend             string            `json:"backend"`
	Libraries           []DetectedLibrary `json:"libraries"`
	TotalModulesScanned int               `json:"total_modules_scanned"`
	ScanDurationSeconds float64           `json:"scan_duration_seconds"`
	Errors              []string          `json:"errors"`
}

// NewScanResult 创建扫描结果
func NewScanResult(target, platform string) *ScanResult {
	return &ScanResult{
		Target:    target,
		Platform:  platform,
		Backend:   "frida",
		Libraries: []DetectedLibrary{},
		Errors:    []string{},
	}
}

// TLSLibraryCount 检出的TLS库数量
func (r *ScanResult) TLSLibraryCount() int {
	return len(r.Libraries)
}

// ToMap 序列化为map（供JSON输出与API响应使用）
func (r *ScanResult) ToMap() map[string]any {
	libs := make([]map[string]any, 0, len(r.Libraries))
	for _, lib := range r.Libraries {
		libs = append(libs, lib.ToMap())
	}
	return map[string]any{
		"target":                r.Target,
		"platform":              r.Platform,
		"backend":               r.Backend,
		"libraries":             libs,
		"total_modules_scanned": r.TotalModulesScanned,
		"scan_duration_seconds": r.ScanDurationSeconds,
		"tls_library_count":     r.TLSLibraryCount(),
		"errors":                r.Errors,
	}
}

// ToMap 序列化为map
func (l *DetectedLibrary) ToMap() map[string]any {
	return map[string]any{
		"name":                 l.Name,
		"path":                 l.Path,
		"base_address":         l.BaseAddress,
		"size":                 l.Size,
		"library_type":         l.LibraryType,
		"classification":       l.Classification,
		"matched_patterns":     l.MatchedPatterns,
		"matched_exports":      l.MatchedExports,
		"matched_fingerprints": l.MatchedFingerprints,
		"detected_version":     l.DetectedVersion,
	}
}

// ExtractionResult 单个库的提取结果
type ExtractionResult struct {
	Library    DetectedLibrary `json:"-"`
	Success    bool            `json:"success"`
	OutputPath string          `json:"output_path"`
	// disk_copy, memory_dump, adb_pull, apk_extract, frida_read
	Method    string `json:"method"`
	SizeBytes int64  `json:"size_bytes"`
	Error     string `json:"error"`
}

// ToMap 序列化为map
func (e *ExtractionResult) ToMap() map[string]any {
	return map[string]any{
		"library_name": e.Library.Name,
		"success":      e.Success,
		"output_path":  e.OutputPath,
		"method":       e.Method,
		"size_bytes":   e.SizeBytes,
		"error":        e.Error,
	}
}
