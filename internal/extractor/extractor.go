package extractor

import (
	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/adb"
	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// Extractor 库提取方法接口
type Extractor interface {
	// MethodName 提取方法名称
	MethodName() string

	// CanExtract 判断此方法是否适用于给定库
	CanExtract(library scanner.DetectedLibrary, platform string) bool

	// Extract 尝试提取库到outputPath
	// session 供基于Frida的提取方法使用, 其余方法可忽略
	Extract(library scanner.DetectedLibrary, outputPath string, session backend.Session) *scanner.ExtractionResult
}

// Deps 提取器依赖集合
type Deps struct {
	Logger *logrus.Logger
	ADB    *adb.Client
}

// 提取方法名 -> 构造函数
// apk_extract 是 adb_pull 的别名, 使用同一套adb拉取逻辑
var extractorRegistry = map[string]func(deps Deps) Extractor{
	"disk_copy":   func(d Deps) Extractor { return NewDiskExtractor(d.Logger) },
	"apk_inner":   func(d Deps) Extractor { return NewApkInnerExtractor(d.ADB, d.Logger) },
	"adb_pull":    func(d Deps) Extractor { return NewAdbPullExtractor(d.ADB, d.Logger) },
	"apk_extract": func(d Deps) Extractor { return NewAdbPullExtractor(d.ADB, d.Logger) },
	"frida_read":  func(d Deps) Extractor { return NewFridaReadExtractor(d.Logger) },
	"memory_dump": func(d Deps) Extractor { return NewMemoryExtractor(d.Logger) },
}

// failure 构造失败结果
func failure(library scanner.DetectedLibrary, method, errMsg string) *scanner.ExtractionResult {
	return &scanner.ExtractionResult{
		Library: library,
		Success: false,
		Method:  method,
		Error:   errMsg,
	}
}

// success 构造成功结果
func success(library scanner.DetectedLibrary, method, outputPath string, size int64) *scanner.ExtractionResult {
	return &scanner.ExtractionResult{
		Library:    library,
		Success:    true,
		OutputPath: outputPath,
		Method:     method,
		SizeBytes:  size,
	}
}
