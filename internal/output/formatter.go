package output

import (
	"fmt"

	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// Formatter 扫描结果输出格式化器
type Formatter interface {
	// FormatScan 格式化扫描结果
	FormatScan(result *scanner.ScanResult) string

	// FormatExtractions 格式化提取结果列表
	FormatExtractions(extractions []*scanner.ExtractionResult) string
}

// GetFormatter 按名称获取格式化器
func GetFormatter(name string) (Formatter, error) {
	switch name {
	case "", "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "plain":
		return &PlainFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown format: %q (available: table, json, plain)", name)
	}
}

// humanSize 人类可读的字节大小
func humanSize(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KiB", "MiB", "GiB"} {
		if size < 1024.0 || unit == "GiB" {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f B", size)
}

// libraryDisplay 库类型的展示形式, 有版本时带上版本号
func libraryDisplay(lib scanner.DetectedLibrary) string {
	if lib.DetectedVersion != "" {
		return fmt.Sprintf("%s (%s)", lib.LibraryType, lib.DetectedVersion)
	}
	return lib.LibraryType
}
