package output

import (
	"fmt"
	"strings"

	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// PlainFormatter 纯文本输出格式化器, 适合脚本处理与无终端环境
type PlainFormatter struct{}

// FormatScan 输出纯文本扫描结果
func (f *PlainFormatter) FormatScan(result *scanner.ScanResult) string {
	var lines []string
	lines = append(lines, "Target: "+result.Target)
	lines = append(lines, "Platform: "+result.Platform)
	lines = append(lines, fmt.Sprintf("TLS libraries found: %d", result.TLSLibraryCount()))
	lines = append(lines, "")

	for _, lib := range result.Libraries {
		lines = append(lines, fmt.Sprintf("  %s (%s, %s) - %s - %s",
			lib.Name, libraryDisplay(lib), lib.Classification, humanSize(lib.Size), lib.Path))
		if len(lib.MatchedPatterns) > 0 {
			lines = append(lines, "    Patterns: "+strings.Join(lib.MatchedPatterns, ", "))
		}
	}

	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Scanned %d modules in %.2fs",
		result.TotalModulesScanned, result.ScanDurationSeconds))
	return strings.Join(lines, "\n")
}

// FormatExtractions 输出纯文本提取结果
func (f *PlainFormatter) FormatExtractions(extractions []*scanner.ExtractionResult) string {
	var lines []string
	for _, ext := range extractions {
		if ext.Success {
			lines = append(lines, fmt.Sprintf("  [OK] %s -> %s (%s, %s)",
				ext.Library.Name, ext.OutputPath, ext.Method, humanSize(ext.SizeBytes)))
		} else {
			lines = append(lines, fmt.Sprintf("  [FAIL] %s: %s", ext.Library.Name, ext.Error))
		}
	}
	return strings.Join(lines, "\n")
}
