package output

import (
	"encoding/json"

	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// JSONFormatter JSON输出格式化器
type JSONFormatter struct{}

// FormatScan 输出扫描结果JSON
func (f *JSONFormatter) FormatScan(result *scanner.ScanResult) string {
	data, err := json.MarshalIndent(result.ToMap(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// FormatExtractions 输出提取结果JSON数组
func (f *JSONFormatter) FormatExtractions(extractions []*scanner.ExtractionResult) string {
	items := make([]map[string]any, 0, len(extractions))
	for _, ext := range extractions {
		items = append(items, ext.ToMap())
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}
