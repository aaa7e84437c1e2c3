package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// TableFormatter 表格输出格式化器
type TableFormatter struct{}

// FormatScan 输出扫描结果表格与扫描摘要
func (f *TableFormatter) FormatScan(result *scanner.ScanResult) string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "TLS Libraries in '%s' (%s)\n", result.Target, result.Platform)

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"#", "Library", "Type", "Class", "Size", "Path"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorders(tablewriter.Border{Left: true, Top: true, Right: true, Bottom: true})

	for i, lib := range result.Libraries {
		table.Append([]string{
			strconv.Itoa(i + 1),
			lib.Name,
			libraryDisplay(lib),
			lib.Classification,
			humanSize(lib.Size),
			lib.Path,
		})
	}
	table.Render()

	fmt.Fprintf(&buf, "\nScanned %d modules in %.2fs\n", result.TotalModulesScanned, result.ScanDurationSeconds)
	return buf.String()
}

// FormatExtractions 输出提取结果表格
func (f *TableFormatter) FormatExtractions(extractions []*scanner.ExtractionResult) string {
	var buf strings.Builder

	buf.WriteString("Extraction Results\n")

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Library", "Status", "Method", "Size", "Output Path"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, ext := range extractions {
		status := "OK"
		size := humanSize(ext.SizeBytes)
		outputPath := ext.OutputPath
		if !ext.Success {
			status = "FAILED: " + ext.Error
			size = "-"
			outputPath = ""
		}
		table.Append([]string{ext.Library.Name, status, ext.Method, size, outputPath})
	}
	table.Render()

	return buf.String()
}
