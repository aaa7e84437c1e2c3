package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

func sampleScanResult() *scanner.ScanResult {
	result := scanner.NewScanResult("com.example.app", "android")
	result.TotalModulesScanned = 120
	result.ScanDurationSeconds = 3.14
	result.Libraries = append(result.Libraries, scanner.DetectedLibrary{
		Name:            "libssl.so",
		Path:            "/system/lib64/libssl.so",
		Size:            524288,
		LibraryType:     "boringssl",
		Classification:  "system",
		MatchedPatterns: []string{"OpenSSL"},
		DetectedVersion: "",
	}, scanner.DetectedLibrary{
		Name:            "libcrypto.so.3",
		Path:            "/usr/lib/libcrypto.so.3",
		Size:            4718592,
		LibraryType:     "openssl",
		Classification:  "app",
		DetectedVersion: "3.0.2",
	})
	return result
}

// TestGetFormatter 测试格式化器工厂
func TestGetFormatter(t *testing.T) {
	f, err := GetFormatter("table")
	require.NoError(t, err)
	assert.IsType(t, &TableFormatter{}, f)

	f, err = GetFormatter("json")
	require.NoError(t, err)
	assert.IsType(t, &JSONFormatter{}, f)

	f, err = GetFormatter("plain")
	require.NoError(t, err)
	assert.IsType(t, &PlainFormatter{}, f)

	// 空名称默认表格输出
	f, err = GetFormatter("")
	require.NoError(t, err)
	assert.IsType(t, &TableFormatter{}, f)

	_, err = GetFormatter("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

// TestHumanSize 测试字节大小的可读化
func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512.0 B", humanSize(512))
	assert.Equal(t, "1.0 KiB", humanSize(1024))
	assert.Equal(t, "512.0 KiB", humanSize(524288))
	assert.Equal(t, "4.5 MiB", humanSize(4718592))
	assert.Equal(t, "2.0 GiB", humanSize(2*1024*1024*1024))
}

// TestLibraryDisplay 测试库类型展示, 检出版本时附带版本号
func TestLibraryDisplay(t *testing.T) {
	assert.Equal(t, "boringssl", libraryDisplay(scanner.DetectedLibrary{LibraryType: "boringssl"}))
	assert.Equal(t, "openssl (3.0.2)", libraryDisplay(scanner.DetectedLibrary{
		LibraryType:     "openssl",
		DetectedVersion: "3.0.2",
	}))
}

// TestTableFormatterScan 测试表格输出包含关键字段与摘要
func TestTableFormatterScan(t *testing.T) {
	out := (&TableFormatter{}).FormatScan(sampleScanResult())

	assert.Contains(t, out, "TLS Libraries in 'com.example.app' (android)")
	assert.Contains(t, out, "libssl.so")
	assert.Contains(t, out, "boringssl")
	assert.Contains(t, out, "openssl (3.0.2)")
	assert.Contains(t, out, "512.0 KiB")
	assert.Contains(t, out, "Scanned 120 modules in 3.14s")
}

// TestTableFormatterExtractions 测试提取结果表格的成功与失败行
func TestTableFormatterExtractions(t *testing.T) {
	extractions := []*scanner.ExtractionResult{
		{
			Library:    scanner.DetectedLibrary{Name: "libssl.so"},
			Success:    true,
			OutputPath: "/tmp/out/libssl.so",
			Method:     "adb_pull",
			SizeBytes:  524288,
		},
		{
			Library: scanner.DetectedLibrary{Name: "libcrypto.so"},
			Success: false,
			Method:  "memory_dump",
			Error:   "transfer timed out after 300s",
		},
	}

	out := (&TableFormatter{}).FormatExtractions(extractions)
	assert.Contains(t, out, "Extraction Results")
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "FAILED: transfer timed out after 300s")
	assert.Contains(t, out, "/tmp/out/libssl.so")
}

// TestJSONFormatterScan 测试JSON输出可解析且字段完整
func TestJSONFormatterScan(t *testing.T) {
	out := (&JSONFormatter{}).FormatScan(sampleScanResult())

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "com.example.app", parsed["target"])
	assert.Equal(t, "android", parsed["platform"])
	assert.Equal(t, "frida", parsed["backend"])
	assert.Equal(t, float64(2), parsed["tls_library_count"])
	assert.Len(t, parsed["libraries"], 2)
}

// TestJSONFormatterExtractions 测试提取结果JSON数组
func TestJSONFormatterExtractions(t *testing.T) {
	extractions := []*scanner.ExtractionResult{
		{Library: scanner.DetectedLibrary{Name: "libssl.so"}, Success: true, Method: "disk_copy"},
	}
	out := (&JSONFormatter{}).FormatExtractions(extractions)

	var parsed []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	require.Len(t, parsed, 1)
	assert.Equal(t, "libssl.so", parsed[0]["library_name"])
	assert.Equal(t, true, parsed[0]["success"])
}

// TestPlainFormatterScan 测试纯文本输出格式
func TestPlainFormatterScan(t *testing.T) {
	out := (&PlainFormatter{}).FormatScan(sampleScanResult())
	lines := strings.Split(out, "\n")

	assert.Equal(t, "Target: com.example.app", lines[0])
	assert.Equal(t, "Platform: android", lines[1])
	assert.Equal(t, "TLS libraries found: 2", lines[2])
	assert.Contains(t, out, "  libssl.so (boringssl, system) - 512.0 KiB - /system/lib64/libssl.so")
	assert.Contains(t, out, "    Patterns: OpenSSL")
	assert.Contains(t, out, "Scanned 120 modules in 3.14s")
}

// TestPlainFormatterExtractions 测试纯文本提取结果
func TestPlainFormatterExtractions(t *testing.T) {
	extractions := []*scanner.ExtractionResult{
		{
			Library:    scanner.DetectedLibrary{Name: "libssl.so"},
			Success:    true,
			OutputPath: "/tmp/libssl.so",
			Method:     "disk_copy",
			SizeBytes:  1024,
		},
		{
			Library: scanner.DetectedLibrary{Name: "libtls.so"},
			Success: false,
			Error:   "adb not available",
		},
	}

	out := (&PlainFormatter{}).FormatExtractions(extractions)
	assert.Contains(t, out, "[OK] libssl.so -> /tmp/libssl.so (disk_copy, 1.0 KiB)")
	assert.Contains(t, out, "[FAIL] libtls.so: adb not available")
}
