package scanner

import (
	"fmt"
	"strings"
)

// AsciiToHex 将ASCII字符串编码为空格分隔的十六进制模式
// 例如 "SSL" -> "53 53 4c"
func AsciiToHex(s string) string {
	parts := make([]string, 0, len(s))
	for _, c := range s {
		parts = append(parts, fmt.Sprintf("%02x", c))
	}
	return strings.Join(parts, " ")
}

// UTF16LEToHex 将字符串编码为UTF-16LE十六进制模式（每个字符后跟00）
// 例如 "SSL" -> "53 00 53 00 4c 00"
func UTF16LEToHex(s string) string {
	parts := make([]string, 0, len(s))
	for _, c := range s {
		parts = append(parts, fmt.Sprintf("%02x 00", c))
	}
	return strings.Join(parts, " ")
}

// BuildScanPatterns 为一个TLS指示字符串生成全部十六进制扫描模式变体
// 生成ASCII和UTF-16LE两种编码（UTF-16LE常见于Windows DLL的宽字符串），
// 结果去重且保持生成顺序
func BuildScanPatterns(target string) []string {
	patterns := []string{
		AsciiToHex(target),
		UTF16LEToHex(target),
	}

	seen := make(map[string]bool, len(patterns))
	unique := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	return unique
}
