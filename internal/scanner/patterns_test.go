package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAsciiToHex 测试ASCII十六进制编码
func TestAsciiToHex(t *testing.T) {
	assert.Equal(t, "41 42 43", AsciiToHex("ABC"))
	assert.Equal(t, "53 53 4c", AsciiToHex("SSL"))
	assert.Equal(t, "", AsciiToHex(""))
}

// TestUTF16LEToHex 测试UTF-16LE十六进制编码
func TestUTF16LEToHex(t *testing.T) {
	assert.Equal(t, "41 00 42 00", UTF16LEToHex("AB"))
	assert.Equal(t, "53 00 53 00 4c 00", UTF16LEToHex("SSL"))
	assert.Equal(t, "", UTF16LEToHex(""))
}

// TestBuildScanPatterns 测试扫描模式变体生成
func TestBuildScanPatterns(t *testing.T) {
	patterns := BuildScanPatterns("CLIENT_RANDOM")

	assert.Len(t, patterns, 2, "Should produce ASCII and UTF-16LE variants")
	assert.Equal(t, AsciiToHex("CLIENT_RANDOM"), patterns[0], "ASCII variant should come first")
	assert.Equal(t, UTF16LEToHex("CLIENT_RANDOM"), patterns[1])
}

// TestBuildScanPatterns_Dedup 测试空串时两种编码相同, 应去重
func TestBuildScanPatterns_Dedup(t *testing.T) {
	patterns := BuildScanPatterns("")

	assert.Len(t, patterns, 1)
	assert.Equal(t, "", patterns[0])
}
