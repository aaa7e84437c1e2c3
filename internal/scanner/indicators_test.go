package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIdentifyLibraryType_Filename 测试文件名模式（最高优先级）
func TestIdentifyLibraryType_Filename(t *testing.T) {
	tests := []struct {
		name     string
		wantType string
	}{
		{"libssl.so.3", "openssl"},
		{"libcrypto.so.1.1", "openssl"},
		{"ssleay32.dll", "openssl"},
		{"libboringssl.dylib", "boringssl"},
		{"libconscrypt_jni.so", "boringssl"},
		{"libcronet.102.0.5005.125.so", "boringssl"},
		{"libgnutls.so.30", "gnutls"},
		{"libwolfssl.so", "wolfssl"},
		{"libmbedtls.so.14", "mbedtls"},
		{"nss3.dll", "nss"},
		{"schannel.dll", "schannel"},
		{"libbotan-2.so", "botan"},
		{"totally_unrelated.so", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, IdentifyLibraryType(tt.name, nil, ""))
		})
	}
}

// TestIdentifyLibraryType_FilenameBeatsFingerprint 测试文件名优先于指纹
func TestIdentifyLibraryType_FilenameBeatsFingerprint(t *testing.T) {
	got := IdentifyLibraryType("libssl.so.3", nil, "gnutls")
	assert.Equal(t, "openssl", got)
}

// TestIdentifyLibraryType_FingerprintBeatsExports 测试指纹优先于导出符号投票
func TestIdentifyLibraryType_FingerprintBeatsExports(t *testing.T) {
	got := IdentifyLibraryType("libfoo.so", []string{"wolfSSL_new", "wolfSSL_read"}, "mbedtls")
	assert.Equal(t, "mbedtls", got)
}

// TestIdentifyLibraryType_ExportVotes 测试导出符号投票
func TestIdentifyLibraryType_ExportVotes(t *testing.T) {
	exports := []string{"wolfSSL_new", "wolfSSL_connect", "wolfSSL_read", "SSL_read"}
	got := IdentifyLibraryType("libfoo.so", exports, "unknown")
	assert.Equal(t, "wolfssl", got, "wolfSSL should win by vote count")
}

// TestIdentifyLibraryType_ExportVoteTie 测试平票时先达到最高票的库胜出
func TestIdentifyLibraryType_ExportVoteTie(t *testing.T) {
	exports := []string{"gnutls_init", "SSL_read"}
	got := IdentifyLibraryType("libfoo.so", exports, "")
	assert.Equal(t, "gnutls", got, "First library to reach the winning count wins")
}

// TestIdentifyLibraryType_ExportVoteTieStable 测试平票识别结果与符号表顺序一致且跨运行稳定
// 命中列表按扫描器的实际查询顺序构造（代理按查询顺序回传命中）
func TestIdentifyLibraryType_ExportVoteTieStable(t *testing.T) {
	// SSL_read (openssl) 与 NSS_Init (nss) 各一票
	moduleExports := map[string]bool{
		"SSL_read": true,
		"NSS_Init": true,
	}

	results := make(map[string]bool)
	for i := 0; i < 200; i++ {
		var matched []string
		for _, sym := range ExportSymbolNames() {
			if moduleExports[sym] {
				matched = append(matched, sym)
			}
		}
		results[IdentifyLibraryType("libfoo.so", matched, "")] = true
	}

	assert.Len(t, results, 1, "tied votes must identify the same library on every run")
	assert.True(t, results["openssl"], "SSL_read precedes NSS_Init in the symbol table")
}

// TestExportSymbolNames_Order 测试符号名列表按表顺序且无重复
func TestExportSymbolNames_Order(t *testing.T) {
	names := ExportSymbolNames()
	assert.Len(t, names, len(TLSExportSymbols))

	seen := make(map[string]bool)
	for i, e := range TLSExportSymbols {
		assert.Equal(t, e.Symbol, names[i])
		assert.NotEmpty(t, e.LibraryType)
		assert.False(t, seen[e.Symbol], "Duplicate export symbol: %s", e.Symbol)
		seen[e.Symbol] = true
	}
}

// TestIdentifyLibraryType_UnknownExportsIgnored 测试非已知符号不参与投票
func TestIdentifyLibraryType_UnknownExportsIgnored(t *testing.T) {
	got := IdentifyLibraryType("libfoo.so", []string{"some_random_export", "another_one"}, "")
	assert.Equal(t, "unknown", got)
}

// TestIdentifyLibraryType_Unknown 测试全部线索缺失时返回unknown
func TestIdentifyLibraryType_Unknown(t *testing.T) {
	assert.Equal(t, "unknown", IdentifyLibraryType("libfoo.so", nil, ""))
	assert.Equal(t, "unknown", IdentifyLibraryType("libfoo.so", nil, "unknown"))
}

// TestKnownTLSLibraries_Determinism 测试文件名表为有序表且无重复模式
func TestKnownTLSLibraries_Determinism(t *testing.T) {
	seen := make(map[string]bool)
	for _, entry := range KnownTLSLibraries {
		assert.NotEmpty(t, entry.Pattern)
		assert.NotEmpty(t, entry.LibraryType)
		assert.False(t, seen[entry.Pattern], "Duplicate filename pattern: %s", entry.Pattern)
		seen[entry.Pattern] = true
	}
}

// TestTLSStringPatterns_NotEmpty 测试TLS指示字符串表完整性
func TestTLSStringPatterns_NotEmpty(t *testing.T) {
	assert.NotEmpty(t, TLSStringPatterns)
	assert.Contains(t, TLSStringPatterns, "CLIENT_RANDOM")
	assert.Contains(t, TLSStringPatterns, "SSLKEYLOGFILE")
}
