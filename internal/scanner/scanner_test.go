package scanner

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAgent 测试用扫描代理
type fakeAgent struct {
	modules         []ModuleRecord
	patternHits     map[string][]PatternMatch
	exports         map[string][]string
	fingerprints    map[string][]string // 模块名 -> 命中的指纹字符串（明文）
	enumErr         error
	closed          bool
	lastExportQuery []string // 最近一次CheckExports收到的符号列表
}

func (f *fakeAgent) EnumerateModules() ([]ModuleRecord, error) {
	return f.modules, f.enumErr
}

func (f *fakeAgent) ScanModuleKernelLevel(name string, hexPatterns []string) ([]PatternMatch, error) {
	return f.patternHits[name], nil
}

// CheckExports 与真实代理一致：按查询顺序回传命中的符号
func (f *fakeAgent) CheckExports(name string, symbols []string) ([]string, error) {
	f.lastExportQuery = symbols

	present := make(map[string]bool, len(f.exports[name]))
	for _, sym := range f.exports[name] {
		present[sym] = true
	}

	var found []string
	for _, sym := range symbols {
		if present[sym] {
			found = append(found, sym)
		}
	}
	return found, nil
}

func (f *fakeAgent) ScanForStrings(name string, hexPatterns []string) ([]string, error) {
	var hits []string
	for _, s := range f.fingerprints[name] {
		hits = append(hits, AsciiToHex(s))
	}
	return hits, nil
}

func (f *fakeAgent) Close() error {
	f.closed = true
	return nil
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// TestModuleScanner_DetectsLibraries 测试完整扫描流程
func TestModuleScanner_DetectsLibraries(t *testing.T) {
	agent := &fakeAgent{
		modules: []ModuleRecord{
			{Name: "libssl.so", Path: "/system/lib64/libssl.so", Base: "0x7f0000000000", Size: 524288},
			{Name: "libc.so", Path: "/system/lib64/libc.so", Base: "0x7f0000100000", Size: 1048576},
			{Name: "libother.so", Path: "/data/app/com.example/lib/libother.so", Base: "0x7f0000200000", Size: 4096},
		},
		patternHits: map[string][]PatternMatch{
			"libssl.so": {{Pattern: AsciiToHex("CLIENT_RANDOM"), Address: "0x7f0000001000"}},
		},
		exports: map[string][]string{
			"libssl.so": {"SSL_read", "SSL_write"},
		},
		fingerprints: map[string][]string{
			"libssl.so": {"BoringSSL"},
		},
	}

	s, err := NewModuleScanner(agent, "android", "", false, newTestLogger())
	require.NoError(t, err)

	result := s.Scan("com.example.app")

	require.Len(t, result.Libraries, 1)
	lib := result.Libraries[0]
	assert.Equal(t, "libssl.so", lib.Name)
	assert.Equal(t, "boringssl", lib.LibraryType, "filename says openssl, system path override applies")
	assert.Equal(t, "system", lib.Classification)
	assert.Equal(t, []string{"BoringSSL"}, lib.MatchedFingerprints)
	assert.Equal(t, []string{"SSL_read", "SSL_write"}, lib.MatchedExports)

	// libc被跳过, libother无任何命中
	assert.Equal(t, 2, result.TotalModulesScanned)
	assert.Empty(t, result.Errors)
}

// TestModuleScanner_EnumerationFailure 测试模块枚举失败时的错误记录
func TestModuleScanner_EnumerationFailure(t *testing.T) {
	agent := &fakeAgent{enumErr: errors.New("session is gone")}

	s, err := NewModuleScanner(agent, "linux", "", false, newTestLogger())
	require.NoError(t, err)

	result := s.Scan("firefox")

	assert.Empty(t, result.Libraries)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Failed to enumerate modules")
}

// TestModuleScanner_Cleanup 测试扫描完成后卸载代理
func TestModuleScanner_Cleanup(t *testing.T) {
	agent := &fakeAgent{}

	s, err := NewModuleScanner(agent, "linux", "", false, newTestLogger())
	require.NoError(t, err)

	s.Cleanup()
	assert.True(t, agent.closed)
}

// TestModuleScanner_ExportQueryOrderStable 测试导出符号按表顺序查询,
// 平票模块跨多次扫描识别为同一库类型
func TestModuleScanner_ExportQueryOrderStable(t *testing.T) {
	results := make(map[string]bool)

	for i := 0; i < 200; i++ {
		agent := &fakeAgent{
			modules: []ModuleRecord{
				{Name: "libfoo.so", Path: "/usr/lib/libfoo.so", Size: 8192},
			},
			// SSL_read (openssl) 与 NSS_Init (nss) 各一票
			exports: map[string][]string{
				"libfoo.so": {"NSS_Init", "SSL_read"},
			},
		}

		s, err := NewModuleScanner(agent, "linux", "", true, newTestLogger())
		require.NoError(t, err)

		result := s.Scan("someproc")
		require.Len(t, result.Libraries, 1)
		results[result.Libraries[0].LibraryType] = true

		assert.Equal(t, ExportSymbolNames(), agent.lastExportQuery,
			"export symbols must be queried in table order")
	}

	assert.Len(t, results, 1, "tied export votes must identify the same library on every scan")
	assert.True(t, results["openssl"], "SSL_read precedes NSS_Init in the symbol table")
}

// TestModuleScanner_VerboseChecksExportsWithoutPatternHit 测试verbose模式下
// 无模式命中的模块也按导出符号识别
func TestModuleScanner_VerboseChecksExportsWithoutPatternHit(t *testing.T) {
	agent := &fakeAgent{
		modules: []ModuleRecord{
			{Name: "libcustomtls.so", Path: "/usr/lib/libcustomtls.so", Size: 8192},
		},
		exports: map[string][]string{
			"libcustomtls.so": {"wolfSSL_new", "wolfSSL_connect"},
		},
	}

	s, err := NewModuleScanner(agent, "linux", "", true, newTestLogger())
	require.NoError(t, err)

	result := s.Scan("someproc")

	require.Len(t, result.Libraries, 1)
	assert.Equal(t, "wolfssl", result.Libraries[0].LibraryType)
}
