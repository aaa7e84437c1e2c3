package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFingerprintCatalog_Order 测试指纹库顺序不变式:
// BoringSSL和LibreSSL必须排在OpenSSL之前
func TestFingerprintCatalog_Order(t *testing.T) {
	fps := GetLibraryFingerprints()

	index := make(map[string]int)
	for i, fp := range fps {
		index[fp.LibraryType] = i
	}

	require.Contains(t, index, "boringssl")
	require.Contains(t, index, "libressl")
	require.Contains(t, index, "openssl")

	assert.Less(t, index["boringssl"], index["openssl"], "BoringSSL must precede OpenSSL")
	assert.Less(t, index["libressl"], index["openssl"], "LibreSSL must precede OpenSSL")
}

// TestFingerprintCatalog_Invariants 测试每条指纹的基本不变式
func TestFingerprintCatalog_Invariants(t *testing.T) {
	seen := make(map[string]bool)
	for _, fp := range GetLibraryFingerprints() {
		assert.NotEmpty(t, fp.LibraryType)
		assert.NotEmpty(t, fp.DisplayName)
		assert.NotEmpty(t, fp.FingerprintStrings, "Fingerprint %s has no strings", fp.LibraryType)
		assert.False(t, seen[fp.LibraryType], "Duplicate library type: %s", fp.LibraryType)
		seen[fp.LibraryType] = true
	}
}

// TestFingerprintLibrary 测试字符串指纹识别
func TestFingerprintLibrary(t *testing.T) {
	tests := []struct {
		name         string
		foundStrings []string
		wantType     string
		wantVersion  string
	}{
		{
			name:         "boringssl beats openssl compat string",
			foundStrings: []string{"OpenSSL 1.1.0 (compatible; BoringSSL)"},
			wantType:     "boringssl",
			wantVersion:  "",
		},
		{
			name:         "openssl with version",
			foundStrings: []string{"OpenSSL 1.1.1k  25 Mar 2021"},
			wantType:     "openssl",
			wantVersion:  "1.1.1k",
		},
		{
			name:         "openssl 3.x",
			foundStrings: []string{"OpenSSL 3.0.2 15 Mar 2022"},
			wantType:     "openssl",
			wantVersion:  "3.0.2",
		},
		{
			name:         "libressl",
			foundStrings: []string{"LibreSSL 3.3.6"},
			wantType:     "libressl",
			wantVersion:  "3.3.6",
		},
		{
			name:         "gnutls priority string",
			foundStrings: []string{"NORMAL:-VERS-ALL:+VERS-TLS1.3"},
			wantType:     "gnutls",
			wantVersion:  "",
		},
		{
			name:         "wolfssl with version",
			foundStrings: []string{"wolfSSL 5.6.3"},
			wantType:     "wolfssl",
			wantVersion:  "5.6.3",
		},
		{
			name:         "mbedtls",
			foundStrings: []string{"Mbed TLS 3.4.0"},
			wantType:     "mbedtls",
			wantVersion:  "3.4.0",
		},
		{
			name:         "no match",
			foundStrings: []string{"nothing to see here"},
			wantType:     "unknown",
			wantVersion:  "",
		},
		{
			name:         "empty input",
			foundStrings: nil,
			wantType:     "unknown",
			wantVersion:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			libType, version := FingerprintLibrary(tt.foundStrings)
			assert.Equal(t, tt.wantType, libType)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}

// TestGetAllFingerprintStrings 测试指纹字符串全集去重且保序
func TestGetAllFingerprintStrings(t *testing.T) {
	all := GetAllFingerprintStrings()

	assert.NotEmpty(t, all)
	assert.Equal(t, "BoringSSL", all[0], "Catalog order should be preserved")

	seen := make(map[string]bool)
	for _, s := range all {
		assert.False(t, seen[s], "Duplicate fingerprint string: %s", s)
		seen[s] = true
	}
}
