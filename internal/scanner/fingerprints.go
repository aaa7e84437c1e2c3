package scanner

import (
	"regexp"
	"strings"
)

// LibraryFingerprint TLS库指纹定义
// 只收录在剥离符号的二进制中仍存活的字符串（.rodata段），
// 不使用会被strip掉的函数名/符号名
type LibraryFingerprint struct {
	LibraryType        string   // 如 "boringssl"
	DisplayName        string   // 如 "BoringSSL"
	FingerprintStrings []string // 在.rodata中存活的特征字符串
	VersionPatterns    []string // 提取版本号的正则表达式
}

// GetLibraryFingerprints 获取内置TLS库指纹库
// 按检测优先级排序（最具体的在前）。BoringSSL和LibreSSL必须排在OpenSSL之前，
// 因为它们的二进制中也包含"OpenSSL"字符串
func GetLibraryFingerprints() []LibraryFingerprint {
	return []LibraryFingerprint{
		{
			LibraryType: "boringssl",
			DisplayName: "BoringSSL",
			FingerprintStrings: []string{
				"BoringSSL",
				"OpenSSL 1.1.0 (compatible; BoringSSL)",
			},
			// BoringSSL 不携带版本字符串
			VersionPatterns: []string{},
		},
		{
			LibraryType: "libressl",
			DisplayName: "LibreSSL",
			FingerprintStrings: []string{
				"LibreSSL",
			},
			VersionPatterns: []string{
				`LibreSSL\s+(\d+\.\d+\.\d+)`,
			},
		},
		{
			LibraryType: "openssl",
			DisplayName: "OpenSSL",
			FingerprintStrings: []string{
				"OpenSSL 3.",
				"OpenSSL 1.1.",
				"OpenSSL 1.0.",
			},
			VersionPatterns: []string{
				`OpenSSL\s+(\d+\.\d+\.\d+[a-z]?)`,
			},
		},
		{
			LibraryType: "gnutls",
			DisplayName: "GnuTLS",
			FingerprintStrings: []string{
				"GnuTLS",
				"NORMAL:-VERS-ALL:+VERS-TLS",
			},
			VersionPatterns: []string{
				`GnuTLS\s+(\d+\.\d+\.\d+)`,
			},
		},
		{
			LibraryType: "wolfssl",
			DisplayName: "wolfSSL",
			FingerprintStrings: []string{
				"wolfSSL",
				"LIBWOLFSSL_VERSION_STRING",
			},
			VersionPatterns: []string{
				`wolfSSL\s+(\d+\.\d+\.\d+)`,
			},
		},
		{
			LibraryType: "mbedtls",
			DisplayName: "Mbed TLS",
			FingerprintStrings: []string{
				"Mbed TLS",
			},
			VersionPatterns: []string{
				`Mbed TLS\s+(\d+\.\d+\.\d+)`,
			},
		},
		{
			LibraryType: "nss",
			DisplayName: "NSS",
			FingerprintStrings: []string{
				"NSS_GetVersion",
				"NSS_NoDB_Init",
			},
			VersionPatterns: []string{
				`NSS\s+(\d+\.\d+)`,
			},
		},
		{
			LibraryType: "s2n",
			DisplayName: "s2n-tls",
			FingerprintStrings: []string{
				"s2n_negotiate",
				"default_tls13",
				"20170210",
			},
			VersionPatterns: []string{},
		},
		{
			LibraryType: "matrixssl",
			DisplayName: "MatrixSSL",
			FingerprintStrings: []string{
				"matrixssl",
				"YNYYYNNNNYYNY",
			},
			VersionPatterns: []string{},
		},
		{
			LibraryType: "botan",
			DisplayName: "Botan",
			FingerprintStrings: []string{
				"Botan::TLS::",
				"Botan",
			},
			VersionPatterns: []string{
				`Botan\s+(\d+\.\d+\.\d+)`,
			},
		},
		{
			LibraryType: "gotls",
			DisplayName: "Go crypto/tls",
			FingerprintStrings: []string{
				"crypto/tls",
			},
			VersionPatterns: []string{},
		},
		{
			LibraryType: "rustls",
			DisplayName: "Rustls",
			FingerprintStrings: []string{
				"rustls",
			},
			VersionPatterns: []string{},
		},
	}
}

// FingerprintLibrary 根据二进制中发现的字符串识别TLS库
// 按优先级级联匹配：任一指纹字符串是任一已发现字符串的子串即命中。
// 返回 (库类型, 版本号)，版本未检出时为空字符串
func FingerprintLibrary(foundStrings []string) (string, string) {
	if len(foundStrings) == 0 {
		return "unknown", ""
	}

	for _, fp := range GetLibraryFingerprints() {
		if matchesAnyFingerprint(foundStrings, fp.FingerprintStrings) {
			version := extractVersion(foundStrings, fp.VersionPatterns)
			return fp.LibraryType, version
		}
	}

	return "unknown", ""
}

// matchesAnyFingerprint 检查任一指纹字符串是否为任一已发现字符串的子串
func matchesAnyFingerprint(foundStrings, fingerprints []string) bool {
	for _, s := range foundStrings {
		for _, fs := range fingerprints {
			if strings.Contains(s, fs) {
				return true
			}
		}
	}
	return false
}

// extractVersion 使用正则模式提取版本字符串
func extractVersion(foundStrings []string, patterns []string) string {
	for _, pattern := range patterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		for _, s := range foundStrings {
			if m := compiled.FindStringSubmatch(s); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// GetAllFingerprintStrings 返回所有库的全部指纹字符串（去重、保持目录顺序）
// 用于构建Frida内存扫描的十六进制模式
func GetAllFingerprintStrings() []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, fp := range GetLibraryFingerprints() {
		for _, s := range fp.FingerprintStrings {
			if !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}
	return result
}
