package scanner

import "strings"

// TLSStringPatterns 内存扫描使用的TLS密钥日志字符串指示
var TLSStringPatterns = []string{
	"CLIENT_RANDOM",
	"SERVER_HANDSHAKE_TRAFFIC_SECRET",
	"CLIENT_HANDSHAKE_TRAFFIC_SECRET",
	"SERVER_TRAFFIC_SECRET_0",
	"CLIENT_TRAFFIC_SECRET_0",
	"EXPORTER_SECRET",
	"EARLY_EXPORTER_SECRET",
	"CLIENT_EARLY_TRAFFIC_SECRET",
	"SSLKEYLOGFILE",
	"c hs traffic",
	"master secret",
}

// ExportSymbol 导出符号 -> TLS库类型
type ExportSymbol struct {
	Symbol      string
	LibraryType string
}

// TLSExportSymbols 已知TLS库导出符号表
// 有序切片而非map：符号按表顺序下发给代理查询，代理按查询顺序回传命中，
// 投票平票时先达到最高票的库胜出——map迭代顺序随机会破坏这一确定性
var TLSExportSymbols = []ExportSymbol{
	// OpenSSL / BoringSSL / LibreSSL
	{"SSL_CTX_set_keylog_callback", "openssl"},
	{"SSL_connect", "openssl"},
	{"SSL_read", "openssl"},
	{"SSL_write", "openssl"},
	{"SSL_new", "openssl"},
	{"SSL_CTX_new", "openssl"},
	{"SSL_set_fd", "openssl"},
	{"SSL_get_error", "openssl"},
	{"OPENSSL_init_ssl", "openssl"},
	// GnuTLS
	{"gnutls_init", "gnutls"},
	{"gnutls_handshake", "gnutls"},
	{"gnutls_record_send", "gnutls"},
	{"gnutls_record_recv", "gnutls"},
	{"gnutls_certificate_allocate_credentials", "gnutls"},
	// wolfSSL
	{"wolfSSL_new", "wolfssl"},
	{"wolfSSL_connect", "wolfssl"},
	{"wolfSSL_read", "wolfssl"},
	{"wolfSSL_write", "wolfssl"},
	{"wolfSSL_CTX_new", "wolfssl"},
	// mbedTLS
	{"mbedtls_ssl_init", "mbedtls"},
	{"mbedtls_ssl_handshake", "mbedtls"},
	{"mbedtls_ssl_read", "mbedtls"},
	{"mbedtls_ssl_write", "mbedtls"},
	// NSS
	{"NSS_Init", "nss"},
	{"SSL_ImportFD", "nss"},
	{"PR_Read", "nss"},
	{"PR_Write", "nss"},
	// Apple SecureTransport
	{"SSLHandshake", "securetransport"},
	{"SSLRead", "securetransport"},
	{"SSLWrite", "securetransport"},
	{"SSLCreateContext", "securetransport"},
	// SChannel (Windows)
	{"InitializeSecurityContextW", "schannel"},
	{"AcquireCredentialsHandleW", "schannel"},
	// s2n-tls
	{"s2n_negotiate", "s2n"},
	{"s2n_connection_new", "s2n"},
	// BearSSL
	{"br_ssl_client_init_full", "bearssl"},
	// Botan
	{"botan_tls_client_init", "botan"},
	// Rustls
	{"rustls_client_config_builder_new", "rustls"},
}

// exportSymbolTypes 按符号名查库类型的视图
var exportSymbolTypes = func() map[string]string {
	m := make(map[string]string, len(TLSExportSymbols))
	for _, e := range TLSExportSymbols {
		m[e.Symbol] = e.LibraryType
	}
	return m
}()

// ExportSymbolNames 按表顺序返回全部导出符号名
func ExportSymbolNames() []string {
	names := make([]string, len(TLSExportSymbols))
	for i, e := range TLSExportSymbols {
		names[i] = e.Symbol
	}
	return names
}

// FilenamePattern 文件名子串 -> TLS库类型
type FilenamePattern struct {
	Pattern     string
	LibraryType string
}

// KnownTLSLibraries 已知TLS库文件名模式表
// 有序切片而非map：按表顺序匹配，第一条命中者生效
var KnownTLSLibraries = []FilenamePattern{
	// OpenSSL
	{"libssl", "openssl"},
	{"libcrypto", "openssl"},
	{"ssleay32", "openssl"},
	{"libeay32", "openssl"},
	// BoringSSL
	{"libboringssl", "boringssl"},
	{"boringssl", "boringssl"},
	// Conscrypt (Android上的BoringSSL封装)
	{"libconscrypt_jni", "boringssl"},
	// Cronet (Chromium网络栈, 使用BoringSSL)
	{"cronet", "boringssl"},
	// GnuTLS
	{"libgnutls", "gnutls"},
	// wolfSSL
	{"libwolfssl", "wolfssl"},
	// mbedTLS
	{"libmbedtls", "mbedtls"},
	{"libmbedcrypto", "mbedtls"},
	{"libmbedx509", "mbedtls"},
	// NSS
	{"libnss3", "nss"},
	{"nss3", "nss"},
	// SChannel
	{"schannel", "schannel"},
	{"ncrypt", "schannel"},
	// Apple SecureTransport / Network.framework
	{"Security", "securetransport"},
	{"Network", "securetransport"},
	// LibreSSL
	{"libressl", "libressl"},
	// BearSSL
	{"libbearssl", "bearssl"},
	// s2n-tls
	{"libs2n", "s2n"},
	// MatrixSSL
	{"libmatrixssl", "matrixssl"},
	// Botan
	{"libbotan", "botan"},
	// Rustls
	{"librustls", "rustls"},
	// picotls
	{"libpicotls", "picotls"},
	// AWS-LC
	{"libaws_lc", "aws-lc"},
	{"aws-lc", "aws-lc"},
}

// IdentifyLibraryType 根据文件名、指纹结果和导出符号识别TLS库类型
// 优先级: 1) 文件名 2) 指纹（非"unknown"时） 3) 导出符号投票 4) "unknown"
func IdentifyLibraryType(name string, matchedExports []string, fingerprintType string) string {
	nameLower := strings.ToLower(name)

	// 文件名模式（最高优先级）
	for _, entry := range KnownTLSLibraries {
		if strings.Contains(nameLower, strings.ToLower(entry.Pattern)) {
			return entry.LibraryType
		}
	}

	// 字符串指纹结果
	if fingerprintType != "" && fingerprintType != "unknown" {
		return fingerprintType
	}

	// 导出符号投票：按输入顺序统计，严格大于才更新赢家，
	// 平票时先达到最高票数的库胜出
	if len(matchedExports) > 0 {
		votes := make(map[string]int)
		winner := ""
		winnerVotes := 0
		for _, export := range matchedExports {
			libType, ok := exportSymbolTypes[export]
			if !ok {
				continue
			}
			votes[libType]++
			if votes[libType] > winnerVotes {
				winner = libType
				winnerVotes = votes[libType]
			}
		}
		if winner != "" {
			return winner
		}
	}

	return "unknown"
}
