package scanner

import (
	"strings"

	"github.com/tlslibhunter/tlslibhunter-go/internal/platform"
)

// 确定不是TLS库的常见系统库, 扫描时直接跳过
var skipModuleNames = map[string]bool{
	"libc.so":        true,
	"libm.so":        true,
	"libdl.so":       true,
	"libart.so":      true,
	"liblog.so":      true,
	"libz.so":        true,
	"libstdc++.so":   true,
	"ntdll.dll":      true,
	"kernel32.dll":   true,
	"kernelbase.dll": true,
	"user32.dll":     true,
	"gdi32.dll":      true,
	"advapi32.dll":   true,
}

// Android ART运行时文件后缀
var artExtensions = []string{".odex", ".oat", ".vdex", ".art"}

// Chromium自带BoringSSL的模块名
var chromiumModules = []string{"libmonochrome", "libchrome", "libwebview"}

// ModuleClassifier 模块分类器：判定system/app归属与TLS库类型
type ModuleClassifier struct {
	platform    string
	packageName string
	handler     platform.Handler
}

// packageClassifier 支持按包名归类的平台处理器（目前仅Android）
type packageClassifier interface {
	ClassifyWithPackage(name, path, packageName string) string
}

// NewModuleClassifier 创建模块分类器
// packageName 仅用于Android的应用库归类, 其他平台传空串
func NewModuleClassifier(platformName, packageName string) (*ModuleClassifier, error) {
	handler, err := platform.GetHandler(platformName)
	if err != nil {
		return nil, err
	}
	return &ModuleClassifier{
		platform:    platformName,
		packageName: packageName,
		handler:     handler,
	}, nil
}

// ModuleInfo 单个模块的分类结果
type ModuleInfo struct {
	Classification  string
	LibraryType     string
	DetectedVersion string
}

// ClassifyModule 对单个模块做完整分类
func (c *ModuleClassifier) ClassifyModule(name, path string, matchedExports []string, fingerprintType, detectedVersion string) ModuleInfo {
	var classification string
	if pc, ok := c.handler.(packageClassifier); ok && c.platform == "android" {
		classification = pc.ClassifyWithPackage(name, path, c.packageName)
	} else {
		classification = c.handler.Classify(name, path)
	}

	libraryType := IdentifyLibraryType(name, matchedExports, fingerprintType)
	libraryType = c.applyPlatformOverride(libraryType, name, path)

	return ModuleInfo{
		Classification:  classification,
		LibraryType:     libraryType,
		DetectedVersion: detectedVersion,
	}
}

// applyPlatformOverride 应用平台特定的库类型覆盖规则
// 处理通用库名实际对应平台分支的情况:
//   - Android系统libssl/libcrypto → BoringSSL
//   - macOS系统libssl/libcrypto → LibreSSL
//   - Chromium模块 → BoringSSL
//
// 只把"openssl"细化为更具体的类型, 其他类型不改写（如gnutls保持gnutls）
func (c *ModuleClassifier) applyPlatformOverride(libraryType, name, path string) string {
	nameLower := strings.ToLower(name)
	pathLower := strings.ToLower(path)

	if libraryType == "openssl" {
		if c.platform == "android" {
			for _, p := range []string{"/system/", "/vendor/", "/apex/"} {
				if strings.Contains(pathLower, p) {
					return "boringssl"
				}
			}
		}
		if c.platform == "macos" && strings.HasPrefix(pathLower, "/usr/lib/") {
			return "libressl"
		}
	}

	// Chromium模块不论平台一律是BoringSSL
	for _, cm := range chromiumModules {
		if strings.Contains(nameLower, cm) {
			return "boringssl"
		}
	}

	return libraryType
}

// IsScanWorthy 判断模块是否值得做TLS模式扫描
// 跳过确定不是TLS库的模块（libc、libart等）以及Android的ART运行时文件
func (c *ModuleClassifier) IsScanWorthy(name, path string) bool {
	nameLower := strings.ToLower(name)

	if skipModuleNames[nameLower] {
		return false
	}

	if c.platform == "android" {
		for _, ext := range artExtensions {
			if strings.HasSuffix(nameLower, ext) {
				return false
			}
		}
	}

	return true
}
