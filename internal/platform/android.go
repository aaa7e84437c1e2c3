package platform

import "strings"

// Android系统库路径前缀
var androidSystemLibPrefixes = []string{
	"/system/lib64/",
	"/system/lib/",
	"/vendor/lib64/",
	"/vendor/lib/",
	"/apex/com.android.",
	"/apex/",
	"/product/lib64/",
	"/product/lib/",
	"/system_ext/lib64/",
	"/system_ext/lib/",
}

// Android系统数据路径前缀
var androidSystemDataPrefixes = []string{
	"/data/misc/apexdata/",
	"/data/dalvik-cache/",
	"/data/misc/profiles/",
	"/data/system/",
	"/data/local/",
}

// AndroidHandler Android平台处理器
type AndroidHandler struct{}

func (h *AndroidHandler) Name() string { return "android" }

func (h *AndroidHandler) IsSystemLibrary(name, path string) bool {
	if path == "" {
		return true
	}
	for _, prefix := range androidSystemLibPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, prefix := range androidSystemDataPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// IsAppLibrary 判断路径是否属于应用自带库
// APK内部路径（含"!"）、/data/app/下的路径、以及包含包名的路径都视为应用库
func (h *AndroidHandler) IsAppLibrary(path, packageName string) bool {
	if path == "" {
		return false
	}
	if strings.Contains(path, "!") {
		return true
	}
	if strings.Contains(path, "/data/app/") {
		return true
	}
	if packageName != "" && strings.Contains(path, "/data/data/"+packageName+"/") {
		return true
	}
	return packageName != "" && strings.Contains(packageName, ".") && strings.Contains(path, packageName)
}

func (h *AndroidHandler) Classify(name, path string) string {
	return h.ClassifyWithPackage(name, path, "")
}

// ClassifyWithPackage 带包名的归类：应用库判定优先于系统库判定
func (h *AndroidHandler) ClassifyWithPackage(name, path, packageName string) string {
	if h.IsAppLibrary(path, packageName) {
		return "app"
	}
	if h.IsSystemLibrary(name, path) {
		return "system"
	}
	return "app"
}

func (h *AndroidHandler) GetExtractionOrder() []string {
	return []string{"apk_inner", "adb_pull", "apk_extract", "memory_dump"}
}
