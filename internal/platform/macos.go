package platform

import "strings"

var macosSystemPrefixes = []string{
	"/System/Library/",
	"/usr/lib/",
	"/Library/Apple/",
}

// MacOSHandler macOS平台处理器
type MacOSHandler struct{}

func (h *MacOSHandler) Name() string { return "macos" }

func (h *MacOSHandler) IsSystemLibrary(name, path string) bool {
	if path == "" {
		return true
	}
	// macOS路径大小写敏感, 按原样匹配
	for _, prefix := range macosSystemPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (h *MacOSHandler) Classify(name, path string) string {
	if h.IsSystemLibrary(name, path) {
		return "system"
	}
	return "app"
}

func (h *MacOSHandler) GetExtractionOrder() []string {
	return []string{"disk_copy", "memory_dump"}
}
