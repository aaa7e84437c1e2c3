package platform

import "strings"

var iosSystemPrefixes = []string{
	"/System/Library/",
	"/usr/lib/",
	"/Developer/",
}

// IOSHandler iOS平台处理器
type IOSHandler struct{}

func (h *IOSHandler) Name() string { return "ios" }

func (h *IOSHandler) IsSystemLibrary(name, path string) bool {
	if path == "" {
		return true
	}
	pathLower := strings.ToLower(path)
	for _, prefix := range iosSystemPrefixes {
		if strings.HasPrefix(pathLower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

func (h *IOSHandler) Classify(name, path string) string {
	if h.IsSystemLibrary(name, path) {
		return "system"
	}
	return "app"
}

func (h *IOSHandler) GetExtractionOrder() []string {
	return []string{"frida_read", "memory_dump"}
}
