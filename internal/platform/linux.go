package platform

import "strings"

var linuxSystemPrefixes = []string{
	"/lib/",
	"/lib64/",
	"/usr/lib/",
	"/usr/lib64/",
	"/usr/local/lib/",
	"/snap/",
}

// LinuxHandler Linux平台处理器
type LinuxHandler struct{}

func (h *LinuxHandler) Name() string { return "linux" }

func (h *LinuxHandler) IsSystemLibrary(name, path string) bool {
	if path == "" {
		return true
	}
	pathLower := strings.ToLower(path)
	for _, prefix := range linuxSystemPrefixes {
		if strings.HasPrefix(pathLower, prefix) {
			return true
		}
	}
	return false
}

func (h *LinuxHandler) Classify(name, path string) string {
	if h.IsSystemLibrary(name, path) {
		return "system"
	}
	return "app"
}

func (h *LinuxHandler) GetExtractionOrder() []string {
	return []string{"disk_copy", "memory_dump"}
}
