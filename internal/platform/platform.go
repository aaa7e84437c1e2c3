package platform

import (
	"fmt"
	"strings"
)

// Handler 平台处理器接口：封装各平台的TLS库归属判定与提取方式知识
type Handler interface {
	// Name 平台名称 (android, ios, windows, linux, macos)
	Name() string

	// IsSystemLibrary 判断是否为系统/操作系统库
	IsSystemLibrary(name, path string) bool

	// Classify 将库归类为 "system" 或 "app"
	Classify(name, path string) string

	// GetExtractionOrder 返回按优先级排列的提取方法名
	// 如 ["disk_copy", "memory_dump"] 或 ["apk_inner", "adb_pull", "apk_extract", "memory_dump"]
	GetExtractionOrder() []string
}

// GetHandler 根据平台名称获取平台处理器
// 平台集合是封闭的，不支持注册扩展
func GetHandler(platform string) (Handler, error) {
	switch strings.ToLower(platform) {
	case "android":
		return &AndroidHandler{}, nil
	case "ios":
		return &IOSHandler{}, nil
	case "windows":
		return &WindowsHandler{}, nil
	case "linux":
		return &LinuxHandler{}, nil
	case "macos":
		return &MacOSHandler{}, nil
	default:
		return nil, fmt.Errorf("unknown platform: %q (available: android, ios, windows, linux, macos)", platform)
	}
}
