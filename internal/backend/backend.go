package backend

import (
	"errors"
	"strconv"
	"time"

	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// 后端边界的哨兵错误, 调用方用 errors.Is 判别失败类别
var (
	// ErrDeviceNotFound 目标设备不存在或不可达
	ErrDeviceNotFound = errors.New("device not found")
	// ErrProcessNotFound 目标进程不存在
	ErrProcessNotFound = errors.New("process not found")
	// ErrAttachment 附加到进程失败
	ErrAttachment = errors.New("attachment failed")
	// ErrScript 注入脚本创建或加载失败
	ErrScript = errors.New("script error")
)

// DeviceOptions 设备选择参数
type DeviceOptions struct {
	Mobile  bool          // 连接第一个USB设备
	Serial  string        // 指定设备序列号（隐含Mobile）
	Host    string        // 远程设备地址 (ip:port)
	Timeout time.Duration // 连接超时
}

// Target 附加目标：PID或进程名二选一
type Target struct {
	PID  int
	Name string
}

// IsPID 目标是否为PID
func (t Target) IsPID() bool { return t.Name == "" }

// String 目标的展示形式
func (t Target) String() string {
	if t.IsPID() {
		return strconv.Itoa(t.PID)
	}
	return t.Name
}

// ResolveTarget 解析用户输入：纯数字视为PID, 否则为进程名
func ResolveTarget(s string) Target {
	if pid, err := strconv.Atoi(s); err == nil {
		return Target{PID: pid}
	}
	return Target{Name: s}
}

// ProcessInfo 设备上的一个运行进程
type ProcessInfo struct {
	PID  int    `json:"pid"`
	Name string `json:"name"`
}

// Chunk 提取代理流式传输的一块数据
type Chunk struct {
	Offset int64
	Data   []byte
	Final  bool
}

// ChunkHandler 接收提取代理的异步数据块
type ChunkHandler interface {
	// OnChunk 收到一块数据（Final为true表示传输结束）
	OnChunk(c Chunk)
	// OnError 传输失败
	OnError(msg string)
}

// Backend 动态插桩后端接口
type Backend interface {
	// Name 后端名称（如 "frida"）
	Name() string

	// GetDevice 按选项获取设备句柄
	GetDevice(opts DeviceOptions) (Device, error)

	// Close 释放后端资源
	Close()
}

// Device 设备句柄
type Device interface {
	// Attach 附加到运行中的进程; 进程名不存在时做大小写不敏感的子串匹配兜底
	Attach(target Target) (Session, error)

	// Spawn 启动进程、附加并恢复执行
	Spawn(program string) (Session, error)

	// EnumerateProcesses 列出设备上的运行进程
	EnumerateProcesses() ([]ProcessInfo, error)

	// Platform 探测设备平台 (android, ios, windows, linux, macos)
	Platform() string
}

// Session 附加会话
type Session interface {
	// LoadScannerAgent 加载扫描代理脚本
	LoadScannerAgent() (scanner.ScanAgent, error)

	// LoadExtractorAgent 加载提取代理脚本, 数据块经handler异步送达
	LoadExtractorAgent(handler ChunkHandler) (ExtractorAgent, error)

	// Detach 断开会话
	Detach()
}

// ExtractorAgent 提取代理：按块流式读取模块内存或设备文件
type ExtractorAgent interface {
	// DumpModuleChunks 按块转储模块内存, 块经ChunkHandler送达
	DumpModuleChunks(moduleName string, chunkSize int) error

	// ReadFileChunks 按块读取设备上的文件
	ReadFileChunks(path string, chunkSize int) error

	// Close 卸载代理脚本
	Close() error
}
