package hunter

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// stubAgent 返回固定模块列表的扫描代理桩
type stubAgent struct {
	modules []scanner.ModuleRecord
	closed  bool
}

func (a *stubAgent) EnumerateModules() ([]scanner.ModuleRecord, error) { return a.modules, nil }

func (a *stubAgent) ScanModuleKernelLevel(moduleName string, hexPatterns []string) ([]scanner.PatternMatch, error) {
	return []scanner.PatternMatch{{Pattern: hexPatterns[0], Address: "0x7000"}}, nil
}

func (a *stubAgent) CheckExports(moduleName string, symbols []string) ([]string, error) {
	return nil, nil
}

func (a *stubAgent) ScanForStrings(moduleName string, hexPatterns []string) ([]string, error) {
	return nil, nil
}

func (a *stubAgent) Close() error {
	a.closed = true
	return nil
}

// stubSession 附加会话桩
type stubSession struct {
	agent    *stubAgent
	detached bool
}

func (s *stubSession) LoadScannerAgent() (scanner.ScanAgent, error) { return s.agent, nil }

func (s *stubSession) LoadExtractorAgent(handler backend.ChunkHandler) (backend.ExtractorAgent, error) {
	return nil, errors.New("extractor agent unavailable")
}

func (s *stubSession) Detach() { s.detached = true }

// stubDevice 设备桩
type stubDevice struct {
	platform  string
	session   *stubSession
	attachErr error
	attempts  int
}

func (d *stubDevice) Attach(target backend.Target) (backend.Session, error) {
	d.attempts++
	if d.attachErr != nil {
		return nil, d.attachErr
	}
	return d.session, nil
}

func (d *stubDevice) Spawn(program string) (backend.Session, error) {
	return d.session, nil
}

func (d *stubDevice) EnumerateProcesses() ([]backend.ProcessInfo, error) { return nil, nil }

func (d *stubDevice) Platform() string { return d.platform }

// stubBackend 后端桩
type stubBackend struct {
	device *stubDevice
	closed bool
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) GetDevice(opts backend.DeviceOptions) (backend.Device, error) {
	return b.device, nil
}

func (b *stubBackend) Close() { b.closed = true }

func newStubBackend(platform string) *stubBackend {
	return &stubBackend{
		device: &stubDevice{
			platform: platform,
			session: &stubSession{
				agent: &stubAgent{modules: []scanner.ModuleRecord{
					{Name: "libssl.so", Path: "/system/lib64/libssl.so", Base: "0x7000", Size: 1024},
				}},
			},
		},
	}
}

// TestEffectiveOutputDir 测试默认输出目录按目标名生成且路径分隔符被替换
func TestEffectiveOutputDir(t *testing.T) {
	opts := Options{Target: "firefox"}
	assert.Equal(t, "./tls_libs_firefox", opts.EffectiveOutputDir())

	opts = Options{Target: "/usr/bin/app"}
	assert.Equal(t, "./tls_libs__usr_bin_app", opts.EffectiveOutputDir())

	opts = Options{Target: `C:\app.exe`}
	assert.Equal(t, "./tls_libs_C:_app.exe", opts.EffectiveOutputDir())

	opts = Options{Target: "firefox", OutputDir: "/tmp/custom"}
	assert.Equal(t, "/tmp/custom", opts.EffectiveOutputDir())
}

// TestHunterRequiresTarget 测试缺少目标时创建失败
func TestHunterRequiresTarget(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

// TestHunterScan 测试完整扫描流程：初始化、扫描、清理
func TestHunterScan(t *testing.T) {
	b := newStubBackend("android")
	h, err := New(Options{
		Target:  "com.example.app",
		Backend: b,
		Logger:  newTestLogger(),
	})
	require.NoError(t, err)

	result, err := h.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "android", h.Platform())
	assert.Equal(t, "com.example.app", result.Target)
	require.Len(t, result.Libraries, 1)
	// Android系统路径下的openssl指示被归为boringssl
	assert.Equal(t, "boringssl", result.Libraries[0].LibraryType)
	assert.Equal(t, "system", result.Libraries[0].Classification)
	assert.True(t, b.device.session.agent.closed, "scanner agent should be unloaded after scan")

	h.Close()
	assert.True(t, b.device.session.detached)
	assert.True(t, b.closed)
}

// TestHunterPackageName 测试仅Android带点目标才作为包名
func TestHunterPackageName(t *testing.T) {
	h := &Hunter{opts: Options{Target: "com.example.app"}, platform: "android"}
	assert.Equal(t, "com.example.app", h.packageName())

	h = &Hunter{opts: Options{Target: "app_process"}, platform: "android"}
	assert.Equal(t, "", h.packageName())

	h = &Hunter{opts: Options{Target: "com.example.app"}, platform: "linux"}
	assert.Equal(t, "", h.packageName())
}

// TestHunterAttachNotRetriedOnMissingProcess 测试进程不存在时不做无谓重试
func TestHunterAttachNotRetriedOnMissingProcess(t *testing.T) {
	b := newStubBackend("linux")
	b.device.attachErr = backend.ErrProcessNotFound

	h, err := New(Options{
		Target:  "ghost",
		Backend: b,
		Logger:  newTestLogger(),
	})
	require.NoError(t, err)

	_, err = h.Scan(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrProcessNotFound)
	assert.Equal(t, 1, b.device.attempts, "should not retry when process does not exist")
}

// TestHunterExtract 测试提取流程走完整策略链
func TestHunterExtract(t *testing.T) {
	b := newStubBackend("linux")
	h, err := New(Options{
		Target:  "firefox",
		Backend: b,
		Logger:  newTestLogger(),
	})
	require.NoError(t, err)

	scanResult := scanner.NewScanResult("firefox", "linux")
	scanResult.Libraries = append(scanResult.Libraries, scanner.DetectedLibrary{
		Name: "libssl.so.3",
		Path: "/no/such/path/libssl.so.3",
	})

	results, err := h.Extract(context.Background(), scanResult, t.TempDir())
	require.NoError(t, err)
	require.Len(t, results, 1)
	// 磁盘复制不适用（文件不存在）, 内存转储加载代理失败, 最终为失败结果
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "extractor agent unavailable")
}
