package hunter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/adb"
	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
	"github.com/tlslibhunter/tlslibhunter-go/internal/extractor"
	"github.com/tlslibhunter/tlslibhunter-go/internal/retry"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// Options 扫描任务参数
type Options struct {
	Target    string        // 进程名、PID或包名
	Mobile    bool          // 连接第一个USB设备
	Serial    string        // 指定设备序列号（隐含Mobile）
	Host      string        // 远程frida-server地址 (ip:port)
	Spawn     bool          // 启动新进程而非附加
	Timeout   time.Duration // 附加超时
	Verbose   bool          // 对无模式命中的模块也检查导出符号
	OutputDir string        // 提取输出目录, 为空时按目标生成

	// Backend 为nil时使用Frida后端, 测试时可注入桩
	Backend backend.Backend
	Logger  *logrus.Logger
}

// EffectiveOutputDir 提取输出目录, 未指定时按目标名生成
func (o Options) EffectiveOutputDir() string {
	if o.OutputDir != "" {
		return o.OutputDir
	}
	safe := strings.NewReplacer("/", "_", "\\", "_").Replace(o.Target)
	return "./tls_libs_" + safe
}

// Hunter 扫描与提取的编排器：管理后端、设备与会话的生命周期
type Hunter struct {
	opts        Options
	backend     backend.Backend
	device      backend.Device
	session     backend.Session
	platform    string
	logger      *logrus.Logger
	initialized bool
}

// New 创建Hunter
func New(opts Options) (*Hunter, error) {
	if opts.Target == "" {
		return nil, fmt.Errorf("target is required")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	b := opts.Backend
	if b == nil {
		b = backend.NewFridaBackend(opts.Logger)
	}

	return &Hunter{
		opts:    opts,
		backend: b,
		logger:  opts.Logger,
	}, nil
}

// Platform 已探测的目标平台, 初始化前为空
func (h *Hunter) Platform() string { return h.platform }

// initialize 获取设备、探测平台并附加目标进程
func (h *Hunter) initialize(ctx context.Context) error {
	if h.initialized {
		return nil
	}

	device, err := h.backend.GetDevice(backend.DeviceOptions{
		Mobile:  h.opts.Mobile || h.opts.Serial != "",
		Serial:  h.opts.Serial,
		Host:    h.opts.Host,
		Timeout: h.opts.Timeout,
	})
	if err != nil {
		return err
	}
	h.device = device

	h.platform = device.Platform()
	h.logger.Infof("Platform: %s", h.platform)

	target := backend.ResolveTarget(h.opts.Target)

	retryConfig := retry.DefaultConfig()
	retryConfig.Logger = h.logger
	retryConfig.Timeout = h.opts.Timeout * time.Duration(retryConfig.MaxAttempts)

	// 目标进程不存在时重试无意义, 直接失败
	session, err := retry.DoWithResult(ctx, retryConfig, func(ctx context.Context) (backend.Session, error) {
		var s backend.Session
		var attachErr error
		if h.opts.Spawn {
			s, attachErr = h.device.Spawn(target.String())
		} else {
			s, attachErr = h.device.Attach(target)
		}
		if attachErr != nil && errors.Is(attachErr, backend.ErrProcessNotFound) {
			return nil, retry.NewNonRetryableError(attachErr)
		}
		return s, attachErr
	})
	if err != nil {
		return err
	}

	h.session = session
	h.initialized = true
	return nil
}

// packageName Android目标为包名时返回包名, 用于模块归属判定
func (h *Hunter) packageName() string {
	if h.platform == "android" && strings.Contains(h.opts.Target, ".") {
		return h.opts.Target
	}
	return ""
}

// Scan 扫描目标进程, 检出TLS库
func (h *Hunter) Scan(ctx context.Context) (*scanner.ScanResult, error) {
	if err := h.initialize(ctx); err != nil {
		return nil, err
	}

	agent, err := h.session.LoadScannerAgent()
	if err != nil {
		return nil, err
	}

	s, err := scanner.NewModuleScanner(agent, h.platform, h.packageName(), h.opts.Verbose, h.logger)
	if err != nil {
		agent.Close()
		return nil, err
	}
	defer s.Cleanup()

	return s.Scan(h.opts.Target), nil
}

// Extract 提取扫描结果中的全部TLS库
func (h *Hunter) Extract(ctx context.Context, scanResult *scanner.ScanResult, outputDir string) ([]*scanner.ExtractionResult, error) {
	if err := h.initialize(ctx); err != nil {
		return nil, err
	}

	if outputDir == "" {
		outputDir = h.opts.EffectiveOutputDir()
	}

	deps := extractor.Deps{
		Logger: h.logger,
		ADB:    adb.NewClient(h.opts.Serial, h.opts.Timeout, h.logger),
	}
	strategy, err := extractor.NewExtractionStrategy(h.session, h.platform, outputDir, deps)
	if err != nil {
		return nil, err
	}

	results := make([]*scanner.ExtractionResult, 0, len(scanResult.Libraries))
	for _, lib := range scanResult.Libraries {
		results = append(results, strategy.Extract(lib))
	}
	return results, nil
}

// Close 断开会话并释放后端资源
func (h *Hunter) Close() {
	if h.session != nil {
		h.session.Detach()
		h.session = nil
	}
	if h.backend != nil {
		h.backend.Close()
	}
	h.initialized = false
}
