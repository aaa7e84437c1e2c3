package backend

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/frida/frida-go/frida"
	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// FridaBackend 基于frida-go的插桩后端
type FridaBackend struct {
	mgr    *frida.DeviceManager
	logger *logrus.Logger
}

// NewFridaBackend 创建Frida后端
func NewFridaBackend(logger *logrus.Logger) *FridaBackend {
	return &FridaBackend{
		mgr:    frida.NewDeviceManager(),
		logger: logger,
	}
}

func (b *FridaBackend) Name() string { return "frida" }

// GetDevice 按选项选择设备：远程地址 > 序列号 > USB > 本机
func (b *FridaBackend) GetDevice(opts DeviceOptions) (Device, error) {
	if opts.Host != "" {
		dev, err := b.mgr.AddRemoteDevice(opts.Host, frida.NewRemoteDeviceOptions())
		if err != nil {
			return nil, fmt.Errorf("%w: remote device %s: %v", ErrDeviceNotFound, opts.Host, err)
		}
		b.logger.WithField("host", opts.Host).Debug("Connected to remote device")
		return &fridaDevice{dev: dev, logger: b.logger}, nil
	}

	devices, err := b.mgr.EnumerateDevices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate devices: %v", ErrDeviceNotFound, err)
	}

	if opts.Serial != "" {
		for _, d := range devices {
			if d.ID() == opts.Serial {
				b.logger.WithField("serial", opts.Serial).Debug("Connected to device")
				return &fridaDevice{dev: d, logger: b.logger}, nil
			}
		}
		return nil, fmt.Errorf("%w: no device with id %q", ErrDeviceNotFound, opts.Serial)
	}

	if opts.Mobile {
		for _, d := range devices {
			if d.DeviceType() == frida.DeviceTypeUsb {
				b.logger.WithField("device", d.Name()).Debug("Connected to USB device")
				return &fridaDevice{dev: d, logger: b.logger}, nil
			}
		}
		return nil, fmt.Errorf("%w: no USB device connected", ErrDeviceNotFound)
	}

	for _, d := range devices {
		if d.DeviceType() == frida.DeviceTypeLocal {
			b.logger.Debug("Using local device")
			return &fridaDevice{dev: d, logger: b.logger}, nil
		}
	}
	return nil, fmt.Errorf("%w: no local device available", ErrDeviceNotFound)
}

func (b *FridaBackend) Close() {
	b.mgr.Close()
}

// fridaDevice Frida设备句柄
type fridaDevice struct {
	dev    *frida.Device
	logger *logrus.Logger
}

// Attach 附加到进程：先直接附加, 进程名失败时按枚举结果做子串匹配兜底
func (d *fridaDevice) Attach(target Target) (Session, error) {
	if target.IsPID() {
		session, err := d.dev.Attach(target.PID, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: PID %d: %v", ErrAttachment, target.PID, err)
		}
		d.logger.WithField("pid", target.PID).Debug("Attached to process")
		return &fridaSession{session: session, logger: d.logger}, nil
	}

	session, directErr := d.dev.Attach(target.Name, nil)
	if directErr == nil {
		d.logger.WithField("name", target.Name).Debug("Attached to process")
		return &fridaSession{session: session, logger: d.logger}, nil
	}
	d.logger.Debugf("Direct attachment to %q failed: %v", target.Name, directErr)

	procs, err := d.dev.EnumerateProcesses(frida.ScopeMinimal)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrAttachment, target.Name, directErr)
	}

	targetLower := strings.ToLower(target.Name)
	for _, proc := range procs {
		procLower := strings.ToLower(proc.Name())
		if !strings.Contains(procLower, targetLower) && !strings.Contains(targetLower, procLower) {
			continue
		}
		d.logger.WithFields(logrus.Fields{
			"name": proc.Name(),
			"pid":  proc.PID(),
		}).Info("Found fuzzy process match")
		session, err := d.dev.Attach(proc.PID(), nil)
		if err != nil {
			continue
		}
		return &fridaSession{session: session, logger: d.logger}, nil
	}

	// 附带可用进程列表, 方便定位目标名拼写问题
	names := make([]string, 0, 20)
	for i, p := range procs {
		if i >= 20 {
			break
		}
		names = append(names, fmt.Sprintf("%s (PID %d)", p.Name(), p.PID()))
	}
	return nil, fmt.Errorf("%w: %q not found, available processes:\n  %s",
		ErrProcessNotFound, target.Name, strings.Join(names, "\n  "))
}

// Spawn 启动进程、附加并恢复执行
func (d *fridaDevice) Spawn(program string) (Session, error) {
	pid, err := d.dev.Spawn(program, frida.NewSpawnOptions())
	if err != nil {
		return nil, fmt.Errorf("%w: spawn %q: %v", ErrProcessNotFound, program, err)
	}
	session, err := d.dev.Attach(pid, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: spawned PID %d: %v", ErrAttachment, pid, err)
	}
	if err := d.dev.Resume(pid); err != nil {
		return nil, fmt.Errorf("%w: resume PID %d: %v", ErrAttachment, pid, err)
	}
	d.logger.WithFields(logrus.Fields{
		"program": program,
		"pid":     pid,
	}).Info("Spawned and attached")
	return &fridaSession{session: session, logger: d.logger}, nil
}

func (d *fridaDevice) EnumerateProcesses() ([]ProcessInfo, error) {
	procs, err := d.dev.EnumerateProcesses(frida.ScopeMinimal)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}
	result := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		result = append(result, ProcessInfo{PID: p.PID(), Name: p.Name()})
	}
	return result, nil
}

// Platform 探测设备平台：优先读系统参数, 失败时按设备类型和本机OS推断
func (d *fridaDevice) Platform() string {
	if params, err := d.dev.Params(); err == nil {
		if osInfo, ok := params["os"].(map[string]any); ok {
			if id, ok := osInfo["id"].(string); ok {
				switch osName := strings.ToLower(id); {
				case strings.Contains(osName, "android"):
					return "android"
				case strings.Contains(osName, "ios"):
					return "ios"
				case strings.Contains(osName, "windows"):
					return "windows"
				case strings.Contains(osName, "darwin"), strings.Contains(osName, "macos"):
					return "macos"
				case strings.Contains(osName, "linux"):
					return "linux"
				}
			}
		}
	}

	// USB/远程设备最常见的是Android
	if t := d.dev.DeviceType(); t == frida.DeviceTypeUsb || t == frida.DeviceTypeRemote {
		return "android"
	}

	switch runtime.GOOS {
	case "darwin":
		return "macos"
	case "windows":
		return "windows"
	default:
		return "linux"
	}
}

// fridaSession Frida附加会话
type fridaSession struct {
	session *frida.Session
	logger  *logrus.Logger
}

func (s *fridaSession) LoadScannerAgent() (scanner.ScanAgent, error) {
	script, err := s.session.CreateScript(scannerAgentJS)
	if err != nil {
		return nil, fmt.Errorf("%w: create scanner agent: %v", ErrScript, err)
	}
	logger := s.logger
	script.On("message", func(data string) {
		msg, err := frida.ScriptMessageToMessage(data)
		if err != nil {
			return
		}
		if msg.Type == frida.MessageTypeError {
			logger.Warnf("Scanner agent error: %s", msg.Description)
		}
	})
	if err := script.Load(); err != nil {
		return nil, fmt.Errorf("%w: load scanner agent: %v", ErrScript, err)
	}
	s.logger.Debug("Scanner agent loaded")
	return &fridaScanAgent{script: script, logger: s.logger}, nil
}

func (s *fridaSession) LoadExtractorAgent(handler ChunkHandler) (ExtractorAgent, error) {
	script, err := s.session.CreateScript(extractorAgentJS)
	if err != nil {
		return nil, fmt.Errorf("%w: create extractor agent: %v", ErrScript, err)
	}
	script.On("message", extractorMessageHandler(handler, s.logger))
	if err := script.Load(); err != nil {
		return nil, fmt.Errorf("%w: load extractor agent: %v", ErrScript, err)
	}
	s.logger.Debug("Extractor agent loaded")
	return &fridaExtractorAgent{script: script, logger: s.logger}, nil
}

func (s *fridaSession) Detach() {
	if err := s.session.Detach(); err != nil {
		s.logger.Debugf("Error detaching session: %v", err)
	}
	s.session.Clean()
}
