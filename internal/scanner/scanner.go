package scanner

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ModuleRecord 进程中一个已加载模块
type ModuleRecord struct {
	Name string `json:"name" mapstructure:"name"`
	Path string `json:"path" mapstructure:"path"`
	Base string `json:"base" mapstructure:"base"`
	Size int64  `json:"size" mapstructure:"size"`
}

// PatternMatch 内存模式扫描的单次命中
type PatternMatch struct {
	Pattern string `json:"pattern" mapstructure:"pattern"`
	Address string `json:"address" mapstructure:"address"`
}

// ScanAgent 注入目标进程的扫描代理接口
type ScanAgent interface {
	// EnumerateModules 枚举进程已加载的全部模块
	EnumerateModules() ([]ModuleRecord, error)

	// ScanModuleKernelLevel 在模块可读内存中扫描十六进制模式
	ScanModuleKernelLevel(moduleName string, hexPatterns []string) ([]PatternMatch, error)

	// CheckExports 检查模块导出表中存在哪些给定符号
	CheckExports(moduleName string, symbols []string) ([]string, error)

	// ScanForStrings 在模块内存中查找哪些十六进制模式存在, 返回命中的模式
	ScanForStrings(moduleName string, hexPatterns []string) ([]string, error)

	// Close 卸载代理脚本
	Close() error
}

// ModuleScanner 模块扫描器：遍历目标进程模块, 检测TLS库指示
type ModuleScanner struct {
	agent      ScanAgent
	classifier *ModuleClassifier
	platform   string
	verbose    bool
	logger     *logrus.Logger
}

// NewModuleScanner 创建模块扫描器
// verbose 为true时对无模式命中的模块也检查导出符号
func NewModuleScanner(agent ScanAgent, platformName, packageName string, verbose bool, logger *logrus.Logger) (*ModuleScanner, error) {
	classifier, err := NewModuleClassifier(platformName, packageName)
	if err != nil {
		return nil, err
	}
	return &ModuleScanner{
		agent:      agent,
		classifier: classifier,
		platform:   platformName,
		verbose:    verbose,
		logger:     logger,
	}, nil
}

// buildAllHexPatterns 为所有TLS指示字符串构建十六进制模式（去重保序）
func buildAllHexPatterns() []string {
	patterns := []string{}
	for _, s := range TLSStringPatterns {
		patterns = append(patterns, BuildScanPatterns(s)...)
	}
	seen := make(map[string]bool, len(patterns))
	unique := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			unique = append(unique, p)
		}
	}
	return unique
}

// buildFingerprintHexPatterns 构建指纹字符串的十六进制模式及反向映射
func buildFingerprintHexPatterns() ([]string, map[string]string) {
	fpStrings := GetAllFingerprintStrings()
	hexPatterns := make([]string, 0, len(fpStrings))
	hexToString := make(map[string]string, len(fpStrings))
	for _, s := range fpStrings {
		h := AsciiToHex(s)
		hexPatterns = append(hexPatterns, h)
		hexToString[h] = s
	}
	return hexPatterns, hexToString
}

// Scan 扫描目标进程的全部模块, 检出TLS库
// 单个模块的扫描失败只记录日志, 不中断整体扫描
func (s *ModuleScanner) Scan(targetName string) *ScanResult {
	startTime := time.Now()
	result := NewScanResult(targetName, s.platform)

	modules, err := s.agent.EnumerateModules()
	if err != nil {
		result.Errors = append(result.Errors, "Failed to enumerate modules: "+err.Error())
		return result
	}

	s.logger.Infof("Found %d loaded modules", len(modules))

	hexPatterns := buildAllHexPatterns()
	s.logger.Debugf("Built %d unique hex patterns from %d TLS strings", len(hexPatterns), len(TLSStringPatterns))

	// 按符号表顺序查询, 命中顺序决定平票时的识别结果
	exportSymbols := ExportSymbolNames()

	fpHexPatterns, fpHexToString := buildFingerprintHexPatterns()
	s.logger.Debugf("Built %d fingerprint hex patterns", len(fpHexPatterns))

	scanned := 0
	for _, mod := range modules {
		if !s.classifier.IsScanWorthy(mod.Name, mod.Path) {
			s.logger.Debugf("Skipping %s (not scan-worthy)", mod.Name)
			continue
		}

		scanned++
		var matchedPatterns []string
		var matchedExports []string

		matches, err := s.agent.ScanModuleKernelLevel(mod.Name, hexPatterns)
		if err != nil {
			s.logger.Debugf("Scan error for %s: %v", mod.Name, err)
		} else if len(matches) > 0 {
			for _, m := range matches {
				matchedPatterns = append(matchedPatterns, m.Pattern)
			}
			s.logger.Infof("Pattern match in %s: %d hits", mod.Name, len(matches))
		}

		// 导出符号检查（即使无模式命中, verbose模式下也查, 用于库类型识别）
		if len(matchedPatterns) > 0 || s.verbose {
			foundExports, err := s.agent.CheckExports(mod.Name, exportSymbols)
			if err == nil && len(foundExports) > 0 {
				matchedExports = foundExports
				s.logger.Debugf("Exports in %s: %v", mod.Name, foundExports)
			}
		}

		if len(matchedPatterns) == 0 && len(matchedExports) == 0 {
			continue
		}

		// 指纹扫描, 用于库类型与版本识别
		fingerprintType := "unknown"
		detectedVersion := ""
		matchedFingerprints := []string{}

		foundFpHex, err := s.agent.ScanForStrings(mod.Name, fpHexPatterns)
		if err != nil {
			s.logger.Debugf("Fingerprint scan error for %s: %v", mod.Name, err)
		} else {
			for _, h := range foundFpHex {
				if orig, ok := fpHexToString[h]; ok {
					matchedFingerprints = append(matchedFingerprints, orig)
				}
			}
			if len(matchedFingerprints) > 0 {
				fingerprintType, detectedVersion = FingerprintLibrary(matchedFingerprints)
				if fingerprintType != "unknown" {
					s.logger.WithFields(logrus.Fields{
						"module":  mod.Name,
						"type":    fingerprintType,
						"version": detectedVersion,
					}).Info("Fingerprint identified library")
				}
			}
		}

		info := s.classifier.ClassifyModule(mod.Name, mod.Path, matchedExports, fingerprintType, detectedVersion)
		result.Libraries = append(result.Libraries, DetectedLibrary{
			Name:                mod.Name,
			Path:                mod.Path,
			BaseAddress:         mod.Base,
			Size:                mod.Size,
			LibraryType:         info.LibraryType,
			Classification:      info.Classification,
			MatchedPatterns:     matchedPatterns,
			MatchedExports:      matchedExports,
			MatchedFingerprints: matchedFingerprints,
			DetectedVersion:     info.DetectedVersion,
		})
		s.logger.Infof("Detected: %s (%s, %s)", mod.Name, info.LibraryType, info.Classification)
	}

	result.TotalModulesScanned = scanned
	result.ScanDurationSeconds = time.Since(startTime).Seconds()

	s.logger.Infof("Scan complete: %d TLS libraries found in %d modules (%.2fs)",
		len(result.Libraries), scanned, result.ScanDurationSeconds)

	return result
}

// Cleanup 卸载扫描代理
func (s *ModuleScanner) Cleanup() {
	if s.agent != nil {
		if err := s.agent.Close(); err != nil {
			s.logger.Debugf("Failed to unload scanner agent: %v", err)
		}
	}
}
