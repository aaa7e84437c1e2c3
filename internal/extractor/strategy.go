package extractor

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
	"github.com/tlslibhunter/tlslibhunter-go/internal/platform"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// ExtractionStrategy 按平台指定顺序逐个尝试提取方法, 第一个成功者生效
type ExtractionStrategy struct {
	session    backend.Session
	platform   string
	outputDir  string
	extractors []Extractor
	logger     *logrus.Logger
}

// NewExtractionStrategy 创建提取策略
// 按平台的提取方法顺序实例化提取器, 方法名去重（别名各自实例化）
func NewExtractionStrategy(session backend.Session, platformName, outputDir string, deps Deps) (*ExtractionStrategy, error) {
	handler, err := platform.GetHandler(platformName)
	if err != nil {
		return nil, err
	}

	var extractors []Extractor
	seen := make(map[string]bool)
	for _, name := range handler.GetExtractionOrder() {
		factory, ok := extractorRegistry[name]
		if !ok || seen[name] {
			continue
		}
		extractors = append(extractors, factory(deps))
		seen[name] = true
	}

	return &ExtractionStrategy{
		session:    session,
		platform:   platformName,
		outputDir:  outputDir,
		extractors: extractors,
		logger:     deps.Logger,
	}, nil
}

// Extract 提取单个库
// 返回第一个成功的结果; 全部失败时返回最后一次失败;
// 没有任何适用方法时返回合成的失败结果
func (s *ExtractionStrategy) Extract(library scanner.DetectedLibrary) *scanner.ExtractionResult {
	outputPath := filepath.Join(s.outputDir, library.Name)
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return failure(library, "", "failed to create output dir: "+err.Error())
	}

	lastResult := failure(library, "", "No extraction methods available")

	for _, ext := range s.extractors {
		if !ext.CanExtract(library, s.platform) {
			s.logger.Debugf("Skipping %s for %s (not applicable)", ext.MethodName(), library.Name)
			continue
		}

		s.logger.Infof("Trying %s for %s...", ext.MethodName(), library.Name)
		result := ext.Extract(library, outputPath, s.session)

		if result.Success {
			return result
		}

		lastResult = result
		s.logger.Debugf("%s failed for %s: %s", ext.MethodName(), library.Name, result.Error)
	}

	return lastResult
}
