package extractor

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// FridaReadExtractor 通过注入进程的文件读取代理分块回传库文件
// 用于iOS等无法直接访问目标文件系统的场景
type FridaReadExtractor struct {
	logger *logrus.Logger
}

// NewFridaReadExtractor 创建Frida文件读取提取器
func NewFridaReadExtractor(logger *logrus.Logger) *FridaReadExtractor {
	return &FridaReadExtractor{logger: logger}
}

func (e *FridaReadExtractor) MethodName() string { return "frida_read" }

// CanExtract 仅处理iOS上带路径的模块
func (e *FridaReadExtractor) CanExtract(library scanner.DetectedLibrary, platform string) bool {
	return platform == "ios" && library.Path != ""
}

func (e *FridaReadExtractor) Extract(library scanner.DetectedLibrary, outputPath string, session backend.Session) *scanner.ExtractionResult {
	if session == nil {
		return failure(library, e.MethodName(), "Backend/session required for frida_read extraction")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return failure(library, e.MethodName(), "failed to create output dir: "+err.Error())
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return failure(library, e.MethodName(), "failed to create output file: "+err.Error())
	}

	sink := newTransferSink(file)
	agent, err := session.LoadExtractorAgent(sink)
	if err != nil {
		file.Close()
		removeIfEmpty(outputPath)
		return failure(library, e.MethodName(), "failed to load extractor agent: "+err.Error())
	}
	defer agent.Close()

	if err := agent.ReadFileChunks(library.Path, ChunkSize); err != nil {
		file.Close()
		removeIfEmpty(outputPath)
		return failure(library, e.MethodName(), err.Error())
	}

	waitErr := sink.Wait(TransferTimeout)
	file.Close()
	if waitErr != nil {
		removeIfEmpty(outputPath)
		return failure(library, e.MethodName(), waitErr.Error())
	}

	e.logger.Infof("Read %s via agent (%d bytes)", library.Path, sink.Received())
	return success(library, e.MethodName(), outputPath, sink.Received())
}
