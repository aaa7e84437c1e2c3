package extractor

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// MemoryExtractor 从进程内存直接转储模块镜像
// 所有平台的最后兜底方法, 输出文件带 .memdump 后缀以示与磁盘原件的区别
type MemoryExtractor struct {
	logger *logrus.Logger
}

// NewMemoryExtractor 创建内存转储提取器
func NewMemoryExtractor(logger *logrus.Logger) *MemoryExtractor {
	return &MemoryExtractor{logger: logger}
}

func (e *MemoryExtractor) MethodName() string { return "memory_dump" }

// CanExtract 内存转储对所有平台可用
func (e *MemoryExtractor) CanExtract(library scanner.DetectedLibrary, platform string) bool {
	return true
}

func (e *MemoryExtractor) Extract(library scanner.DetectedLibrary, outputPath string, session backend.Session) *scanner.ExtractionResult {
	if session == nil {
		return failure(library, e.MethodName(), "Backend/session required for memory extraction")
	}

	if !strings.HasSuffix(outputPath, ".memdump") {
		outputPath += ".memdump"
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

	if err := agent.DumpModuleChunks(library.Name, ChunkSize); err != nil {
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

	e.logger.Infof("Dumped %s from memory (%d bytes)", library.Name, sink.Received())
	return success(library, e.MethodName(), outputPath, sink.Received())
}
