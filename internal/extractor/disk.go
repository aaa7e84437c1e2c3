package extractor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// DiskExtractor 从本机文件系统直接复制库文件
type DiskExtractor struct {
	logger *logrus.Logger
}

// NewDiskExtractor 创建磁盘复制提取器
func NewDiskExtractor(logger *logrus.Logger) *DiskExtractor {
	return &DiskExtractor{logger: logger}
}

func (e *DiskExtractor) MethodName() string { return "disk_copy" }

// CanExtract 仅适用于桌面平台且路径指向常规文件
func (e *DiskExtractor) CanExtract(library scanner.DetectedLibrary, platform string) bool {
	if platform == "android" || platform == "ios" {
		return false
	}
	if library.Path == "" {
		return false
	}
	info, err := os.Stat(library.Path)
	return err == nil && info.Mode().IsRegular()
}

func (e *DiskExtractor) Extract(library scanner.DetectedLibrary, outputPath string, session backend.Session) *scanner.ExtractionResult {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return failure(library, e.MethodName(), "failed to create output dir: "+err.Error())
	}

	if err := copyFile(library.Path, outputPath); err != nil {
		msg := fmt.Sprintf("copy failed: %v", err)
		if os.IsPermission(err) {
			msg = "permission denied: " + library.Path
		}
		e.logger.Warn(msg)
		return failure(library, e.MethodName(), msg)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return failure(library, e.MethodName(), "copy failed: "+err.Error())
	}

	e.logger.Infof("Copied %s -> %s (%d bytes)", library.Path, outputPath, info.Size())
	return success(library, e.MethodName(), outputPath, info.Size())
}

// copyFile 复制文件内容
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
