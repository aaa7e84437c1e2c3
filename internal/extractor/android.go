package extractor

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/adb"
	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
	"github.com/tlslibhunter/tlslibhunter-go/internal/scanner"
)

// ApkInnerExtractor 处理 "apk!内部路径" 形式的模块
// 先拉取宿主APK, 再从zip条目中解出目标so
type ApkInnerExtractor struct {
	adb    *adb.Client
	logger *logrus.Logger
}

// NewApkInnerExtractor 创建APK内嵌库提取器
func NewApkInnerExtractor(adbClient *adb.Client, logger *logrus.Logger) *ApkInnerExtractor {
	return &ApkInnerExtractor{adb: adbClient, logger: logger}
}

func (e *ApkInnerExtractor) MethodName() string { return "apk_inner" }

// CanExtract 仅处理Android上带 "!" 分隔符的路径
func (e *ApkInnerExtractor) CanExtract(library scanner.DetectedLibrary, platform string) bool {
	return platform == "android" && strings.Contains(library.Path, "!")
}

func (e *ApkInnerExtractor) Extract(library scanner.DetectedLibrary, outputPath string, session backend.Session) *scanner.ExtractionResult {
	if !adb.Available() {
		return failure(library, e.MethodName(), "adb not available")
	}

	parts := strings.SplitN(library.Path, "!", 2)
	apkPath := parts[0]
	innerPath := strings.TrimPrefix(parts[1], "/")

	// APK先拉取到输出目录下的临时缓存, 同一APK只拉一次
	localAPK := filepath.Join(filepath.Dir(outputPath), ".tmp_apks", filepath.Base(apkPath))
	if _, err := os.Stat(localAPK); err != nil {
		if err := e.adb.Pull(context.Background(), apkPath, localAPK); err != nil {
			return failure(library, e.MethodName(), "adb pull failed: "+err.Error())
		}
	}

	size, err := extractZipEntry(localAPK, innerPath, outputPath)
	if err != nil {
		return failure(library, e.MethodName(), err.Error())
	}

	e.logger.Infof("Extracted %s from %s (%d bytes)", innerPath, filepath.Base(apkPath), size)
	return success(library, e.MethodName(), outputPath, size)
}

// extractZipEntry 从APK中解出指定条目
// 先按完整路径匹配, 找不到时退回按文件名后缀匹配（兼容split APK里的路径差异）
func extractZipEntry(apkPath, innerPath, outputPath string) (int64, error) {
	reader, err := zip.OpenReader(apkPath)
	if err != nil {
		return 0, &extractError{"Invalid APK (bad zip)"}
	}
	defer reader.Close()

	var entry *zip.File
	for _, f := range reader.File {
		if f.Name == innerPath {
			entry = f
			break
		}
	}
	if entry == nil {
		suffix := "/" + filepath.Base(innerPath)
		for _, f := range reader.File {
			if strings.HasSuffix(f.Name, suffix) {
				entry = f
				break
			}
		}
	}
	if entry == nil {
		return 0, &extractError{"'" + innerPath + "' not found in APK"}
	}

	rc, err := entry.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	size, err := io.Copy(out, rc)
	if err != nil {
		return 0, err
	}
	return size, nil
}

// extractError 带固定消息的提取错误
type extractError struct {
	msg string
}

func (e *extractError) Error() string { return e.msg }

// AdbPullExtractor 通过adb pull直接拉取设备上的库文件
type AdbPullExtractor struct {
	adb    *adb.Client
	logger *logrus.Logger
}

// NewAdbPullExtractor 创建adb拉取提取器
func NewAdbPullExtractor(adbClient *adb.Client, logger *logrus.Logger) *AdbPullExtractor {
	return &AdbPullExtractor{adb: adbClient, logger: logger}
}

func (e *AdbPullExtractor) MethodName() string { return "adb_pull" }

// CanExtract 仅处理Android上的普通文件路径（不含 "!"）
func (e *AdbPullExtractor) CanExtract(library scanner.DetectedLibrary, platform string) bool {
	return platform == "android" && library.Path != "" && !strings.Contains(library.Path, "!")
}

func (e *AdbPullExtractor) Extract(library scanner.DetectedLibrary, outputPath string, session backend.Session) *scanner.ExtractionResult {
	if !adb.Available() {
		return failure(library, e.MethodName(), "adb not available")
	}

	if err := e.adb.Pull(context.Background(), library.Path, outputPath); err != nil {
		return failure(library, e.MethodName(), "adb pull failed: "+err.Error())
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		removeIfEmpty(outputPath)
		return failure(library, e.MethodName(), "adb pull produced empty file")
	}

	e.logger.Infof("Pulled %s (%d bytes)", library.Path, info.Size())
	return success(library, e.MethodName(), outputPath, info.Size())
}
