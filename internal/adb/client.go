package adb

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client ADB 客户端：包装adb命令行工具
type Client struct {
	serial  string        // 可选的设备序列号
	timeout time.Duration // 单条命令超时时间
	logger  *logrus.Logger
}

// NewClient 创建 ADB 客户端, serial为空时使用默认设备
func NewClient(serial string, timeout time.Duration, logger *logrus.Logger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		serial:  serial,
		timeout: timeout,
		logger:  logger,
	}
}

// Available 检查adb是否在PATH中
func Available() bool {
	_, err := exec.LookPath("adb")
	return err == nil
}

// args 组装adb命令参数, 自动带上序列号
func (c *Client) args(rest ...string) []string {
	base := []string{}
	if c.serial != "" {
		base = append(base, "-s", c.serial)
	}
	return append(base, rest...)
}

// run 执行adb命令并返回合并输出
func (c *Client) run(ctx context.Context, timeout time.Duration, rest ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "adb", c.args(rest...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("adb %s failed: %w, output: %s", rest[0], err, string(output))
	}
	return string(output), nil
}

// Pull 从设备拉取文件到本地
func (c *Client) Pull(ctx context.Context, remote, local string) error {
	if dir := filepath.Dir(local); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	// 拉取大文件（APK/so）可能较慢, 用更长的超时
	if _, err := c.run(ctx, 180*time.Second, "pull", remote, local); err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{
		"remote": remote,
		"local":  local,
	}).Debug("adb pull completed")
	return nil
}

// Shell 在设备上执行shell命令
func (c *Client) Shell(ctx context.Context, command string) (string, error) {
	return c.run(ctx, c.timeout, "shell", command)
}

// GetPackageAPKPaths 通过pm path获取包的全部APK路径
func (c *Client) GetPackageAPKPaths(ctx context.Context, pkg string) ([]string, error) {
	output, err := c.Shell(ctx, "pm path "+pkg)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "package:") {
			paths = append(paths, strings.TrimPrefix(line, "package:"))
		}
	}
	return paths, nil
}
