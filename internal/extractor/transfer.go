package extractor

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tlslibhunter/tlslibhunter-go/internal/backend"
)

const (
	// ChunkSize 流式传输的块大小
	ChunkSize = 64 * 1024
	// TransferTimeout 整体传输的有界等待时长
	TransferTimeout = 300 * time.Second
)

// transferSink 接收提取代理的异步数据块并按偏移写入本地文件
// 实现 backend.ChunkHandler
type transferSink struct {
	mu       sync.Mutex
	file     *os.File
	received int64
	failed   bool
	errMsg   string
	closed   bool
	done     chan struct{}
}

func newTransferSink(file *os.File) *transferSink {
	return &transferSink{
		file: file,
		done: make(chan struct{}),
	}
}

func (t *transferSink) OnChunk(c backend.Chunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	if len(c.Data) > 0 {
		if _, err := t.file.WriteAt(c.Data, c.Offset); err != nil {
			t.failed = true
			t.errMsg = "write error: " + err.Error()
			t.finish()
			return
		}
		t.received += int64(len(c.Data))
	}
	if c.Final {
		t.finish()
	}
}

func (t *transferSink) OnError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.failed = true
	t.errMsg = msg
	t.finish()
}

// finish 关闭完成信号, 调用方必须持有锁
func (t *transferSink) finish() {
	if !t.closed {
		t.closed = true
		close(t.done)
	}
}

// Wait 等待传输完成
// 超时返回独立的超时错误, 不把未完成的部分文件当作成功结果
func (t *transferSink) Wait(timeout time.Duration) error {
	select {
	case <-t.done:
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.failed {
			if t.errMsg == "" {
				return fmt.Errorf("remote read failed")
			}
			return fmt.Errorf("%s", t.errMsg)
		}
		return nil
	case <-time.After(timeout):
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()
		return fmt.Errorf("transfer timed out after %ds", int(timeout.Seconds()))
	}
}

// Received 已接收字节数
func (t *transferSink) Received() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.received
}

// removeIfEmpty 删除零字节的残留文件, 避免把失败当成空提取结果
func removeIfEmpty(path string) {
	if info, err := os.Stat(path); err == nil && info.Size() == 0 {
		os.Remove(path)
	}
}
