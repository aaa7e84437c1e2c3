package worker

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlslibhunter/tlslibhunter-go/internal/queue"
)

// TestPoolDefaults 测试池参数默认值
func TestPoolDefaults(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	p := NewPool(0, 0, nil, logger)
	assert.Equal(t, 1, p.Size())
	assert.Equal(t, 16, cap(p.taskChan))
}

// TestPoolSubmitFullQueue 测试队列满时拒绝提交
func TestPoolSubmitFullQueue(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	// 不启动worker, 填满队列
	p := NewPool(1, 2, nil, logger)
	require.NoError(t, p.Submit(&ScanTask{Message: &queue.ScanTaskMessage{ScanID: "a"}}))
	require.NoError(t, p.Submit(&ScanTask{Message: &queue.ScanTaskMessage{ScanID: "b"}}))

	err := p.Submit(&ScanTask{Message: &queue.ScanTaskMessage{ScanID: "c"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task queue is full")
	assert.Equal(t, 2, p.GetQueueSize())
}

// TestPoolSubmitAndWaitCancelled 测试上下文取消时等待提前返回
func TestPoolSubmitAndWaitCancelled(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	p := NewPool(1, 1, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		// 无worker消费, 任务停在队列中直至取消
		err = p.SubmitAndWait(ctx, &ScanTask{Message: &queue.ScanTaskMessage{ScanID: "x"}})
	}()

	cancel()
	wg.Wait()
	assert.ErrorIs(t, err, context.Canceled)
}
