package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tlslibhunter/tlslibhunter-go/internal/queue"
)

// Pool Worker 池
type Pool struct {
	workers  int
	taskChan chan *ScanTask
	executor *Executor
	logger   *logrus.Logger
	wg       sync.WaitGroup
}

// ScanTask 池中的一个扫描任务
type ScanTask struct {
	Message  *queue.ScanTaskMessage
	resultCh chan error // 用于同步等待任务完成
}

// NewPool 创建 Worker 池
func NewPool(workers int, queueSize int, executor *Executor, logger *logrus.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Pool{
		workers:  workers,
		taskChan: make(chan *ScanTask, queueSize),
		executor: executor,
		logger:   logger,
	}
}

// Start 启动 Worker 池
func (p *Pool) Start(ctx context.Context) {
	p.logger.WithField("workers", p.workers).Info("Starting worker pool")

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// worker Worker 协程
func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.WithField("worker_id", id).Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			p.logger.WithField("worker_id", id).Info("Worker shutting down")
			return

		case task, ok := <-p.taskChan:
			if !ok {
				p.logger.WithField("worker_id", id).Info("Task channel closed, worker exiting")
				return
			}

			p.logger.WithFields(logrus.Fields{
				"worker_id": id,
				"scan_id":   task.Message.ScanID,
				"target":    task.Message.Target,
			}).Info("Processing scan task")

			err := p.executor.Execute(ctx, task.Message)
			if err != nil {
				p.logger.WithError(err).WithFields(logrus.Fields{
					"worker_id": id,
					"scan_id":   task.Message.ScanID,
				}).Error("Scan task execution failed")
			} else {
				p.logger.WithFields(logrus.Fields{
					"worker_id": id,
					"scan_id":   task.Message.ScanID,
				}).Info("Scan task completed")
			}

			if task.resultCh != nil {
				task.resultCh <- err
				close(task.resultCh)
			}
		}
	}
}

// Submit 提交任务（异步，不等待结果）
func (p *Pool) Submit(task *ScanTask) error {
	select {
	case p.taskChan <- task:
		p.logger.WithField("scan_id", task.Message.ScanID).Debug("Scan task submitted to pool")
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// SubmitAndWait 提交任务并等待完成
func (p *Pool) SubmitAndWait(ctx context.Context, task *ScanTask) error {
	task.resultCh = make(chan error, 1)

	select {
	case p.taskChan <- task:
		p.logger.WithField("scan_id", task.Message.ScanID).Debug("Scan task submitted to pool (sync)")
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-task.resultCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop 停止 Worker 池
func (p *Pool) Stop() {
	p.logger.Info("Stopping worker pool")
	close(p.taskChan)
	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

// Size 池中worker数量
func (p *Pool) Size() int {
	return p.workers
}

// GetQueueSize 获取队列中任务数
func (p *Pool) GetQueueSize() int {
	return len(p.taskChan)
}
