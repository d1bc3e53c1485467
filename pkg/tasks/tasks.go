// Package tasks defines the ingestion tasks exchanged between the API, the queue and the pipeline.
package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"pizzeria-rag-go/pkg/log"
)

// ErrQueueClosed 队列已关闭。
var ErrQueueClosed = errors.New("task queue closed")

// IngestTask 一份文档的入库任务。FileName 为空时使用注册表中的 PDF 文件名。
type IngestTask struct {
	DocumentID  string    `json:"document_id"`
	FileName    string    `json:"file_name,omitempty"`
	RequestedBy string    `json:"requested_by,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the queue consumers from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task IngestTask) error
}

// Queue 入库任务的投递端，Kafka 与进程内队列都实现它。
type Queue interface {
	Enqueue(ctx context.Context, task IngestTask) error
	Close() error
}

// InlineQueue 未配置 Kafka 时使用的进程内队列，单个 worker 顺序处理。
type InlineQueue struct {
	ch        chan IngestTask
	processor TaskProcessor
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewInlineQueue size 为缓冲区长度。
func NewInlineQueue(processor TaskProcessor, size int) *InlineQueue {
	if size <= 0 {
		size = 16
	}
	return &InlineQueue{ch: make(chan IngestTask, size), processor: processor, done: make(chan struct{})}
}

// Start 启动 worker，ctx 取消或 Close 后退出。
func (q *InlineQueue) Start(ctx context.Context) {
	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				return
			case task, ok := <-q.ch:
				if !ok {
					return
				}
				if err := q.processor.Process(ctx, task); err != nil {
					log.Errorf("[Queue] 处理文档 %s 失败: %v", task.DocumentID, err)
				}
			}
		}
	}()
}

// Enqueue 缓冲区满时阻塞，直到 ctx 取消。
func (q *InlineQueue) Enqueue(ctx context.Context, task IngestTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 停止接收任务，并等待已缓冲的任务处理完。需先调用 Start。
func (q *InlineQueue) Close() error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.ch)
		q.mu.Unlock()
		<-q.done
	})
	return nil
}
