package task

import (
	"context"
	"log/slog"
	"sync"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/pkg/logger"
)

// MemoryQueue 是基于带缓冲 channel 的进程内队列，仅适用于单实例部署。
// 关闭后未消费的任务 ID 会丢失，任务记录本身仍保存在存储中。
type MemoryQueue struct {
	ids       chan string
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryQueue 创建内存队列，size 不大于 0 时使用 64。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ids: make(chan string, size), done: make(chan struct{})}
}

// Publish 投递任务 ID；缓冲区已满时阻塞，直到有空位、ctx 结束或队列关闭。
func (q *MemoryQueue) Publish(ctx context.Context, taskID string) error {
	select {
	case <-q.done:
		return xerrors.New(xerrors.CodeQueueFailure, "队列已关闭")
	default:
	}
	select {
	case q.ids <- taskID:
		return nil
	case <-q.done:
		return xerrors.New(xerrors.CodeQueueFailure, "队列已关闭")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume 启动 workerCount 个协程消费任务，ctx 结束或队列关闭后返回。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	log := logger.Named("memory_queue")
	var wg sync.WaitGroup
	for range max(workerCount, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-q.done:
					return
				case id := <-q.ids:
					if err := handler(ctx, id); err != nil {
						log.Debug("任务处理返回错误", slog.String("task_id", id), slog.Any("error", err))
					}
				}
			}
		}()
	}
	wg.Wait()
	return ctx.Err()
}

// Close 停止消费并拒绝新的投递，可重复调用。
func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

// Len 返回尚未被消费的任务数量。
func (q *MemoryQueue) Len() int { return len(q.ids) }
