package task

import (
	"context"

	xerrors "AgentSwap/internal/errors"
)

// Store 抽象了任务状态的持久化接口。
type Store interface {
	Create(ctx context.Context, task *Task) error
	Get(ctx context.Context, id string) (*Task, error)
	// Claim 将待处理任务置为运行中并增加尝试次数。
	Claim(ctx context.Context, id string) (*Task, error)
	MarkSucceeded(ctx context.Context, id string, result ExecutionResult) error
	// MarkFailed 记录失败原因。retry 为 true 时任务回到待处理状态等待重投，否则进入终态。
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, retry bool) error
	List(ctx context.Context, opts ListOptions) ([]*Task, error)
	Stats(ctx context.Context, opts ListOptions) (TaskStats, error)
	Close() error
}
