package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"AgentSwap/internal/agent"
	xerrors "AgentSwap/internal/errors"
	"AgentSwap/pkg/logger"
)

// SubmitRequest 描述一条待排队的消息。ID 非空时按幂等键处理。
type SubmitRequest struct {
	ID      string
	AgentID string
	agent.Message
}

// Service 负责任务的创建与查询。
type Service struct {
	store      Store
	producer   Producer
	maxRetries int
}

// NewService 构造任务服务。
func NewService(store Store, producer Producer, maxRetries int) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Service{store: store, producer: producer, maxRetries: maxRetries}
}

// Submit 校验请求、落库并投递到队列。
// 携带已存在的 ID 时直接返回已有任务；该 ID 属于其他代理时返回冲突。
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Task, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}
	if s.store == nil || s.producer == nil {
		return nil, errNotReady
	}

	taskID := strings.TrimSpace(req.ID)
	if taskID == "" {
		taskID = uuid.NewString()
	} else if existing, err := s.replay(ctx, taskID, req.AgentID); existing != nil || err != nil {
		return existing, err
	}

	task := s.newTask(taskID, req)
	if err := s.store.Create(ctx, task); err != nil {
		if stdErrors.Is(err, ErrTaskConflict) {
			// 并发提交相同 ID
			if existing, replayErr := s.replay(ctx, taskID, req.AgentID); existing != nil {
				return existing, nil
			} else if replayErr != nil {
				return nil, replayErr
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, taskID); err != nil {
		logger.L().Error("任务入队失败", slog.Any("error", err), slog.String("task_id", taskID))
		wrapped := xerrors.Wrap(CodeTaskPublish, err, "发布任务到队列失败")
		_ = s.store.MarkFailed(ctx, taskID, CodeTaskPublish, wrapped.Error(), false)
		return nil, wrapped
	}
	logger.Audit().Info("任务入队成功",
		slog.String("task_id", taskID),
		slog.String("agent_id", task.AgentID),
		slog.String("room_id", task.RoomID),
		slog.String("action", task.Action),
		slog.Int("max_retries", task.MaxRetries),
	)
	return task, nil
}

var errNotReady = xerrors.New(xerrors.CodeInitializationFailure, "任务服务未初始化")

func validateSubmit(req SubmitRequest) error {
	if strings.TrimSpace(req.AgentID) == "" {
		return xerrors.New(CodeTaskValidation, "代理 ID 不能为空")
	}
	if strings.TrimSpace(req.Text) == "" && strings.TrimSpace(req.Action) == "" {
		return xerrors.New(CodeTaskValidation, "消息内容不能为空")
	}
	return nil
}

// replay 查找同 ID 的已有任务；不存在时返回 (nil, nil)。
func (s *Service) replay(ctx context.Context, id, agentID string) (*Task, error) {
	existing, err := s.store.Get(ctx, id)
	switch {
	case stdErrors.Is(err, ErrTaskNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	case existing.AgentID != strings.TrimSpace(agentID):
		return nil, xerrors.New(CodeTaskConflict, "任务 ID 已被其他代理使用", xerrors.WithMetadata("task_id", id))
	default:
		return existing, nil
	}
}

func (s *Service) newTask(id string, req SubmitRequest) *Task {
	return &Task{
		ID:         id,
		AgentID:    strings.TrimSpace(req.AgentID),
		RoomID:     strings.TrimSpace(req.RoomID),
		UserID:     strings.TrimSpace(req.UserID),
		Text:       req.Text,
		Action:     strings.TrimSpace(req.Action),
		Status:     StatusPending,
		MaxRetries: s.maxRetries,
	}
}

// Get 返回指定任务的状态。
func (s *Service) Get(ctx context.Context, id string) (*Task, error) {
	if s.store == nil {
		return nil, errNotReady
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的任务列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Task, error) {
	if s.store == nil {
		return nil, errNotReady
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 返回符合过滤条件的任务统计信息。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (TaskStats, error) {
	if s.store == nil {
		return TaskStats{}, errNotReady
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// Close 释放资源。
func (s *Service) Close() error {
	var errs []error
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return stdErrors.Join(errs...)
}

// WaitUntilCompleted 轮询任务状态直到终态或 ctx 结束。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Task, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Done() {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
