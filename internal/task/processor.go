package task

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"AgentSwap/internal/agent"
	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/observability/alerting"
	"AgentSwap/internal/observability/metrics"
	"AgentSwap/pkg/logger"
)

// Executor 定义了处理器所需的代理能力，由 agent.Directory 实现。
type Executor interface {
	Execute(ctx context.Context, req agent.MessageRequest) (*agent.Result, error)
}

// Processor 负责从队列消费任务并交给代理处理。
type Processor struct {
	executor    Executor
	store       Store
	consumer    Consumer
	producer    Producer
	workerCount int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(executor Executor, store Store, consumer Consumer, producer Producer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executor:    executor,
		store:       store,
		consumer:    consumer,
		producer:    producer,
		workerCount: 1,
		logger:      logger.Named("task"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动任务处理循环，直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置任务消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, taskID string) error {
	if p.store == nil || p.executor == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	task, err := p.store.Claim(ctx, taskID)
	if err != nil {
		if stdErrors.Is(err, ErrTaskNotFound) || stdErrors.Is(err, ErrTaskCompleted) ||
			stdErrors.Is(err, ErrTaskExhausted) || stdErrors.Is(err, ErrTaskConflict) {
			p.logger.Debug("跳过任务", slog.String("task_id", taskID), slog.String("reason", err.Error()))
			return nil
		}
		p.logger.Error("领取任务失败", slog.Any("error", err), slog.String("task_id", taskID))
		p.emitAlert(ctx, &Task{ID: taskID}, CodeTaskProcessing, err, "claim")
		return err
	}

	result, execErr := p.executor.Execute(ctx, agent.MessageRequest{
		AgentID: task.AgentID,
		Message: agent.Message{
			RoomID: task.RoomID,
			UserID: task.UserID,
			Text:   task.Text,
			Action: task.Action,
		},
	})
	if execErr != nil {
		return p.handleExecutionFailure(ctx, task, execErr)
	}

	var record ExecutionResult
	if result != nil {
		record = ExecutionResult{
			MessageID: result.MessageID,
			Text:      result.Text,
			Action:    result.Action,
			Success:   result.Success,
			Content:   cloneContent(result.Content),
		}
	}
	if err := p.store.MarkSucceeded(ctx, task.ID, record); err != nil {
		p.logger.Error("标记任务成功状态失败", slog.Any("error", err), slog.String("task_id", task.ID))
		if storeErr := p.store.MarkFailed(ctx, task.ID, CodeTaskProcessing, err.Error(), true); storeErr != nil {
			return storeErr
		}
		if pubErr := p.producer.Publish(ctx, task.ID); pubErr != nil {
			return xerrors.Wrap(CodeTaskPublish, pubErr, fmt.Sprintf("任务 %s 在标记成功失败后重投失败", task.ID))
		}
		metrics.ObserveTaskRetry()
		return nil
	}
	metrics.ObserveTask(string(StatusSucceeded))
	logger.Audit().Info("任务处理完成",
		slog.String("task_id", task.ID),
		slog.String("agent_id", task.AgentID),
		slog.String("action", record.Action),
		slog.Bool("success", record.Success),
		slog.Int("attempts", task.Attempts),
	)
	return nil
}

func (p *Processor) handleExecutionFailure(ctx context.Context, task *Task, execErr error) error {
	code := xerrors.CodeOf(execErr)
	if code == xerrors.CodeUnknown {
		code = CodeTaskProcessing
	}
	retryable := xerrors.RetryableError(execErr)
	retry := retryable && task.Attempts < task.MaxRetries

	if storeErr := p.store.MarkFailed(ctx, task.ID, code, execErr.Error(), retry); storeErr != nil {
		p.logger.Error("标记任务失败状态出错", slog.Any("error", storeErr), slog.String("task_id", task.ID))
		return storeErr
	}
	logger.Audit().Warn("任务处理失败",
		slog.String("task_id", task.ID),
		slog.String("agent_id", task.AgentID),
		slog.Bool("retry", retry),
		slog.String("error", execErr.Error()),
		slog.String("error_code", string(code)),
		slog.Int("attempts", task.Attempts),
		slog.Int("max_retries", task.MaxRetries),
	)

	if retry {
		if pubErr := p.producer.Publish(ctx, task.ID); pubErr != nil {
			return xerrors.Wrap(CodeTaskPublish, pubErr, fmt.Sprintf("任务 %s 重投失败", task.ID))
		}
		metrics.ObserveTaskRetry()
		p.logger.Debug("任务已重新排队", slog.String("task_id", task.ID), slog.Int("attempts", task.Attempts))
		return nil
	}

	metrics.ObserveTask(string(StatusFailed))
	stage := "non_retryable"
	if retryable {
		stage = "exhausted"
		code = CodeTaskExhausted
	}
	if stage == "exhausted" || xerrors.ShouldAlert(execErr) {
		p.emitAlert(ctx, task, code, execErr, stage)
	}
	return nil
}

func (p *Processor) emitAlert(ctx context.Context, task *Task, code xerrors.Code, cause error, stage string) {
	if p.alerter == nil || task == nil {
		return
	}
	attrs := xerrors.AttributesOf(code)
	message := attrs.Message
	metadata := map[string]string{"stage": stage}
	if cause != nil {
		message = xerrors.MessageOf(cause)
		metadata["cause"] = cause.Error()
	}
	event := alerting.Event{
		Code:       code,
		Message:    message,
		Severity:   attrs.Severity,
		AgentID:    task.AgentID,
		TaskID:     task.ID,
		Attempts:   task.Attempts,
		MaxRetries: task.MaxRetries,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if err := p.alerter.Notify(ctx, event); err != nil {
		p.logger.Error("告警通知失败",
			slog.Any("error", err),
			slog.String("task_id", task.ID),
			slog.String("stage", stage),
		)
	}
}
