package task

import (
	xerrors "AgentSwap/internal/errors"
)

// Status 表示任务在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ExecutionResult 保存代理处理消息后的回复。
type ExecutionResult struct {
	MessageID string         `json:"message_id,omitempty"`
	Text      string         `json:"text"`
	Action    string         `json:"action,omitempty"`
	Success   bool           `json:"success"`
	Content   map[string]any `json:"content,omitempty"`
}

// Task 描述一条排队等待代理处理的消息。
type Task struct {
	ID         string           `json:"id"`
	AgentID    string           `json:"agent_id"`
	RoomID     string           `json:"room_id,omitempty"`
	UserID     string           `json:"user_id,omitempty"`
	Text       string           `json:"text"`
	Action     string           `json:"action,omitempty"`
	Status     Status           `json:"status"`
	Attempts   int              `json:"attempts"`
	MaxRetries int              `json:"max_retries"`
	LastError  string           `json:"last_error,omitempty"`
	ErrorCode  string           `json:"error_code,omitempty"`
	Result     *ExecutionResult `json:"result,omitempty"`
	CreatedAt  int64            `json:"created_at"`
	UpdatedAt  int64            `json:"updated_at"`
}

// Done 判断任务是否已到达终态。
func (t *Task) Done() bool {
	if t == nil {
		return false
	}
	return t.Status == StatusSucceeded || t.Status == StatusFailed
}

const (
	CodeTaskNotFound   xerrors.Code = "TASK_NOT_FOUND"
	CodeTaskConflict   xerrors.Code = "TASK_CONFLICT"
	CodeTaskCompleted  xerrors.Code = "TASK_COMPLETED"
	CodeTaskExhausted  xerrors.Code = "TASK_RETRIES_EXHAUSTED"
	CodeTaskValidation xerrors.Code = "TASK_VALIDATION_FAILED"
	CodeTaskPublish    xerrors.Code = "TASK_PUBLISH_FAILED"
	CodeTaskProcessing xerrors.Code = "TASK_PROCESSING_FAILED"
)

func init() {
	xerrors.Register(CodeTaskNotFound, xerrors.Attributes{Message: "task not found", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeTaskConflict, xerrors.Attributes{Message: "task conflict", Severity: xerrors.SeverityWarning})
	xerrors.Register(CodeTaskCompleted, xerrors.Attributes{Message: "task already completed", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeTaskExhausted, xerrors.Attributes{Message: "task retries exhausted", Severity: xerrors.SeverityCritical, Alert: true})
	xerrors.Register(CodeTaskValidation, xerrors.Attributes{Message: "task validation failed", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeTaskPublish, xerrors.Attributes{Message: "failed to publish task", Severity: xerrors.SeverityCritical, Retryable: true, Alert: true})
	xerrors.Register(CodeTaskProcessing, xerrors.Attributes{Message: "task execution failed", Severity: xerrors.SeverityWarning, Retryable: true, Alert: true})
}

var (
	// ErrTaskNotFound 表示指定的任务不存在。
	ErrTaskNotFound = xerrors.New(CodeTaskNotFound, "task not found")
	// ErrTaskConflict 表示任务在当前状态下无法进行所请求的操作。
	ErrTaskConflict = xerrors.New(CodeTaskConflict, "task conflict")
	// ErrTaskCompleted 表示任务已经成功完成。
	ErrTaskCompleted = xerrors.New(CodeTaskCompleted, "task already completed")
	// ErrTaskExhausted 表示任务的重试次数已经耗尽。
	ErrTaskExhausted = xerrors.New(CodeTaskExhausted, "task retries exhausted")
)

// IsValidStatus 检查给定的任务状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneContent(content map[string]any) map[string]any {
	if content == nil {
		return nil
	}
	cloned := make(map[string]any, len(content))
	for key, value := range content {
		cloned[key] = value
	}
	return cloned
}

func cloneTask(task *Task) *Task {
	clone := *task
	if task.Result != nil {
		result := *task.Result
		result.Content = cloneContent(task.Result.Content)
		clone.Result = &result
	}
	return &clone
}

// IsCode 判断错误是否带有指定错误码。
func IsCode(err error, code xerrors.Code) bool {
	return err != nil && xerrors.CodeOf(err) == code
}
