package agent

import (
	"context"
	"encoding/json"

	"AgentSwap/internal/character"
	"AgentSwap/internal/llm"
)

// Role 表示记忆的发言方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content 为一条记忆的内容，Data 保存动作回调的结构化结果。
type Content struct {
	Text   string         `json:"text"`
	Action string         `json:"action,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Memory 是房间内的一条对话记录。
type Memory struct {
	ID        string  `json:"id"`
	AgentID   string  `json:"agent_id"`
	RoomID    string  `json:"room_id"`
	UserID    string  `json:"user_id"`
	Role      Role    `json:"role"`
	Content   Content `json:"content"`
	CreatedAt int64   `json:"created_at"`
}

// Response 是动作通过回调上报给调用方的结果。
type Response struct {
	Text    string         `json:"text"`
	Content map[string]any `json:"content,omitempty"`
}

// Callback 接收动作结果，可以为 nil。
type Callback func(ctx context.Context, resp Response) error

// ActionExample 是动作示例对话中的一句。
type ActionExample struct {
	User   string `json:"user"`
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
}

// Action 是可注册到运行时的插件动作。
type Action interface {
	Name() string
	Description() string
	Similes() []string
	Examples() [][]ActionExample
	// Validate 判断当前运行时是否具备执行条件。
	Validate(ctx context.Context, rt Runtime, msg Memory) bool
	// Handle 执行动作并通过 cb 上报结果，仅在端到端成功时返回 true。
	Handle(ctx context.Context, rt Runtime, msg Memory, state State, cb Callback) bool
}

// Runtime 是动作可见的运行时能力。
type Runtime interface {
	AgentID() string
	Character() *character.Character
	GetSetting(key string) string
	ComposeState(ctx context.Context, msg Memory) (State, error)
	GenerateObject(ctx context.Context, req llm.Request) (json.RawMessage, error)
}

// Message 为一条待处理的用户消息。Action 非空时跳过模型选择直接执行该动作。
type Message struct {
	RoomID string `json:"room_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
}

// MessageRequest 指定处理消息的代理。
type MessageRequest struct {
	AgentID string
	Message
}

// Result 汇总一次消息处理的结果。
type Result struct {
	MessageID string         `json:"message_id"`
	Text      string         `json:"text"`
	Action    string         `json:"action,omitempty"`
	Success   bool           `json:"success"`
	Content   map[string]any `json:"content,omitempty"`
}
