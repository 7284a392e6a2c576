package mysql

import (
	"context"
	"fmt"
	"strings"
)

// MemoryRecord 表示一条对话记忆的落库结构。Content 保存动作回调的 JSON 内容。
type MemoryRecord struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Action    string `json:"action,omitempty"`
	Content   string `json:"content,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// MemoryRepository 抽象对话记忆的持久化接口。
type MemoryRepository interface {
	SaveMemory(ctx context.Context, record MemoryRecord) error
	// ListMemories 按时间倒序返回某个房间最近的记忆。
	ListMemories(ctx context.Context, agentID, roomID string, limit int) ([]MemoryRecord, error)
}

// CacheRepository 以 (key, agentID) 为主键保存缓存值。
type CacheRepository interface {
	GetCache(ctx context.Context, key, agentID string) (string, bool, error)
	SetCache(ctx context.Context, key, agentID, value string) error
	DeleteCache(ctx context.Context, key, agentID string) error
}

// Store 聚合运行时需要的全部仓库。
type Store interface {
	MemoryRepository
	CacheRepository
	Close() error
}

// Open 根据驱动名称创建存储实现。
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewFileStore(cfg.DataDir)
	case "mysql":
		return NewSQLStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("暂不支持的存储驱动: %s", cfg.Driver)
	}
}
