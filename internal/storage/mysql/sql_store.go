package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLStore 使用真实的 MySQL 数据库存储记忆与缓存。
type SQLStore struct {
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore 创建连接池并执行内置迁移。
func NewSQLStore(ctx context.Context, cfg Config) (*SQLStore, error) {
	db, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := &SQLStore{db: db}
	if err := store.runMigrations(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// SaveMemory 将记忆写入 MySQL。
func (s *SQLStore) SaveMemory(ctx context.Context, record MemoryRecord) error {
	const stmt = `INSERT INTO memories
    (id, agent_id, room_id, user_id, role, text, action, content, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.AgentID,
		record.RoomID,
		record.UserID,
		record.Role,
		record.Text,
		record.Action,
		record.Content,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("写入记忆失败: %w", err)
	}
	return nil
}

// ListMemories 查询房间最近的若干条记忆。
func (s *SQLStore) ListMemories(ctx context.Context, agentID, roomID string, limit int) ([]MemoryRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, agent_id, room_id, user_id, role, text, action, content, created_at
    FROM memories WHERE agent_id = ? AND room_id = ? ORDER BY created_at DESC LIMIT ?`, agentID, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("查询记忆失败: %w", err)
	}
	defer rows.Close()

	var records []MemoryRecord
	for rows.Next() {
		var record MemoryRecord
		var content sql.NullString
		if err := rows.Scan(&record.ID, &record.AgentID, &record.RoomID, &record.UserID, &record.Role,
			&record.Text, &record.Action, &content, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("解析记忆失败: %w", err)
		}
		record.Content = content.String
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历记忆失败: %w", err)
	}
	return records, nil
}

// GetCache 读取缓存行。
func (s *SQLStore) GetCache(ctx context.Context, key, agentID string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache WHERE cache_key = ? AND agent_id = ?`, key, agentID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("读取缓存失败: %w", err)
	}
	return value, true, nil
}

// SetCache 插入或覆盖缓存行。
func (s *SQLStore) SetCache(ctx context.Context, key, agentID, value string) error {
	const stmt = `INSERT INTO cache (cache_key, agent_id, value, updated_at) VALUES (?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`
	if _, err := s.db.ExecContext(ctx, stmt, key, agentID, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	return nil
}

// DeleteCache 删除缓存行。
func (s *SQLStore) DeleteCache(ctx context.Context, key, agentID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE cache_key = ? AND agent_id = ?`, key, agentID); err != nil {
		return fmt.Errorf("删除缓存失败: %w", err)
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
