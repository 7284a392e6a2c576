package mysql

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const maxMemoriesPerRoom = 512

// FileStore 使用本地 JSON 文件模拟 MySQL 的效果，方便迭代开发。
type FileStore struct {
	mu         sync.RWMutex
	memoryFile string
	cacheFile  string
	memories   map[string][]MemoryRecord
	cache      map[string]string
}

var _ Store = (*FileStore)(nil)

// NewFileStore 在 dataDir 下创建 memories.log 与 cache.json。
func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	store := &FileStore{
		memoryFile: filepath.Join(dataDir, "memories.log"),
		cacheFile:  filepath.Join(dataDir, "cache.json"),
		memories:   make(map[string][]MemoryRecord),
		cache:      make(map[string]string),
	}
	if err := store.loadMemories(); err != nil {
		return nil, err
	}
	if err := store.loadCache(); err != nil {
		return nil, err
	}
	return store, nil
}

func roomKey(agentID, roomID string) string { return agentID + "/" + roomID }

func cacheKey(key, agentID string) string { return agentID + "/" + key }

// SaveMemory 以追加写的方式记录对话记忆。
func (s *FileStore) SaveMemory(_ context.Context, record MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.memoryFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开记忆日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化记忆失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入记忆日志失败: %w", err)
	}

	s.push(record)
	return nil
}

// ListMemories 返回最近的记忆，按时间倒序排列。
func (s *FileStore) ListMemories(_ context.Context, agentID, roomID string, limit int) ([]MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.memories[roomKey(agentID, roomID)]
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	results := make([]MemoryRecord, limit)
	copy(results, records[:limit])
	return results, nil
}

// GetCache 读取缓存值。
func (s *FileStore) GetCache(_ context.Context, key, agentID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.cache[cacheKey(key, agentID)]
	return value, ok, nil
}

// SetCache 写入缓存值并整体落盘。
func (s *FileStore) SetCache(_ context.Context, key, agentID, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[cacheKey(key, agentID)] = value
	return s.flushCache()
}

// DeleteCache 删除缓存值。
func (s *FileStore) DeleteCache(_ context.Context, key, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := cacheKey(key, agentID)
	if _, ok := s.cache[k]; !ok {
		return nil
	}
	delete(s.cache, k)
	return s.flushCache()
}

// Close 文件存储无需释放资源。
func (s *FileStore) Close() error { return nil }

func (s *FileStore) push(record MemoryRecord) {
	key := roomKey(record.AgentID, record.RoomID)
	records := append([]MemoryRecord{record}, s.memories[key]...)
	if len(records) > maxMemoriesPerRoom {
		records = records[:maxMemoriesPerRoom]
	}
	s.memories[key] = records
}

func (s *FileStore) loadMemories() error {
	file, err := os.OpenFile(s.memoryFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取记忆日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var record MemoryRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		s.push(record)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析记忆日志失败: %w", err)
	}
	return nil
}

func (s *FileStore) loadCache() error {
	raw, err := os.ReadFile(s.cacheFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("读取缓存文件失败: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &s.cache); err != nil {
		return fmt.Errorf("解析缓存文件失败: %w", err)
	}
	return nil
}

func (s *FileStore) flushCache() error {
	encoded, err := json.Marshal(s.cache)
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}
	tmp := s.cacheFile + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("写入缓存文件失败: %w", err)
	}
	if err := os.Rename(tmp, s.cacheFile); err != nil {
		return fmt.Errorf("替换缓存文件失败: %w", err)
	}
	return nil
}
