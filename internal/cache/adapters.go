package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"AgentSwap/internal/storage/mysql"

	"github.com/redis/go-redis/v9"
)

// RedisAdapter stores entries under <prefix><agentID>/<key>.
type RedisAdapter struct {
	client *redis.Client
	prefix string
}

// NewRedisAdapter scopes client to agentID.
func NewRedisAdapter(client *redis.Client, prefix, agentID string) *RedisAdapter {
	return &RedisAdapter{client: client, prefix: prefix + agentID + "/"}
}

func (a *RedisAdapter) key(k string) string { return a.prefix + k }

func (a *RedisAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := a.client.Get(ctx, a.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (a *RedisAdapter) Set(ctx context.Context, key, value string) error {
	if err := a.client.Set(ctx, a.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// DatabaseAdapter stores entries in the cache table.
type DatabaseAdapter struct {
	repo    mysql.CacheRepository
	agentID string
}

// NewDatabaseAdapter scopes repo to agentID.
func NewDatabaseAdapter(repo mysql.CacheRepository, agentID string) *DatabaseAdapter {
	return &DatabaseAdapter{repo: repo, agentID: agentID}
}

func (a *DatabaseAdapter) Get(ctx context.Context, key string) (string, bool, error) {
	return a.repo.GetCache(ctx, key, a.agentID)
}

func (a *DatabaseAdapter) Set(ctx context.Context, key, value string) error {
	return a.repo.SetCache(ctx, key, a.agentID, value)
}

func (a *DatabaseAdapter) Delete(ctx context.Context, key string) error {
	return a.repo.DeleteCache(ctx, key, a.agentID)
}

// FilesystemAdapter keeps one file per key below dir.
type FilesystemAdapter struct {
	dir string
}

// NewFilesystemAdapter creates dir if needed.
func NewFilesystemAdapter(dir string) (*FilesystemAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FilesystemAdapter{dir: dir}, nil
}

func (a *FilesystemAdapter) path(key string) string {
	clean := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(a.dir, clean)
}

func (a *FilesystemAdapter) Get(_ context.Context, key string) (string, bool, error) {
	raw, err := os.ReadFile(a.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read cache file %s: %w", key, err)
	}
	return string(raw), true, nil
}

func (a *FilesystemAdapter) Set(_ context.Context, key, value string) error {
	if err := os.WriteFile(a.path(key), []byte(value), 0o644); err != nil {
		return fmt.Errorf("write cache file %s: %w", key, err)
	}
	return nil
}

func (a *FilesystemAdapter) Delete(_ context.Context, key string) error {
	if err := os.Remove(a.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache file %s: %w", key, err)
	}
	return nil
}
