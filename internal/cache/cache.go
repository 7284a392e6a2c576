// Package cache provides the key/value cache used by agent runtimes. The
// backing store is selected per process: redis, the database cache table, or
// a directory of files.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/storage/mysql"

	"github.com/redis/go-redis/v9"
)

// Store names accepted by Open.
const (
	StoreRedis      = "redis"
	StoreDatabase   = "database"
	StoreFilesystem = "filesystem"
)

// CodeInvalidStore marks an unknown or unconfigured cache store.
const CodeInvalidStore xerrors.Code = "CACHE_INVALID_STORE"

func init() {
	xerrors.Register(CodeInvalidStore, xerrors.Attributes{
		Message:  "invalid cache store",
		Severity: xerrors.SeverityCritical,
	})
}

// Adapter is a string key/value store scoped to one agent.
type Adapter interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Deps carries the shared backends an adapter may be built on.
type Deps struct {
	Redis    *redis.Client
	Database mysql.CacheRepository
	Dir      string
	Prefix   string
}

// Open returns the adapter for store scoped to agentID.
func Open(store, agentID string, deps Deps) (Adapter, error) {
	switch strings.ToLower(strings.TrimSpace(store)) {
	case StoreRedis:
		if deps.Redis != nil {
			return NewRedisAdapter(deps.Redis, deps.Prefix, agentID), nil
		}
	case StoreDatabase:
		if deps.Database != nil {
			return NewDatabaseAdapter(deps.Database, agentID), nil
		}
	case StoreFilesystem:
		if strings.TrimSpace(deps.Dir) != "" {
			return NewFilesystemAdapter(deps.Dir)
		}
	}
	return nil, xerrors.New(CodeInvalidStore,
		fmt.Sprintf("Invalid cache store: %s or required configuration missing.", store),
		xerrors.WithMetadata("store", store))
}

// Manager adds JSON helpers on top of an Adapter.
type Manager struct {
	adapter Adapter
}

// NewManager wraps adapter.
func NewManager(adapter Adapter) *Manager {
	return &Manager{adapter: adapter}
}

// Get reads a raw value.
func (m *Manager) Get(ctx context.Context, key string) (string, bool, error) {
	return m.adapter.Get(ctx, key)
}

// Set writes a raw value.
func (m *Manager) Set(ctx context.Context, key, value string) error {
	return m.adapter.Set(ctx, key, value)
}

// Delete removes key. Missing keys are not an error.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.adapter.Delete(ctx, key)
}

// GetJSON decodes the value stored at key into out.
func (m *Manager) GetJSON(ctx context.Context, key string, out any) (bool, error) {
	raw, ok, err := m.adapter.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value and stores it at key.
func (m *Manager) SetJSON(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return m.adapter.Set(ctx, key, string(encoded))
}

// RedisConfig describes a redis connection. URL wins over Address.
type RedisConfig struct {
	Address  string
	URL      string
	Password string
	DB       int
}

// NewRedisClient dials redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	if url := strings.TrimSpace(cfg.URL); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		if strings.TrimSpace(cfg.Address) == "" {
			return nil, errors.New("redis address is empty")
		}
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}
