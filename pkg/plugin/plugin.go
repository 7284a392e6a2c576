package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
)

// Plugin is implemented by every component the manager drives. Calls for
// one plugin are serialised; Init runs at most once.
type Plugin interface {
	Info() Info
	// Configure receives defaults merged with the YAML block and may reject
	// or normalise it before Init.
	Configure(cfg map[string]any) error
	Init(ctx *ExecutionContext) error
	Start(ctx *ExecutionContext) error
	Stop(ctx *ExecutionContext) error
}

// ExecutionContext is handed to each lifecycle call. Config and Resources
// are private copies owned by the callee.
type ExecutionContext struct {
	C         context.Context
	Config    map[string]any
	Resources map[string]any
	Logger    *slog.Logger
}

func newExecutionContext(ctx context.Context, id string, cfg, resources map[string]any, logger *slog.Logger) *ExecutionContext {
	return &ExecutionContext{
		C:         ctx,
		Config:    maps.Clone(cfg),
		Resources: maps.Clone(resources),
		Logger:    logger.With(slog.String("plugin", id)),
	}
}

// Resource returns the host resource registered under key.
func (c *ExecutionContext) Resource(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.Resources[key]
	return v, ok
}

// ResourceAs returns the resource under key asserted to T. A missing key
// yields ok=false; a present value of another type is an error.
func ResourceAs[T any](c *ExecutionContext, key string) (value T, ok bool, err error) {
	raw, found := c.Resource(key)
	if !found {
		return value, false, nil
	}
	value, ok = raw.(T)
	if !ok {
		return value, false, fmt.Errorf("resource %s has type %T, want %T", key, raw, value)
	}
	return value, true, nil
}

// Option configures a Manager.
type Option func(*Manager)

// WithResource shares value with every plugin under key. Empty keys and nil
// values are ignored.
func WithResource(key string, value any) Option {
	return func(m *Manager) {
		if key == "" || value == nil {
			return
		}
		if m.resources == nil {
			m.resources = make(map[string]any)
		}
		m.resources[key] = value
	}
}

// WithLogger sets the logger passed to plugins, tagged with their id.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}
