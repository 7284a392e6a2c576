package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"AgentSwap/pkg/logger"
)

// ErrDisabled is returned by Register when configuration disables the plugin.
var ErrDisabled = errors.New("plugin disabled by configuration")

// Manager keeps track of registered plugins and orchestrates their lifecycle.
type Manager struct {
	mu        sync.RWMutex
	registry  map[string]*instance
	configs   map[string]PluginConfig
	resources map[string]any
	logger    *slog.Logger
}

type instance struct {
	mu     sync.Mutex
	Plugin Plugin
	Info   Info
	State  State
	Config map[string]any
}

// NewManager constructs a manager using the supplied configuration and options.
func NewManager(cfg ManagerConfig, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		registry:  make(map[string]*instance),
		configs:   make(map[string]PluginConfig, len(cfg.Plugins)),
		resources: make(map[string]any),
		logger:    logger.Named("plugin"),
	}
	for id, pluginCfg := range cfg.Plugins {
		m.configs[id] = pluginCfg
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Register registers a plugin instance under its Info ID. The configured block,
// if any, is merged over defaults before Configure is called.
func (m *Manager) Register(p Plugin, defaults map[string]any) error {
	if p == nil {
		return errors.New("plugin implementation cannot be nil")
	}
	info := p.Info()
	if info.ID == "" {
		return errors.New("plugin id cannot be empty")
	}
	block, configured := m.configs[info.ID]
	if configured && !block.IsEnabled() {
		return fmt.Errorf("register plugin %s: %w", info.ID, ErrDisabled)
	}
	cfg := cloneConfig(defaults)
	for k, v := range block.Config {
		cfg[k] = v
	}
	if err := p.Configure(cfg); err != nil {
		return fmt.Errorf("configure plugin %s: %w", info.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.registry[info.ID]; exists {
		return fmt.Errorf("plugin %s already registered", info.ID)
	}
	m.registry[info.ID] = &instance{Plugin: p, Info: info, State: StateRegistered, Config: cfg}
	return nil
}

// Lookup returns the registered plugin with the given id.
func (m *Manager) Lookup(id string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.registry[id]
	if !ok {
		return nil, false
	}
	return inst.Plugin, true
}

// IDs returns the registered plugin ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.registry))
	for id := range m.registry {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Start initialises and starts a plugin by id.
func (m *Manager) Start(ctx context.Context, id string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.State == StateStarted {
		return nil
	}
	if inst.State == StateRegistered {
		if err := inst.Plugin.Init(m.execContext(ctx, id, inst)); err != nil {
			return fmt.Errorf("initialise plugin %s: %w", id, err)
		}
		inst.State = StateInitialised
	}
	if err := inst.Plugin.Start(m.execContext(ctx, id, inst)); err != nil {
		return fmt.Errorf("start plugin %s: %w", id, err)
	}
	inst.State = StateStarted
	m.logger.Debug("plugin started", slog.String("plugin", id), slog.String("version", inst.Info.Version))
	return nil
}

// Stop halts a plugin if it is running.
func (m *Manager) Stop(ctx context.Context, id string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.State != StateStarted {
		return nil
	}
	if err := inst.Plugin.Stop(m.execContext(ctx, id, inst)); err != nil {
		return fmt.Errorf("stop plugin %s: %w", id, err)
	}
	inst.State = StateStopped
	return nil
}

func (m *Manager) execContext(ctx context.Context, id string, inst *instance) *ExecutionContext {
	return newExecutionContext(ctx, id, inst.Config, m.resources, m.logger)
}

// StartAll starts all registered plugins in id order.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, id := range m.IDs() {
		if err := m.Start(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// StopAll stops all active plugins in reverse id order and joins the errors.
func (m *Manager) StopAll(ctx context.Context) error {
	ids := m.IDs()
	var errs []error
	for i := len(ids) - 1; i >= 0; i-- {
		errs = append(errs, m.Stop(ctx, ids[i]))
	}
	return errors.Join(errs...)
}

// State returns the lifecycle state of a plugin.
func (m *Manager) State(id string) (State, error) {
	inst, err := m.get(id)
	if err != nil {
		return "", err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.State, nil
}

func (m *Manager) get(id string) (*instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.registry[id]
	if !ok {
		return nil, fmt.Errorf("plugin %s not registered", id)
	}
	return inst, nil
}

func cloneConfig(cfg map[string]any) map[string]any {
	cp := make(map[string]any, len(cfg))
	for k, v := range cfg {
		cp[k] = v
	}
	return cp
}
