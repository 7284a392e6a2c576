package plugin

import (
	"context"
	"errors"
	"testing"

	"AgentSwap/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPlugin struct {
	id       string
	cfg      map[string]any
	calls    []string
	startErr error
	resource any
}

func (p *recordingPlugin) Info() Info { return Info{ID: p.id, Name: p.id} }

func (p *recordingPlugin) Configure(cfg map[string]any) error {
	p.cfg = cfg
	p.calls = append(p.calls, "configure")
	return nil
}

func (p *recordingPlugin) Init(ctx *ExecutionContext) error {
	p.resource, _ = ctx.Resource("shared")
	p.calls = append(p.calls, "init")
	return nil
}

func (p *recordingPlugin) Start(*ExecutionContext) error {
	p.calls = append(p.calls, "start")
	return p.startErr
}

func (p *recordingPlugin) Stop(*ExecutionContext) error {
	p.calls = append(p.calls, "stop")
	return nil
}

func TestManagerLifecycle(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{}, WithResource("shared", "value"))
	require.NoError(t, err)

	p := &recordingPlugin{id: "evm"}
	require.NoError(t, mgr.Register(p, map[string]any{"fee": 0.02}))

	state, err := mgr.State("evm")
	require.NoError(t, err)
	assert.Equal(t, StateRegistered, state)

	require.NoError(t, mgr.StartAll(context.Background()))
	require.NoError(t, mgr.Start(context.Background(), "evm"))
	require.NoError(t, mgr.StopAll(context.Background()))

	state, err = mgr.State("evm")
	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)
	assert.Equal(t, []string{"configure", "init", "start", "stop"}, p.calls)
	assert.Equal(t, "value", p.resource)

	found, ok := mgr.Lookup("evm")
	assert.True(t, ok)
	assert.Same(t, p, found)
}

func TestManagerMergesConfiguredBlock(t *testing.T) {
	cfg, err := ParseManagerConfig([]byte(`
plugins:
  evm:
    config:
      integrator: custom
  disabled:
    enabled: false
`))
	require.NoError(t, err)
	mgr, err := NewManager(cfg)
	require.NoError(t, err)

	p := &recordingPlugin{id: "evm"}
	require.NoError(t, mgr.Register(p, map[string]any{"integrator": "default", "fee": 0.02}))
	assert.Equal(t, "custom", p.cfg["integrator"])
	assert.Equal(t, 0.02, p.cfg["fee"])

	err = mgr.Register(&recordingPlugin{id: "disabled"}, nil)
	assert.True(t, errors.Is(err, ErrDisabled))
	assert.Equal(t, []string{"evm"}, mgr.IDs())
}

func TestManagerRejectsDuplicatesAndUnknown(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	require.NoError(t, mgr.Register(&recordingPlugin{id: "evm"}, nil))
	assert.Error(t, mgr.Register(&recordingPlugin{id: "evm"}, nil))
	assert.Error(t, mgr.Register(&recordingPlugin{}, nil))
	assert.Error(t, mgr.Start(context.Background(), "missing"))
}

func TestManagerStartFailureKeepsPluginInitialised(t *testing.T) {
	mgr, err := NewManager(ManagerConfig{})
	require.NoError(t, err)
	p := &recordingPlugin{id: "evm", startErr: errors.New("boom")}
	require.NoError(t, mgr.Register(p, nil))

	require.Error(t, mgr.StartAll(context.Background()))
	state, err := mgr.State("evm")
	require.NoError(t, err)
	assert.Equal(t, StateInitialised, state)
}

func TestResourceAs(t *testing.T) {
	ctx := newExecutionContext(context.Background(), "p", nil, map[string]any{"n": 3, "s": "x"}, logger.Discard())

	n, ok, err := ResourceAs[int](ctx, "n")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok, err = ResourceAs[int](ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ResourceAs[int](ctx, "s")
	assert.Error(t, err)
}
