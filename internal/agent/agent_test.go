package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"AgentSwap/internal/cache"
	"AgentSwap/internal/character"
	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/llm"
	"AgentSwap/internal/settings"
	"AgentSwap/internal/storage/mysql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	mu       sync.Mutex
	object   string
	err      error
	wait     time.Duration
	requests []llm.Request
}

func (s *stubLLM) GenerateText(ctx context.Context, req llm.Request) (string, error) {
	raw, err := s.GenerateObject(ctx, req)
	return string(raw), err
}

func (s *stubLLM) GenerateObject(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if s.wait > 0 {
		select {
		case <-time.After(s.wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.object), nil
}

func (s *stubLLM) lastContext() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return ""
	}
	return s.requests[len(s.requests)-1].Context
}

type stubAction struct {
	valid   bool
	success bool
	handled int
	state   State
}

func (a *stubAction) Name() string                { return "swap" }
func (a *stubAction) Description() string         { return "Swap tokens on the same chain" }
func (a *stubAction) Similes() []string           { return []string{"TOKEN_SWAP"} }
func (a *stubAction) Examples() [][]ActionExample { return nil }

func (a *stubAction) Validate(context.Context, Runtime, Memory) bool { return a.valid }

func (a *stubAction) Handle(ctx context.Context, rt Runtime, msg Memory, state State, cb Callback) bool {
	a.handled++
	a.state = state
	if cb != nil {
		_ = cb(ctx, Response{Text: "swapped", Content: map[string]any{"success": a.success, "hash": "0xabc"}})
	}
	return a.success
}

func testCharacter() character.Character {
	return character.Character{
		Name:      "Trader",
		Bio:       character.Lines{"Trades tokens."},
		Knowledge: character.Lines{"Base chain id is 8453."},
		Settings:  character.Settings{Secrets: map[string]string{"EVM_PRIVATE_KEY": "0xkey"}},
	}
}

func newTestRuntime(t *testing.T, client llm.Client, opts ...Option) (*AgentRuntime, *mysql.FileStore) {
	t.Helper()
	store, err := mysql.NewFileStore(t.TempDir())
	require.NoError(t, err)
	adapter, err := cache.NewFilesystemAdapter(t.TempDir())
	require.NoError(t, err)

	base := []Option{
		WithMemoryRepository(store),
		WithCache(cache.NewManager(adapter)),
		WithSettingSources(settings.Secrets(map[string]string{"EVM_PRIVATE_KEY": "0xkey"})),
	}
	rt, err := New(testCharacter(), client, append(base, opts...)...)
	require.NoError(t, err)
	return rt, store
}

func TestComposeContext(t *testing.T) {
	out := ComposeContext(State{"agentName": "Trader", "chain": "base"}, "{{agentName}} on {{ chain }} {{missing}}!")
	assert.Equal(t, "Trader on base !", out)
}

func TestProcessMessageRunsSelectedAction(t *testing.T) {
	client := &stubLLM{object: `{"text":"On it","action":"TOKEN_SWAP"}`}
	action := &stubAction{valid: true, success: true}
	rt, store := newTestRuntime(t, client, WithActions(action))

	result, err := rt.ProcessMessage(context.Background(), Message{RoomID: "room", UserID: "alice", Text: "swap 1 ETH to USDC on base"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "swap", result.Action)
	assert.Equal(t, "swapped", result.Text)
	assert.Equal(t, "0xabc", result.Content["hash"])
	assert.Equal(t, 1, action.handled)
	assert.Equal(t, "swap 1 ETH to USDC on base", action.state[KeyCurrentMessage])
	assert.Contains(t, action.state[KeyKnowledge], "Base chain id is 8453.")
	assert.Contains(t, client.lastContext(), "swap: Swap tokens on the same chain")

	records, err := store.ListMemories(context.Background(), rt.AgentID(), "room", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, string(RoleAssistant), records[0].Role)
	assert.JSONEq(t, `{"success":true,"hash":"0xabc"}`, records[0].Content)
	assert.Equal(t, "alice", records[1].UserID)
}

func TestProcessMessageIncludesRecentMessages(t *testing.T) {
	client := &stubLLM{object: `{"text":"hello","action":"NONE"}`}
	rt, _ := newTestRuntime(t, client)
	ctx := context.Background()

	first, err := rt.ProcessMessage(ctx, Message{RoomID: "room", UserID: "bob", Text: "hi"})
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Empty(t, first.Action)
	assert.Equal(t, "hello", first.Text)

	_, err = rt.ProcessMessage(ctx, Message{RoomID: "room", UserID: "bob", Text: "again"})
	require.NoError(t, err)

	prompt := client.lastContext()
	assert.Contains(t, prompt, "bob: hi\nTrader: hello")
	assert.Contains(t, prompt, `"again"`)
}

func TestProcessMessageExplicitAction(t *testing.T) {
	client := &stubLLM{}
	action := &stubAction{valid: true, success: false}
	rt, _ := newTestRuntime(t, client, WithActions(action))

	result, err := rt.ProcessMessage(context.Background(), Message{Text: "swap", Action: "swap"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "swapped", result.Text)
	assert.Empty(t, client.requests)

	_, err = rt.ProcessMessage(context.Background(), Message{Text: "x", Action: "bridge"})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestProcessMessageValidationFailure(t *testing.T) {
	action := &stubAction{valid: false}
	rt, _ := newTestRuntime(t, &stubLLM{}, WithActions(action))

	result, err := rt.ProcessMessage(context.Background(), Message{Text: "swap", Action: "TOKEN_SWAP"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0, action.handled)
	assert.True(t, strings.HasPrefix(result.Text, "swap is not available"))
}

func TestProcessMessageRejectsEmptyText(t *testing.T) {
	rt, _ := newTestRuntime(t, &stubLLM{})
	_, err := rt.ProcessMessage(context.Background(), Message{Text: "  "})
	assert.Equal(t, xerrors.CodeInvalidArgument, xerrors.CodeOf(err))
}

func TestGenerateObjectTimeout(t *testing.T) {
	rt, _ := newTestRuntime(t, &stubLLM{wait: 50 * time.Millisecond}, WithLLMTimeout(10*time.Millisecond))

	_, err := rt.ProcessMessage(context.Background(), Message{Text: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, xerrors.CodeTimeout, xerrors.CodeOf(err))
}

func TestGenerateObjectPreservesRetryable(t *testing.T) {
	upstream := xerrors.New(xerrors.CodeUpstreamFailure, "rate limited", xerrors.WithRetryable(true))
	rt, _ := newTestRuntime(t, &stubLLM{err: upstream})

	_, err := rt.GenerateObject(context.Background(), llm.Request{Context: "x"})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeExecutorFailure, xerrors.CodeOf(err))
	assert.True(t, xerrors.RetryableError(err))

	noLLM, err := New(testCharacter(), nil)
	require.NoError(t, err)
	_, err = noLLM.GenerateObject(context.Background(), llm.Request{})
	assert.Equal(t, xerrors.CodeInitializationFailure, xerrors.CodeOf(err))
}

func TestRegisterActionRejectsDuplicates(t *testing.T) {
	rt, _ := newTestRuntime(t, &stubLLM{}, WithActions(&stubAction{}))
	err := rt.RegisterAction(&stubAction{})
	assert.Equal(t, xerrors.CodeConflict, xerrors.CodeOf(err))

	_, ok := rt.FindAction("token_swap")
	assert.True(t, ok)
	_, ok = rt.FindAction("bridge")
	assert.False(t, ok)
}

func TestGetSettingUsesSourceOrder(t *testing.T) {
	rt, err := New(testCharacter(), nil, WithSettingSources(
		settings.FromMap("first", map[string]string{"A": ""}),
		settings.FromMap("second", map[string]string{"A": "2", "B": "b"}),
	))
	require.NoError(t, err)
	assert.Equal(t, "2", rt.GetSetting("A"))
	assert.Equal(t, "b", rt.GetSetting("B"))
	assert.Equal(t, "", rt.GetSetting("C"))
}

func TestDirectoryRoutesByIDAndName(t *testing.T) {
	client := &stubLLM{object: `{"text":"hey","action":"NONE"}`}
	rt, _ := newTestRuntime(t, client, WithActions(&stubAction{}))

	dir := NewDirectory()
	require.NoError(t, dir.Register(rt))
	assert.Equal(t, xerrors.CodeConflict, xerrors.CodeOf(dir.Register(rt)))

	_, ok := dir.Lookup("trader")
	assert.True(t, ok)

	list := dir.List()
	require.Len(t, list, 1)
	assert.Equal(t, []string{"swap"}, list[0].Actions)

	result, err := dir.Execute(context.Background(), MessageRequest{AgentID: rt.AgentID(), Message: Message{Text: "yo"}})
	require.NoError(t, err)
	assert.Equal(t, "hey", result.Text)

	_, err = dir.Execute(context.Background(), MessageRequest{AgentID: "missing", Message: Message{Text: "yo"}})
	assert.Equal(t, xerrors.CodeNotFound, xerrors.CodeOf(err))
}

type flakyMemories struct {
	*mysql.FileStore
	failFrom int
	saves    int
}

func (f *flakyMemories) SaveMemory(ctx context.Context, record mysql.MemoryRecord) error {
	f.saves++
	if f.saves >= f.failFrom {
		return errors.New("disk full")
	}
	return f.FileStore.SaveMemory(ctx, record)
}

func TestProcessMessageKeepsActionResultWhenReplyNotSaved(t *testing.T) {
	store, err := mysql.NewFileStore(t.TempDir())
	require.NoError(t, err)
	repo := &flakyMemories{FileStore: store, failFrom: 2}
	action := &stubAction{valid: true, success: true}
	rt, err := New(testCharacter(), &stubLLM{}, WithMemoryRepository(repo), WithActions(action))
	require.NoError(t, err)

	result, err := rt.ProcessMessage(context.Background(), Message{RoomID: "room", Text: "swap 1 ETH", Action: "swap"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "0xabc", result.Content["hash"])
	assert.Equal(t, 1, action.handled)
	assert.Equal(t, 2, repo.saves)
}

func TestProcessMessageStorageFailureBeforeActionIsRetryable(t *testing.T) {
	store, err := mysql.NewFileStore(t.TempDir())
	require.NoError(t, err)
	repo := &flakyMemories{FileStore: store, failFrom: 1}
	action := &stubAction{valid: true, success: true}
	rt, err := New(testCharacter(), &stubLLM{}, WithMemoryRepository(repo), WithActions(action))
	require.NoError(t, err)

	_, err = rt.ProcessMessage(context.Background(), Message{RoomID: "room", Text: "swap 1 ETH", Action: "swap"})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeStorageFailure, xerrors.CodeOf(err))
	assert.True(t, xerrors.RetryableError(err))
	assert.Equal(t, 0, action.handled)
}

func TestProcessMessageStateIncludesCurrentMessage(t *testing.T) {
	action := &stubAction{valid: true, success: true}
	rt, _ := newTestRuntime(t, &stubLLM{}, WithActions(action))

	_, err := rt.ProcessMessage(context.Background(), Message{RoomID: "fresh", UserID: "carol", Text: "swap 3 USDC to ETH", Action: "swap"})
	require.NoError(t, err)
	assert.Equal(t, "carol: swap 3 USDC to ETH (swap)", action.state[KeyRecentMessages])
}
