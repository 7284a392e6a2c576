package swap

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"AgentSwap/internal/agent"
	"AgentSwap/internal/character"
	"AgentSwap/internal/lifi"
	"AgentSwap/internal/llm"
	"AgentSwap/internal/settings"
	"AgentSwap/internal/storage/mysql"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLLM struct {
	mu       sync.Mutex
	object   string
	contexts []string
}

func (l *recordingLLM) GenerateText(ctx context.Context, req llm.Request) (string, error) {
	raw, err := l.GenerateObject(ctx, req)
	return string(raw), err
}

func (l *recordingLLM) GenerateObject(_ context.Context, req llm.Request) (json.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.contexts = append(l.contexts, req.Context)
	return json.RawMessage(l.object), nil
}

func newAgentRuntime(t *testing.T, client llm.Client, action agent.Action) *agent.AgentRuntime {
	t.Helper()
	store, err := mysql.NewFileStore(t.TempDir())
	require.NoError(t, err)
	rt, err := agent.New(character.Character{Name: "Trader"}, client,
		agent.WithMemoryRepository(store),
		agent.WithSettingSources(settings.Secrets(map[string]string{PrivateKeySetting: testKey})),
		agent.WithActions(action),
	)
	require.NoError(t, err)
	return rt
}

func TestAgentRuntimeSwapPromptCarriesRequest(t *testing.T) {
	client := &recordingLLM{object: scenarioObject}
	router := &fakeRouter{
		routes:  oneRoute(),
		process: &lifi.Process{Type: lifi.ProcessSwap, Status: lifi.StatusDone, TxHash: "0xabc"},
	}
	rt := newAgentRuntime(t, client, NewAction(walletFactory(newFakeWallet()), router))
	ctx := context.Background()

	result, err := rt.ProcessMessage(ctx, agent.Message{RoomID: "r1", Text: "Swap 1 ETH for USDC on Base", Action: ActionName})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "0xabc", result.Content["hash"])
	require.Len(t, client.contexts, 1)

	_, body, found := strings.Cut(client.contexts[0], "wallet information below:")
	require.True(t, found)
	assert.Contains(t, body, "Swap 1 ETH for USDC on Base")

	_, err = rt.ProcessMessage(ctx, agent.Message{RoomID: "r1", Text: "Now swap 2 ETH for USDC on Base", Action: ActionName})
	require.NoError(t, err)
	require.Len(t, client.contexts, 2)
	assert.Contains(t, client.contexts[1], "Now swap 2 ETH for USDC on Base")
	assert.Equal(t, 2, router.executions)
}
