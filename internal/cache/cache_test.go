package cache

import (
	"context"
	"testing"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/storage/mysql"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsStore(t *testing.T) {
	store, err := mysql.NewFileStore(t.TempDir())
	require.NoError(t, err)

	adapter, err := Open("database", "agent", Deps{Database: store})
	require.NoError(t, err)
	assert.IsType(t, &DatabaseAdapter{}, adapter)

	adapter, err = Open("FILESYSTEM", "agent", Deps{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FilesystemAdapter{}, adapter)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	adapter, err = Open("redis", "agent", Deps{Redis: client, Prefix: "p:"})
	require.NoError(t, err)
	assert.Equal(t, "p:agent/k", adapter.(*RedisAdapter).key("k"))
}

func TestOpenRejectsMissingConfiguration(t *testing.T) {
	for _, store := range []string{"redis", "database", "filesystem", "memcached"} {
		_, err := Open(store, "agent", Deps{})
		require.Error(t, err, store)
		assert.Equal(t, CodeInvalidStore, xerrors.CodeOf(err))
		assert.Contains(t, err.Error(), "Invalid cache store: "+store)
	}
}

func TestManagerJSONRoundTripOnFilesystem(t *testing.T) {
	adapter, err := NewFilesystemAdapter(t.TempDir())
	require.NoError(t, err)
	mgr := NewManager(adapter)
	ctx := context.Background()

	type entry struct {
		Text string `json:"text"`
	}

	var got []entry
	ok, err := mgr.GetJSON(ctx, "room/recent", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mgr.SetJSON(ctx, "room/recent", []entry{{Text: "hi"}}))
	ok, err = mgr.GetJSON(ctx, "room/recent", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []entry{{Text: "hi"}}, got)

	require.NoError(t, mgr.Delete(ctx, "room/recent"))
	require.NoError(t, mgr.Delete(ctx, "room/recent"))
	ok, _ = mgr.GetJSON(ctx, "room/recent", &got)
	assert.False(t, ok)
}

func TestDatabaseAdapterScopesByAgent(t *testing.T) {
	store, err := mysql.NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	a := NewDatabaseAdapter(store, "a")
	b := NewDatabaseAdapter(store, "b")
	require.NoError(t, a.Set(ctx, "k", "1"))

	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	value, ok, err := a.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", value)
}
