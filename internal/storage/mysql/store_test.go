package mysql

import (
	"context"
	"database/sql/driver"
	"fmt"
	"testing"

	"AgentSwap/deploy/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreMemoriesSurviveRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.SaveMemory(ctx, MemoryRecord{
			ID:        fmt.Sprintf("m%d", i),
			AgentID:   "agent",
			RoomID:    "room",
			Role:      "user",
			Text:      fmt.Sprintf("hello %d", i),
			CreatedAt: int64(i),
		}))
	}
	require.NoError(t, store.SaveMemory(ctx, MemoryRecord{ID: "other", AgentID: "agent", RoomID: "elsewhere", Text: "x"}))

	latest, err := store.ListMemories(ctx, "agent", "room", 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "m3", latest[0].ID)
	assert.Equal(t, "m2", latest[1].ID)

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	all, err := reopened.ListMemories(ctx, "agent", "room", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "m3", all[0].ID)
}

func TestFileStoreCache(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	_, ok, err := store.GetCache(ctx, "k", "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetCache(ctx, "k", "a1", "v1"))
	require.NoError(t, store.SetCache(ctx, "k", "a2", "v2"))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	value, ok, err := reopened.GetCache(ctx, "k", "a1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1", value)

	require.NoError(t, reopened.DeleteCache(ctx, "k", "a1"))
	require.NoError(t, reopened.DeleteCache(ctx, "missing", "a1"))
	_, ok, _ = reopened.GetCache(ctx, "k", "a1")
	assert.False(t, ok)
	value, _, _ = reopened.GetCache(ctx, "k", "a2")
	assert.Equal(t, "v2", value)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "postgres"})
	assert.Error(t, err)

	store, err := Open(context.Background(), Config{Driver: "memory", DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
}

func TestSQLStoreSaveAndListMemories(t *testing.T) {
	t.Parallel()

	columns := []string{"id", "agent_id", "room_id", "user_id", "role", "text", "action", "content", "created_at"}
	db, drv := newMockDB(t, []mockOperation{
		execOp(`INSERT INTO memories
    (id, agent_id, room_id, user_id, role, text, action, content, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, mockResult{rowsAffected: 1}, "m1", "agent", "room", "u", "user", "hi", "", "", int64(5)),
		queryOp(`SELECT id, agent_id, room_id, user_id, role, text, action, content, created_at
    FROM memories WHERE agent_id = ? AND room_id = ? ORDER BY created_at DESC LIMIT ?`, mockRowsData{
			columns: columns,
			values: [][]driver.Value{
				{"m2", "agent", "room", "", "assistant", "done", "swap", `{"success":true}`, int64(6)},
				{"m1", "agent", "room", "u", "user", "hi", "", nil, int64(5)},
			},
		}),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	store := &SQLStore{db: db}
	ctx := context.Background()
	require.NoError(t, store.SaveMemory(ctx, MemoryRecord{ID: "m1", AgentID: "agent", RoomID: "room", UserID: "u", Role: "user", Text: "hi", CreatedAt: 5}))

	records, err := store.ListMemories(ctx, "agent", "room", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "swap", records[0].Action)
	assert.Equal(t, `{"success":true}`, records[0].Content)
	assert.Empty(t, records[1].Content)
}

func TestSQLStoreCache(t *testing.T) {
	t.Parallel()

	db, drv := newMockDB(t, []mockOperation{
		queryOp(`SELECT value FROM cache WHERE cache_key = ? AND agent_id = ?`, mockRowsData{columns: []string{"value"}}),
		execOp(`INSERT INTO cache (cache_key, agent_id, value, updated_at) VALUES (?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`, mockResult{rowsAffected: 1}),
		queryOp(`SELECT value FROM cache WHERE cache_key = ? AND agent_id = ?`, mockRowsData{
			columns: []string{"value"},
			values:  [][]driver.Value{{"cached"}},
		}),
		execOp(`DELETE FROM cache WHERE cache_key = ? AND agent_id = ?`, mockResult{rowsAffected: 1}),
	})
	defer drv.assertConsumed(t)
	defer db.Close()

	store := &SQLStore{db: db}
	ctx := context.Background()

	_, ok, err := store.GetCache(ctx, "k", "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetCache(ctx, "k", "a", "cached"))

	value, ok, err := store.GetCache(ctx, "k", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cached", value)

	require.NoError(t, store.DeleteCache(ctx, "k", "a"))
}

func TestSQLStoreRunMigrations(t *testing.T) {
	t.Parallel()

	files, err := readMigrations(migrations.Files)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, []string{"0001", "0002", "0003"}, []string{files[0].version, files[1].version, files[2].version})
	require.Len(t, files[2].statements, 1)
	assert.NotContains(t, files[2].statements[0], "--")

	ops := []mockOperation{
		execOp(migrationTableDDL, mockResult{}),
		queryOp(`SELECT version FROM schema_migrations`, mockRowsData{
			columns: []string{"version"},
			values:  [][]driver.Value{{"0001"}},
		}),
		beginOp(),
		execOp(files[1].statements[0], mockResult{}),
		execOp(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, mockResult{rowsAffected: 1}),
		commitOp(),
		beginOp(),
		execOp(files[2].statements[0], mockResult{}),
		execOp(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, mockResult{rowsAffected: 1}),
		commitOp(),
	}
	db, drv := newMockDB(t, ops)
	defer drv.assertConsumed(t)
	defer db.Close()

	store := &SQLStore{db: db}
	require.NoError(t, store.runMigrations(context.Background()))
}

func TestSplitStatementsAndVersion(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (id INT);\n\n  -- note\nCREATE TABLE b (id INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, stmts)

	assert.Equal(t, "0007", versionOf("0007_add_index.sql"))
	assert.Equal(t, "baseline", versionOf("baseline.sql"))
}
