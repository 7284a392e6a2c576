package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildFilterClause(t *testing.T) {
	clause, args := buildFilterClause(buildListOptions(nil).Filter)
	assert.Empty(t, clause)
	assert.Empty(t, args)

	since := time.Unix(1700000000, 0)
	opts := buildListOptions([]ListOption{
		WithAgent(" agent-1 "),
		WithRoom("room-9"),
		WithStatuses(StatusPending, StatusFailed, StatusPending, "bogus"),
		WithWindow(since, time.Time{}),
		WithQuery("swap"),
	})
	clause, args = buildFilterClause(opts.Filter)

	assert.Equal(t,
		"agent_id = ? AND room_id = ? AND status IN (?,?) AND updated_at >= ? AND (id LIKE ? OR text LIKE ? OR action LIKE ? OR last_error LIKE ? OR result LIKE ?)",
		clause)
	assert.Equal(t, []any{"agent-1", "room-9", "pending", "failed", int64(1700000000), "%swap%", "%swap%", "%swap%", "%swap%", "%swap%"}, args)
}

func TestListOptionsDefaults(t *testing.T) {
	opts := buildListOptions([]ListOption{WithLimit(500), WithOffset(-3), WithSortOrder(SortOrder(7))})
	assert.Equal(t, maxListLimit, opts.Limit)
	assert.Zero(t, opts.Offset)
	assert.Equal(t, SortByUpdatedDesc, opts.Order)

	opts = buildListOptions([]ListOption{WithStatuses("bogus")})
	assert.Equal(t, defaultListLimit, opts.Limit)
	assert.Nil(t, opts.Statuses)
}
