package task

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Minute)

	tasks := []*Task{
		{ID: "t1", AgentID: "a1", RoomID: "r1", Text: "hello", Status: StatusPending, MaxRetries: 3},
		{ID: "t2", AgentID: "a1", RoomID: "r2", Text: "swap 1 ETH", Action: "SWAP_TOKEN", Status: StatusPending, MaxRetries: 3},
		{ID: "t3", AgentID: "a2", Text: "gm", Status: StatusPending, MaxRetries: 3},
	}
	for _, task := range tasks {
		if err := store.Create(ctx, task); err != nil {
			t.Fatalf("create task %s: %v", task.ID, err)
		}
	}

	if err := store.MarkFailed(ctx, "t2", CodeTaskProcessing, "boom", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "t3", ExecutionResult{Text: "gm!", Success: true}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.tasks["t1"].UpdatedAt = base.Unix()
	store.tasks["t2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.tasks["t3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "t3" || all[2].ID != "t1" {
		t.Fatalf("unexpected order: %+v", all)
	}

	asc, _ := store.List(ctx, buildListOptions([]ListOption{WithSortOrder(SortByUpdatedAsc)}))
	if asc[0].ID != "t1" {
		t.Fatalf("expected oldest first, got %s", asc[0].ID)
	}

	failed, _ := store.List(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed)}))
	if len(failed) != 1 || failed[0].ID != "t2" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	byRoom, _ := store.List(ctx, buildListOptions([]ListOption{WithRoom("r1")}))
	if len(byRoom) != 1 || byRoom[0].ID != "t1" {
		t.Fatalf("unexpected room list: %+v", byRoom)
	}

	byAction, _ := store.List(ctx, buildListOptions([]ListOption{WithAction("swap_token")}))
	if len(byAction) != 1 || byAction[0].ID != "t2" {
		t.Fatalf("unexpected action list: %+v", byAction)
	}

	byAgent, _ := store.List(ctx, buildListOptions([]ListOption{WithAgent("a1")}))
	if len(byAgent) != 2 {
		t.Fatalf("expected 2 tasks for a1, got %d", len(byAgent))
	}

	byQuery, _ := store.List(ctx, buildListOptions([]ListOption{WithQuery("ETH")}))
	if len(byQuery) != 1 || byQuery[0].ID != "t2" {
		t.Fatalf("unexpected query list: %+v", byQuery)
	}

	paged, _ := store.List(ctx, buildListOptions([]ListOption{WithLimit(1), WithOffset(1)}))
	if len(paged) != 1 || paged[0].ID != "t2" {
		t.Fatalf("unexpected page: %+v", paged)
	}

	window, _ := store.List(ctx, buildListOptions([]ListOption{
		WithWindow(base.Add(10*time.Second), base.Add(45*time.Second)),
	}))
	if len(window) != 1 || window[0].ID != "t2" {
		t.Fatalf("unexpected window: %+v", window)
	}

	agentStats, _ := store.Stats(ctx, buildListOptions([]ListOption{WithAgent("a1")}))
	if agentStats.Total != 2 || agentStats.Pending != 1 || agentStats.Failed != 1 {
		t.Fatalf("unexpected agent stats: %+v", agentStats)
	}

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.InFlight() != 1 {
		t.Fatalf("unexpected in-flight count: %d", stats.InFlight())
	}
	if stats.OldestUpdatedAt != base.Unix() || stats.NewestUpdatedAt != base.Add(60*time.Second).Unix() {
		t.Fatalf("unexpected stats window: %+v", stats)
	}
}

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Task{ID: "t1", AgentID: "a", Text: "hi", Status: StatusPending, MaxRetries: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Task{ID: "t1"}); !errors.Is(err, ErrTaskConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	claimed, err := store.Claim(ctx, "t1")
	if err != nil || claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claim: %+v %v", claimed, err)
	}
	if _, err := store.Claim(ctx, "t1"); !errors.Is(err, ErrTaskConflict) {
		t.Fatalf("expected conflict for running task, got %v", err)
	}

	if err := store.MarkFailed(ctx, "t1", CodeTaskProcessing, "timeout", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	again, err := store.Claim(ctx, "t1")
	if err != nil || again.Attempts != 2 {
		t.Fatalf("unexpected second claim: %+v %v", again, err)
	}
	_ = store.MarkFailed(ctx, "t1", CodeTaskProcessing, "timeout", true)
	if _, err := store.Claim(ctx, "t1"); !errors.Is(err, ErrTaskExhausted) {
		t.Fatalf("expected exhausted, got %v", err)
	}

	if _, err := store.Claim(ctx, "missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, &Task{ID: "t1", AgentID: "a", Text: "hi", Status: StatusPending, MaxRetries: 1})
	_ = store.MarkSucceeded(ctx, "t1", ExecutionResult{Text: "ok", Content: map[string]any{"hash": "0xabc"}})

	got, _ := store.Get(ctx, "t1")
	got.Result.Content["hash"] = "0xdef"
	got.Text = "mutated"

	fresh, _ := store.Get(ctx, "t1")
	if fresh.Text != "hi" || fresh.Result.Content["hash"] != "0xabc" {
		t.Fatalf("store leaked internal state: %+v", fresh)
	}
	if !fresh.Done() {
		t.Fatalf("succeeded task should be done")
	}
}
