package task

import (
	"slices"
	"strings"
	"time"
)

// SortOrder 决定列表按更新时间的排序方向。
type SortOrder int

const (
	// SortByUpdatedDesc 最近更新的任务在前，默认值。
	SortByUpdatedDesc SortOrder = iota
	// SortByUpdatedAsc 最早更新的任务在前。
	SortByUpdatedAsc
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Filter 描述列表与统计共用的筛选条件，零值表示不过滤。
type Filter struct {
	AgentID  string
	RoomID   string
	Action   string
	Statuses []Status
	Since    time.Time
	Until    time.Time
	Query    string
}

// ListOptions 在筛选条件之上增加分页与排序。
type ListOptions struct {
	Filter
	Limit  int
	Offset int
	Order  SortOrder
}

// ListOption 修改 ListOptions。
type ListOption func(*ListOptions)

// WithLimit 限制返回条数，超出上限时截断为 100。
func WithLimit(limit int) ListOption {
	return func(o *ListOptions) { o.Limit = limit }
}

// WithOffset 跳过前 n 条匹配记录。
func WithOffset(offset int) ListOption {
	return func(o *ListOptions) { o.Offset = offset }
}

// WithAgent 只返回投递给指定代理的任务。
func WithAgent(agentID string) ListOption {
	return func(o *ListOptions) { o.AgentID = agentID }
}

// WithRoom 只返回某个会话房间内的任务。
func WithRoom(roomID string) ListOption {
	return func(o *ListOptions) { o.RoomID = roomID }
}

// WithAction 按请求中显式指定的动作名过滤，大小写不敏感。
func WithAction(action string) ListOption {
	return func(o *ListOptions) { o.Action = action }
}

// WithStatuses 按状态过滤，未知状态会被忽略。
func WithStatuses(statuses ...Status) ListOption {
	return func(o *ListOptions) { o.Statuses = slices.Clone(statuses) }
}

// WithWindow 限定更新时间区间，两端均为闭区间，零值表示不限。
func WithWindow(since, until time.Time) ListOption {
	return func(o *ListOptions) {
		o.Since = since
		o.Until = until
	}
}

// WithSortOrder 修改排序方向。
func WithSortOrder(order SortOrder) ListOption {
	return func(o *ListOptions) { o.Order = order }
}

// WithQuery 在任务 ID、消息、动作、错误与回复中做子串匹配。
func WithQuery(query string) ListOption {
	return func(o *ListOptions) { o.Query = query }
}

func buildListOptions(opts []ListOption) ListOptions {
	var o ListOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	o.applyDefaults()
	return o
}

func (o *ListOptions) applyDefaults() {
	switch {
	case o.Limit <= 0:
		o.Limit = defaultListLimit
	case o.Limit > maxListLimit:
		o.Limit = maxListLimit
	}
	o.Offset = max(o.Offset, 0)
	if o.Order != SortByUpdatedAsc {
		o.Order = SortByUpdatedDesc
	}
	o.Filter.normalize()
}

func (f *Filter) normalize() {
	f.AgentID = strings.TrimSpace(f.AgentID)
	f.RoomID = strings.TrimSpace(f.RoomID)
	f.Action = strings.TrimSpace(f.Action)
	f.Query = strings.TrimSpace(f.Query)

	var kept []Status
	for _, s := range f.Statuses {
		if IsValidStatus(s) && !slices.Contains(kept, s) {
			kept = append(kept, s)
		}
	}
	f.Statuses = kept
}

// sinceUnix 与 untilUnix 将时间边界转换为存储使用的秒级时间戳，0 表示不限。
func (f Filter) sinceUnix() int64 {
	if f.Since.IsZero() {
		return 0
	}
	return f.Since.Unix()
}

func (f Filter) untilUnix() int64 {
	if f.Until.IsZero() {
		return 0
	}
	return f.Until.Unix()
}

// Matches 判断任务是否满足筛选条件。
func (f Filter) Matches(t *Task) bool {
	if t == nil {
		return false
	}
	if f.AgentID != "" && t.AgentID != f.AgentID {
		return false
	}
	if f.RoomID != "" && t.RoomID != f.RoomID {
		return false
	}
	if f.Action != "" && !strings.EqualFold(t.Action, f.Action) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if since := f.sinceUnix(); since > 0 && t.UpdatedAt < since {
		return false
	}
	if until := f.untilUnix(); until > 0 && t.UpdatedAt > until {
		return false
	}
	if f.Query == "" {
		return true
	}
	q := strings.ToLower(f.Query)
	fields := []string{t.ID, t.Text, t.Action, t.LastError}
	if t.Result != nil {
		fields = append(fields, t.Result.Text, t.Result.Action)
	}
	return slices.ContainsFunc(fields, func(field string) bool {
		return strings.Contains(strings.ToLower(field), q)
	})
}
