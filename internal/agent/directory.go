package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	xerrors "AgentSwap/internal/errors"
)

// Summary 描述一个已启动的代理。
type Summary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Username string   `json:"username"`
	Clients  []string `json:"clients"`
	Actions  []string `json:"actions"`
}

// Directory 保存进程内所有代理运行时，并按 ID 或名称路由消息。
type Directory struct {
	mu       sync.RWMutex
	runtimes map[string]*AgentRuntime
}

// NewDirectory 创建空目录。
func NewDirectory() *Directory {
	return &Directory{runtimes: make(map[string]*AgentRuntime)}
}

// Register 加入运行时，ID 重复时返回冲突错误。
func (d *Directory) Register(rt *AgentRuntime) error {
	if rt == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "运行时不能为空")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.runtimes[rt.AgentID()]; ok {
		return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("代理 %s 已存在", rt.AgentID()))
	}
	d.runtimes[rt.AgentID()] = rt
	return nil
}

// Lookup 依次按 ID、名称、用户名查找代理。
func (d *Directory) Lookup(idOrName string) (*AgentRuntime, bool) {
	key := strings.TrimSpace(idOrName)
	d.mu.RLock()
	defer d.mu.RUnlock()
	if rt, ok := d.runtimes[key]; ok {
		return rt, true
	}
	for _, rt := range d.runtimes {
		c := rt.Character()
		if strings.EqualFold(c.Name, key) || strings.EqualFold(c.Username, key) {
			return rt, true
		}
	}
	return nil, false
}

// List 返回按名称排序的代理摘要。
func (d *Directory) List() []Summary {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Summary, 0, len(d.runtimes))
	for _, rt := range d.runtimes {
		c := rt.Character()
		actions := rt.Actions()
		names := make([]string, 0, len(actions))
		for _, action := range actions {
			names = append(names, action.Name())
		}
		out = append(out, Summary{
			ID:       c.ID,
			Name:     c.Name,
			Username: c.Username,
			Clients:  append([]string(nil), c.Clients...),
			Actions:  names,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute 将消息交给目标代理处理，供任务处理器调用。
func (d *Directory) Execute(ctx context.Context, req MessageRequest) (*Result, error) {
	rt, ok := d.Lookup(req.AgentID)
	if !ok {
		return nil, xerrors.New(xerrors.CodeNotFound, fmt.Sprintf("代理 %s 不存在", req.AgentID),
			xerrors.WithMetadata("agent_id", req.AgentID))
	}
	return rt.ProcessMessage(ctx, req.Message)
}
