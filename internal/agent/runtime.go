package agent

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"AgentSwap/internal/cache"
	"AgentSwap/internal/character"
	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/knowledge"
	"AgentSwap/internal/llm"
	"AgentSwap/internal/settings"
	"AgentSwap/internal/storage/mysql"
	"AgentSwap/pkg/logger"

	"github.com/google/uuid"
)

// NoAction 表示模型判断无需执行动作。
const NoAction = "NONE"

// defaultMemoryDepth 是组装上下文时引用的历史消息数量的默认值。
const defaultMemoryDepth = 16

// AgentRuntime 管理单个角色的记忆、动作与模型调用。
type AgentRuntime struct {
	character   character.Character
	llmClient   llm.Client
	memories    mysql.MemoryRepository
	cache       *cache.Manager
	knowledge   knowledge.Provider
	sources     []settings.Source
	memoryDepth int
	llmTimeout  time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu      sync.RWMutex
	actions []Action
}

var _ Runtime = (*AgentRuntime)(nil)

// Option 定义可选的运行时配置。
type Option func(*AgentRuntime)

// WithMemoryRepository 配置记忆仓库，未配置时不保留历史。
func WithMemoryRepository(repo mysql.MemoryRepository) Option {
	return func(r *AgentRuntime) {
		r.memories = repo
	}
}

// WithCache 配置最近消息窗口的缓存。
func WithCache(manager *cache.Manager) Option {
	return func(r *AgentRuntime) {
		r.cache = manager
	}
}

// WithKnowledgeProvider 追加外部知识库，角色自带的 knowledge 始终参与检索。
func WithKnowledgeProvider(provider knowledge.Provider) Option {
	return func(r *AgentRuntime) {
		if provider != nil {
			r.knowledge = knowledge.Multi{r.knowledge, provider}
		}
	}
}

// WithSettingSources 替换配置来源，按传入顺序决定优先级。
func WithSettingSources(sources ...settings.Source) Option {
	return func(r *AgentRuntime) {
		r.sources = sources
	}
}

// WithMemoryDepth 设置组装上下文时引用的历史消息数量。
func WithMemoryDepth(depth int) Option {
	return func(r *AgentRuntime) {
		r.memoryDepth = depth
	}
}

// WithLLMTimeout 设置调用大模型的超时时间。
func WithLLMTimeout(timeout time.Duration) Option {
	return func(r *AgentRuntime) {
		if timeout < 0 {
			timeout = 0
		}
		r.llmTimeout = timeout
	}
}

// WithActions 注册动作。
func WithActions(actions ...Action) Option {
	return func(r *AgentRuntime) {
		r.actions = append(r.actions, actions...)
	}
}

// WithLogger 指定日志输出。
func WithLogger(l *slog.Logger) Option {
	return func(r *AgentRuntime) {
		if l != nil {
			r.logger = l
		}
	}
}

// New 创建角色运行时。
func New(char character.Character, client llm.Client, opts ...Option) (*AgentRuntime, error) {
	char.Normalize()
	if err := char.Validate(); err != nil {
		return nil, err
	}

	rt := &AgentRuntime{
		character:   char,
		llmClient:   client,
		knowledge:   knowledge.FromLines(char.Knowledge, 5),
		sources:     []settings.Source{settings.Secrets(char.Settings.Secrets), settings.Env()},
		memoryDepth: defaultMemoryDepth,
		logger:      logger.Named("agent").With(slog.String("agent", char.Name)),
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}
	if rt.memoryDepth <= 0 {
		rt.memoryDepth = defaultMemoryDepth
	}

	actions := rt.actions
	rt.actions = nil
	for _, action := range actions {
		if err := rt.RegisterAction(action); err != nil {
			return nil, err
		}
	}
	return rt, nil
}

// AgentID 返回角色 ID。
func (r *AgentRuntime) AgentID() string { return r.character.ID }

// Character 返回角色配置。
func (r *AgentRuntime) Character() *character.Character { return &r.character }

// GetSetting 按配置来源顺序查询设置项。
func (r *AgentRuntime) GetSetting(key string) string {
	value, _ := settings.Lookup(key, r.sources...)
	return value
}

// RegisterAction 注册动作，名称不区分大小写且不可重复。
func (r *AgentRuntime) RegisterAction(action Action) error {
	if action == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "动作不能为空")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.actions {
		if strings.EqualFold(existing.Name(), action.Name()) {
			return xerrors.New(xerrors.CodeConflict, fmt.Sprintf("动作 %s 已注册", action.Name()))
		}
	}
	r.actions = append(r.actions, action)
	r.logger.Debug("动作已注册", slog.String("action", action.Name()))
	return nil
}

// Actions 返回已注册动作。
func (r *AgentRuntime) Actions() []Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Action, len(r.actions))
	copy(out, r.actions)
	return out
}

// FindAction 按名称或别名查找动作。
func (r *AgentRuntime) FindAction(name string) (Action, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, action := range r.actions {
		if strings.EqualFold(action.Name(), name) {
			return action, true
		}
	}
	for _, action := range r.actions {
		for _, simile := range action.Similes() {
			if strings.EqualFold(simile, name) {
				return action, true
			}
		}
	}
	return nil, false
}

// GenerateObject 调用大模型并提取 JSON 对象。
func (r *AgentRuntime) GenerateObject(ctx context.Context, req llm.Request) (json.RawMessage, error) {
	if r.llmClient == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	if req.System == "" {
		req.System = r.character.System
	}

	llmCtx := ctx
	if r.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, r.llmTimeout)
		defer cancel()
	}

	obj, err := r.llmClient.GenerateObject(llmCtx, req)
	if err != nil {
		if stdErrors.Is(err, context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "大模型推理超时")
		}
		return nil, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "大模型推理失败",
			xerrors.WithRetryable(xerrors.RetryableError(err)))
	}
	return obj, nil
}

// ComposeState 组装角色信息、知识、可用动作与最近消息。
func (r *AgentRuntime) ComposeState(ctx context.Context, msg Memory) (State, error) {
	recent, err := r.recentMemories(ctx, msg.RoomID)
	if err != nil {
		return nil, err
	}

	actions := r.Actions()
	actionLines := make([]string, 0, len(actions))
	actionNames := make([]string, 0, len(actions))
	for _, action := range actions {
		actionLines = append(actionLines, fmt.Sprintf("%s: %s", action.Name(), action.Description()))
		actionNames = append(actionNames, action.Name())
	}
	sort.Strings(actionNames)

	var knowledgeLines []string
	if r.knowledge != nil {
		for _, snippet := range r.knowledge.Query(msg.Content.Text) {
			line := snippet.Content
			if snippet.Title != "" {
				line = snippet.Title + ": " + snippet.Content
			}
			knowledgeLines = append(knowledgeLines, line)
		}
	}

	sender := msg.UserID
	if sender == "" {
		sender = string(RoleUser)
	}

	return State{
		KeyAgentName:      r.character.Name,
		KeySystem:         r.character.System,
		KeyBio:            r.character.Bio.String(),
		KeyLore:           r.character.Lore.String(),
		KeyTopics:         strings.Join(r.character.Topics, ", "),
		KeyAdjectives:     strings.Join(r.character.Adjectives, ", "),
		KeyKnowledge:      bulletList(knowledgeLines),
		KeyRecentMessages: r.formatMemories(recent),
		KeyActions:        bulletList(actionLines),
		KeyActionNames:    strings.Join(actionNames, ", "),
		KeySenderName:     sender,
		KeyCurrentMessage: msg.Content.Text,
	}, nil
}

// ProcessMessage 记录用户消息，选择并执行动作，然后记录代理回复。
func (r *AgentRuntime) ProcessMessage(ctx context.Context, in Message) (*Result, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Action == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "消息内容不能为空")
	}
	roomID := strings.TrimSpace(in.RoomID)
	if roomID == "" {
		roomID = "default-room-" + r.AgentID()
	}
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		userID = string(RoleUser)
	}

	userMemory := Memory{
		ID:        uuid.NewString(),
		AgentID:   r.AgentID(),
		RoomID:    roomID,
		UserID:    userID,
		Role:      RoleUser,
		Content:   Content{Text: text, Action: in.Action},
		CreatedAt: r.now().UnixMilli(),
	}

	var (
		action Action
		reply  string
	)
	if in.Action != "" {
		found, ok := r.FindAction(in.Action)
		if !ok {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, fmt.Sprintf("未知动作 %s", in.Action),
				xerrors.WithMetadata("action", in.Action))
		}
		action = found
	}

	// 先写入用户消息，recentMessages 才会包含本条请求
	if err := r.saveMemory(ctx, userMemory); err != nil {
		return nil, err
	}
	state, err := r.ComposeState(ctx, userMemory)
	if err != nil {
		return nil, err
	}

	if action == nil {
		decision, err := r.decide(ctx, state)
		if err != nil {
			return nil, err
		}
		reply = decision.Text
		if name := strings.TrimSpace(decision.Action); name != "" && !strings.EqualFold(name, NoAction) {
			if found, ok := r.FindAction(name); ok {
				action = found
			} else {
				r.logger.Warn("模型选择了未注册的动作", slog.String("action", name))
			}
		}
	}

	result := &Result{MessageID: userMemory.ID, Text: reply, Success: true}
	if action != nil {
		r.runAction(ctx, action, userMemory, state, result)
	}

	agentMemory := Memory{
		ID:        uuid.NewString(),
		AgentID:   r.AgentID(),
		RoomID:    roomID,
		UserID:    r.AgentID(),
		Role:      RoleAssistant,
		Content:   Content{Text: result.Text, Action: result.Action, Data: result.Content},
		CreatedAt: r.now().UnixMilli(),
	}
	if err := r.saveMemory(ctx, agentMemory); err != nil {
		if action == nil {
			return nil, err
		}
		// 动作已经执行，返回错误会让任务重试并重复执行动作
		r.logger.Error("保存回复记忆失败",
			slog.String("action", result.Action),
			slog.String("room_id", roomID),
			slog.Any("error", err))
	}

	logger.Audit().Info("消息处理完成",
		slog.String("agent_id", r.AgentID()),
		slog.String("room_id", roomID),
		slog.String("action", result.Action),
		slog.Bool("success", result.Success),
	)
	return result, nil
}

type decision struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

func (r *AgentRuntime) decide(ctx context.Context, state State) (decision, error) {
	raw, err := r.GenerateObject(ctx, llm.Request{
		Context:    ComposeContext(state, messageHandlerTemplate),
		ModelClass: llm.ModelClassLarge,
	})
	if err != nil {
		return decision{}, err
	}
	var out decision
	if err := json.Unmarshal(raw, &out); err != nil {
		return decision{}, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "解析模型回复失败")
	}
	return out, nil
}

func (r *AgentRuntime) runAction(ctx context.Context, action Action, msg Memory, state State, result *Result) {
	result.Action = action.Name()
	if !action.Validate(ctx, r, msg) {
		result.Success = false
		result.Text = fmt.Sprintf("%s is not available for %s right now.", action.Name(), r.character.Name)
		r.logger.Warn("动作未通过校验", slog.String("action", action.Name()))
		return
	}

	var responses []Response
	cb := func(_ context.Context, resp Response) error {
		responses = append(responses, resp)
		return nil
	}
	result.Success = action.Handle(ctx, r, msg, state, cb)
	if n := len(responses); n > 0 {
		result.Text = responses[n-1].Text
		result.Content = responses[n-1].Content
	}
	r.logger.Info("动作执行结束", slog.String("action", action.Name()), slog.Bool("success", result.Success))
}

func recentKey(roomID string) string { return "recent/" + roomID }

func (r *AgentRuntime) recentMemories(ctx context.Context, roomID string) ([]Memory, error) {
	if r.memories == nil {
		return nil, nil
	}

	var cached []Memory
	if r.cache != nil {
		ok, err := r.cache.GetJSON(ctx, recentKey(roomID), &cached)
		if err != nil {
			r.logger.Warn("读取消息缓存失败", slog.Any("error", err))
		} else if ok {
			return cached, nil
		}
	}

	records, err := r.memories.ListMemories(ctx, r.AgentID(), roomID, r.memoryDepth)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "加载历史消息失败")
	}
	memories := make([]Memory, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		memories = append(memories, fromRecord(records[i]))
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, recentKey(roomID), memories); err != nil {
			r.logger.Warn("写入消息缓存失败", slog.Any("error", err))
		}
	}
	return memories, nil
}

func (r *AgentRuntime) saveMemory(ctx context.Context, m Memory) error {
	if r.memories == nil {
		return nil
	}
	record, err := toRecord(m)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码记忆内容失败")
	}
	if err := r.memories.SaveMemory(ctx, record); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存记忆失败")
	}
	if r.cache != nil {
		if err := r.cache.Delete(ctx, recentKey(m.RoomID)); err != nil {
			r.logger.Warn("清理消息缓存失败", slog.Any("error", err))
		}
	}
	return nil
}

func (r *AgentRuntime) formatMemories(memories []Memory) string {
	lines := make([]string, 0, len(memories))
	for _, m := range memories {
		speaker := m.UserID
		if m.Role == RoleAssistant {
			speaker = r.character.Name
		}
		line := fmt.Sprintf("%s: %s", speaker, m.Content.Text)
		if m.Content.Action != "" {
			line += fmt.Sprintf(" (%s)", m.Content.Action)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func toRecord(m Memory) (mysql.MemoryRecord, error) {
	record := mysql.MemoryRecord{
		ID:        m.ID,
		AgentID:   m.AgentID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Role:      string(m.Role),
		Text:      m.Content.Text,
		Action:    m.Content.Action,
		CreatedAt: m.CreatedAt,
	}
	if len(m.Content.Data) > 0 {
		encoded, err := json.Marshal(m.Content.Data)
		if err != nil {
			return mysql.MemoryRecord{}, err
		}
		record.Content = string(encoded)
	}
	return record, nil
}

func fromRecord(record mysql.MemoryRecord) Memory {
	m := Memory{
		ID:        record.ID,
		AgentID:   record.AgentID,
		RoomID:    record.RoomID,
		UserID:    record.UserID,
		Role:      Role(record.Role),
		Content:   Content{Text: record.Text, Action: record.Action},
		CreatedAt: record.CreatedAt,
	}
	if record.Content != "" {
		_ = json.Unmarshal([]byte(record.Content), &m.Content.Data)
	}
	return m
}
