package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"AgentSwap/internal/agent"
	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/observability/metrics"
	"AgentSwap/internal/task"
	"AgentSwap/pkg/logger"
)

const maxWait = 2 * time.Minute

// TaskService 为 API 所需的任务能力。
type TaskService interface {
	Submit(ctx context.Context, req task.SubmitRequest) (*task.Task, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context, opts ...task.ListOption) ([]*task.Task, error)
	Stats(ctx context.Context, opts ...task.ListOption) (task.TaskStats, error)
	WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*task.Task, error)
}

// AgentLister 返回当前进程内的代理。
type AgentLister interface {
	List() []agent.Summary
}

// Server 负责暴露 REST 接口，供外部驱动代理处理消息。
type Server struct {
	addr   string
	tasks  TaskService
	agents AgentLister
	guard  func(http.Handler) http.Handler
	logger *slog.Logger
}

// Option 定制 Server。
type Option func(*Server)

// WithGuard 为 /api/v1 下的接口套上认证中间件，健康检查与指标接口不受影响。
func WithGuard(guard func(http.Handler) http.Handler) Option {
	return func(s *Server) {
		if guard != nil {
			s.guard = guard
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, tasks TaskService, agents AgentLister, opts ...Option) *Server {
	s := &Server{
		addr:   addr,
		tasks:  tasks,
		agents: agents,
		guard:  func(h http.Handler) http.Handler { return h },
		logger: logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回注册好全部路由的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", s.instrument("healthz", s.handleHealth))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /api/v1/agents", s.guard(s.instrument("list_agents", s.handleListAgents)))
	mux.Handle("POST /api/v1/agents/{agent}/messages", s.guard(s.instrument("submit_message", s.handleSubmitMessage)))
	mux.Handle("GET /api/v1/tasks", s.guard(s.instrument("list_tasks", s.handleListTasks)))
	mux.Handle("GET /api/v1/tasks/stats", s.guard(s.instrument("task_stats", s.handleTaskStats)))
	mux.Handle("GET /api/v1/tasks/{id}", s.guard(s.instrument("task_detail", s.handleTaskDetail)))
	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP 服务启动", slog.String("addr", s.addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type messageRequest struct {
	ID     string `json:"id,omitempty"`
	RoomID string `json:"room_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	Text   string `json:"text"`
	Action string `json:"action,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "agents": len(s.agents.List())})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": s.agents.List()})
}

// handleSubmitMessage 将消息排队。携带 wait 参数时同步等待处理结果。
func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	summary, ok := s.resolveAgent(r.PathValue("agent"))
	if !ok {
		writeError(w, xerrors.New(xerrors.CodeNotFound, "代理不存在", xerrors.WithMetadata("agent", r.PathValue("agent"))))
		return
	}

	var body messageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}

	wait, err := parseWait(r.URL.Query().Get("wait"))
	if err != nil {
		writeError(w, err)
		return
	}

	submitted, err := s.tasks.Submit(r.Context(), task.SubmitRequest{
		ID:      body.ID,
		AgentID: summary.ID,
		Message: agent.Message{
			RoomID: body.RoomID,
			UserID: body.UserID,
			Text:   body.Text,
			Action: body.Action,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if wait <= 0 {
		writeJSON(w, http.StatusAccepted, submitted)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), wait)
	defer cancel()
	completed, err := s.tasks.WaitUntilCompleted(ctx, submitted.ID, 100*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusAccepted, submitted)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completed)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tasks, err := s.tasks.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.tasks.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "任务 ID 不能为空"))
		return
	}
	found, err := s.tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) resolveAgent(idOrName string) (agent.Summary, bool) {
	key := strings.TrimSpace(idOrName)
	for _, summary := range s.agents.List() {
		if summary.ID == key || strings.EqualFold(summary.Name, key) || strings.EqualFold(summary.Username, key) {
			return summary, true
		}
	}
	return agent.Summary{}, false
}

func parseWait(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	wait, err := time.ParseDuration(raw)
	if err != nil {
		seconds, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, xerrors.New(xerrors.CodeInvalidArgument, "wait 参数格式错误")
		}
		wait = time.Duration(seconds) * time.Second
	}
	if wait > maxWait {
		wait = maxWait
	}
	return wait, nil
}

func listOptions(r *http.Request) ([]task.ListOption, error) {
	q := r.URL.Query()
	opts := make([]task.ListOption, 0, 6)
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "limit 参数格式错误")
		}
		opts = append(opts, task.WithLimit(limit))
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "offset 参数格式错误")
		}
		opts = append(opts, task.WithOffset(offset))
	}
	if agentID := q.Get("agent"); agentID != "" {
		opts = append(opts, task.WithAgent(agentID))
	}
	if roomID := q.Get("room"); roomID != "" {
		opts = append(opts, task.WithRoom(roomID))
	}
	if action := q.Get("action"); action != "" {
		opts = append(opts, task.WithAction(action))
	}
	since, err := parseTime(q.Get("since"), "since")
	if err != nil {
		return nil, err
	}
	until, err := parseTime(q.Get("until"), "until")
	if err != nil {
		return nil, err
	}
	if !since.IsZero() || !until.IsZero() {
		opts = append(opts, task.WithWindow(since, until))
	}
	if statuses := q["status"]; len(statuses) > 0 {
		values := make([]task.Status, 0, len(statuses))
		for _, raw := range statuses {
			for _, part := range strings.Split(raw, ",") {
				status := task.Status(strings.ToLower(strings.TrimSpace(part)))
				if !task.IsValidStatus(status) {
					return nil, xerrors.New(xerrors.CodeInvalidArgument, "不支持的任务状态: "+part)
				}
				values = append(values, status)
			}
		}
		opts = append(opts, task.WithStatuses(values...))
	}
	if query := q.Get("q"); query != "" {
		opts = append(opts, task.WithQuery(query))
	}
	if q.Get("order") == "asc" {
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	}
	return opts, nil
}

// parseTime 接受 RFC3339 或 Unix 秒级时间戳。
func parseTime(raw, name string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(ts, 0), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, xerrors.New(xerrors.CodeInvalidArgument, name+" 参数格式错误")
	}
	return t, nil
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "服务已关闭"))
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
