package task

import (
	"context"
	"database/sql"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	xerrors "AgentSwap/internal/errors"
	sqlstore "AgentSwap/internal/storage/mysql"

	"github.com/go-sql-driver/mysql"
)

// MySQLStore 使用 MySQL 记录任务状态，多实例部署时共享同一张表。
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore 建立连接池并执行内置迁移，agent_tasks 表由迁移脚本创建。
func NewMySQLStore(ctx context.Context, cfg sqlstore.Config) (*MySQLStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "MySQL DSN 不能为空")
	}
	db, err := sqlstore.OpenDB(ctx, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "连接 MySQL 失败")
	}
	store, err := NewMySQLStoreFromDB(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewMySQLStoreFromDB 复用已有连接池。
func NewMySQLStoreFromDB(ctx context.Context, db *sql.DB) (*MySQLStore, error) {
	if db == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "数据库连接不能为空")
	}
	if err := sqlstore.Migrate(ctx, db, nil); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "初始化 agent_tasks 表失败")
	}
	return &MySQLStore{db: db}, nil
}

const taskColumns = `id, agent_id, room_id, user_id, text, action, status, attempts, max_retries,
        last_error, error_code, result, created_at, updated_at`

// Create 插入新的任务记录。
func (s *MySQLStore) Create(ctx context.Context, task *Task) error {
	if task == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "task 不能为空")
	}
	if strings.TrimSpace(task.ID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "任务 ID 不能为空")
	}

	now := time.Now().Unix()
	task.CreatedAt = now
	task.UpdatedAt = now

	const stmt = `INSERT INTO agent_tasks
        (id, agent_id, room_id, user_id, text, action, status, attempts, max_retries, last_error, error_code, result, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', NULL, ?, ?)`

	_, err := s.db.ExecContext(ctx, stmt,
		task.ID,
		task.AgentID,
		task.RoomID,
		task.UserID,
		task.Text,
		task.Action,
		string(task.Status),
		task.Attempts,
		task.MaxRetries,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if stdErrors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return ErrTaskConflict
		}
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "插入任务失败")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		task      Task
		status    string
		lastError sql.NullString
		result    sql.NullString
	)
	if err := row.Scan(
		&task.ID,
		&task.AgentID,
		&task.RoomID,
		&task.UserID,
		&task.Text,
		&task.Action,
		&status,
		&task.Attempts,
		&task.MaxRetries,
		&lastError,
		&task.ErrorCode,
		&result,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	task.Status = Status(status)
	task.LastError = lastError.String
	if result.Valid && strings.TrimSpace(result.String) != "" {
		var decoded ExecutionResult
		if err := json.Unmarshal([]byte(result.String), &decoded); err != nil {
			return nil, fmt.Errorf("解析任务结果失败: %w", err)
		}
		task.Result = &decoded
	}
	return &task, nil
}

// Get 查询指定任务。
func (s *MySQLStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM agent_tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务失败")
	}
	return task, nil
}

// Claim 将任务标记为运行中并返回最新状态。
func (s *MySQLStore) Claim(ctx context.Context, id string) (*Task, error) {
	const stmt = `UPDATE agent_tasks SET status = ?, attempts = attempts + 1, updated_at = ?
        WHERE id = ? AND status = ? AND attempts < max_retries`

	res, err := s.db.ExecContext(ctx, stmt, string(StatusRunning), time.Now().Unix(), id, string(StatusPending))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "更新任务状态失败")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取影响行数失败")
	}
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if affected > 0 {
		return task, nil
	}
	switch task.Status {
	case StatusSucceeded:
		return task, ErrTaskCompleted
	case StatusRunning:
		return task, ErrTaskConflict
	default:
		return task, ErrTaskExhausted
	}
}

// MarkSucceeded 将任务标记为成功并保存回复。
func (s *MySQLStore) MarkSucceeded(ctx context.Context, id string, result ExecutionResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "编码任务结果失败")
	}
	const stmt = `UPDATE agent_tasks SET status = ?, result = ?, last_error = '', error_code = '', updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt, string(StatusSucceeded), string(encoded), time.Now().Unix(), id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记任务成功失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// MarkFailed 记录失败原因，retry 为 true 时任务回到待处理状态。
func (s *MySQLStore) MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string, retry bool) error {
	status := StatusFailed
	if retry {
		status = StatusPending
	}
	const stmt = `UPDATE agent_tasks SET status = ?, last_error = ?, error_code = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, stmt, string(status), lastError, string(code), time.Now().Unix(), id)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "标记任务失败失败")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// List 返回符合过滤条件的任务。
func (s *MySQLStore) List(ctx context.Context, opts ListOptions) ([]*Task, error) {
	opts.applyDefaults()

	query := "SELECT " + taskColumns + " FROM agent_tasks"
	clause, args := buildFilterClause(opts.Filter)
	if clause != "" {
		query += " WHERE " + clause
	}
	if opts.Order == SortByUpdatedAsc {
		query += " ORDER BY updated_at ASC, created_at ASC, id ASC"
	} else {
		query += " ORDER BY updated_at DESC, created_at DESC, id DESC"
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务列表失败")
	}
	defer rows.Close()

	tasks := make([]*Task, 0, opts.Limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析任务记录失败")
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历任务失败")
	}
	return tasks, nil
}

// Stats 返回符合过滤条件的任务聚合信息。
func (s *MySQLStore) Stats(ctx context.Context, opts ListOptions) (TaskStats, error) {
	opts.applyDefaults()

	query := `SELECT
        COUNT(*),
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
        COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
        COALESCE(MIN(updated_at), 0),
        COALESCE(MAX(updated_at), 0)
        FROM agent_tasks`
	clause, filterArgs := buildFilterClause(opts.Filter)
	if clause != "" {
		query += " WHERE " + clause
	}
	args := []any{string(StatusPending), string(StatusRunning), string(StatusSucceeded), string(StatusFailed)}
	args = append(args, filterArgs...)

	var stats TaskStats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Running,
		&stats.Succeeded,
		&stats.Failed,
		&stats.OldestUpdatedAt,
		&stats.NewestUpdatedAt,
	); err != nil {
		return TaskStats{}, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询任务统计失败")
	}
	return stats, nil
}

// Close 关闭底层数据库连接。
func (s *MySQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func buildFilterClause(f Filter) (string, []any) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, values ...any) {
		conditions = append(conditions, cond)
		args = append(args, values...)
	}

	if f.AgentID != "" {
		add("agent_id = ?", f.AgentID)
	}
	if f.RoomID != "" {
		add("room_id = ?", f.RoomID)
	}
	if f.Action != "" {
		add("action = ?", f.Action)
	}
	if n := len(f.Statuses); n > 0 {
		values := make([]any, n)
		for i, status := range f.Statuses {
			values[i] = string(status)
		}
		add("status IN ("+strings.TrimSuffix(strings.Repeat("?,", n), ",")+")", values...)
	}
	if since := f.sinceUnix(); since > 0 {
		add("updated_at >= ?", since)
	}
	if until := f.untilUnix(); until > 0 {
		add("updated_at <= ?", until)
	}
	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		add("(id LIKE ? OR text LIKE ? OR action LIKE ? OR last_error LIKE ? OR result LIKE ?)",
			pattern, pattern, pattern, pattern, pattern)
	}
	return strings.Join(conditions, " AND "), args
}

var _ Store = (*MySQLStore)(nil)
