package mysql

import (
	"bufio"
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"AgentSwap/deploy/migrations"
)

const migrationTableDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        applied_at BIGINT NOT NULL
)`

type migration struct {
	version    string
	name       string
	statements []string
}

// Migrate 按版本号顺序执行 files 中尚未记录在 schema_migrations 的脚本，
// 每个脚本在独立事务中执行。files 为 nil 时使用内置迁移。
func Migrate(ctx context.Context, db *sql.DB, files fs.FS) error {
	if files == nil {
		files = migrations.Files
	}
	if _, err := db.ExecContext(ctx, migrationTableDDL); err != nil {
		return fmt.Errorf("创建 schema_migrations 表失败: %w", err)
	}
	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}
	all, err := readMigrations(files)
	if err != nil {
		return err
	}
	for _, m := range all {
		if applied[m.version] {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) runMigrations(ctx context.Context) error {
	return Migrate(ctx, s.db, nil)
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("查询 schema_migrations 失败: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("解析 schema_migrations 失败: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func apply(ctx context.Context, db *sql.DB, m migration) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启迁移事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range m.statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行迁移 %s 失败: %w", m.name, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, m.version, time.Now().Unix()); err != nil {
		return fmt.Errorf("记录迁移版本失败: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("提交迁移事务失败: %w", err)
	}
	return nil
}

func readMigrations(files fs.FS) ([]migration, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("读取迁移目录失败: %w", err)
	}
	out := make([]migration, 0, len(names))
	for _, name := range names {
		raw, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("读取迁移文件 %s 失败: %w", name, err)
		}
		if stmts := splitStatements(string(raw)); len(stmts) > 0 {
			out = append(out, migration{version: versionOf(name), name: name, statements: stmts})
		}
	}
	slices.SortFunc(out, func(a, b migration) int {
		return cmp.Or(cmp.Compare(a.version, b.version), cmp.Compare(a.name, b.name))
	})
	return out, nil
}

// splitStatements 去掉整行 -- 注释后按分号切分。
func splitStatements(content string) []string {
	var body strings.Builder
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}

	var stmts []string
	for _, part := range strings.Split(body.String(), ";") {
		if part = strings.TrimSpace(part); part != "" {
			stmts = append(stmts, part)
		}
	}
	return stmts
}

// versionOf 取文件名中第一个下划线之前的部分，例如 0003_create_agent_tasks.sql 得到 0003。
func versionOf(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	if v, _, ok := strings.Cut(base, "_"); ok && v != "" {
		return v
	}
	return base
}
