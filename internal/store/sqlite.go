// 包 store 提供导出历史的 SQLite 实现：记录每次运行与每个写盘文件。
// 是否跳过某条训练只看输出目录中文件是否存在，历史库仅用于查询与统计。
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"polar-flow-export/internal/model"
)

// SQLite 封装 *sql.DB，基于 modernc.org/sqlite（纯 Go 实现）。
type SQLite struct {
	db *sql.DB
}

// OpenSQLite 打开数据库并执行自动迁移。
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            range_from TEXT,
            range_to TEXT,
            output_dir TEXT,
            started_at TIMESTAMP,
            finished_at TIMESTAMP,
            written INTEGER DEFAULT 0,
            skipped INTEGER DEFAULT 0
        );`,
		`CREATE TABLE IF NOT EXISTS exports (
            activity_id TEXT,
            datetime TEXT,
            type TEXT,
            filename TEXT UNIQUE,
            size INTEGER,
            run_id TEXT,
            exported_at TIMESTAMP
        );`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("exec migrate: %w", err)
		}
	}
	return nil
}

// StartRun 写入一条未结束的运行记录。
func (s *SQLite) StartRun(ctx context.Context, r model.Run) error {
	if r.ID == "" {
		return errors.New("run.id required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs(id, range_from, range_to, output_dir, started_at) VALUES(?,?,?,?,?)`,
		r.ID, r.From, r.To, r.OutputDir, nowOr(r.StartedAt))
	if err != nil {
		return fmt.Errorf("start run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun 更新运行的结束时间与计数。
func (s *SQLite) FinishRun(ctx context.Context, r model.Run) error {
	_, err := s.db.ExecContext(ctx, `UPDATE runs SET finished_at=?, written=?, skipped=? WHERE id=?`,
		nowOr(r.FinishedAt), r.Written, r.Skipped, r.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	return nil
}

// RecordExport 记录一个写盘文件；同名文件再次出现时覆盖旧记录（例如用户手动删除后重新导出）。
func (s *SQLite) RecordExport(ctx context.Context, rec model.ExportRecord) error {
	if rec.Filename == "" {
		return errors.New("export.filename required")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO exports(activity_id, datetime, type, filename, size, run_id, exported_at)
        VALUES(?,?,?,?,?,?,?)
        ON CONFLICT(filename) DO UPDATE SET activity_id=excluded.activity_id, datetime=excluded.datetime, type=excluded.type,
            size=excluded.size, run_id=excluded.run_id, exported_at=excluded.exported_at`,
		rec.ActivityID, rec.Datetime, rec.Type, rec.Filename, rec.Size, rec.RunID, nowOr(rec.ExportedAt))
	if err != nil {
		return fmt.Errorf("record export %s: %w", rec.Filename, err)
	}
	return nil
}

// ListExports 返回全部导出记录，按训练时间升序。
func (s *SQLite) ListExports(ctx context.Context) ([]model.ExportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT activity_id, datetime, type, filename, size, COALESCE(run_id,''), exported_at FROM exports ORDER BY datetime, activity_id`)
	if err != nil {
		return nil, fmt.Errorf("query exports: %w", err)
	}
	defer rows.Close()
	var out []model.ExportRecord
	for rows.Next() {
		var rec model.ExportRecord
		var exportedAt sql.NullTime
		if err := rows.Scan(&rec.ActivityID, &rec.Datetime, &rec.Type, &rec.Filename, &rec.Size, &rec.RunID, &exportedAt); err != nil {
			return nil, fmt.Errorf("scan exports: %w", err)
		}
		if exportedAt.Valid {
			rec.ExportedAt = exportedAt.Time
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exports: %w", err)
	}
	return out, nil
}

// Stats 统计运行次数、导出文件数与总字节数。
func (s *SQLite) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM runs`).Scan(&st.Runs); err != nil {
		return st, fmt.Errorf("count runs: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COALESCE(SUM(size),0) FROM exports`).Scan(&st.Exports, &st.Bytes); err != nil {
		return st, fmt.Errorf("count exports: %w", err)
	}
	st.UpdatedAt = time.Now()
	return st, nil
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
