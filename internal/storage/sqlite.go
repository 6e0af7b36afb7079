package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"remindd/internal/reminder"
	logx "remindd/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Backend, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite storage opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) (Snapshot, error) {
	if s == nil || s.db == nil {
		return Snapshot{}, ErrClosed
	}
	snap := Snapshot{}

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color, created_at FROM groups ORDER BY created_at, id`)
	if err != nil {
		return Snapshot{}, err
	}
	for rows.Next() {
		var g reminder.Group
		var created string
		if err := rows.Scan(&g.ID, &g.Name, &g.Color, &created); err != nil {
			_ = rows.Close()
			return Snapshot{}, err
		}
		g.CreatedAt = parseTime(created)
		snap.Groups = append(snap.Groups, g)
	}
	if err := closeRows(rows); err != nil {
		return Snapshot{}, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, title, color, group_id, cron_expression, start_at, end_at, description,
		        created_at, last_triggered_at, is_cancelled, is_deleted, is_paused
		   FROM reminders ORDER BY position`)
	if err != nil {
		return Snapshot{}, err
	}
	for rows.Next() {
		var (
			r                       reminder.Reminder
			cronExpr, start, end    sql.NullString
			desc, created, lastTrig sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.Color, &r.GroupID, &cronExpr, &start, &end, &desc,
			&created, &lastTrig, &r.IsCancelled, &r.IsDeleted, &r.IsPaused); err != nil {
			_ = rows.Close()
			return Snapshot{}, err
		}
		r.CronExpression = strPtr(cronExpr)
		r.StartAt = strPtr(start)
		r.EndAt = strPtr(end)
		r.Description = strPtr(desc)
		r.CreatedAt = timePtr(created)
		r.LastTriggeredAt = timePtr(lastTrig)
		snap.Reminders = append(snap.Reminders, r)
	}
	if err := closeRows(rows); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Save rewrites both tables in one transaction.
func (s *sqliteStore) Save(ctx context.Context, snap Snapshot) (err error) {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM reminders`); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM groups`); err != nil {
		return err
	}
	for _, g := range snap.Groups {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO groups(id, name, color, created_at) VALUES(?,?,?,?)`,
			g.ID, g.Name, g.Color, g.CreatedAt.Format(time.RFC3339Nano),
		); err != nil {
			return err
		}
	}
	for i, r := range snap.Reminders {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO reminders(id, title, color, group_id, cron_expression, start_at, end_at, description,
			                       created_at, last_triggered_at, is_cancelled, is_deleted, is_paused, position)
			 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			r.ID, r.Title, r.Color, r.GroupID, nullPtr(r.CronExpression), nullPtr(r.StartAt), nullPtr(r.EndAt),
			nullPtr(r.Description), nullTime(r.CreatedAt), nullTime(r.LastTriggeredAt),
			r.IsCancelled, r.IsDeleted, r.IsPaused, i,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) AppendFire(ctx context.Context, rec FireRecord) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fires(reminder_id, title, at, delivered, err) VALUES(?,?,?,?,?)`,
		rec.ReminderID, rec.Title, rec.At.Format(time.RFC3339Nano), rec.Delivered, nullStr(rec.Error),
	)
	return err
}

func (s *sqliteStore) Fires(ctx context.Context, reminderID string, limit int) ([]FireRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = -1
	}
	q := `SELECT reminder_id, title, at, delivered, err FROM fires`
	args := []any{}
	if reminderID != "" {
		q += ` WHERE reminder_id = ?`
		args = append(args, reminderID)
	}
	q += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	out := []FireRecord{}
	for rows.Next() {
		var (
			rec    FireRecord
			at     string
			errStr sql.NullString
		)
		if err := rows.Scan(&rec.ReminderID, &rec.Title, &at, &rec.Delivered, &errStr); err != nil {
			_ = rows.Close()
			return nil, err
		}
		rec.At = parseTime(at)
		rec.Error = errStr.String
		out = append(out, rec)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}
	return out, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func timePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t := parseTime(v.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullPtr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
