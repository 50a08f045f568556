package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/octgate/pkg/domain"
	"github.com/m-mizutani/octgate/pkg/domain/interfaces"
	"github.com/m-mizutani/octgate/pkg/domain/model"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a RunLedger shared by every process using the same database file.
type SQLite struct {
	db *sql.DB
}

var _ interfaces.RunLedger = (*SQLite)(nil)

func NewSQLite(dbPath string) (*SQLite, error) {
	// https://github.com/mattn/go-sqlite3#connection-string
	opts := []string{
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
		"_busy_timeout=5000",
		// Begin must read and cancel the group under a write lock
		"_txlock=immediate",
	}

	db, err := sql.Open("sqlite3", dbPath+"?"+strings.Join(opts, "&"))
	if err != nil {
		return nil, domain.ErrRepository.Wrap(err)
	}

	_, err = db.Exec(`
		create table if not exists runs (
			id text primary key,
			workflow text not null,
			concurrency_key text not null,
			status text not null,
			exit_code integer not null default 0,
			reason text not null default '',
			created_at text not null,
			updated_at text not null
		);

		create index if not exists runs_concurrency_key on runs (concurrency_key, status);
	`)
	if err != nil {
		_ = db.Close()
		return nil, domain.ErrRepository.Wrap(err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Begin(ctx context.Context, run *model.WorkflowRun) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.ErrRepository.Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		select id from runs
		where concurrency_key = ? and status in (?, ?)
		order by id
	`, run.ConcurrencyKey, model.RunStatusPending, model.RunStatusRunning)
	if err != nil {
		return nil, domain.ErrRepository.Wrap(err)
	}

	var cancelled []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, domain.ErrRepository.Wrap(err)
		}
		cancelled = append(cancelled, id)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, domain.ErrRepository.Wrap(err)
	}

	now := formatTime(time.Now())
	for _, id := range cancelled {
		_, err := tx.ExecContext(ctx, `
			update runs set status = ?, reason = ?, updated_at = ? where id = ?
		`, model.RunStatusCancelled, "superseded by "+run.ID, now, id)
		if err != nil {
			return nil, domain.ErrRepository.Wrap(err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		insert into runs (id, workflow, concurrency_key, status, exit_code, reason, created_at, updated_at)
		values (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Workflow, run.ConcurrencyKey, run.Status, run.ExitCode, run.Reason,
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt))
	if err != nil {
		return nil, domain.ErrRepository.Wrap(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.ErrRepository.Wrap(err)
	}
	return cancelled, nil
}

func (s *SQLite) Start(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		update runs set status = ?, updated_at = ? where id = ? and status = ?
	`, model.RunStatusRunning, formatTime(time.Now()), id, model.RunStatusPending)
	if err != nil {
		return domain.ErrRepository.Wrap(err)
	}
	if num, err := res.RowsAffected(); err == nil && num == 0 {
		// either missing or already past pending
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Finish(ctx context.Context, id string, status model.RunStatus, exitCode int, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		update runs set status = ?, exit_code = ?, reason = ?, updated_at = ?
		where id = ? and status in (?, ?)
	`, status, exitCode, reason, formatTime(time.Now()), id, model.RunStatusPending, model.RunStatusRunning)
	if err != nil {
		return false, domain.ErrRepository.Wrap(err)
	}

	num, err := res.RowsAffected()
	if err != nil {
		return false, domain.ErrRepository.Wrap(err)
	}
	if num == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*model.WorkflowRun, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, workflow, concurrency_key, status, exit_code, reason, created_at, updated_at
		from runs where id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errRunNotFound(id)
	}
	if err != nil {
		return nil, domain.ErrRepository.Wrap(err)
	}
	return run, nil
}

func (s *SQLite) List(ctx context.Context, concurrencyKey string, limit int) ([]*model.WorkflowRun, error) {
	query := `
		select id, workflow, concurrency_key, status, exit_code, reason, created_at, updated_at
		from runs`
	var args []any
	if concurrencyKey != "" {
		query += ` where concurrency_key = ?`
		args = append(args, concurrencyKey)
	}
	query += ` order by created_at desc`
	if limit > 0 {
		query += ` limit ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.ErrRepository.Wrap(err)
	}
	defer rows.Close()

	var runs []*model.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, domain.ErrRepository.Wrap(err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrRepository.Wrap(err)
	}
	return runs, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*model.WorkflowRun, error) {
	var (
		run                  model.WorkflowRun
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(&run.ID, &run.Workflow, &run.ConcurrencyKey, &status,
		&run.ExitCode, &run.Reason, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)

	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	if run.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, err
	}
	return &run, nil
}

// fixed width so that text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
