package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/bardavid-law/intake-cli/internal/model"
	"github.com/bardavid-law/intake-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS change_sets (
	id            TEXT PRIMARY KEY,
	contact_id    TEXT,
	contact_name  TEXT NOT NULL,
	document_type TEXT NOT NULL,
	source_file   TEXT,
	status        TEXT NOT NULL DEFAULT 'draft',
	payload       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	document_path  TEXT NOT NULL,
	document_type  TEXT,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	failed_stage   TEXT,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_change_sets_status ON change_sets(status);
CREATE INDEX IF NOT EXISTS idx_change_sets_contact_id ON change_sets(contact_id);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry_at ON dead_letter_queue(next_retry_at);
CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveChangeSet(ctx context.Context, cs *model.ChangeSet) (*Draft, error) {
	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	payload, err := json.Marshal(cs)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal change set")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO change_sets (id, contact_id, contact_name, document_type, source_file, status, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cs.ID, cs.ContactID, cs.ContactName, cs.DocumentType, cs.SourceFile,
		string(StatusDraft), string(payload), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert change set")
	}

	return &Draft{
		ID:        cs.ID,
		Status:    StatusDraft,
		ChangeSet: cs,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateChangeSet overwrites the stored payload, preserving status. It
// is how review overrides (approval flags, family actions) persist.
func (s *SQLiteStore) UpdateChangeSet(ctx context.Context, cs *model.ChangeSet) error {
	payload, err := json.Marshal(cs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal change set")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE change_sets SET payload = ?, updated_at = ? WHERE id = ?`,
		string(payload), time.Now().UTC(), cs.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update change set %s", cs.ID)
	}
	return checkRowsAffected(res, "change_set", cs.ID)
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, id string, status ChangeSetStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE change_sets SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update status %s", id)
	}
	return checkRowsAffected(res, "change_set", id)
}

func (s *SQLiteStore) GetChangeSet(ctx context.Context, id string) (*Draft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, payload, created_at, updated_at FROM change_sets WHERE id = ?`,
		id,
	)
	return scanDraft(row)
}

func (s *SQLiteStore) ListChangeSets(ctx context.Context, filter ChangeSetFilter) ([]Draft, error) {
	query := `SELECT id, status, payload, created_at, updated_at FROM change_sets WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ContactID != "" {
		query += ` AND contact_id = ?`
		args = append(args, filter.ContactID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list change sets")
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, *d)
	}
	return drafts, eris.Wrap(rows.Err(), "sqlite: list change sets iterate")
}

func (s *SQLiteStore) CountChangeSets(ctx context.Context) (map[ChangeSetStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM change_sets GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count change sets")
	}
	defer rows.Close()

	counts := make(map[ChangeSetStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: count change sets scan")
		}
		counts[ChangeSetStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count change sets iterate")
}

// Dead letter queue methods

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, document_path, document_type, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   error = excluded.error, error_type = excluded.error_type,
		   failed_stage = excluded.failed_stage, retry_count = excluded.retry_count,
		   next_retry_at = excluded.next_retry_at, last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.DocumentPath, entry.DocumentType, entry.Error, entry.ErrorType,
		entry.FailedStage, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, document_path, document_type, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= ? AND retry_count < max_retries`
	args := []any{time.Now().UTC()}

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}

	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		var docType, failedStage sql.NullString
		if err := rows.Scan(&e.ID, &e.DocumentPath, &docType, &e.Error, &e.ErrorType,
			&failedStage, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		e.DocumentType = docType.String
		e.FailedStage = failedStage.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq_entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanDraft(row scannable) (*Draft, error) {
	var d Draft
	var payload string

	err := row.Scan(&d.ID, &d.Status, &payload, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("change_set not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan change set")
	}

	d.ChangeSet = &model.ChangeSet{}
	if err := json.Unmarshal([]byte(payload), d.ChangeSet); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal change set")
	}
	return &d, nil
}
