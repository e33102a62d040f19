package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/actionmesh/core"
	"github.com/hupe1980/actionmesh/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS executed_actions (
	id          TEXT NOT NULL,
	action_id   TEXT NOT NULL,
	message_id  TEXT NOT NULL,
	chat_id     TEXT NOT NULL,
	artifact_id TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	file_path   TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	output      TEXT NOT NULL DEFAULT '',
	exit_code   INTEGER,
	recorded_at TEXT NOT NULL,
	UNIQUE (action_id, message_id, chat_id)
);
CREATE INDEX IF NOT EXISTS idx_executed_actions_chat ON executed_actions(chat_id);
`

// SQLiteOptions configures a SQLiteStore.
type SQLiteOptions struct {
	Logger logging.Logger
}

// SQLiteStore is a durable ExecutionJournal.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
}

var _ core.ExecutionJournal = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at dsn. A file path
// gets its parent directory created; ":memory:" opens a private in-memory
// database.
func NewSQLiteStore(dsn string, optFns ...func(o *SQLiteOptions)) (*SQLiteStore, error) {
	opts := SQLiteOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logging.Scoped(opts.Logger, "Journal")}
	store.logger.Debug("Journal opened", "dsn", dsn)

	return store, nil
}

// Record upserts rec by (action_id, message_id, chat_id).
func (s *SQLiteStore) Record(ctx context.Context, rec core.ExecutionRecord) error {
	var exitCode sql.NullInt64
	if rec.ExitCode != nil {
		exitCode = sql.NullInt64{Int64: int64(*rec.ExitCode), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executed_actions
			(id, action_id, message_id, chat_id, artifact_id, kind, file_path, content, status, output, exit_code, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(action_id, message_id, chat_id) DO UPDATE SET
			status = excluded.status,
			output = excluded.output,
			exit_code = excluded.exit_code,
			recorded_at = excluded.recorded_at`,
		rec.ID, rec.ActionID, rec.MessageID, rec.ChatID, rec.ArtifactID, string(rec.Kind),
		rec.FilePath, rec.Content, string(rec.Status), rec.Output, exitCode,
		rec.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record action %s: %w", rec.ActionID, err)
	}
	return nil
}

// Executed reports whether an entry for key exists.
func (s *SQLiteStore) Executed(ctx context.Context, key core.JournalKey) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM executed_actions WHERE action_id = ? AND message_id = ? AND chat_id = ?`,
		key.ActionID, key.MessageID, key.ChatID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query journal: %w", err)
	}
	return n > 0, nil
}

// Get returns the entry for key or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key core.JournalKey) (core.ExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx, selectRecord+` WHERE action_id = ? AND message_id = ? AND chat_id = ?`,
		key.ActionID, key.MessageID, key.ChatID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExecutionRecord{}, ErrNotFound
	}
	return rec, err
}

// List returns the entries of chatID ordered by recording time.
func (s *SQLiteStore) List(ctx context.Context, chatID string) ([]core.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+` WHERE chat_id = ? ORDER BY recorded_at, id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	out := make([]core.ExecutionRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeLayout is fixed width so recorded_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectRecord = `SELECT id, action_id, message_id, chat_id, artifact_id, kind, file_path, content, status, output, exit_code, recorded_at FROM executed_actions`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (core.ExecutionRecord, error) {
	var (
		rec        core.ExecutionRecord
		kind       string
		status     string
		exitCode   sql.NullInt64
		recordedAt string
	)
	err := row.Scan(&rec.ID, &rec.ActionID, &rec.MessageID, &rec.ChatID, &rec.ArtifactID, &kind,
		&rec.FilePath, &rec.Content, &status, &rec.Output, &exitCode, &recordedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan journal entry: %w", err)
	}

	rec.Kind = core.ActionKind(kind)
	if rec.Status, err = core.ParseStatus(status); err != nil {
		return rec, err
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		rec.ExitCode = &code
	}
	if rec.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
		return rec, fmt.Errorf("failed to parse recorded_at: %w", err)
	}
	return rec, nil
}
