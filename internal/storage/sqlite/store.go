package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/blackstories-client/internal/storage"
)

// Store is a SQLite implementation of TranscriptStore
type Store struct {
	db *sqlx.DB
}

var _ storage.TranscriptStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS transcripts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			transcript_id TEXT NOT NULL,
			lane TEXT NOT NULL,
			speaker TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			html INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_session ON transcripts(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_transcript ON entries(transcript_id, seq)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) CreateTranscript(ctx context.Context, t *storage.Transcript) error {
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt

	query := `INSERT INTO transcripts (id, session_id, mode, created_at, updated_at)
	          VALUES (:id, :session_id, :mode, :created_at, :updated_at)`

	if _, err := s.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}

	return nil
}

func (s *Store) AppendEntries(ctx context.Context, transcriptID string, entries []storage.Entry) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `UPDATE transcripts SET updated_at = ? WHERE id = ?`, now, transcriptID)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transcript %s: %w", transcriptID, storage.ErrNotFound)
	}

	query := `INSERT INTO entries (id, transcript_id, lane, speaker, text, html, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, query,
			e.ID, transcriptID, e.Lane, e.Speaker, e.Text, e.HTML, now); err != nil {
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetTranscript(ctx context.Context, id string) (*storage.Transcript, error) {
	var t storage.Transcript
	err := s.db.GetContext(ctx, &t,
		`SELECT id, session_id, mode, created_at, updated_at FROM transcripts WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	if err := s.db.SelectContext(ctx, &t.Entries,
		`SELECT id, lane, speaker, text, html, created_at FROM entries
		 WHERE transcript_id = ? ORDER BY seq ASC`, id); err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}

	return &t, nil
}

func (s *Store) ListTranscripts(ctx context.Context, opts storage.ListOptions) ([]*storage.Transcript, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = 100 // default limit
	}

	query := `SELECT id, session_id, mode, created_at, updated_at FROM transcripts`
	args := []any{}
	if opts.SessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, opts.SessionID)
	}
	query += ` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	var transcripts []*storage.Transcript
	if err := s.db.SelectContext(ctx, &transcripts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}

	return transcripts, nil
}

func (s *Store) DeleteTranscript(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// entries carry no foreign key and go first
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE transcript_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("transcript %s: %w", id, storage.ErrNotFound)
	}

	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}
