// Package sqlite provides a local batch ledger for installs without a
// DynamoDB bookkeeping table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/tidemark/internal/core/domain"
	"github.com/custodia-labs/tidemark/internal/core/ports/driven"
)

// Ensure Ledger implements the driven port
var _ driven.Ledger = (*Ledger)(nil)

const schema = `
	CREATE TABLE IF NOT EXISTS batch_jobs (
		batch_id       TEXT PRIMARY KEY,
		created_utc    TEXT NOT NULL,
		table_name     TEXT NOT NULL,
		status         TEXT NOT NULL,
		model          TEXT,
		input_file_id  TEXT,
		record_count   INTEGER NOT NULL DEFAULT 0,
		final_status   TEXT,
		output_file_id TEXT
	)
`

// Ledger records batch bookkeeping entries in a local SQLite database.
type Ledger struct {
	db   *sql.DB
	path string
}

// New creates a ledger database under dataDir.
// If dataDir is empty, defaults to ~/.local/share/tidemark.
func New(dataDir string) (*Ledger, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share", "tidemark")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ledger.db")

	// WAL mode lets the daemon's sweep and cycle jobs write without
	// tripping over each other.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating batch_jobs table: %w", err)
	}

	return &Ledger{
		db:   db,
		path: dbPath,
	}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Record inserts a submission entry for a freshly created batch.
// Recording the same batch ID again refreshes the submission fields.
func (l *Ledger) Record(ctx context.Context, job domain.Job) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO batch_jobs (batch_id, created_utc, table_name, status, model, input_file_id, record_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO UPDATE SET
			created_utc = excluded.created_utc,
			table_name = excluded.table_name,
			status = excluded.status,
			model = excluded.model,
			input_file_id = excluded.input_file_id,
			record_count = excluded.record_count
	`, job.BatchID, job.CreatedUTC, job.Source, job.Status,
		nullString(job.Model), nullString(job.InputFileID), job.RecordCount)

	if err != nil {
		return fmt.Errorf("saving ledger entry: %w", err)
	}
	return nil
}

// Finalise stamps a terminal status and output file onto the entry.
// A batch that was never recorded, a resumed orphan for instance, gets
// a fresh row instead.
func (l *Ledger) Finalise(ctx context.Context, job domain.Job) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE batch_jobs SET final_status = ?, output_file_id = ? WHERE batch_id = ?
	`, job.FinalStatus, nullString(job.OutputFileID), job.BatchID)
	if err != nil {
		return fmt.Errorf("updating ledger entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating ledger entry: %w", err)
	}
	if affected > 0 {
		return nil
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO batch_jobs (batch_id, created_utc, table_name, status, model, input_file_id, record_count, final_status, output_file_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO UPDATE SET
			final_status = excluded.final_status,
			output_file_id = excluded.output_file_id
	`, job.BatchID, job.CreatedUTC, job.Source, job.Status,
		nullString(job.Model), nullString(job.InputFileID), job.RecordCount,
		job.FinalStatus, nullString(job.OutputFileID))

	if err != nil {
		return fmt.Errorf("saving ledger entry: %w", err)
	}
	return nil
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
