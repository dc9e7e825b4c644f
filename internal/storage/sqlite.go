// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/rewind/internal/models"
)

const driverName = "sqlite3_rewind"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			// SQLite's lower() folds ASCII only; OCR text is not.
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		captured_at INTEGER NOT NULL,
		window_title TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		image_ref TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL DEFAULT '',
		vector_state TEXT NOT NULL DEFAULT 'pending',
		embed_attempts INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_captured_at ON records(captured_at);
	CREATE INDEX IF NOT EXISTS idx_records_vector_state ON records(vector_state);
	`
	_, err := db.Exec(schema)
	return err
}

const recordColumns = `id, captured_at, window_title, text, image_ref, fingerprint, vector_state, embed_attempts, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var rec models.Record
	var capturedAt, createdAt int64
	var state string
	if err := row.Scan(&rec.ID, &capturedAt, &rec.WindowTitle, &rec.Text, &rec.ImageRef,
		&rec.Fingerprint, &state, &rec.EmbedAttempts, &createdAt); err != nil {
		return nil, err
	}
	rec.CapturedAt = time.Unix(0, capturedAt)
	rec.CreatedAt = time.Unix(0, createdAt)
	rec.VectorState = models.VectorState(state)
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]*models.Record, error) {
	defer rows.Close()
	var recs []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// rangeClause appends capture-time bounds to a WHERE clause.
func rangeClause(tr models.TimeRange, args []any) (string, []any) {
	var b strings.Builder
	if !tr.From.IsZero() {
		b.WriteString(" AND captured_at >= ?")
		args = append(args, tr.From.UnixNano())
	}
	if !tr.To.IsZero() {
		b.WriteString(" AND captured_at <= ?")
		args = append(args, tr.To.UnixNano())
	}
	return b.String(), args
}

// CreateRecord inserts a record keyed by its ID. Inserting an existing ID is a no-op.
func (s *SQLiteStorage) CreateRecord(ctx context.Context, rec *models.Record) (bool, error) {
	if rec.ID == "" {
		return false, fmt.Errorf("record id is required")
	}
	if rec.VectorState == "" {
		rec.VectorState = models.VectorPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO records (`+recordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CapturedAt.UnixNano(), rec.WindowTitle, rec.Text, rec.ImageRef,
		rec.Fingerprint, string(rec.VectorState), rec.EmbedAttempts, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetRecord returns a record by ID.
func (s *SQLiteStorage) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// lookupBatchSize bounds the placeholders in one IN query; SQLite rejects more than 32766 variables.
const lookupBatchSize = 500

// GetRecords returns the records that exist among ids, keyed by ID.
func (s *SQLiteStorage) GetRecords(ctx context.Context, ids []string) (map[string]*models.Record, error) {
	out := make(map[string]*models.Record, len(ids))
	for start := 0; start < len(ids); start += lookupBatchSize {
		end := min(start+lookupBatchSize, len(ids))
		if err := s.getRecordBatch(ctx, ids[start:end], out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *SQLiteStorage) getRecordBatch(ctx context.Context, ids []string, out map[string]*models.Record) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("record lookup failed: %w", err)
	}
	recs, err := scanRecords(rows)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		out[rec.ID] = rec
	}
	return nil
}

// SearchText returns records whose extracted text contains query, ignoring case, newest first.
func (s *SQLiteStorage) SearchText(ctx context.Context, query string, tr models.TimeRange, limit int) ([]*models.Record, error) {
	if query == "" {
		return nil, nil
	}
	where, args := rangeClause(tr, []any{query})
	args = append(args, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records
		 WHERE instr(fold(text), fold(?)) > 0`+where+`
		 ORDER BY captured_at DESC, id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("text search failed: %w", err)
	}
	return scanRecords(rows)
}

// ListRecent returns records newest first, optionally bounded by capture time.
func (s *SQLiteStorage) ListRecent(ctx context.Context, tr models.TimeRange, offset, limit int) ([]*models.Record, error) {
	where, args := rangeClause(tr, nil)
	args = append(args, limit, offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE 1=1`+where+`
		 ORDER BY captured_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// ListIDsByVectorState returns the IDs of all records in the given vector state.
func (s *SQLiteStorage) ListIDsByVectorState(ctx context.Context, state models.VectorState) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM records WHERE vector_state = ?`, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetVectorState records the outcome of an embedding attempt.
func (s *SQLiteStorage) SetVectorState(ctx context.Context, id string, state models.VectorState, attempts int) error {
	if !state.Valid() {
		return fmt.Errorf("invalid vector state %q", state)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE records SET vector_state = ?, embed_attempts = ? WHERE id = ?`,
		string(state), attempts, id)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// CountRecords returns the total number of records.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	return count, err
}

// CountByVectorState returns record counts grouped by vector state.
func (s *SQLiteStorage) CountByVectorState(ctx context.Context) (map[models.VectorState]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT vector_state, COUNT(*) FROM records GROUP BY vector_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[models.VectorState]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[models.VectorState(state)] = n
	}
	return out, rows.Err()
}

// Wipe deletes every record.
func (s *SQLiteStorage) Wipe(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return fmt.Errorf("failed to wipe records: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
