package evidence

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore journals evidence records locally so publish history survives
// restarts and remote-endpoint outages. Use ":memory:" for tests.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the journal at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS evidence (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		task TEXT NOT NULL,
		round INTEGER NOT NULL,
		email TEXT,
		nonce TEXT,
		remote_ip TEXT,
		url TEXT,
		status TEXT NOT NULL,
		repo_url TEXT,
		pages_url TEXT,
		commit_sha TEXT,
		error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_evidence_task ON evidence(task);
	CREATE INDEX IF NOT EXISTS idx_evidence_created_at ON evidence(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save journals one record.
func (s *SQLiteStore) Save(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evidence
		 (request_id, task, round, email, nonce, remote_ip, url, status, repo_url, pages_url, commit_sha, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RequestID, r.Task, r.Round, r.Email, r.Nonce, r.RemoteIP, r.URL,
		r.Status, r.RepoURL, r.PagesURL, r.CommitSHA, r.Error, created.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

// ByTask returns all records for a task, oldest first.
func (s *SQLiteStore) ByTask(ctx context.Context, task string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, task, round, email, nonce, remote_ip, url, status, repo_url, pages_url, commit_sha, error, created_at
		 FROM evidence WHERE task = ? ORDER BY id`, task)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Recent returns the most recent records, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, task, round, email, nonce, remote_ip, url, status, repo_url, pages_url, commit_sha, error, created_at
		 FROM evidence ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		var r Record
		var createdUnix int64
		err := rows.Scan(&r.RequestID, &r.Task, &r.Round, &r.Email, &r.Nonce, &r.RemoteIP, &r.URL,
			&r.Status, &r.RepoURL, &r.PagesURL, &r.CommitSHA, &r.Error, &createdUnix)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		r.CreatedAt = time.Unix(createdUnix, 0)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return records, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
