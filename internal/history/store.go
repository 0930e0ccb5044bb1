// Package history persists scoring results to SQLite for later inspection.
// Like the fallback policy, it is advisory: write failures are logged and
// swallowed so history can never break the scoring path. A nil *Store is a
// safe no-op.
package history

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"moodscope/internal/logging"
)

// Entry is one recorded scoring result.
type Entry struct {
	ID        int64     `json:"id"`
	ScoredAt  time.Time `json:"scored_at"`
	InputHash string    `json:"input_hash"`
	Label     string    `json:"label"`
	Score     float64   `json:"score"`
	Source    string    `json:"source"` // model or keyword
	Model     string    `json:"model,omitempty"`
}

// Store keeps score history in a SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// Open initializes the history database at the given path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS score_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		scored_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		input_hash TEXT NOT NULL,
		label TEXT NOT NULL,
		score REAL NOT NULL,
		source TEXT NOT NULL,
		model TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_history_scored_at ON score_history(scored_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// Record stores one scoring result. Only a hash of the input text is kept.
// Best-effort: failures are logged and swallowed.
func (s *Store) Record(text, label string, score float64, source, model string) {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO score_history (input_hash, label, score, source, model) VALUES (?, ?, ?, ?, ?)`,
		hashInput(text), label, score, source, model,
	)
	if err != nil {
		logging.HistoryError("record failed: %v", err)
		return
	}
	logging.History("recorded label=%s score=%.2f source=%s", label, score, source)
}

// Recent returns the most recent n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 20
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, scored_at, input_hash, label, score, source, COALESCE(model, '')
		 FROM score_history ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ScoredAt, &e.InputHash, &e.Label, &e.Score, &e.Source, &e.Model); err != nil {
			continue
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func hashInput(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}
