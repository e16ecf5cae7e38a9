// Package cache persists completed endpoint responses so reruns skip live
// dispatch. Entries are keyed by a fingerprint of everything that affects
// the output; identical keys are safe to reuse across process restarts.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Entry is a cached endpoint response.
type Entry struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	LatencyMs        int64  `json:"latency_ms"`
}

// Key fingerprints a work item. Two items with equal model identity,
// output-affecting parameters, example id, and prompt text share a key.
func Key(model, systemPrompt string, maxTokens int, exampleID, prompt string) string {
	h := sha256.New()
	for _, part := range []string{model, systemPrompt, strconv.Itoa(maxTokens), exampleID, prompt} {
		b := []byte(part)
		fmt.Fprintf(h, "%d:", len(b))
		h.Write(b)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Store is a sqlite-backed key→response cache. Safe for concurrent use;
// writes to the same key are idempotent overwrites.
type Store struct {
	db       *sql.DB
	log      zerolog.Logger
	disabled bool
}

// Open opens or creates a cache at path (":memory:" supported). When
// disabled is true, Get always misses but Put still writes, so a forced
// re-evaluation repopulates the cache.
func Open(path string, disabled bool, log zerolog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("cache: empty path")
	}
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("cache: create dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	if path == ":memory:" {
		// Each sqlite connection gets its own in-memory database; keep a
		// single one so the schema survives.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: ping sqlite: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, log: log, disabled: disabled}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS responses (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("cache: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached entry for key, or ok=false on a miss. A stored
// entry that fails to decode counts as a miss and is logged; it never
// fails the run.
func (s *Store) Get(ctx context.Context, key string) (*Entry, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, errors.New("cache: nil store")
	}
	if ctx == nil {
		return nil, false, errors.New("cache: nil context")
	}
	if s.disabled {
		return nil, false, nil
	}

	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM responses WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		s.log.Warn().Str("key", key).Err(err).Msg("cache entry corrupted, treating as miss")
		return nil, false, nil
	}
	return &e, true, nil
}

// Put stores an entry under key. The row is written atomically; a
// concurrent writer with the same key simply overwrites the same bytes.
func (s *Store) Put(ctx context.Context, key string, e *Entry) error {
	if s == nil || s.db == nil {
		return errors.New("cache: nil store")
	}
	if ctx == nil {
		return errors.New("cache: nil context")
	}
	if e == nil {
		return errors.New("cache: nil entry")
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: marshal entry: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO responses (key, value, created_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, raw, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}
