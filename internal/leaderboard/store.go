// Package leaderboard persists per-run model scores and renders them into
// a report.
package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Technolog796/DeathMath/internal/aggregate"
)

const defaultLimit = 50

type Store struct {
	db *sql.DB
}

// Entry is one model's score on one dataset from one run.
type Entry struct {
	ID         int64
	RunID      string
	Model      string
	Dataset    string
	Accuracy   float64
	Attempted  int
	Correct    int
	CacheHits  int
	Failed     int
	DataFaults int
	Tokens     int
	EvalDate   time.Time
}

func NewStore(dbPath string) (*Store, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, errors.New("leaderboard: empty db path")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("leaderboard: create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Each sqlite connection gets its own in-memory database; keep a
		// single one so the schema survives.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("leaderboard: ping db: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("leaderboard: nil db")
	}

	stmts := []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA journal_mode = WAL`,
		`CREATE TABLE IF NOT EXISTS leaderboard_entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			model TEXT NOT NULL,
			dataset TEXT NOT NULL,
			accuracy REAL NOT NULL,
			attempted INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			cache_hits INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			data_faults INTEGER NOT NULL,
			tokens INTEGER NOT NULL,
			eval_date INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_dataset ON leaderboard_entries(dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_model_dataset ON leaderboard_entries(model, dataset)`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_run ON leaderboard_entries(run_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("leaderboard: init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun persists every dataset score (overall included) for a run.
func (s *Store) SaveRun(ctx context.Context, runID string, scores []aggregate.ModelScore) error {
	if s == nil || s.db == nil {
		return errors.New("leaderboard: nil store")
	}
	if ctx == nil {
		return errors.New("leaderboard: nil context")
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return errors.New("leaderboard: empty run id")
	}

	now := time.Now().UTC().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("leaderboard: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, ms := range scores {
		rows := append([]aggregate.DatasetScore{ms.Overall}, ms.Datasets...)
		for _, ds := range rows {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO leaderboard_entries (
					run_id, model, dataset, accuracy, attempted, correct,
					cache_hits, failed, data_faults, tokens, eval_date
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, runID, ms.Model, ds.Dataset, ds.Accuracy, ds.Attempted, ds.Correct,
				ds.CacheHits, ds.Failed, ds.DataFaults, ms.Tokens, now)
			if err != nil {
				return fmt.Errorf("leaderboard: insert entry: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("leaderboard: commit: %w", err)
	}
	return nil
}

// Top returns the best entries for a dataset, ranked by accuracy. Only the
// latest run of each model counts.
func (s *Store) Top(ctx context.Context, ds string, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("leaderboard: nil store")
	}
	if ctx == nil {
		return nil, errors.New("leaderboard: nil context")
	}
	ds = strings.TrimSpace(ds)
	if ds == "" {
		ds = "overall"
	}
	if limit <= 0 {
		limit = defaultLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.run_id, e.model, e.dataset, e.accuracy, e.attempted, e.correct,
			e.cache_hits, e.failed, e.data_faults, e.tokens, e.eval_date
		FROM leaderboard_entries e
		JOIN (
			SELECT model, MAX(eval_date) AS max_date
			FROM leaderboard_entries
			WHERE dataset = ?
			GROUP BY model
		) latest ON latest.model = e.model AND latest.max_date = e.eval_date
		WHERE e.dataset = ?
		ORDER BY e.accuracy DESC, e.model ASC
		LIMIT ?
	`, ds, ds, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: query top: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var evalDate int64
		if err := rows.Scan(&e.ID, &e.RunID, &e.Model, &e.Dataset, &e.Accuracy, &e.Attempted,
			&e.Correct, &e.CacheHits, &e.Failed, &e.DataFaults, &e.Tokens, &evalDate); err != nil {
			return nil, fmt.Errorf("leaderboard: scan entry: %w", err)
		}
		e.EvalDate = time.UnixMilli(evalDate).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leaderboard: iterate entries: %w", err)
	}
	return out, nil
}
