// Package history persists finished run metrics to a local SQLite
// database so past runs can be listed and compared.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/crowdmark/crowdmark/internal/metrics"
)

// Store wraps the SQLite connection holding run history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		state TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		total_frames INTEGER NOT NULL,
		frames_processed INTEGER NOT NULL,
		frames_skipped INTEGER NOT NULL,
		total_detections INTEGER NOT NULL,
		avg_detections REAL NOT NULL,
		avg_inference_ms REAL NOT NULL,
		duration_seconds REAL NOT NULL,
		processing_fps REAL NOT NULL,
		model TEXT NOT NULL,
		conf_threshold REAL NOT NULL,
		device TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts one finished run.
func (s *Store) SaveRun(ctx context.Context, m *metrics.RunMetrics) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, started_at, input_path, output_path, state, error_kind,
			total_frames, frames_processed, frames_skipped, total_detections,
			avg_detections, avg_inference_ms, duration_seconds, processing_fps,
			model, conf_threshold, device
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.RunID, m.StartedAt.UTC(), m.InputPath, m.OutputPath, m.State, m.ErrorKind,
		m.TotalFrames, m.FramesProcessed, m.FramesSkipped, m.TotalDetections,
		m.AvgDetectionsPerFrame, m.Inference.AvgMS, m.DurationSeconds, m.ProcessingFPS,
		m.Model, m.ConfThreshold, m.Device,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunSummary is one row of run history.
type RunSummary struct {
	RunID           string
	StartedAt       time.Time
	InputPath       string
	State           string
	ErrorKind       string
	TotalFrames     int
	TotalDetections int
	AvgDetections   float64
	DurationSeconds float64
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, started_at, input_path, state, error_kind,
		       total_frames, total_detections, avg_detections, duration_seconds
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(
			&r.RunID, &r.StartedAt, &r.InputPath, &r.State, &r.ErrorKind,
			&r.TotalFrames, &r.TotalDetections, &r.AvgDetections, &r.DurationSeconds,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
