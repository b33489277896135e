// Package history records training runs and their per-epoch metrics in a
// SQLite database next to the checkpoints, for the history command and for
// comparing resumed runs against uninterrupted ones.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"faultsense/internal/failures"
	"faultsense/internal/sqlstore"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE runs (
	run_id         TEXT PRIMARY KEY,
	started_at     TEXT NOT NULL,
	finished_at    TEXT,
	status         TEXT NOT NULL,
	dataset_roots  TEXT NOT NULL,
	seed           INTEGER NOT NULL,
	epochs_planned INTEGER NOT NULL,
	monitor        TEXT NOT NULL
);
CREATE TABLE epochs (
	run_id          TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
	epoch           INTEGER NOT NULL,
	train_loss      REAL NOT NULL,
	train_accuracy  REAL NOT NULL,
	val_loss        REAL NOT NULL,
	val_accuracy    REAL NOT NULL,
	improved        INTEGER NOT NULL,
	snapshot_digest TEXT NOT NULL,
	recorded_at     TEXT NOT NULL,
	PRIMARY KEY (run_id, epoch)
);
`

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run describes one training run.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    *time.Time
	Status        string
	DatasetRoots  []string
	Seed          uint64
	EpochsPlanned int
	Monitor       string
}

// Epoch is one recorded epoch of a run.
type Epoch struct {
	RunID          string
	Epoch          int
	TrainLoss      float64
	TrainAccuracy  float64
	ValLoss        float64
	ValAccuracy    float64
	Improved       bool
	SnapshotDigest string
	RecordedAt     time.Time
}

// Store wraps the history database.
type Store struct {
	db *sqlstore.DB
}

// Open connects to the history database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sqlstore.Open(ctx, path, sqlstore.Schema{Name: "history", SQL: schemaSQL, Version: schemaVersion})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// StartRun inserts a run, or marks an existing run as running again when it
// is resumed.
func (s *Store) StartRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO runs (run_id, started_at, status, dataset_roots, seed, epochs_planned, monitor)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET status = excluded.status, finished_at = NULL`,
		run.ID, formatTime(run.StartedAt), run.Status, strings.Join(run.DatasetRoots, "\n"),
		int64(run.Seed), run.EpochsPlanned, run.Monitor)
	if err != nil {
		return fmt.Errorf("start run %s: %w", run.ID, err)
	}
	return nil
}

// RecordEpoch stores an epoch's metrics. Re-recording the same epoch after a
// resume replaces the earlier row.
func (s *Store) RecordEpoch(ctx context.Context, e Epoch) error {
	_, err := s.db.Exec(ctx,
		`INSERT OR REPLACE INTO epochs
		 (run_id, epoch, train_loss, train_accuracy, val_loss, val_accuracy, improved, snapshot_digest, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Epoch, e.TrainLoss, e.TrainAccuracy, e.ValLoss, e.ValAccuracy,
		boolToInt(e.Improved), e.SnapshotDigest, formatTime(e.RecordedAt))
	if err != nil {
		return fmt.Errorf("record epoch %d of %s: %w", e.Epoch, e.RunID, err)
	}
	return nil
}

// FinishRun sets the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, runID, status string, at time.Time) error {
	res, err := s.db.Exec(ctx, "UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?", status, formatTime(at), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return failures.Wrap(failures.ErrNotFound, "history", "finish run", runID, nil)
	}
	return nil
}

// Runs returns the most recent runs first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx,
		`SELECT run_id, started_at, finished_at, status, dataset_roots, seed, epochs_planned, monitor
		 FROM runs ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			finished sql.NullString
			roots    string
			seed     int64
		)
		if err := rows.Scan(&run.ID, &started, &finished, &run.Status, &roots, &seed, &run.EpochsPlanned, &run.Monitor); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(started)
		if finished.Valid {
			t := parseTime(finished.String)
			run.FinishedAt = &t
		}
		if roots != "" {
			run.DatasetRoots = strings.Split(roots, "\n")
		}
		run.Seed = uint64(seed)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	runs, err := s.Runs(ctx, 1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, failures.Wrap(failures.ErrNotFound, "history", "latest run", "no runs recorded", nil)
	}
	return runs[0], nil
}

// Epochs returns a run's epochs in order.
func (s *Store) Epochs(ctx context.Context, runID string) ([]Epoch, error) {
	rows, err := s.db.Query(ctx,
		`SELECT run_id, epoch, train_loss, train_accuracy, val_loss, val_accuracy, improved, snapshot_digest, recorded_at
		 FROM epochs WHERE run_id = ? ORDER BY epoch`, runID)
	if err != nil {
		return nil, fmt.Errorf("list epochs: %w", err)
	}
	defer rows.Close()

	var epochs []Epoch
	for rows.Next() {
		var (
			e        Epoch
			improved int
			recorded string
		)
		if err := rows.Scan(&e.RunID, &e.Epoch, &e.TrainLoss, &e.TrainAccuracy, &e.ValLoss, &e.ValAccuracy,
			&improved, &e.SnapshotDigest, &recorded); err != nil {
			return nil, fmt.Errorf("scan epoch: %w", err)
		}
		e.Improved = improved != 0
		e.RecordedAt = parseTime(recorded)
		epochs = append(epochs, e)
	}
	return epochs, rows.Err()
}

// IsNotFound reports whether err means the requested run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, failures.ErrNotFound)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
