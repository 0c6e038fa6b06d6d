package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/nvandessel/armbench/internal/constants"
	"github.com/nvandessel/armbench/internal/simulation"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore holds simulation runs in a SQLite database. Several runs may
// share one database file; rows are keyed by run id.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// Open opens (creating if needed) the run database at path.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// RunRow is one stored run.
type RunRow struct {
	RunID         string     `json:"run_id"`
	Strategy      string     `json:"strategy"`
	StrategyLabel string     `json:"strategy_label"`
	Seed          uint64     `json:"seed"`
	Rounds        int        `json:"rounds"`
	ArmCount      int        `json:"arm_count"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Played        int        `json:"played"`
	Regret        float64    `json:"regret"`
	Duration      int64      `json:"duration_ms"`
}

// ArmRow is the stored final state of one arm.
type ArmRow struct {
	Arm      int     `json:"arm"`
	ProbReal float64 `json:"prob_real"`
	Plays    int64   `json:"plays"`
	Wins     int64   `json:"wins"`
	ProbEst  float64 `json:"prob_est"`
}

// Runs returns every stored run, most recent first.
func (s *SQLiteStore) Runs(ctx context.Context) ([]RunRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, strategy, strategy_label, seed, rounds, arm_count, started_at,
		       finished_at, COALESCE(played, 0), COALESCE(regret, 0), COALESCE(duration_ms, 0)
		FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		var r RunRow
		var seed, started string
		var finished sql.NullString
		if err := rows.Scan(&r.RunID, &r.Strategy, &r.StrategyLabel, &seed, &r.Rounds, &r.ArmCount,
			&started, &finished, &r.Played, &r.Regret, &r.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("run %s: bad seed %q: %w", r.RunID, seed, err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at: %w", r.RunID, err)
		}
		if finished.Valid {
			t, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("run %s: bad finished_at: %w", r.RunID, err)
			}
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Arms returns the stored arm state of a run in arm order.
func (s *SQLiteStore) Arms(ctx context.Context, runID string) ([]ArmRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT arm, prob_real, plays, wins, prob_est
		FROM run_arms WHERE run_id = ? ORDER BY arm`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query arms: %w", err)
	}
	defer rows.Close()

	var arms []ArmRow
	for rows.Next() {
		var a ArmRow
		if err := rows.Scan(&a.Arm, &a.ProbReal, &a.Plays, &a.Wins, &a.ProbEst); err != nil {
			return nil, fmt.Errorf("failed to scan arm: %w", err)
		}
		arms = append(arms, a)
	}
	return arms, rows.Err()
}

// Rounds returns the stored records of a run in round order.
func (s *SQLiteStore) Rounds(ctx context.Context, runID string) ([]simulation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT round, selected, won, regret, estimates
		FROM rounds WHERE run_id = ? ORDER BY round`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var out []simulation.Record
	for rows.Next() {
		var rec simulation.Record
		var estimates string
		if err := rows.Scan(&rec.Round, &rec.Selected, &rec.Won, &rec.Regret, &estimates); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		if err := json.Unmarshal([]byte(estimates), &rec.Estimates); err != nil {
			return nil, fmt.Errorf("round %d: failed to decode estimates: %w", rec.Round, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its arms and rounds.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// ErrRunNotFound is returned when a run id is not in the database.
var ErrRunNotFound = errors.New("run not found")

// Sink returns a record sink that writes one run into the store. Rounds are
// buffered and inserted in transactions of batchSize rows
// (constants.SQLiteBatchSize when batchSize <= 0).
func (s *SQLiteStore) Sink(batchSize int) *Sink {
	if batchSize <= 0 {
		batchSize = constants.SQLiteBatchSize
	}
	return &Sink{store: s, batchSize: batchSize}
}

// Sink writes a single run into a SQLiteStore. It implements
// simulation.Sink.
//
// Every transaction is opened and committed within one call, so other store
// calls and other sinks can run between two rounds of the same run.
type Sink struct {
	store     *SQLiteStore
	batchSize int

	runID   string
	pending []roundRow
}

type roundRow struct {
	round     int
	selected  int
	won       bool
	regret    float64
	estimates string
}

// Start records the run and its arms.
func (k *Sink) Start(ctx context.Context, info simulation.RunInfo) error {
	k.store.mu.Lock()
	defer k.store.mu.Unlock()

	tx, err := k.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, strategy, strategy_label, seed, rounds, arm_count, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.RunID, info.Strategy, info.StrategyLabel, strconv.FormatUint(info.Seed, 10),
		info.Rounds, info.ArmCount(), info.StartedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, p := range info.Probabilities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_arms (run_id, arm, prob_real) VALUES (?, ?, ?)`,
			info.RunID, i, p); err != nil {
			return fmt.Errorf("failed to insert arm %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	k.runID = info.RunID
	k.pending = make([]roundRow, 0, min(k.batchSize, max(info.Rounds, 1)))
	return nil
}

// Emit buffers a round, writing the batch when it is full.
func (k *Sink) Emit(ctx context.Context, rec simulation.Record) error {
	estimates, err := json.Marshal(rec.Estimates)
	if err != nil {
		return fmt.Errorf("failed to encode estimates: %w", err)
	}
	k.pending = append(k.pending, roundRow{
		round:     rec.Round,
		selected:  rec.Selected,
		won:       rec.Won,
		regret:    rec.Regret,
		estimates: string(estimates),
	})
	if len(k.pending) < k.batchSize {
		return nil
	}

	k.store.mu.Lock()
	defer k.store.mu.Unlock()

	tx, err := k.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := k.writeRounds(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rounds: %w", err)
	}
	k.pending = k.pending[:0]
	return nil
}

// Finish writes the last batch and stores the run's outcome in one
// transaction.
func (k *Sink) Finish(ctx context.Context, sum simulation.Summary) error {
	k.store.mu.Lock()
	defer k.store.mu.Unlock()

	tx, err := k.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := k.writeRounds(ctx, tx); err != nil {
		return err
	}

	finished := sum.StartedAt.Add(sum.Duration)
	if _, err := tx.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, played = ?, regret = ?, duration_ms = ?
		WHERE run_id = ?`,
		finished.UTC().Format(time.RFC3339Nano), sum.Played, sum.Regret, sum.Duration.Milliseconds(), k.runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	for i, a := range sum.Arms {
		if _, err := tx.ExecContext(ctx, `
			UPDATE run_arms SET plays = ?, wins = ?, prob_est = ?
			WHERE run_id = ? AND arm = ?`,
			a.Plays, a.Wins, a.ProbEst, k.runID, i); err != nil {
			return fmt.Errorf("failed to update arm %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	k.pending = nil
	return nil
}

// Abort drops the buffered rounds. Batches already written stay, and the
// run keeps a NULL finished_at so it lists as incomplete.
func (k *Sink) Abort() error {
	k.pending = nil
	return nil
}

// writeRounds inserts the buffered rounds within tx. Callers hold store.mu.
func (k *Sink) writeRounds(ctx context.Context, tx *sql.Tx) error {
	if len(k.pending) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rounds (run_id, round, selected, won, regret, estimates)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare round insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range k.pending {
		if _, err := stmt.ExecContext(ctx, k.runID, r.round, r.selected, r.won, r.regret, r.estimates); err != nil {
			return fmt.Errorf("failed to insert round %d: %w", r.round, err)
		}
	}
	return nil
}
