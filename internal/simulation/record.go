package simulation

import (
	"context"
	"time"

	"github.com/nvandessel/armbench/internal/bandit"
)

// RunInfo identifies a run and its fixed configuration. Sinks receive it
// before the first record.
type RunInfo struct {
	RunID         string    `json:"run_id"`
	Strategy      string    `json:"strategy"`
	StrategyLabel string    `json:"strategy_label"`
	Probabilities []float64 `json:"probabilities"`
	Rounds        int       `json:"rounds"`
	Seed          uint64    `json:"seed"`
	StartedAt     time.Time `json:"started_at"`
}

// ArmCount is the number of arms in the run.
func (i RunInfo) ArmCount() int {
	return len(i.Probabilities)
}

// Record is what one round emits. Estimates are the arm estimates as they
// stood before the round's trial.
type Record struct {
	Round     int       `json:"round"`
	Estimates []float64 `json:"estimates"`
	Selected  int       `json:"selected"`
	Won       bool      `json:"won"`
	Regret    float64   `json:"regret"`
}

// Summary is the end-of-run state of every arm and the final regret.
type Summary struct {
	RunInfo
	Arms     []bandit.Arm  `json:"arms"`
	Regret   float64       `json:"regret"`
	Played   int           `json:"played"`
	Duration time.Duration `json:"duration"`
}

// Sink consumes a run's output. Start is called once before the first
// round, Emit once per round in order, and Finish once after the last round
// of a successful run. Sinks may buffer; Finish must flush.
type Sink interface {
	Start(ctx context.Context, info RunInfo) error
	Emit(ctx context.Context, rec Record) error
	Finish(ctx context.Context, sum Summary) error
}

// Observer is notified after every round with the post-trial arm state.
// Observers must not block.
type Observer interface {
	ObserveRound(info RunInfo, rec Record, arms []bandit.Arm)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Start(context.Context, RunInfo) error  { return nil }
func (discard) Emit(context.Context, Record) error    { return nil }
func (discard) Finish(context.Context, Summary) error { return nil }
