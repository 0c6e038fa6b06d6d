package simulation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/armbench/internal/bandit"
	"github.com/nvandessel/armbench/internal/logging"
	"github.com/nvandessel/armbench/internal/strategy"
)

// ErrDone is returned by Step once every configured round has run.
var ErrDone = errors.New("simulation already completed")

// seedStream is the fixed PCG stream paired with the run seed.
const seedStream = 0x5851f42d4c957f2d

// Config is the validated input of a single run. It must not change once an
// Engine has been built from it.
type Config struct {
	// Probabilities holds the true win probability of each arm, in arm order.
	Probabilities []float64

	// Rounds is the exact number of trials to execute.
	Rounds int

	Strategy strategy.Strategy

	// Seed fixes the random stream. Zero draws a fresh seed; the seed used
	// is reported in RunInfo so the run can be replayed.
	Seed uint64
}

// Validate checks the configuration without running anything.
func (c Config) Validate() error {
	if len(c.Probabilities) == 0 {
		return bandit.NewConfigError("probabilities", "at least one arm is required")
	}
	if c.Rounds <= 0 {
		return bandit.NewConfigError("rounds", "must be a positive integer, got %d", c.Rounds)
	}
	if c.Strategy == nil {
		return bandit.NewConfigError("strategy.name", "required")
	}
	return nil
}

// Engine drives one simulation: it owns the arm set, the strategy, and the
// random stream for the run's whole duration. An Engine is not safe for
// concurrent use.
type Engine struct {
	cfg       Config
	info      RunInfo
	arms      *bandit.ArmSet
	rng       *rand.Rand
	round     int
	started   time.Time
	logger    *slog.Logger
	decisions *logging.DecisionLogger
	observers []Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the operational logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithDecisionLogger records one JSONL event per round. A nil logger is
// accepted and records nothing.
func WithDecisionLogger(dl *logging.DecisionLogger) Option {
	return func(e *Engine) { e.decisions = dl }
}

// WithObserver adds a per-round observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithRand replaces the seeded random stream. Intended for tests that need
// to control every draw.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.info.RunID = id
		}
	}
}

// NewEngine validates cfg and prepares a run. No round is executed and no
// randomness is consumed; an invalid configuration fails here.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	arms, err := bandit.NewArmSet(cfg.Probabilities)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	for seed == 0 {
		seed = rand.Uint64()
	}

	probs := make([]float64, len(cfg.Probabilities))
	copy(probs, cfg.Probabilities)
	cfg.Probabilities = probs

	e := &Engine{
		cfg:  cfg,
		arms: arms,
		rng:  rand.New(rand.NewPCG(seed, seedStream)),
		info: RunInfo{
			RunID:         uuid.NewString(),
			Strategy:      cfg.Strategy.Name(),
			StrategyLabel: cfg.Strategy.String(),
			Probabilities: probs,
			Rounds:        cfg.Rounds,
			Seed:          seed,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Info returns the run's identity and configuration.
func (e *Engine) Info() RunInfo {
	return e.info
}

// Round returns the number of rounds executed so far.
func (e *Engine) Round() int {
	return e.round
}

// Done reports whether every configured round has run.
func (e *Engine) Done() bool {
	return e.round >= e.cfg.Rounds
}

// Arms returns a copy of the current arm state.
func (e *Engine) Arms() []bandit.Arm {
	return e.arms.Arms()
}

// Step executes one round: snapshot the estimates, select an arm, play it,
// recompute regret. Any error it returns other than ErrDone wraps
// bandit.ErrInvariant and means the run cannot continue.
func (e *Engine) Step() (Record, error) {
	if e.Done() {
		return Record{}, ErrDone
	}
	if e.round == 0 {
		e.started = time.Now()
		e.info.StartedAt = e.started
	}

	snapshot := e.arms.Estimates()

	epsilon := -1.0
	if d, ok := e.cfg.Strategy.(strategy.EpsilonDecay); ok {
		epsilon = d.EffectiveEpsilon(e.arms)
	}

	selected := e.cfg.Strategy.Select(e.arms, e.rng)
	won, err := bandit.Play(e.arms, selected, e.rng)
	if err != nil {
		return Record{}, fmt.Errorf("round %d: strategy %s: %w", e.round+1, e.info.Strategy, err)
	}
	if err := e.arms.Check(); err != nil {
		return Record{}, fmt.Errorf("round %d: %w", e.round+1, err)
	}

	e.round++
	rec := Record{
		Round:     e.round,
		Estimates: snapshot,
		Selected:  selected,
		Won:       won,
		Regret:    bandit.Regret(e.arms),
	}

	e.logger.Log(context.Background(), logging.LevelTrace, "round",
		"round", rec.Round, "arm", selected, "won", won, "regret", rec.Regret)
	e.logDecision(rec, epsilon)

	if len(e.observers) > 0 {
		arms := e.arms.Arms()
		for _, o := range e.observers {
			o.ObserveRound(e.info, rec, arms)
		}
	}

	return rec, nil
}

func (e *Engine) logDecision(rec Record, epsilon float64) {
	if e.decisions == nil {
		return
	}
	event := map[string]any{
		"event":    "round",
		"run_id":   e.info.RunID,
		"strategy": e.info.Strategy,
		"round":    rec.Round,
		"arm":      rec.Selected,
		"won":      rec.Won,
		"regret":   rec.Regret,
	}
	if epsilon >= 0 {
		event["epsilon"] = epsilon
	}
	e.decisions.Log(event)
}

// Run executes every remaining round, emitting each record to sink, and
// returns the final summary. A nil sink discards records. The first sink or
// invariant error stops the run, as does cancelling ctx.
func (e *Engine) Run(ctx context.Context, sink Sink) (Summary, error) {
	if sink == nil {
		sink = Discard
	}
	if e.round == 0 {
		e.started = time.Now()
		e.info.StartedAt = e.started
	}
	if err := sink.Start(ctx, e.info); err != nil {
		return Summary{}, fmt.Errorf("starting output: %w", err)
	}

	e.logger.Debug("simulation started",
		"run_id", e.info.RunID,
		"strategy", e.info.StrategyLabel,
		"arms", e.arms.Len(),
		"rounds", e.cfg.Rounds,
		"seed", e.info.Seed)

	for !e.Done() {
		if err := ctx.Err(); err != nil {
			return Summary{}, fmt.Errorf("run stopped after round %d: %w", e.round, err)
		}
		rec, err := e.Step()
		if err != nil {
			e.logger.Error("simulation aborted", "run_id", e.info.RunID, "round", e.round+1, "error", err)
			return Summary{}, err
		}
		if err := sink.Emit(ctx, rec); err != nil {
			return Summary{}, fmt.Errorf("emitting round %d: %w", rec.Round, err)
		}
	}

	sum := e.Summary()
	if err := sink.Finish(ctx, sum); err != nil {
		return Summary{}, fmt.Errorf("finishing output: %w", err)
	}

	e.logger.Debug("simulation finished",
		"run_id", e.info.RunID,
		"regret", sum.Regret,
		"duration", sum.Duration)

	return sum, nil
}

// Summary reports the current arm state and regret.
func (e *Engine) Summary() Summary {
	var elapsed time.Duration
	if !e.started.IsZero() {
		elapsed = time.Since(e.started)
	}
	return Summary{
		RunInfo:  e.info,
		Arms:     e.arms.Arms(),
		Regret:   bandit.Regret(e.arms),
		Played:   e.round,
		Duration: elapsed,
	}
}
