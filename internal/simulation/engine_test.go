package simulation_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/armbench/internal/bandit"
	"github.com/nvandessel/armbench/internal/logging"
	"github.com/nvandessel/armbench/internal/simulation"
	"github.com/nvandessel/armbench/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectSink keeps everything an engine emits.
type collectSink struct {
	info     simulation.RunInfo
	records  []simulation.Record
	summary  *simulation.Summary
	starts   int
	failEmit int
}

func (c *collectSink) Start(_ context.Context, info simulation.RunInfo) error {
	c.starts++
	c.info = info
	return nil
}

func (c *collectSink) Emit(_ context.Context, rec simulation.Record) error {
	if c.failEmit > 0 && rec.Round == c.failEmit {
		return errors.New("disk full")
	}
	c.records = append(c.records, rec)
	return nil
}

func (c *collectSink) Finish(_ context.Context, sum simulation.Summary) error {
	c.summary = &sum
	return nil
}

func newEngine(t *testing.T, cfg simulation.Config, opts ...simulation.Option) *simulation.Engine {
	t.Helper()
	e, err := simulation.NewEngine(cfg, opts...)
	require.NoError(t, err)
	return e
}

func TestEngine_RunEmitsEveryRound(t *testing.T) {
	e := newEngine(t, simulation.Config{
		Probabilities: []float64{0.2, 0.5, 0.8},
		Rounds:        250,
		Strategy:      strategy.Thompson{},
		Seed:          99,
	})

	sink := &collectSink{}
	sum, err := e.Run(context.Background(), sink)
	require.NoError(t, err)

	assert.Equal(t, 1, sink.starts)
	require.Len(t, sink.records, 250)
	require.NotNil(t, sink.summary)
	for i, rec := range sink.records {
		assert.Equal(t, i+1, rec.Round)
		assert.Len(t, rec.Estimates, 3)
	}

	assert.Equal(t, 250, sum.Played)
	assert.Equal(t, sink.records[249].Regret, sum.Regret)
	assert.Equal(t, uint64(99), sum.Seed)
	assert.Equal(t, "thompson", sum.Strategy)
	assert.Equal(t, "Thompson Sampling", sum.StrategyLabel)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, sink.info.RunID, sum.RunID)

	var plays int64
	for _, a := range sum.Arms {
		plays += a.Plays
	}
	assert.Equal(t, int64(250), plays)
	assert.True(t, e.Done())
}

func TestEngine_SnapshotIsPreTrial(t *testing.T) {
	e := newEngine(t, simulation.Config{
		Probabilities: []float64{1.0},
		Rounds:        2,
		Strategy:      strategy.ConstantFirst{},
		Seed:          1,
	})

	first, err := e.Step()
	require.NoError(t, err)
	assert.Equal(t, []float64{bandit.PriorEstimate}, first.Estimates)

	second, err := e.Step()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.0}, second.Estimates)
}

func TestEngine_StepAfterDone(t *testing.T) {
	e := newEngine(t, simulation.Config{
		Probabilities: []float64{0.5},
		Rounds:        1,
		Strategy:      strategy.NaiveRandom{},
		Seed:          1,
	})

	_, err := e.Step()
	require.NoError(t, err)
	_, err = e.Step()
	assert.ErrorIs(t, err, simulation.ErrDone)
	assert.Equal(t, 1, e.Round())
}

func TestEngine_Deterministic(t *testing.T) {
	cfg := simulation.Config{
		Probabilities: []float64{0.1, 0.3, 0.5, 0.7, 0.9},
		Rounds:        400,
		Strategy:      strategy.EpsilonDecay{Epsilon: 0.5, Alpha: 0.005},
		Seed:          2024,
	}

	a, b := &collectSink{}, &collectSink{}
	_, err := newEngine(t, cfg).Run(context.Background(), a)
	require.NoError(t, err)
	_, err = newEngine(t, cfg).Run(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, a.records, b.records)
}

func TestEngine_SeedsDiffer(t *testing.T) {
	cfg := simulation.Config{
		Probabilities: []float64{0.5, 0.5, 0.5, 0.5},
		Rounds:        100,
		Strategy:      strategy.NaiveRandom{},
		Seed:          1,
	}
	a := &collectSink{}
	_, err := newEngine(t, cfg).Run(context.Background(), a)
	require.NoError(t, err)

	cfg.Seed = 2
	b := &collectSink{}
	_, err = newEngine(t, cfg).Run(context.Background(), b)
	require.NoError(t, err)

	assert.NotEqual(t, a.records, b.records)
}

func TestEngine_ZeroSeedIsReported(t *testing.T) {
	e := newEngine(t, simulation.Config{
		Probabilities: []float64{0.5},
		Rounds:        1,
		Strategy:      strategy.Oracle{},
	})
	assert.NotZero(t, e.Info().Seed)
}

func TestEngine_WithRandControlsDraws(t *testing.T) {
	cfg := simulation.Config{
		Probabilities: []float64{0.5, 0.5, 0.5},
		Rounds:        50,
		Strategy:      strategy.NaiveRandom{},
		Seed:          5,
	}
	a, b := &collectSink{}, &collectSink{}
	_, err := newEngine(t, cfg, simulation.WithRand(rand.New(rand.NewPCG(3, 4)))).Run(context.Background(), a)
	require.NoError(t, err)
	cfg.Seed = 6
	_, err = newEngine(t, cfg, simulation.WithRand(rand.New(rand.NewPCG(3, 4)))).Run(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, a.records, b.records, "explicit rand overrides the seed")
}

func TestNewEngine_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   simulation.Config
		field string
	}{
		{
			name:  "no arms",
			cfg:   simulation.Config{Rounds: 10, Strategy: strategy.Oracle{}},
			field: "probabilities",
		},
		{
			name:  "zero rounds",
			cfg:   simulation.Config{Probabilities: []float64{0.5}, Strategy: strategy.Oracle{}},
			field: "rounds",
		},
		{
			name:  "negative rounds",
			cfg:   simulation.Config{Probabilities: []float64{0.5}, Rounds: -3, Strategy: strategy.Oracle{}},
			field: "rounds",
		},
		{
			name:  "no strategy",
			cfg:   simulation.Config{Probabilities: []float64{0.5}, Rounds: 3},
			field: "strategy.name",
		},
		{
			name:  "probability out of range",
			cfg:   simulation.Config{Probabilities: []float64{0.5, 1.5}, Rounds: 3, Strategy: strategy.Oracle{}},
			field: "probabilities[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := simulation.NewEngine(tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, bandit.ErrInvalidConfig)

			var cfgErr *bandit.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewEngine_CopiesProbabilities(t *testing.T) {
	probs := []float64{0.25, 0.75}
	e := newEngine(t, simulation.Config{Probabilities: probs, Rounds: 1, Strategy: strategy.Oracle{}, Seed: 1})
	probs[0] = 0.99

	assert.Equal(t, []float64{0.25, 0.75}, e.Info().Probabilities)
	assert.Equal(t, 0.25, e.Arms()[0].ProbReal)
}

func TestEngine_SinkErrorStopsRun(t *testing.T) {
	e := newEngine(t, simulation.Config{
		Probabilities: []float64{0.5, 0.5},
		Rounds:        10,
		Strategy:      strategy.NaiveRandom{},
		Seed:          3,
	})
	sink := &collectSink{failEmit: 4}

	_, err := e.Run(context.Background(), sink)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "emitting round 4")
	assert.Len(t, sink.records, 3)
	assert.Nil(t, sink.summary, "Finish is not called on a failed run")
}

// rogue embeds a real strategy to satisfy the sealed interface but picks an
// arm that does not exist.
type rogue struct {
	strategy.Oracle
}

func (rogue) Select(arms *bandit.ArmSet, _ *rand.Rand) int {
	return arms.Len()
}

func TestEngine_InvariantViolationIsFatal(t *testing.T) {
	e := newEngine(t, simulation.Config{
		Probabilities: []float64{0.5, 0.5},
		Rounds:        5,
		Strategy:      rogue{},
		Seed:          3,
	})
	sink := &collectSink{}

	_, err := e.Run(context.Background(), sink)
	require.Error(t, err)
	assert.ErrorIs(t, err, bandit.ErrInvariant)
	assert.Empty(t, sink.records)
	for _, a := range e.Arms() {
		assert.Zero(t, a.Plays, "no arm is touched by a rejected selection")
	}
}

func TestEngine_DecisionLog(t *testing.T) {
	dir := t.TempDir()
	dl := logging.NewDecisionLogger(dir, "debug")
	require.NotNil(t, dl)

	e := newEngine(t, simulation.Config{
		Probabilities: []float64{0.3, 0.6},
		Rounds:        20,
		Strategy:      strategy.EpsilonDecay{Epsilon: 1, Alpha: 0.1},
		Seed:          8,
	}, simulation.WithDecisionLogger(dl), simulation.WithRunID("run-1"))

	_, err := e.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, dl.Close())

	data, err := os.ReadFile(filepath.Join(dir, logging.DecisionFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 20)
	assert.Contains(t, lines[0], `"run_id":"run-1"`)
	assert.Contains(t, lines[0], `"epsilon":1`)
	assert.Contains(t, lines[19], `"round":20`)
}

func TestEngine_TraceLogging(t *testing.T) {
	var buf strings.Builder
	logger := logging.NewLogger("trace", &buf)

	e := newEngine(t, simulation.Config{
		Probabilities: []float64{0.5, 0.5},
		Rounds:        3,
		Strategy:      strategy.ConstantFirst{},
		Seed:          8,
	}, simulation.WithLogger(logger))

	_, err := e.Run(context.Background(), nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "simulation started")
	assert.Equal(t, 3, strings.Count(out, "msg=round"))
	assert.Contains(t, out, "simulation finished")
}

func TestEngine_RunStopsOnCancel(t *testing.T) {
	e := newEngine(t, simulation.Config{
		Probabilities: []float64{0.5},
		Rounds:        10,
		Strategy:      strategy.ConstantFirst{},
		Seed:          1,
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &collectSink{}
	_, err := e.Run(ctx, sink)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.records)
	assert.Nil(t, sink.summary)
}
