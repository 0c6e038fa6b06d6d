package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/nvandessel/armbench/internal/bandit"
	"github.com/nvandessel/armbench/internal/config"
	"github.com/nvandessel/armbench/internal/constants"
	"github.com/nvandessel/armbench/internal/logging"
	"github.com/nvandessel/armbench/internal/metrics"
	"github.com/nvandessel/armbench/internal/report"
	"github.com/nvandessel/armbench/internal/simulation"
	"github.com/nvandessel/armbench/internal/store"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [prob...]",
		Short: "Run a bandit simulation",
		Long: `Run a multi-armed bandit simulation and stream one record per round.

Arm probabilities come from positional arguments, --probs, the config file,
or ARMBENCH_PROBABILITIES, in decreasing order of precedence. Flags override
the config file and the environment.

Records are written as CSV (default) or JSONL to --out or stdout, or to a
SQLite database or Arrow IPC file at --out. With --summary the per-arm table
follows the run, on stderr when records go to stdout.

Examples:
  armbench run 0.1 0.5 0.9 --rounds 1000 --strategy thompson
  armbench run --probs 0.2,0.8 --strategy epsilon --epsilon 0.1 --summary
  armbench run --config bench.yaml --format sqlite --out runs.db
  armbench run 0.3 0.7 --strategy decay --epsilon 0.5 --alpha 0.01 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig(cmd, args)
			if err != nil {
				return err
			}
			return runSimulation(cmd, cfg)
		},
	}

	cmd.Flags().String("probs", "", "Comma-separated arm probabilities")
	cmd.Flags().Int("rounds", constants.DefaultRounds, "Number of rounds to play")
	cmd.Flags().String("strategy", "", "Selection strategy (see 'armbench strategies')")
	cmd.Flags().Float64("epsilon", 0, "Exploration rate for epsilon-greedy and epsilon-decay")
	cmd.Flags().Float64("alpha", 0, "Decay constant for epsilon-decay")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 draws one)")
	cmd.Flags().String("format", constants.FormatCSV, "Record format: csv, jsonl, sqlite, arrow")
	cmd.Flags().StringP("out", "o", "", "Output path (stdout when empty; required for sqlite and arrow)")
	cmd.Flags().Bool("summary", false, "Print the per-arm summary after the run")
	cmd.Flags().String("config", "", "Config file (default ~/.armbench/config.yaml if present)")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics for the run to this file")
	cmd.Flags().String("log-level", "", "Log level: info, debug, trace")

	return cmd
}

// loadRunConfig layers defaults, the config file, the environment, and
// finally the flags the user set.
func loadRunConfig(cmd *cobra.Command, args []string) (*config.ArmbenchConfig, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.ArmbenchConfig
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("probs") && len(args) > 0 {
		return nil, bandit.NewConfigError("probabilities", "give either --probs or positional probabilities, not both")
	}
	if flags.Changed("probs") {
		v, _ := flags.GetString("probs")
		probs, err := config.ParseProbabilities(v)
		if err != nil {
			return nil, err
		}
		cfg.Probabilities = probs
	}
	if len(args) > 0 {
		probs := make([]float64, len(args))
		for i, a := range args {
			p, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return nil, bandit.NewConfigError(fmt.Sprintf("probabilities[%d]", i), "%q is not a number", a)
			}
			probs[i] = p
		}
		cfg.Probabilities = probs
	}
	if flags.Changed("rounds") {
		cfg.Rounds, _ = flags.GetInt("rounds")
	}
	if flags.Changed("strategy") {
		cfg.Strategy.Name, _ = flags.GetString("strategy")
	}
	if flags.Changed("epsilon") {
		v, _ := flags.GetFloat64("epsilon")
		cfg.Strategy.Epsilon = &v
	}
	if flags.Changed("alpha") {
		v, _ := flags.GetFloat64("alpha")
		cfg.Strategy.Alpha = &v
	}
	if flags.Changed("seed") {
		cfg.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("out") {
		cfg.Output.Path, _ = flags.GetString("out")
	}
	if flags.Changed("summary") {
		cfg.Output.Summary, _ = flags.GetBool("summary")
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile, _ = flags.GetString("metrics-file")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}

	return cfg, nil
}

func runSimulation(cmd *cobra.Command, cfg *config.ArmbenchConfig) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	simCfg, err := cfg.Simulation()
	if err != nil {
		return err
	}

	logger := logging.NewLogger(cfg.Logging.Level, stderr)
	decisions := logging.NewDecisionLogger(cfg.Logging.Dir, cfg.Logging.Level)
	defer decisions.Close()

	opts := []simulation.Option{
		simulation.WithLogger(logger),
		simulation.WithDecisionLogger(decisions),
	}
	var recorder *metrics.Recorder
	if cfg.Metrics.Textfile != "" {
		recorder = metrics.NewRecorder()
		opts = append(opts, simulation.WithObserver(recorder))
	}

	engine, err := simulation.NewEngine(simCfg, opts...)
	if err != nil {
		return err
	}

	out, err := openOutput(cfg.Output, stdout)
	if err != nil {
		return err
	}
	defer out.close()

	sinks := []simulation.Sink{out.sink}
	if cfg.Output.Summary && !jsonOut {
		sinks = append(sinks, report.NewSummarySink(out.summaryWriter(stdout, stderr)))
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("interrupted, stopping run")
			cancel()
		case <-ctx.Done():
		}
	}()

	sum, err := engine.Run(ctx, report.Multi(sinks...))
	if err != nil {
		out.abort()
		return fmt.Errorf("simulation failed: %w", err)
	}
	if err := out.close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	logger.Info("run finished",
		"run_id", sum.RunID,
		"strategy", sum.StrategyLabel,
		"rounds", sum.Played,
		"seed", sum.Seed,
		"regret", sum.Regret,
		"duration", sum.Duration)

	if recorder != nil {
		if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
	}

	if jsonOut {
		return json.NewEncoder(out.summaryWriter(stdout, stderr)).Encode(runResult(sum, cfg.Output))
	}
	return nil
}

// runOutput is the record sink for one run plus whatever it holds open.
type runOutput struct {
	sink     simulation.Sink
	toStdout bool
	file     *os.File
	path     string
	db       *store.SQLiteStore
	closed   bool
}

func openOutput(oc config.OutputConfig, stdout io.Writer) (*runOutput, error) {
	out := &runOutput{}

	switch oc.Format {
	case constants.FormatCSV, constants.FormatJSONL:
		w := stdout
		if oc.Path == "" {
			out.toStdout = true
		} else {
			f, err := os.Create(oc.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to create output file: %w", err)
			}
			out.file, out.path = f, oc.Path
			w = f
		}
		if oc.Format == constants.FormatCSV {
			out.sink = report.NewCSVSink(w)
		} else {
			out.sink = report.NewJSONLSink(w)
		}

	case constants.FormatArrow:
		f, err := os.Create(oc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file: %w", err)
		}
		out.file, out.path = f, oc.Path
		out.sink = report.NewArrowSink(f, report.WithBatchSize(constants.ArrowBatchSize))

	case constants.FormatSQLite:
		st, err := store.Open(oc.Path)
		if err != nil {
			return nil, err
		}
		out.db = st
		out.sink = st.Sink(constants.SQLiteBatchSize)

	default:
		return nil, bandit.NewConfigError("output.format", "unknown format %q (valid: csv, jsonl, sqlite, arrow)", oc.Format)
	}

	return out, nil
}

// summaryWriter keeps the summary out of a record stream on stdout.
func (o *runOutput) summaryWriter(stdout, stderr io.Writer) io.Writer {
	if o.toStdout {
		return stderr
	}
	return stdout
}

// abort releases the sink after a failed run and removes a partially
// written output file. A stored SQLite run is kept and lists as incomplete.
func (o *runOutput) abort() {
	if a, ok := o.sink.(interface{ Abort() error }); ok {
		_ = a.Abort()
	}
	_ = o.close()
	if o.path != "" {
		_ = os.Remove(o.path)
	}
}

func (o *runOutput) close() error {
	if o.closed {
		return nil
	}
	o.closed = true

	var firstErr error
	if o.file != nil {
		firstErr = o.file.Close()
	}
	if o.db != nil {
		if err := o.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type armJSON struct {
	Arm      int     `json:"arm"`
	Plays    int64   `json:"plays"`
	Wins     int64   `json:"wins"`
	ProbReal float64 `json:"prob_real"`
	ProbEst  float64 `json:"prob_est"`
}

func runResult(sum simulation.Summary, oc config.OutputConfig) map[string]interface{} {
	arms := make([]armJSON, len(sum.Arms))
	for i, a := range sum.Arms {
		arms[i] = armJSON{
			Arm:      i + 1,
			Plays:    a.Plays,
			Wins:     a.Wins,
			ProbReal: a.ProbReal,
			ProbEst:  a.ProbEst,
		}
	}
	result := map[string]interface{}{
		"run_id":      sum.RunID,
		"strategy":    sum.Strategy,
		"label":       sum.StrategyLabel,
		"seed":        sum.Seed,
		"rounds":      sum.Played,
		"regret":      sum.Regret,
		"arms":        arms,
		"format":      oc.Format,
		"duration_ms": sum.Duration.Milliseconds(),
	}
	if oc.Path != "" {
		result["output"] = oc.Path
	}
	return result
}
