package mcp

import (
	"github.com/nvandessel/armbench/internal/simulation"
	"github.com/nvandessel/armbench/internal/strategy"
)

// RunInput defines the input for the armbench_run tool.
type RunInput struct {
	Probabilities []float64 `json:"probabilities" jsonschema:"True win probability of each arm, each within [0,1]"`
	Rounds        int       `json:"rounds" jsonschema:"Number of rounds to run (at most 1000000)"`
	Strategy      string    `json:"strategy" jsonschema:"Strategy name or alias, see armbench_strategies"`
	Epsilon       *float64  `json:"epsilon,omitempty" jsonschema:"Exploration rate in [0,1] for epsilon-greedy, or the initial rate for epsilon-decay"`
	Alpha         *float64  `json:"alpha,omitempty" jsonschema:"Decay constant (>= 0) for epsilon-decay"`
	Seed          uint64    `json:"seed,omitempty" jsonschema:"Random seed for a reproducible run; 0 or absent draws one"`
	IncludeRounds int       `json:"include_rounds,omitempty" jsonschema:"Return the last N round records (default 0, at most 1000)"`
}

// ArmResult is the final state of one arm.
type ArmResult struct {
	Arm      int     `json:"arm" jsonschema:"1-based arm number"`
	Plays    int64   `json:"plays"`
	Wins     int64   `json:"wins"`
	ProbReal float64 `json:"prob_real" jsonschema:"True win probability"`
	ProbEst  float64 `json:"prob_est" jsonschema:"Estimated win probability (wins / plays, 0.5 if never played)"`
}

// RunOutput defines the output for the armbench_run tool.
type RunOutput struct {
	RunID      string              `json:"run_id" jsonschema:"Unique id of this run"`
	Strategy   string              `json:"strategy" jsonschema:"Strategy with its parameters"`
	Seed       uint64              `json:"seed" jsonschema:"Seed that reproduces this run"`
	Rounds     int                 `json:"rounds" jsonschema:"Rounds executed"`
	Regret     float64             `json:"regret" jsonschema:"Cumulative regret after the last round"`
	BestArm    int                 `json:"best_arm" jsonschema:"1-based arm with the highest true probability"`
	MostPlayed int                 `json:"most_played" jsonschema:"1-based arm played most often"`
	Arms       []ArmResult         `json:"arms" jsonschema:"Final state of every arm"`
	Records    []simulation.Record `json:"records,omitempty" jsonschema:"Trailing round records when include_rounds > 0; selected is 0-based"`
	Stored     bool                `json:"stored" jsonschema:"Whether the run was saved to the run database"`
	DurationMs int64               `json:"duration_ms"`
	Summary    string              `json:"summary" jsonschema:"Human-readable summary table"`
}

// StrategiesInput defines the input for the armbench_strategies tool.
type StrategiesInput struct{}

// StrategiesOutput defines the output for the armbench_strategies tool.
type StrategiesOutput struct {
	Strategies []strategy.Info   `json:"strategies" jsonschema:"Every available strategy"`
	Aliases    map[string]string `json:"aliases" jsonschema:"Short names accepted in place of the canonical ones"`
	Count      int               `json:"count"`
}

// RunsInput defines the input for the armbench_runs tool.
type RunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of runs to return, most recent first (default all)"`
}

// RunListItem is one stored run.
type RunListItem struct {
	RunID     string  `json:"run_id"`
	Strategy  string  `json:"strategy"`
	Seed      uint64  `json:"seed"`
	Rounds    int     `json:"rounds"`
	ArmCount  int     `json:"arm_count"`
	Regret    float64 `json:"regret"`
	StartedAt string  `json:"started_at" jsonschema:"RFC 3339 start time"`
	Finished  bool    `json:"finished" jsonschema:"False if the run never completed"`
}

// RunsOutput defines the output for the armbench_runs tool.
type RunsOutput struct {
	Runs  []RunListItem `json:"runs"`
	Count int           `json:"count"`
}
