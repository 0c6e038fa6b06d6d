package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/armbench/internal/constants"
	"github.com/nvandessel/armbench/internal/ratelimit"
	"github.com/nvandessel/armbench/internal/report"
	"github.com/nvandessel/armbench/internal/simulation"
	"github.com/nvandessel/armbench/internal/strategy"
)

const strategiesURI = "armbench://strategies"

// registerTools registers all armbench MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "armbench_run",
		Description: "Run a multi-armed bandit simulation and return per-arm results and cumulative regret",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "armbench_strategies",
		Description: "List the available arm selection strategies and their parameters",
	}, s.handleStrategies)

	if s.store != nil {
		sdk.AddTool(s.server, &sdk.Tool{
			Name:        "armbench_runs",
			Description: "List simulation runs saved in the run database",
		}, s.handleRuns)
	}
}

// registerResources registers MCP resources.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         strategiesURI,
		Name:        "armbench-strategies",
		Description: "Reference of the arm selection strategies armbench_run accepts.",
		MIMEType:    "text/markdown",
	}, s.handleStrategiesResource)
}

// handleStrategiesResource renders the strategy catalog as markdown.
func (s *Server) handleStrategiesResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	var sb strings.Builder
	sb.WriteString("# Strategies\n\n")
	for _, info := range strategy.Catalog() {
		sb.WriteString(fmt.Sprintf("- **%s**: %s", info.Name, info.Description))
		if len(info.Params) > 0 {
			sb.WriteString(fmt.Sprintf(" (params: %s)", strings.Join(info.Params, ", ")))
		}
		if info.Baseline {
			sb.WriteString(" [baseline]")
		}
		sb.WriteString("\n")
	}

	aliases := strategy.Aliases()
	names := make([]string, 0, len(aliases))
	for alias := range aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	sb.WriteString("\n## Aliases\n\n")
	for _, alias := range names {
		sb.WriteString(fmt.Sprintf("- `%s` = `%s`\n", alias, aliases[alias]))
	}

	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      strategiesURI,
				MIMEType: "text/markdown",
				Text:     sb.String(),
			},
		},
	}, nil
}

// handleRun implements the armbench_run tool.
func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	var runID string
	defer func() {
		s.auditTool("armbench_run", runID, start, retErr, toolParams(map[string]interface{}{
			"probabilities": args.Probabilities, "rounds": args.Rounds, "strategy": args.Strategy,
			"epsilon": args.Epsilon, "alpha": args.Alpha, "seed": args.Seed, "include_rounds": args.IncludeRounds,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "armbench_run"); err != nil {
		return nil, RunOutput{}, err
	}

	if args.Rounds > constants.MaxToolRounds {
		return nil, RunOutput{}, fmt.Errorf("rounds must be at most %d, got %d", constants.MaxToolRounds, args.Rounds)
	}
	if len(args.Probabilities) > constants.MaxToolArms {
		return nil, RunOutput{}, fmt.Errorf("probabilities must list at most %d arms, got %d", constants.MaxToolArms, len(args.Probabilities))
	}
	if args.IncludeRounds < 0 || args.IncludeRounds > constants.MaxToolRecords {
		return nil, RunOutput{}, fmt.Errorf("include_rounds must be within [0,%d], got %d", constants.MaxToolRecords, args.IncludeRounds)
	}

	strat, err := strategy.Parse(args.Strategy, strategy.Params{Epsilon: args.Epsilon, Alpha: args.Alpha})
	if err != nil {
		return nil, RunOutput{}, err
	}

	engine, err := simulation.NewEngine(simulation.Config{
		Probabilities: args.Probabilities,
		Rounds:        args.Rounds,
		Strategy:      strat,
		Seed:          args.Seed,
	}, simulation.WithLogger(s.logger))
	if err != nil {
		return nil, RunOutput{}, err
	}
	runID = engine.Info().RunID

	tail := &tailSink{limit: args.IncludeRounds}
	sinks := []simulation.Sink{tail}
	var dbSink interface{ Abort() error }
	if s.store != nil {
		k := s.store.Sink(0)
		dbSink = k
		sinks = append(sinks, k)
	}

	sum, err := engine.Run(ctx, report.Multi(sinks...))
	if err != nil {
		if dbSink != nil {
			_ = dbSink.Abort()
		}
		return nil, RunOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	var table strings.Builder
	if err := report.WriteSummary(&table, sum); err != nil {
		return nil, RunOutput{}, err
	}

	return nil, buildRunOutput(sum, tail.records(), s.store != nil, table.String()), nil
}

func buildRunOutput(sum simulation.Summary, records []simulation.Record, stored bool, table string) RunOutput {
	out := RunOutput{
		RunID:      sum.RunID,
		Strategy:   sum.StrategyLabel,
		Seed:       sum.Seed,
		Rounds:     sum.Played,
		Regret:     sum.Regret,
		Arms:       make([]ArmResult, len(sum.Arms)),
		Records:    records,
		Stored:     stored,
		DurationMs: sum.Duration.Milliseconds(),
		Summary:    table,
	}

	best, most := 0, 0
	for i, a := range sum.Arms {
		out.Arms[i] = ArmResult{
			Arm:      i + 1,
			Plays:    a.Plays,
			Wins:     a.Wins,
			ProbReal: a.ProbReal,
			ProbEst:  a.ProbEst,
		}
		if a.ProbReal > sum.Arms[best].ProbReal {
			best = i
		}
		if a.Plays > sum.Arms[most].Plays {
			most = i
		}
	}
	out.BestArm = best + 1
	out.MostPlayed = most + 1
	return out
}

// handleStrategies implements the armbench_strategies tool.
func (s *Server) handleStrategies(ctx context.Context, req *sdk.CallToolRequest, args StrategiesInput) (_ *sdk.CallToolResult, _ StrategiesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("armbench_strategies", "", start, retErr, nil)
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "armbench_strategies"); err != nil {
		return nil, StrategiesOutput{}, err
	}

	catalog := strategy.Catalog()
	return nil, StrategiesOutput{
		Strategies: catalog,
		Aliases:    strategy.Aliases(),
		Count:      len(catalog),
	}, nil
}

// handleRuns implements the armbench_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("armbench_runs", "", start, retErr, toolParams(map[string]interface{}{
			"limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "armbench_runs"); err != nil {
		return nil, RunsOutput{}, err
	}
	if s.store == nil {
		return nil, RunsOutput{}, fmt.Errorf("no run database configured")
	}

	runs, err := s.store.Runs(ctx)
	if err != nil {
		return nil, RunsOutput{}, fmt.Errorf("failed to list runs: %w", err)
	}
	if args.Limit > 0 && len(runs) > args.Limit {
		runs = runs[:args.Limit]
	}

	items := make([]RunListItem, 0, len(runs))
	for _, r := range runs {
		items = append(items, RunListItem{
			RunID:     r.RunID,
			Strategy:  r.StrategyLabel,
			Seed:      r.Seed,
			Rounds:    r.Rounds,
			ArmCount:  r.ArmCount,
			Regret:    r.Regret,
			StartedAt: r.StartedAt.Format(time.RFC3339),
			Finished:  r.FinishedAt != nil,
		})
	}

	return nil, RunsOutput{Runs: items, Count: len(items)}, nil
}

// tailSink keeps the last limit records in a ring.
type tailSink struct {
	limit int
	ring  []simulation.Record
	next  int
	full  bool
}

func (t *tailSink) Start(context.Context, simulation.RunInfo) error {
	if t.limit > 0 {
		t.ring = make([]simulation.Record, t.limit)
	}
	return nil
}

func (t *tailSink) Emit(_ context.Context, rec simulation.Record) error {
	if t.limit <= 0 {
		return nil
	}
	t.ring[t.next] = rec
	t.next++
	if t.next == t.limit {
		t.next = 0
		t.full = true
	}
	return nil
}

func (t *tailSink) Finish(context.Context, simulation.Summary) error { return nil }

// records returns the kept records in round order.
func (t *tailSink) records() []simulation.Record {
	if t.limit <= 0 {
		return nil
	}
	if !t.full {
		return append([]simulation.Record(nil), t.ring[:t.next]...)
	}
	out := make([]simulation.Record, 0, t.limit)
	out = append(out, t.ring[t.next:]...)
	return append(out, t.ring[:t.next]...)
}
