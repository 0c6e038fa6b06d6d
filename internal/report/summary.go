package report

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nvandessel/armbench/internal/constants"
	"github.com/nvandessel/armbench/internal/simulation"
)

// WriteSummary renders the end-of-run table:
//
//	Thompson Sampling - 1000 Plays
//	Arm ID	Plays	Wins	P(real)	P(est)
//	Arm #1	12	2	0.1	0.167
//	...
//	Total Regret: 31.4
func WriteSummary(w io.Writer, sum simulation.Summary) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %d Plays\n", sum.StrategyLabel, sum.Played)
	b.WriteString("Arm ID\tPlays\tWins\tP(real)\tP(est)\n")
	for i, a := range sum.Arms {
		fmt.Fprintf(&b, "Arm #%d\t%d\t%d\t%s\t%s\n",
			i+1, a.Plays, a.Wins,
			strconv.FormatFloat(a.ProbReal, 'f', -1, 64),
			strconv.FormatFloat(a.ProbEst, 'f', constants.SummaryPrecision, 64))
	}
	fmt.Fprintf(&b, "Total Regret: %s\n", FormatRegret(sum.Regret))

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// SummarySink writes the summary table when the run finishes and ignores
// individual rounds.
type SummarySink struct {
	w io.Writer
}

// NewSummarySink creates a SummarySink writing to w.
func NewSummarySink(w io.Writer) *SummarySink {
	return &SummarySink{w: w}
}

func (s *SummarySink) Start(context.Context, simulation.RunInfo) error { return nil }
func (s *SummarySink) Emit(context.Context, simulation.Record) error   { return nil }

func (s *SummarySink) Finish(_ context.Context, sum simulation.Summary) error {
	return WriteSummary(s.w, sum)
}
