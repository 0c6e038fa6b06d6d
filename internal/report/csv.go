// Package report provides record sinks that stream a run's rounds to a
// writer (CSV, JSONL, Arrow IPC) and renders the end-of-run summary table.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/nvandessel/armbench/internal/constants"
	"github.com/nvandessel/armbench/internal/simulation"
)

// CSVSink writes one row per round: the pre-trial estimate of every arm
// followed by the cumulative regret.
type CSVSink struct {
	w   *csv.Writer
	row []string
}

// NewCSVSink creates a CSV sink writing to w. The caller owns w.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// CSVHeader returns the header row for n arms.
func CSVHeader(n int) []string {
	header := make([]string, 0, n+1)
	for i := 1; i <= n; i++ {
		header = append(header, fmt.Sprintf("arm_prob_%d", i))
	}
	return append(header, "regret")
}

// Start writes the header.
func (s *CSVSink) Start(_ context.Context, info simulation.RunInfo) error {
	s.row = make([]string, info.ArmCount()+1)
	if err := s.w.Write(CSVHeader(info.ArmCount())); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	return nil
}

// Emit writes a round.
func (s *CSVSink) Emit(_ context.Context, rec simulation.Record) error {
	if len(rec.Estimates)+1 != len(s.row) {
		return fmt.Errorf("csv row for round %d has %d estimates, header has %d", rec.Round, len(rec.Estimates), len(s.row)-1)
	}
	for i, est := range rec.Estimates {
		s.row[i] = strconv.FormatFloat(est, 'f', constants.EstimatePrecision, 64)
	}
	s.row[len(s.row)-1] = FormatRegret(rec.Regret)
	if err := s.w.Write(s.row); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	return nil
}

// Finish flushes buffered rows.
func (s *CSVSink) Finish(context.Context, simulation.Summary) error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// FormatRegret renders regret in its shortest exact decimal form, so whole
// numbers print without a fraction.
func FormatRegret(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64)
}
