package report

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/nvandessel/armbench/internal/simulation"
)

// JSONLRecord is one line of the JSONL record stream.
type JSONLRecord struct {
	RunID     string    `json:"run_id"`
	Round     int       `json:"round"`
	Estimates []float64 `json:"estimates"`
	Selected  int       `json:"selected"`
	Won       bool      `json:"won"`
	Regret    float64   `json:"regret"`
}

// JSONLSink writes one JSON object per round.
type JSONLSink struct {
	buf   *bufio.Writer
	enc   *json.Encoder
	runID string
}

// NewJSONLSink creates a JSONL sink writing to w. The caller owns w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	buf := bufio.NewWriter(w)
	return &JSONLSink{buf: buf, enc: json.NewEncoder(buf)}
}

func (s *JSONLSink) Start(_ context.Context, info simulation.RunInfo) error {
	s.runID = info.RunID
	return nil
}

func (s *JSONLSink) Emit(_ context.Context, rec simulation.Record) error {
	line := JSONLRecord{
		RunID:     s.runID,
		Round:     rec.Round,
		Estimates: rec.Estimates,
		Selected:  rec.Selected,
		Won:       rec.Won,
		Regret:    rec.Regret,
	}
	if err := s.enc.Encode(line); err != nil {
		return fmt.Errorf("failed to encode round %d: %w", rec.Round, err)
	}
	return nil
}

func (s *JSONLSink) Finish(context.Context, simulation.Summary) error {
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush jsonl: %w", err)
	}
	return nil
}
