package report

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/nvandessel/armbench/internal/constants"
	"github.com/nvandessel/armbench/internal/simulation"
)

// Fixed columns of the Arrow record stream. Arm estimates follow as
// arm_prob_1..arm_prob_N.
const (
	colRound = iota
	colSelected
	colWon
	colRegret
	fixedColumns
)

// ArrowSink writes the record stream in the Arrow IPC streaming format, one
// row per round, in batches of BatchSize rows. The output needs no seeking,
// so any io.Writer works and ipc.NewReader reads it back.
type ArrowSink struct {
	out       io.Writer
	mem       memory.Allocator
	batchSize int

	schema  *arrow.Schema
	builder *array.RecordBuilder
	writer  *ipc.Writer
	pending int
}

// ArrowOption configures an ArrowSink.
type ArrowOption func(*ArrowSink)

// WithAllocator sets the allocator for column buffers.
func WithAllocator(mem memory.Allocator) ArrowOption {
	return func(s *ArrowSink) {
		s.mem = mem
	}
}

// WithBatchSize sets how many rounds are buffered per record batch.
func WithBatchSize(n int) ArrowOption {
	return func(s *ArrowSink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewArrowSink creates an Arrow IPC stream sink writing to w. The caller owns w.
func NewArrowSink(w io.Writer, opts ...ArrowOption) *ArrowSink {
	s := &ArrowSink{
		out:       w,
		mem:       memory.NewGoAllocator(),
		batchSize: constants.ArrowBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ArrowSchema returns the record schema for a run. Run identity is carried
// in the schema metadata.
func ArrowSchema(info simulation.RunInfo) *arrow.Schema {
	fields := []arrow.Field{
		{Name: "round", Type: arrow.PrimitiveTypes.Int64},
		{Name: "selected", Type: arrow.PrimitiveTypes.Int64},
		{Name: "won", Type: arrow.FixedWidthTypes.Boolean},
		{Name: "regret", Type: arrow.PrimitiveTypes.Float64},
	}
	for i := 1; i <= info.ArmCount(); i++ {
		fields = append(fields, arrow.Field{Name: fmt.Sprintf("arm_prob_%d", i), Type: arrow.PrimitiveTypes.Float64})
	}
	md := arrow.NewMetadata(
		[]string{"run_id", "strategy", "seed", "rounds"},
		[]string{info.RunID, info.StrategyLabel, strconv.FormatUint(info.Seed, 10), strconv.Itoa(info.Rounds)},
	)
	return arrow.NewSchema(fields, &md)
}

// Start opens the IPC stream writer. The schema message is written with the
// first batch.
func (s *ArrowSink) Start(_ context.Context, info simulation.RunInfo) error {
	s.schema = ArrowSchema(info)
	s.writer = ipc.NewWriter(s.out, ipc.WithSchema(s.schema), ipc.WithAllocator(s.mem))
	s.builder = array.NewRecordBuilder(s.mem, s.schema)
	s.pending = 0
	return nil
}

// Emit appends a round to the current batch, writing the batch when full.
func (s *ArrowSink) Emit(_ context.Context, rec simulation.Record) error {
	if want := len(s.schema.Fields()) - fixedColumns; len(rec.Estimates) != want {
		return fmt.Errorf("arrow row for round %d has %d estimates, schema has %d", rec.Round, len(rec.Estimates), want)
	}

	s.builder.Field(colRound).(*array.Int64Builder).Append(int64(rec.Round))
	s.builder.Field(colSelected).(*array.Int64Builder).Append(int64(rec.Selected))
	s.builder.Field(colWon).(*array.BooleanBuilder).Append(rec.Won)
	s.builder.Field(colRegret).(*array.Float64Builder).Append(rec.Regret)
	for i, est := range rec.Estimates {
		s.builder.Field(fixedColumns + i).(*array.Float64Builder).Append(est)
	}

	s.pending++
	if s.pending >= s.batchSize {
		return s.flush()
	}
	return nil
}

// Finish writes the last partial batch and the end-of-stream marker.
func (s *ArrowSink) Finish(context.Context, simulation.Summary) error {
	defer s.release()
	if err := s.flush(); err != nil {
		return err
	}
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return nil
}

// Abort drops the buffered rows and releases the column builders without
// writing the end-of-stream marker. It is a no-op after Finish.
func (s *ArrowSink) Abort() error {
	s.release()
	return nil
}

func (s *ArrowSink) release() {
	if s.builder != nil {
		s.builder.Release()
		s.builder = nil
	}
	s.pending = 0
}

func (s *ArrowSink) flush() error {
	if s.pending == 0 {
		return nil
	}
	rec := s.builder.NewRecord()
	defer rec.Release()
	s.pending = 0
	if err := s.writer.Write(rec); err != nil {
		return fmt.Errorf("failed to write arrow batch: %w", err)
	}
	return nil
}
