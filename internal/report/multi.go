package report

import (
	"context"
	"fmt"

	"github.com/nvandessel/armbench/internal/simulation"
)

// MultiSink fans every call out to several sinks in order. The first error
// stops the fan-out and is returned.
type MultiSink struct {
	sinks []simulation.Sink
}

// Multi combines sinks. Nil entries are skipped.
func Multi(sinks ...simulation.Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) Start(ctx context.Context, info simulation.RunInfo) error {
	for i, s := range m.sinks {
		if err := s.Start(ctx, info); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}

func (m *MultiSink) Emit(ctx context.Context, rec simulation.Record) error {
	for i, s := range m.sinks {
		if err := s.Emit(ctx, rec); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}

func (m *MultiSink) Finish(ctx context.Context, sum simulation.Summary) error {
	for i, s := range m.sinks {
		if err := s.Finish(ctx, sum); err != nil {
			return fmt.Errorf("sink %d: %w", i, err)
		}
	}
	return nil
}
