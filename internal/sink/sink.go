// Package sink delivers alerts and periodic stats reports to their
// destinations: the process log, a colorized console, or a Kafka topic.
package sink

import (
	"context"

	"riskScope/internal/model"
)

// Sink receives alerts as they fire and stats snapshots on a schedule.
type Sink interface {
	PublishAlert(ctx context.Context, alert model.Alert) error
	PublishStats(ctx context.Context, listener string, snapshot interface{}) error
	Close() error
}

// Multi fans every publish out to all children, returning the first error
// after trying each one.
type Multi struct {
	sinks []Sink
}

// NewMulti builds a fan-out sink.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) PublishAlert(ctx context.Context, alert model.Alert) error {
	var first error
	for _, s := range m.sinks {
		if err := s.PublishAlert(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Multi) PublishStats(ctx context.Context, listener string, snapshot interface{}) error {
	var first error
	for _, s := range m.sinks {
		if err := s.PublishStats(ctx, listener, snapshot); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
