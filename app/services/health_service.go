package services

import (
	"context"
	"fmt"
	"time"

	"blackfong-core/app/domains"
	"blackfong-core/app/observability"
	"blackfong-core/app/probe"
)

// HealthReport is a verdict together with the inputs it was derived from
type HealthReport struct {
	domains.Verdict
	Pulse          domains.Pulse `json:"pulse"`
	StaleNodes     int           `json:"stale_nodes"`
	CriticalEvents int           `json:"critical_events"`
	CheckedAt      time.Time     `json:"checked_at"`
}

// StaleCounter counts nodes that missed their heartbeat window
type StaleCounter interface {
	CountStale(ctx context.Context, now time.Time) (int, error)
}

// EventCounter counts audit entries by severity
type EventCounter interface {
	CountSince(ctx context.Context, severity string, since time.Time) (int, error)
}

// HealthService gathers health inputs and classifies them
type HealthService struct {
	source     probe.MetricsSource
	nodes      StaleCounter
	events     EventCounter
	classifier HealthClassifier
	window     time.Duration
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewHealthService creates a new health service. window is how far back
// critical events count against the verdict.
func NewHealthService(source probe.MetricsSource, nodes StaleCounter, events EventCounter, staleThreshold, window time.Duration, metrics *observability.Metrics) *HealthService {
	return &HealthService{
		source:     source,
		nodes:      nodes,
		events:     events,
		classifier: HealthClassifier{StaleThreshold: staleThreshold},
		window:     window,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Pulse returns a fresh metrics reading
func (s *HealthService) Pulse(ctx context.Context) (domains.Pulse, error) {
	p, err := s.source.Pulse(ctx)
	if err != nil {
		return p, fmt.Errorf("failed to read system metrics: %w", err)
	}
	return p, nil
}

// Evaluate reads the pulse, counts stale nodes and recent critical events,
// and classifies them.
func (s *HealthService) Evaluate(ctx context.Context) (*HealthReport, error) {
	pulse, err := s.Pulse(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stale, err := s.nodes.CountStale(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count stale nodes: %w", err)
	}

	critical, err := s.events.CountSince(ctx, domains.SeverityCritical, now.Add(-s.window))
	if err != nil {
		return nil, fmt.Errorf("failed to count critical events: %w", err)
	}

	verdict := s.classifier.Classify(pulse, stale, critical)
	s.metrics.HealthSeverity.Set(float64(verdict.Severity))

	return &HealthReport{
		Verdict:        verdict,
		Pulse:          pulse,
		StaleNodes:     stale,
		CriticalEvents: critical,
		CheckedAt:      now,
	}, nil
}
