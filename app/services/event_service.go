package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"blackfong-core/app/clients"
	"blackfong-core/app/domains"
	"blackfong-core/app/observability"
	"blackfong-core/app/utils"

	"go.uber.org/zap"
)

const (
	defaultEventLimit = 200
	maxEventLimit     = 1000
)

// EventInput is an audit entry before normalisation
type EventInput struct {
	Severity  string
	Source    string
	EventType string
	Message   string
}

// SinkResult reports failures of the best-effort secondary sinks. The entry
// is already persisted when either field is set.
type SinkResult struct {
	FileErr    error
	PublishErr error
}

// Recorder records audit entries
type Recorder interface {
	Record(ctx context.Context, in EventInput) (*domains.EventLogEntry, SinkResult, error)
}

// EventService handles audit log operations
type EventService struct {
	store     clients.EventStore
	logPath   string
	publisher clients.EventPublisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time

	mu sync.Mutex
}

// NewEventService creates a new event service. logDir may be empty to skip
// the text file sink and publisher may be nil.
func NewEventService(store clients.EventStore, logDir string, publisher clients.EventPublisher, metrics *observability.Metrics, logger *zap.Logger) *EventService {
	logPath := ""
	if logDir != "" {
		logPath = filepath.Join(logDir, "events.log")
	}
	return &EventService{
		store:     store,
		logPath:   logPath,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Record persists an entry, then appends it to events.log and publishes it
func (s *EventService) Record(ctx context.Context, in EventInput) (*domains.EventLogEntry, SinkResult, error) {
	var sinks SinkResult

	entry := domains.NewEventLogEntry(s.now().UTC(), in.Severity, in.Source, in.EventType, in.Message)
	if err := s.store.InsertEvent(ctx, &entry); err != nil {
		return nil, sinks, fmt.Errorf("failed to insert event: %w", err)
	}

	if s.logPath != "" {
		if err := s.appendLine(entry); err != nil {
			sinks.FileErr = err
			s.metrics.AuditSinkFailuresTotal.WithLabelValues("file").Inc()
			s.logger.Warn("audit file append failed", zap.String("path", s.logPath), zap.Error(err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(entry); err != nil {
			sinks.PublishErr = err
			s.metrics.AuditSinkFailuresTotal.WithLabelValues("publish").Inc()
			s.logger.Warn("audit publish failed", zap.String("event_type", entry.EventType), zap.Error(err))
		}
	}

	return &entry, sinks, nil
}

// FormatLine renders an entry the way it appears in events.log
func FormatLine(entry domains.EventLogEntry) string {
	return fmt.Sprintf("%s [%s] (%s/%s) %s\n",
		entry.At.UTC().Format(time.RFC3339Nano),
		strings.ToUpper(entry.Severity),
		entry.Source,
		entry.EventType,
		entry.Message,
	)
}

func (s *EventService) appendLine(entry domains.EventLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(s.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open events log: %w", err)
	}
	if _, err := f.WriteString(FormatLine(entry)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write events log: %w", err)
	}
	return f.Close()
}

// List returns entries newest first
func (s *EventService) List(ctx context.Context, limit int) ([]domains.EventLogEntry, error) {
	events, err := s.store.ListEvents(ctx, utils.ClampLimit(limit, defaultEventLimit, maxEventLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// CountSince counts entries of severity recorded at or after since
func (s *EventService) CountSince(ctx context.Context, severity string, since time.Time) (int, error) {
	n, err := s.store.CountEventsSince(ctx, severity, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// audit records an entry on behalf of another service. The event_log row is
// part of the caller's outcome, so a failed insert is returned.
func audit(ctx context.Context, rec Recorder, in EventInput) error {
	if rec == nil {
		return nil
	}
	if _, _, err := rec.Record(ctx, in); err != nil {
		return fmt.Errorf("failed to record %s event: %w", in.EventType, err)
	}
	return nil
}
