package domains

import (
	"strings"
	"time"
)

const (
	SeverityInfo     = "info"
	SeverityWarn     = "warn"
	SeverityCritical = "critical"

	SourceAPI    = "api"
	SourceSystem = "system"
	SourceNode   = "node"

	maxEventTypeLen = 64
)

// EventLogEntry is an immutable audit record
type EventLogEntry struct {
	ID        int64     `db:"id" json:"id"`
	At        time.Time `db:"at" json:"at"`
	Level     string    `db:"level" json:"level"`
	EventType string    `db:"event_type" json:"event_type"`
	Source    string    `db:"source" json:"source"`
	Severity  string    `db:"severity" json:"severity"`
	Message   string    `db:"message" json:"message"`
}

// NewEventLogEntry normalises severity, source and event type and derives the level.
func NewEventLogEntry(at time.Time, severity, source, eventType, message string) EventLogEntry {
	sev := strings.ToLower(strings.TrimSpace(severity))
	switch sev {
	case SeverityInfo, SeverityWarn, SeverityCritical:
	default:
		sev = SeverityInfo
	}

	src := strings.ToLower(strings.TrimSpace(source))
	switch src {
	case SourceAPI, SourceSystem, SourceNode:
	default:
		src = SourceSystem
	}

	et := strings.TrimSpace(eventType)
	if et == "" {
		et = "event"
	}
	if len(et) > maxEventTypeLen {
		et = et[:maxEventTypeLen]
	}

	return EventLogEntry{
		At:        at,
		Level:     levelFor(sev),
		EventType: et,
		Source:    src,
		Severity:  sev,
		Message:   message,
	}
}

func levelFor(severity string) string {
	switch severity {
	case SeverityWarn:
		return "WARN"
	case SeverityCritical:
		return "ERROR"
	default:
		return "INFO"
	}
}
