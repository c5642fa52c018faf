package sqlite

import (
	"context"
	"time"

	"blackfong-core/app/domains"
)

// InsertEvent appends an audit entry and sets its ID
func (s *Store) InsertEvent(ctx context.Context, entry *domains.EventLogEntry) error {
	query := `
		INSERT INTO event_log (at, level, event_type, source, severity, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		formatTime(entry.At), entry.Level, entry.EventType, entry.Source, entry.Severity, entry.Message,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

// ListEvents retrieves audit entries, newest first
func (s *Store) ListEvents(ctx context.Context, limit int) ([]domains.EventLogEntry, error) {
	query := `
		SELECT id, at, level, event_type, source, severity, message
		FROM event_log
		ORDER BY at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []domains.EventLogEntry{}
	for rows.Next() {
		var (
			e  domains.EventLogEntry
			at string
		)
		if err := rows.Scan(&e.ID, &at, &e.Level, &e.EventType, &e.Source, &e.Severity, &e.Message); err != nil {
			return nil, err
		}
		e.At = parseTime(at)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEventsSince counts entries of the given severity recorded at or after since
func (s *Store) CountEventsSince(ctx context.Context, severity string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM event_log WHERE severity = ? AND at >= ?`
	var n int
	err := s.db.QueryRowContext(ctx, query, severity, formatTime(since)).Scan(&n)
	return n, err
}
