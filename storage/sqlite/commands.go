package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blackfong-core/app/domains"

	"github.com/google/uuid"
)

const runColumns = `id, name, requested_by, requested_at, started_at, finished_at, status, return_code, stdout, stderr`

// CreateRun inserts a new command run
func (s *Store) CreateRun(ctx context.Context, run *domains.CommandRun) error {
	query := `
		INSERT INTO command_runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID.String(), run.Name, run.RequestedBy, formatTime(run.RequestedAt),
		formatTimePtr(run.StartedAt), formatTimePtr(run.FinishedAt), string(run.Status),
		run.ReturnCode, run.Stdout, run.Stderr,
	)
	return err
}

// UpdateRun writes the mutable fields of a run. Runs already in a terminal
// state are never modified.
func (s *Store) UpdateRun(ctx context.Context, run *domains.CommandRun) error {
	query := `
		UPDATE command_runs
		SET started_at = ?, finished_at = ?, status = ?, return_code = ?, stdout = ?, stderr = ?
		WHERE id = ? AND status NOT IN ('OK', 'FAIL', 'DENIED')
	`
	res, err := s.db.ExecContext(ctx, query,
		formatTimePtr(run.StartedAt), formatTimePtr(run.FinishedAt), string(run.Status),
		run.ReturnCode, run.Stdout, run.Stderr, run.ID.String(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, domains.ErrIllegalTransition)
	}
	return nil
}

// GetRun retrieves a command run by ID
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*domains.CommandRun, error) {
	query := `SELECT ` + runColumns + ` FROM command_runs WHERE id = ?`
	run, err := scanRun(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

// ListRuns retrieves runs, most recently requested first
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domains.CommandRun, error) {
	query := `SELECT ` + runColumns + ` FROM command_runs ORDER BY requested_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []domains.CommandRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row rowScanner) (*domains.CommandRun, error) {
	var (
		run                     domains.CommandRun
		id, requestedAt, status string
		requestedBy             sql.NullString
		startedAt, finishedAt   sql.NullString
		returnCode              sql.NullInt64
		stdout, stderr          sql.NullString
	)
	err := row.Scan(
		&id, &run.Name, &requestedBy, &requestedAt, &startedAt, &finishedAt,
		&status, &returnCode, &stdout, &stderr,
	)
	if err != nil {
		return nil, err
	}

	run.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse run id %q: %w", id, err)
	}
	run.RequestedBy = nullString(requestedBy)
	run.RequestedAt = parseTime(requestedAt)
	run.StartedAt = parseNullTime(startedAt)
	run.FinishedAt = parseNullTime(finishedAt)
	run.Status = domains.RunStatus(status)
	if returnCode.Valid {
		rc := int(returnCode.Int64)
		run.ReturnCode = &rc
	}
	run.Stdout = nullString(stdout)
	run.Stderr = nullString(stderr)
	return &run, nil
}
