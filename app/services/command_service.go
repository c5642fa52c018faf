package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"blackfong-core/app/clients"
	"blackfong-core/app/domains"
	"blackfong-core/app/executor"
	"blackfong-core/app/observability"
	"blackfong-core/app/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	defaultRunLimit = 100
	maxRunLimit     = 1000
)

// CommandService handles command ledger operations
type CommandService struct {
	runs    clients.RunStore
	pool    *executor.Pool
	events  Recorder
	allowed map[string][]string
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewCommandService creates a new command service. allowed maps a command
// name to the fixed argv it runs.
func NewCommandService(runs clients.RunStore, pool *executor.Pool, events Recorder, allowed map[string][]string, metrics *observability.Metrics, logger *zap.Logger) *CommandService {
	cp := make(map[string][]string, len(allowed))
	for name, argv := range allowed {
		cp[name] = append([]string(nil), argv...)
	}
	return &CommandService{
		runs:    runs,
		pool:    pool,
		events:  events,
		allowed: cp,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// AllowedCommands returns the allow-listed names, sorted
func (s *CommandService) AllowedCommands() []string {
	names := make([]string, 0, len(s.allowed))
	for name := range s.allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run records a run for name and, when name is allow-listed, executes it to
// completion. A name outside the allow-list yields a DENIED run, not an
// error. Errors are persistence failures.
func (s *CommandService) Run(ctx context.Context, name string, requester domains.Requester) (*domains.CommandRun, error) {
	// a disconnecting caller must not leave a RUNNING row behind
	ctx = context.WithoutCancel(ctx)

	run := &domains.CommandRun{
		ID:          uuid.New(),
		Name:        name,
		RequestedBy: requester.Ptr(),
		RequestedAt: s.now().UTC(),
		Status:      domains.RunQueued,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create command run: %w", err)
	}

	argv, ok := s.allowed[name]
	if !ok {
		return s.deny(ctx, run)
	}

	release := s.pool.Lock(name)
	defer release()

	if err := transition(run, domains.RunRunning); err != nil {
		return nil, err
	}
	started := s.stamp(run.RequestedAt)
	run.StartedAt = &started
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to mark run %s running: %w", run.ID, err)
	}

	ctx, span := observability.Tracer().Start(ctx, "command.run")
	span.SetAttributes(
		attribute.String("command.name", name),
		attribute.String("command.run_id", run.ID.String()),
	)
	defer span.End()

	res := s.pool.Run(ctx, argv)
	finished := s.stamp(started)
	s.metrics.CommandDurationSeconds.WithLabelValues(name).Observe(finished.Sub(started).Seconds())

	next := domains.RunOK
	if !res.Succeeded() {
		next = domains.RunFail
	}
	if err := transition(run, next); err != nil {
		return nil, err
	}
	stderr := res.Stderr
	if res.Error != nil {
		if stderr != "" && !strings.HasSuffix(stderr, "\n") {
			stderr += "\n"
		}
		stderr += res.Error.Error()
		span.RecordError(res.Error)
	}
	rc := res.ExitCode
	run.ReturnCode = &rc
	run.Stdout = &res.Stdout
	run.Stderr = &stderr
	run.FinishedAt = &finished

	if err := s.runs.UpdateRun(ctx, run); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to record result of run %s: %w", run.ID, err)
	}
	span.SetAttributes(attribute.Int("command.return_code", rc))

	s.metrics.CommandRunsTotal.WithLabelValues(name, string(run.Status)).Inc()
	s.logger.Info("command finished",
		zap.String("run_id", run.ID.String()),
		zap.String("name", name),
		zap.String("status", string(run.Status)),
		zap.Int("return_code", rc),
		zap.String("requested_by", requester.String()),
	)

	severity := domains.SeverityInfo
	if run.Status != domains.RunOK {
		severity = domains.SeverityWarn
	}
	if err := audit(ctx, s.events, EventInput{
		Severity:  severity,
		Source:    domains.SourceAPI,
		EventType: "command." + strings.ToLower(string(run.Status)),
		Message:   fmt.Sprintf("command %s: %s (rc=%d)", run.Status, name, rc),
	}); err != nil {
		return run, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}

func (s *CommandService) deny(ctx context.Context, run *domains.CommandRun) (*domains.CommandRun, error) {
	if err := transition(run, domains.RunDenied); err != nil {
		return nil, err
	}
	finished := s.stamp(run.RequestedAt)
	run.FinishedAt = &finished
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to mark run %s denied: %w", run.ID, err)
	}

	s.metrics.CommandRunsTotal.WithLabelValues(run.Name, string(run.Status)).Inc()
	s.logger.Warn("command denied",
		zap.String("run_id", run.ID.String()),
		zap.String("name", run.Name),
	)
	if err := audit(ctx, s.events, EventInput{
		Severity:  domains.SeverityWarn,
		Source:    domains.SourceAPI,
		EventType: "command.denied",
		Message:   "command denied: " + run.Name,
	}); err != nil {
		return run, fmt.Errorf("run %s: %w", run.ID, err)
	}
	return run, nil
}

// stamp returns now, never earlier than after
func (s *CommandService) stamp(after time.Time) time.Time {
	t := s.now().UTC()
	if t.Before(after) {
		return after
	}
	return t
}

func transition(run *domains.CommandRun, next domains.RunStatus) error {
	if !run.Status.CanTransition(next) {
		return fmt.Errorf("run %s %s -> %s: %w", run.ID, run.Status, next, domains.ErrIllegalTransition)
	}
	run.Status = next
	return nil
}

// ListRuns returns runs, most recently requested first
func (s *CommandService) ListRuns(ctx context.Context, limit int) ([]domains.CommandRun, error) {
	runs, err := s.runs.ListRuns(ctx, utils.ClampLimit(limit, defaultRunLimit, maxRunLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run or domains.ErrRunNotFound
func (s *CommandService) GetRun(ctx context.Context, id uuid.UUID) (*domains.CommandRun, error) {
	run, err := s.runs.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	if run == nil {
		return nil, domains.ErrRunNotFound
	}
	return run, nil
}
