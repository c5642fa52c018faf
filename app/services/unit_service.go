package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"blackfong-core/app/domains"
	"blackfong-core/app/executor"
	"blackfong-core/app/observability"

	"go.uber.org/zap"
)

const systemctlPath = "/bin/systemctl"

var unitActions = map[string]bool{
	"start":   true,
	"stop":    true,
	"restart": true,
	"status":  true,
}

// UnitResult is the outcome of one systemctl invocation
type UnitResult struct {
	Unit       string `json:"unit"`
	Action     string `json:"action"`
	ReturnCode int    `json:"return_code"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
}

// UnitService controls allow-listed systemd units
type UnitService struct {
	pool    *executor.Pool
	events  Recorder
	allowed map[string]bool
	asRoot  bool
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewUnitService creates a new unit service. An empty allowed list places no
// restriction on units.
func NewUnitService(pool *executor.Pool, events Recorder, allowed []string, metrics *observability.Metrics, logger *zap.Logger) *UnitService {
	set := make(map[string]bool, len(allowed))
	for _, u := range allowed {
		set[u] = true
	}
	return &UnitService{
		pool:    pool,
		events:  events,
		allowed: set,
		asRoot:  os.Geteuid() == 0,
		metrics: metrics,
		logger:  logger,
	}
}

// Argv returns the command line for action on unit
func (s *UnitService) Argv(unit, action string) []string {
	argv := []string{systemctlPath, action, unit}
	if action == "status" {
		argv = []string{systemctlPath, "status", "--no-pager", unit}
	}
	if !s.asRoot {
		argv = append([]string{"sudo", "-n"}, argv...)
	}
	return argv
}

// Act runs systemctl action unit. An unknown action or a unit name starting
// with "-" is domains.ErrInvalidArgument;
// a unit outside the allow-list is domains.ErrPolicyDenied.
func (s *UnitService) Act(ctx context.Context, unit, action string, requester domains.Requester) (*UnitResult, error) {
	if !unitActions[action] {
		return nil, fmt.Errorf("%w: invalid action %q", domains.ErrInvalidArgument, action)
	}

	if unit == "" || strings.HasPrefix(unit, "-") {
		return nil, fmt.Errorf("%w: invalid unit %q", domains.ErrInvalidArgument, unit)
	}

	if len(s.allowed) > 0 && !s.allowed[unit] {
		s.metrics.UnitActionsTotal.WithLabelValues(action, "denied").Inc()
		if err := audit(ctx, s.events, EventInput{
			Severity:  domains.SeverityWarn,
			Source:    domains.SourceAPI,
			EventType: "service.denied",
			Message:   fmt.Sprintf("service denied: %s %s", unit, action),
		}); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: unit %s", domains.ErrPolicyDenied, unit)
	}

	res := s.pool.Run(context.WithoutCancel(ctx), s.Argv(unit, action))
	stderr := res.Stderr
	if res.Error != nil {
		stderr += res.Error.Error()
	}
	result := &UnitResult{
		Unit:       unit,
		Action:     action,
		ReturnCode: res.ExitCode,
		Stdout:     res.Stdout,
		Stderr:     stderr,
	}

	severity, outcome := domains.SeverityInfo, "ok"
	if result.ReturnCode != 0 {
		severity, outcome = domains.SeverityWarn, "fail"
	}
	s.metrics.UnitActionsTotal.WithLabelValues(action, outcome).Inc()
	s.logger.Info("service action",
		zap.String("unit", unit),
		zap.String("action", action),
		zap.Int("return_code", result.ReturnCode),
		zap.String("requested_by", requester.String()),
	)
	if err := audit(ctx, s.events, EventInput{
		Severity:  severity,
		Source:    domains.SourceAPI,
		EventType: "service." + action,
		Message:   fmt.Sprintf("service %s: %s (rc=%d)", action, unit, result.ReturnCode),
	}); err != nil {
		return result, err
	}
	return result, nil
}
