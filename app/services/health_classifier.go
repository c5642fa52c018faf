package services

import (
	"fmt"
	"math"
	"time"

	"blackfong-core/app/domains"
)

const (
	resourceCritical = 95.0
	resourceDegraded = 85.0
	tempCritical     = 85.0
	tempDegraded     = 75.0
)

// HealthClassifier turns a pulse and fleet counters into a verdict
type HealthClassifier struct {
	StaleThreshold time.Duration
}

// Classify is pure: the same inputs always yield the same verdict. Checks
// run in a fixed order so reasons are ordered CPU, RAM, Disk, Temp, stale
// nodes, critical events.
func (c HealthClassifier) Classify(p domains.Pulse, staleNodes, criticalEvents int) domains.Verdict {
	v := domains.Verdict{Severity: domains.Stable, Reasons: []string{}}

	bump := func(sev domains.Severity, reason string) {
		if sev > v.Severity {
			v.Severity = sev
		}
		v.Reasons = append(v.Reasons, reason)
	}

	resource := func(label string, value float64) {
		switch {
		case value >= resourceCritical:
			bump(domains.Critical, fmt.Sprintf("%s %.1f%%", label, floorTenth(value)))
		case value >= resourceDegraded:
			bump(domains.Degraded, fmt.Sprintf("%s %.1f%%", label, floorTenth(value)))
		}
	}
	resource("CPU", p.CPUPercent)
	resource("RAM", p.MemoryPercent)
	resource("Disk", p.DiskPercent)

	if p.TempC != nil {
		switch t := *p.TempC; {
		case t >= tempCritical:
			bump(domains.Critical, fmt.Sprintf("Temp %.1fC", floorTenth(t)))
		case t >= tempDegraded:
			bump(domains.Degraded, fmt.Sprintf("Temp %.1fC", floorTenth(t)))
		}
	}

	if staleNodes > 0 {
		bump(domains.Degraded, fmt.Sprintf("%d stale node(s) (> %ds)", staleNodes, int64(c.StaleThreshold/time.Second)))
	}

	if criticalEvents > 0 {
		bump(domains.Critical, fmt.Sprintf("%d critical event(s) (recent)", criticalEvents))
	}

	return v
}

// floorTenth truncates to one decimal so a reading below a threshold never
// prints as the threshold itself
func floorTenth(v float64) float64 {
	return math.Floor(v*10) / 10
}
