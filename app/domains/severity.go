package domains

import "fmt"

// Severity is the health verdict level. Values are ordered.
type Severity int

const (
	Stable Severity = iota
	Degraded
	Critical
)

func (s Severity) String() string {
	switch s {
	case Stable:
		return "STABLE"
	case Degraded:
		return "DEGRADED"
	case Critical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText renders the severity by name
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Verdict is the result of classifying system health
type Verdict struct {
	Severity Severity `json:"severity"`
	Reasons  []string `json:"reasons"`
}
