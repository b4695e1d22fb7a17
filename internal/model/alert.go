package model

// Severity orders alerts from informational to critical.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns the stable wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Alert is an immutable, fire-and-forget risk notification produced by an
// aggregator. Source is nil for alerts derived from state rather than a single
// event.
type Alert struct {
	Severity Severity
	Type     string
	Message  string
	Source   *ChainEvent
	Data     map[string]string
}
