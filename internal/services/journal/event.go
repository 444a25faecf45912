// Package journal records device events (deposits, commands, registration,
// failures) as InfluxDB points for later analysis.
package journal

import "time"

type EventType string

const (
	EventRegistered EventType = "registered"
	EventDeposit    EventType = "deposit"
	EventCommand    EventType = "command"
	EventCycleError EventType = "cycle_error"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warning"
	SeverityError Severity = "error"
)

// Event is the common shape of everything the device journals.
type Event struct {
	Type      EventType
	BinID     string
	Category  string
	Severity  Severity
	Fields    map[string]interface{}
	Timestamp time.Time
}

// Recorder accepts events without blocking the caller.
type Recorder interface {
	Record(Event)
}

// Noop drops every event; used when no InfluxDB is configured.
type Noop struct{}

func (Noop) Record(Event) {}
