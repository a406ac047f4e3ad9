package models

import "time"

// Event states. Stateless events are one-shot notifications; start/end pairs
// open and resolve an alert history entry.
const (
	StateStateless = "x"
	StateStart     = "s"
	StateEnd       = "e"
)

// Well-known event types posted on the queue.
const (
	EventBoxState         = "boxState"
	EventServiceState     = "serviceState"
	EventModuleState      = "moduleState"
	EventLinkState        = "linkState"
	EventMaintenanceState = "maintenanceState"
	EventTypeChanged      = "deviceTypeChanged"
	EventVersion          = "version"
	EventInfo             = "info"
)

// Severity levels, 0 (highest) through 4.
const (
	SeverityCritical = 0
	SeverityHigh     = 1
	SeverityMedium   = 2
	SeverityLow      = 3
	SeverityDebug    = 4
)

// Event is one row on the event queue: something a collecting daemon noticed
// and wants the event engine to act on. Source and Target name daemons
// ("ipdevpoll", "serviceping", "eventEngine").
type Event struct {
	ID        int64
	Source    string
	Target    string
	NetboxID  int64
	SubID     string // service id, ifindex or similar sub-identifier
	EventType string
	State     string
	Severity  int
	Value     int
	Time      time.Time

	// Vars carries event-specific attributes, e.g. sysname, old/new type.
	Vars map[string]string
}

// AlertHistory is the persisted record of an alert state: opened by a start
// event, resolved by the matching end event. EndTime nil means still down.
type AlertHistory struct {
	ID        int64
	NetboxID  int64
	SubID     string
	EventType string
	Severity  int
	Message   string
	StartTime time.Time
	EndTime   *time.Time
}

// Open reports whether the alert is still unresolved.
func (a *AlertHistory) Open() bool { return a.EndTime == nil }
