package models

import "time"

// Maintenance task states.
const (
	TaskScheduled = "scheduled"
	TaskActive    = "active"
	TaskPassed    = "passed"
	TaskCanceled  = "canceled"
)

// MaintenanceTask is a planned service window. Alerts for covered components
// are suppressed while the task is active.
type MaintenanceTask struct {
	ID          int64
	Start       time.Time
	End         time.Time
	Description string
	Author      string
	State       string

	Components []MaintenanceComponent
}

// MaintenanceComponent is one thing a task covers: a single netbox or every
// netbox in a room.
type MaintenanceComponent struct {
	TaskID   int64
	NetboxID *int64
	RoomID   *string
}

// ActiveAt reports whether the window covers t and the task has not been
// canceled.
func (t *MaintenanceTask) ActiveAt(at time.Time) bool {
	if t.State == TaskCanceled {
		return false
	}
	return !at.Before(t.Start) && at.Before(t.End)
}

// Covers reports whether the task includes the given netbox, directly or via
// its room.
func (t *MaintenanceTask) Covers(netboxID int64, roomID string) bool {
	for _, c := range t.Components {
		if c.NetboxID != nil && *c.NetboxID == netboxID {
			return true
		}
		if c.RoomID != nil && *c.RoomID == roomID {
			return true
		}
	}
	return false
}
