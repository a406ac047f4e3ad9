// Package dispatch delivers alert notifications to their destinations:
// slack, generic webhooks, an AMQP export queue, or the log.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Notification is one alert delivery. ID correlates the same alert across
// delivery targets and log lines.
type Notification struct {
	ID        string    `json:"id"`
	NetboxID  int64     `json:"netbox_id"`
	Sysname   string    `json:"sysname"`
	EventType string    `json:"event_type"`
	SubID     string    `json:"sub_id,omitempty"`
	State     string    `json:"state"` // "firing" | "resolved"
	Severity  int       `json:"severity"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// Notification states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// NewNotification stamps a fresh correlation id on the notification.
func NewNotification(n Notification) *Notification {
	n.ID = uuid.NewString()
	return &n
}

// Dispatcher delivers a notification to one kind of address.
type Dispatcher interface {
	Type() string
	Send(ctx context.Context, address string, n *Notification) error
}

// Set routes notifications to the dispatcher registered for each address
// type. Delivery failures are logged, never returned: a dead webhook must
// not stall the event engine.
type Set struct {
	dispatchers map[string]Dispatcher
}

func NewSet(dispatchers ...Dispatcher) *Set {
	s := &Set{dispatchers: make(map[string]Dispatcher)}
	for _, d := range dispatchers {
		if _, dup := s.dispatchers[d.Type()]; dup {
			panic(fmt.Sprintf("dispatch: duplicate dispatcher %q", d.Type()))
		}
		s.dispatchers[d.Type()] = d
	}
	return s
}

// Deliver sends n to one address of the given type.
func (s *Set) Deliver(ctx context.Context, addrType, address string, n *Notification) {
	d, ok := s.dispatchers[addrType]
	if !ok {
		slog.Warn("no dispatcher for address type",
			"type", addrType, "notification", n.ID)
		return
	}
	if err := d.Send(ctx, address, n); err != nil {
		slog.Error("notification delivery failed",
			"type", addrType, "notification", n.ID,
			"sysname", n.Sysname, "err", err)
		deliveries.WithLabelValues(addrType, "failure").Inc()
		return
	}
	slog.Debug("notification delivered",
		"type", addrType, "notification", n.ID, "sysname", n.Sysname)
	deliveries.WithLabelValues(addrType, "success").Inc()
}

// severityLabel renders a severity level for human-facing messages.
func severityLabel(severity int) string {
	switch severity {
	case 0:
		return "[CRITICAL]"
	case 1:
		return "[HIGH]"
	case 2:
		return "[MEDIUM]"
	case 3:
		return "[LOW]"
	default:
		return "[DEBUG]"
	}
}
