package dispatch

import (
	"context"
	"log/slog"
)

// Log writes the notification to the server log. Used as the address type
// for operators who just want alerts in the journal, and as the fallback
// built-in target.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (d *Log) Type() string { return "log" }

func (d *Log) Send(ctx context.Context, address string, n *Notification) error {
	slog.Info("alert",
		"notification", n.ID,
		"sysname", n.Sysname,
		"event_type", n.EventType,
		"state", n.State,
		"severity", n.Severity,
		"message", n.Message,
	)
	return nil
}
