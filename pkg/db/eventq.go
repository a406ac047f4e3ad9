package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/nav-nms/nav/pkg/models"
)

// notifyChannel is the NOTIFY channel posters signal after inserting a row.
const notifyChannel = "new_event"

// EventQueue is the hand-off point between the collecting daemons and the
// event engine: posters insert rows into eventq and send a NOTIFY, the
// consumer drains rows addressed to it and deletes them once handled.
//
// Delivery is at least once. A consumer crash between handling and deleting
// redelivers the event, so handlers must be idempotent.
type EventQueue struct {
	db     *sql.DB
	dsn    string
	target string

	// PollInterval is the fallback drain cadence for notifications lost
	// while the listener connection was down.
	PollInterval time.Duration
}

// NewEventQueue returns a queue handle for the given consumer target
// ("eventEngine" for the event engine). The DSN is used for the dedicated
// LISTEN connection.
func NewEventQueue(conn *sql.DB, dsn, target string) *EventQueue {
	return &EventQueue{
		db:           conn,
		dsn:          dsn,
		target:       target,
		PollInterval: 30 * time.Second,
	}
}

// Post appends an event to the queue and notifies listeners.
func (q *EventQueue) Post(ctx context.Context, ev *models.Event) error {
	vars, err := json.Marshal(orEmpty(ev.Vars))
	if err != nil {
		return fmt.Errorf("eventq: encode vars: %w", err)
	}
	when := ev.Time
	if when.IsZero() {
		when = time.Now()
	}
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO eventq
		   (source, target, netboxid, subid, eventtype, state, severity, value, time, vars)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		ev.Source, ev.Target, nullID(ev.NetboxID), ev.SubID, ev.EventType,
		ev.State, ev.Severity, ev.Value, when, vars)
	if err != nil {
		return fmt.Errorf("eventq: post %s: %w", ev.EventType, err)
	}
	if _, err := q.db.ExecContext(ctx, `SELECT pg_notify($1, '')`, notifyChannel); err != nil {
		// The row is safely queued; the fallback poll will pick it up.
		return nil
	}
	return nil
}

// Pending returns queued events for this consumer in insertion order.
func (q *EventQueue) Pending(ctx context.Context, limit int) ([]models.Event, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT eventqid, source, target, netboxid, subid, eventtype, state,
		        severity, value, time, vars
		 FROM eventq WHERE target = $1 ORDER BY eventqid LIMIT $2`,
		q.target, limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("eventq: pending: %w", err)
	}
	defer rows.Close()

	var out []models.Event
	for rows.Next() {
		var ev models.Event
		var netboxID sql.NullInt64
		var varsRaw json.RawMessage
		err := rows.Scan(&ev.ID, &ev.Source, &ev.Target, &netboxID, &ev.SubID,
			&ev.EventType, &ev.State, &ev.Severity, &ev.Value, &ev.Time, &varsRaw)
		if err != nil {
			return nil, fmt.Errorf("eventq: scan: %w", err)
		}
		if netboxID.Valid {
			ev.NetboxID = netboxID.Int64
		}
		if len(varsRaw) > 0 {
			if err := json.Unmarshal(varsRaw, &ev.Vars); err != nil {
				return nil, fmt.Errorf("eventq: decode vars of %d: %w", ev.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Delete acknowledges a handled event.
func (q *EventQueue) Delete(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM eventq WHERE eventqid = $1`, id); err != nil {
		return fmt.Errorf("eventq: delete %d: %w", id, err)
	}
	return nil
}

// Run consumes the queue until ctx is cancelled. Each pending event is passed
// to handle; on success the row is deleted. A handler error leaves the row
// queued and stops the current drain; it will be retried on the next wakeup.
//
// Wakeups come from LISTEN notifications, with a ticker fallback so events
// are never stuck behind a lost notification.
func (q *EventQueue) Run(ctx context.Context, handle func(context.Context, models.Event) error) error {
	listener := pq.NewListener(q.dsn, time.Second, time.Minute,
		func(event pq.ListenerEventType, err error) {
			if err != nil {
				slog.Warn("eventq: listener state change", "state", event, "err", err)
			}
		})
	defer listener.Close()

	if err := listener.Listen(notifyChannel); err != nil {
		return fmt.Errorf("eventq: listen: %w", err)
	}

	ticker := time.NewTicker(q.PollInterval)
	defer ticker.Stop()

	// Drain whatever queued up before we started listening.
	q.drain(ctx, handle)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-listener.Notify:
			q.drain(ctx, handle)
		case <-ticker.C:
			q.drain(ctx, handle)
		}
	}
}

func (q *EventQueue) drain(ctx context.Context, handle func(context.Context, models.Event) error) {
	for {
		events, err := q.Pending(ctx, 100)
		if err != nil {
			slog.Error("eventq: drain failed", "err", err)
			return
		}
		if len(events) == 0 {
			return
		}
		for _, ev := range events {
			if err := handle(ctx, ev); err != nil {
				slog.Error("eventq: handler failed, leaving event queued",
					"event", ev.ID, "type", ev.EventType, "err", err)
				return
			}
			if err := q.Delete(ctx, ev.ID); err != nil {
				slog.Error("eventq: ack failed", "event", ev.ID, "err", err)
				return
			}
		}
	}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
