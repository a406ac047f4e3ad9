package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

// AlertHistRepo records alert state history: one row per outage, opened by a
// start event and resolved by the matching end event.
type AlertHistRepo struct {
	db *sql.DB
}

func NewAlertHistRepo(conn *sql.DB) *AlertHistRepo {
	return &AlertHistRepo{db: conn}
}

const alertColumns = `alerthistid, netboxid, subid, eventtype, severity, message, start_time, end_time`

// Open starts a history entry for the given alert key. If an entry for
// (netbox, eventtype, subid) is already open it is returned unchanged, so
// redelivered start events do not stack outages. The second return value
// reports whether a new entry was created.
func (r *AlertHistRepo) Open(ctx context.Context, a *models.AlertHistory) (int64, bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT alerthistid FROM alerthist
		 WHERE netboxid = $1 AND eventtype = $2 AND subid = $3 AND end_time IS NULL`,
		a.NetboxID, a.EventType, a.SubID).Scan(&id)
	if err == nil {
		return id, false, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("alerthist: find open: %w", err)
	}

	start := a.StartTime
	if start.IsZero() {
		start = time.Now()
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO alerthist (netboxid, subid, eventtype, severity, message, start_time)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING alerthistid`,
		a.NetboxID, a.SubID, a.EventType, a.Severity, a.Message, start).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("alerthist: open %s: %w", a.EventType, err)
	}
	return id, true, nil
}

// Resolve closes the open entry for the alert key, if any. Resolving an
// already closed (or never opened) alert is a no-op, so redelivered end
// events are harmless. The return value reports whether an entry was
// actually closed.
func (r *AlertHistRepo) Resolve(ctx context.Context, netboxID int64, eventType, subID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE alerthist SET end_time = $4
		 WHERE netboxid = $1 AND eventtype = $2 AND subid = $3 AND end_time IS NULL`,
		netboxID, eventType, subID, at)
	if err != nil {
		return false, fmt.Errorf("alerthist: resolve %s: %w", eventType, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("alerthist: resolve %s: %w", eventType, err)
	}
	return n > 0, nil
}

// OpenAlerts returns all unresolved entries, most recent first.
func (r *AlertHistRepo) OpenAlerts(ctx context.Context) ([]models.AlertHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerthist
		 WHERE end_time IS NULL ORDER BY start_time DESC`)
	if err != nil {
		return nil, fmt.Errorf("alerthist: open alerts: %w", err)
	}
	return scanAlertRows(rows)
}

// History returns entries for one netbox newer than since, most recent first.
func (r *AlertHistRepo) History(ctx context.Context, netboxID int64, since time.Time, limit int) ([]models.AlertHistory, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+alertColumns+` FROM alerthist
		 WHERE netboxid = $1 AND start_time >= $2
		 ORDER BY start_time DESC LIMIT $3`,
		netboxID, since, limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("alerthist: history of %d: %w", netboxID, err)
	}
	return scanAlertRows(rows)
}

func scanAlertRows(rows *sql.Rows) ([]models.AlertHistory, error) {
	defer rows.Close()
	var out []models.AlertHistory
	for rows.Next() {
		var a models.AlertHistory
		var end sql.NullTime
		err := rows.Scan(&a.ID, &a.NetboxID, &a.SubID, &a.EventType,
			&a.Severity, &a.Message, &a.StartTime, &end)
		if err != nil {
			return nil, fmt.Errorf("alerthist: scan: %w", err)
		}
		if end.Valid {
			t := end.Time
			a.EndTime = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
