// Package status computes the network status summary served by the API and
// broadcast over WebSocket: box up/down/shadow counts, open alerts and
// active maintenance.
package status

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

// Source is the data the summary is built from.
type Source interface {
	List(ctx context.Context) ([]*models.Netbox, error)
	OpenAlerts(ctx context.Context) ([]models.AlertHistory, error)
	ActiveTasks(ctx context.Context, at time.Time) ([]models.MaintenanceTask, error)
}

// Summary is one point-in-time view of the network.
type Summary struct {
	Boxes       int       `json:"boxes"`
	Up          int       `json:"up"`
	Down        int       `json:"down"`
	Shadow      int       `json:"shadow"`
	OpenAlerts  int       `json:"open_alerts"`
	Maintenance int       `json:"active_maintenance_tasks"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Collector builds summaries with a short cache, so a burst of API and
// WebSocket readers does not multiply database load.
type Collector struct {
	source Source
	maxAge time.Duration
	now    func() time.Time

	mu     sync.Mutex
	cached *Summary
}

// New creates a Collector. Summaries younger than maxAge are served from
// cache.
func New(source Source, maxAge time.Duration) *Collector {
	return &Collector{
		source: source,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Summary returns the current network summary, rebuilding it when the cached
// one is too old.
func (c *Collector) Summary(ctx context.Context) (*Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Sub(c.cached.GeneratedAt) < c.maxAge {
		cp := *c.cached
		return &cp, nil
	}

	s, err := c.build(ctx)
	if err != nil {
		return nil, err
	}
	c.cached = s
	cp := *s
	return &cp, nil
}

func (c *Collector) build(ctx context.Context) (*Summary, error) {
	boxes, err := c.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: list netboxes: %w", err)
	}
	alerts, err := c.source.OpenAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("status: open alerts: %w", err)
	}
	now := c.now()
	tasks, err := c.source.ActiveTasks(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("status: active maintenance: %w", err)
	}

	s := &Summary{
		Boxes:       len(boxes),
		OpenAlerts:  len(alerts),
		Maintenance: len(tasks),
		GeneratedAt: now,
	}
	for _, n := range boxes {
		switch n.Up {
		case models.UpDown:
			s.Down++
		case models.UpShadow:
			s.Shadow++
		default:
			s.Up++
		}
	}
	return s, nil
}
