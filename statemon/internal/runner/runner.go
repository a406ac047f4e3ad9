// Package runner drives the service checks: a worker pool runs every active
// service's checker each interval and posts serviceState events on accepted
// transitions.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/statemon/internal/checker"
)

const (
	DefaultInterval   = time.Minute
	DefaultWorkers    = 5
	DefaultRetries    = 3
	DefaultRetryDelay = 5 * time.Second
)

// Store is the persistence surface the runner needs, kept as an interface so
// tests can run against an in-memory fake.
type Store interface {
	Active(ctx context.Context) ([]*models.Service, error)
	Netbox(ctx context.Context, id int64) (*models.Netbox, error)
	RecordResult(ctx context.Context, id int64, up string, responseTime float64, at time.Time) error
	SetVersion(ctx context.Context, id int64, version string) error
	PostEvent(ctx context.Context, ev *models.Event) error
}

// Runner schedules the checks.
type Runner struct {
	registry *checker.Registry
	store    Store

	Interval time.Duration
	Workers  int

	// Retries and RetryDelay govern state-change verification: a result
	// that contradicts the known state is re-checked before it is
	// accepted, so a single lost packet does not flap the service.
	Retries    int
	RetryDelay time.Duration

	now func() time.Time
}

func New(registry *checker.Registry, store Store) *Runner {
	return &Runner{
		registry:   registry,
		store:      store,
		Interval:   DefaultInterval,
		Workers:    DefaultWorkers,
		Retries:    DefaultRetries,
		RetryDelay: DefaultRetryDelay,
		now:        time.Now,
	}
}

// Run checks all services immediately and then every interval until ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			slog.Error("service check round failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce runs one round of checks across the worker pool.
func (r *Runner) RunOnce(ctx context.Context) error {
	services, err := r.store.Active(ctx)
	if err != nil {
		return fmt.Errorf("runner: load services: %w", err)
	}

	jobs := make(chan *models.Service)
	var wg sync.WaitGroup
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range jobs {
				r.check(ctx, s)
			}
		}()
	}
	for _, s := range services {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		case jobs <- s:
		}
	}
	close(jobs)
	wg.Wait()
	return nil
}

// check probes one service and persists the outcome.
func (r *Runner) check(ctx context.Context, s *models.Service) {
	c, err := r.registry.Get(s.Handler)
	if err != nil {
		slog.Warn("skipping service", "service", s.ID, "err", err)
		return
	}
	netbox, err := r.store.Netbox(ctx, s.NetboxID)
	if err != nil {
		slog.Warn("skipping service, netbox lookup failed",
			"service", s.ID, "netbox", s.NetboxID, "err", err)
		return
	}

	result, responseTime := r.timedCheck(ctx, c, netbox, s)

	newUp := models.UpDown
	if result.Up {
		newUp = models.UpUp
	}

	// A contradicting result is only accepted after it survives the
	// verification re-checks.
	if newUp != s.Up {
		result, responseTime = r.verify(ctx, c, netbox, s, result, responseTime)
		newUp = models.UpDown
		if result.Up {
			newUp = models.UpUp
		}
	}

	checksTotal.WithLabelValues(s.Handler, upLabel(result.Up)).Inc()

	if err := r.store.RecordResult(ctx, s.ID, newUp, responseTime, r.now()); err != nil {
		slog.Error("failed to record check result", "service", s.ID, "err", err)
		return
	}

	if newUp != s.Up {
		r.postTransition(ctx, netbox, s, newUp, result)
		s.Up = newUp
	}
	if result.Up && result.Version != "" && result.Version != s.Version {
		r.postVersionChange(ctx, netbox, s, result.Version)
	}
}

// timedCheck runs the checker once and measures how long it took.
func (r *Runner) timedCheck(ctx context.Context, c checker.Checker, netbox *models.Netbox, s *models.Service) (checker.Result, float64) {
	start := r.now()
	result := c.Check(ctx, netbox, s)
	return result, r.now().Sub(start).Seconds()
}

// verify re-checks a contradicting result up to Retries times. The last
// result wins and its response time replaces the initial measurement; any
// run agreeing with the known state ends verification.
func (r *Runner) verify(ctx context.Context, c checker.Checker, netbox *models.Netbox, s *models.Service, result checker.Result, responseTime float64) (checker.Result, float64) {
	for attempt := 1; attempt <= r.Retries; attempt++ {
		select {
		case <-ctx.Done():
			return result, responseTime
		case <-time.After(r.RetryDelay):
		}
		result, responseTime = r.timedCheck(ctx, c, netbox, s)
		newUp := models.UpDown
		if result.Up {
			newUp = models.UpUp
		}
		if newUp == s.Up {
			return result, responseTime
		}
		slog.Debug("state change verification", "service", s.ID,
			"attempt", attempt, "up", result.Up)
	}
	return result, responseTime
}

func (r *Runner) postTransition(ctx context.Context, netbox *models.Netbox, s *models.Service, newUp string, result checker.Result) {
	state := models.StateStart
	if newUp == models.UpUp {
		state = models.StateEnd
	}
	ev := &models.Event{
		Source:    "serviceping",
		Target:    "eventEngine",
		NetboxID:  s.NetboxID,
		SubID:     fmt.Sprintf("%d", s.ID),
		EventType: models.EventServiceState,
		State:     state,
		Severity:  models.SeverityHigh,
		Vars: map[string]string{
			"sysname": netbox.Sysname,
			"handler": s.Handler,
			"info":    result.Info,
		},
	}
	if err := r.store.PostEvent(ctx, ev); err != nil {
		slog.Error("failed to post serviceState event", "service", s.ID, "err", err)
		return
	}
	slog.Info("service state changed", "service", s.ID,
		"handler", s.Handler, "netbox", netbox.Sysname, "up", newUp)
	transitionsTotal.WithLabelValues(s.Handler).Inc()
}

func (r *Runner) postVersionChange(ctx context.Context, netbox *models.Netbox, s *models.Service, version string) {
	if err := r.store.SetVersion(ctx, s.ID, version); err != nil {
		slog.Error("failed to store service version", "service", s.ID, "err", err)
		return
	}
	ev := &models.Event{
		Source:    "serviceping",
		Target:    "eventEngine",
		NetboxID:  s.NetboxID,
		SubID:     fmt.Sprintf("%d", s.ID),
		EventType: models.EventVersion,
		State:     models.StateStateless,
		Severity:  models.SeverityLow,
		Vars: map[string]string{
			"sysname":    netbox.Sysname,
			"handler":    s.Handler,
			"oldversion": s.Version,
			"newversion": version,
		},
	}
	if err := r.store.PostEvent(ctx, ev); err != nil {
		slog.Error("failed to post version event", "service", s.ID, "err", err)
		return
	}
	s.Version = version
}

func upLabel(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
