// Package eventengine turns queued events into alert history and
// notifications: start events open alerts and mark boxes down, end events
// resolve them, and every accepted transition is routed through the active
// alert profiles to their subscription addresses.
package eventengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/server/internal/dispatch"
)

// Store is the persistence surface the engine needs.
type Store interface {
	Netbox(ctx context.Context, id int64) (*models.Netbox, error)
	List(ctx context.Context) ([]*models.Netbox, error)
	Groups(ctx context.Context, netboxID int64) ([]string, error)
	SetUpState(ctx context.Context, id int64, up string, at time.Time) error

	OpenAlert(ctx context.Context, a *models.AlertHistory) (int64, bool, error)
	ResolveAlert(ctx context.Context, netboxID int64, eventType, subID string, at time.Time) (bool, error)

	ActiveProfiles(ctx context.Context) ([]models.AlertProfile, error)
	Address(ctx context.Context, id int64) (*models.AlertAddress, error)

	ActiveTasks(ctx context.Context, at time.Time) ([]models.MaintenanceTask, error)
	TransitionDue(ctx context.Context, at time.Time) (started, ended []models.MaintenanceTask, err error)

	PostEvent(ctx context.Context, ev models.Event) error
}

// Queue is the consuming side of the event queue.
type Queue interface {
	Run(ctx context.Context, handle func(ctx context.Context, ev models.Event) error) error
}

// Builtin is a delivery target from [alerts] that receives every
// notification regardless of profiles.
type Builtin struct {
	Type    string
	Address string
}

// Engine consumes the event queue. Handle is idempotent, so the queue's
// at-least-once delivery is safe.
type Engine struct {
	store    Store
	dispatch *dispatch.Set
	builtins []Builtin

	// MaintenanceCheck is how often scheduled maintenance windows are
	// checked for start and end transitions.
	MaintenanceCheck time.Duration

	now func() time.Time
}

func New(store Store, set *dispatch.Set, builtins []Builtin) *Engine {
	return &Engine{
		store:            store,
		dispatch:         set,
		builtins:         builtins,
		MaintenanceCheck: time.Minute,
		now:              time.Now,
	}
}

// Run consumes the queue until ctx is cancelled, driving maintenance window
// transitions on the side.
func (e *Engine) Run(ctx context.Context, queue Queue) error {
	go e.maintenanceLoop(ctx)
	return queue.Run(ctx, e.Handle)
}

// Handle processes one event. Returning an error leaves the event queued
// for redelivery.
func (e *Engine) Handle(ctx context.Context, ev models.Event) error {
	eventsTotal.WithLabelValues(ev.EventType, ev.State).Inc()

	switch ev.State {
	case models.StateStart:
		return e.handleStart(ctx, ev)
	case models.StateEnd:
		return e.handleEnd(ctx, ev)
	default:
		return e.handleStateless(ctx, ev)
	}
}

func (e *Engine) handleStart(ctx context.Context, ev models.Event) error {
	netbox, err := e.netboxOf(ctx, ev)
	if err != nil || netbox == nil {
		return err
	}

	if ev.EventType == models.EventBoxState {
		if err := e.store.SetUpState(ctx, netbox.ID, models.UpDown, e.eventTime(ev)); err != nil {
			return fmt.Errorf("eventengine: mark %s down: %w", netbox.Sysname, err)
		}
	}

	message := startMessage(ev, netbox)
	_, created, err := e.store.OpenAlert(ctx, &models.AlertHistory{
		NetboxID:  netbox.ID,
		SubID:     ev.SubID,
		EventType: ev.EventType,
		Severity:  ev.Severity,
		Message:   message,
		StartTime: e.eventTime(ev),
	})
	if err != nil {
		return fmt.Errorf("eventengine: open alert: %w", err)
	}
	if !created {
		// Redelivered start event for an alert that is already open.
		return nil
	}

	e.notify(ctx, netbox, ev, dispatch.StateFiring, message)
	return nil
}

func (e *Engine) handleEnd(ctx context.Context, ev models.Event) error {
	netbox, err := e.netboxOf(ctx, ev)
	if err != nil || netbox == nil {
		return err
	}

	if ev.EventType == models.EventBoxState {
		if err := e.store.SetUpState(ctx, netbox.ID, models.UpUp, e.eventTime(ev)); err != nil {
			return fmt.Errorf("eventengine: mark %s up: %w", netbox.Sysname, err)
		}
	}

	resolved, err := e.store.ResolveAlert(ctx, netbox.ID, ev.EventType, ev.SubID, e.eventTime(ev))
	if err != nil {
		return fmt.Errorf("eventengine: resolve alert: %w", err)
	}
	if !resolved {
		// Redelivered end event, or an end with no matching start.
		return nil
	}

	e.notify(ctx, netbox, ev, dispatch.StateResolved, endMessage(ev, netbox))
	return nil
}

func (e *Engine) handleStateless(ctx context.Context, ev models.Event) error {
	netbox, err := e.netboxOf(ctx, ev)
	if err != nil || netbox == nil {
		return err
	}
	e.notify(ctx, netbox, ev, dispatch.StateFiring, statelessMessage(ev, netbox))
	return nil
}

// netboxOf loads the event's netbox. Events for unknown or deleted boxes
// are logged and swallowed; retrying them can never succeed.
func (e *Engine) netboxOf(ctx context.Context, ev models.Event) (*models.Netbox, error) {
	if ev.NetboxID == 0 {
		slog.Warn("dropping event without netbox", "eventtype", ev.EventType)
		return nil, nil
	}
	netbox, err := e.store.Netbox(ctx, ev.NetboxID)
	if errors.Is(err, db.ErrNotFound) {
		slog.Warn("dropping event for unknown netbox",
			"netbox", ev.NetboxID, "eventtype", ev.EventType)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("eventengine: load netbox %d: %w", ev.NetboxID, err)
	}
	return netbox, nil
}

func (e *Engine) eventTime(ev models.Event) time.Time {
	if !ev.Time.IsZero() {
		return ev.Time
	}
	return e.now()
}

// notify routes an accepted transition to every matching profile
// subscription and the built-in targets. Boxes on active maintenance are
// suppressed, as are maintenance transitions themselves.
func (e *Engine) notify(ctx context.Context, netbox *models.Netbox, ev models.Event, state, message string) {
	if ev.EventType == models.EventMaintenanceState {
		return
	}
	suppressed, err := e.onMaintenance(ctx, netbox)
	if err != nil {
		slog.Error("maintenance check failed, notifying anyway",
			"netbox", netbox.Sysname, "err", err)
	}
	if suppressed {
		slog.Debug("notification suppressed, netbox on maintenance",
			"netbox", netbox.Sysname, "eventtype", ev.EventType)
		suppressedTotal.Inc()
		return
	}

	n := dispatch.NewNotification(dispatch.Notification{
		NetboxID:  netbox.ID,
		Sysname:   netbox.Sysname,
		EventType: ev.EventType,
		SubID:     ev.SubID,
		State:     state,
		Severity:  ev.Severity,
		Message:   message,
		Time:      e.eventTime(ev),
	})

	for _, b := range e.builtins {
		e.dispatch.Deliver(ctx, b.Type, b.Address, n)
	}
	e.routeProfiles(ctx, netbox, ev, n)
}

func (e *Engine) routeProfiles(ctx context.Context, netbox *models.Netbox, ev models.Event, n *dispatch.Notification) {
	profiles, err := e.store.ActiveProfiles(ctx)
	if err != nil {
		slog.Error("profile lookup failed, notification not routed", "err", err)
		return
	}
	if len(profiles) == 0 {
		return
	}

	groups, err := e.store.Groups(ctx, netbox.ID)
	if err != nil {
		slog.Error("group lookup failed, matching without groups",
			"netbox", netbox.Sysname, "err", err)
	}
	view := &models.AlertView{
		EventType: ev.EventType,
		Category:  netbox.CategoryID,
		Groups:    groups,
		Sysname:   netbox.Sysname,
		Severity:  ev.Severity,
	}

	now := e.now()
	for i := range profiles {
		p := &profiles[i]
		period := p.ActivePeriod(now)
		if period == nil || !p.Matches(view) {
			continue
		}
		for _, sub := range period.Subscriptions {
			addr, err := e.store.Address(ctx, sub.AddressID)
			if err != nil {
				slog.Error("address lookup failed",
					"subscription", sub.ID, "err", err)
				continue
			}
			e.dispatch.Deliver(ctx, addr.Type, addr.Address, n)
		}
	}
}

func (e *Engine) onMaintenance(ctx context.Context, netbox *models.Netbox) (bool, error) {
	tasks, err := e.store.ActiveTasks(ctx, e.now())
	if err != nil {
		return false, err
	}
	for i := range tasks {
		if tasks[i].Covers(netbox.ID, netbox.RoomID) {
			return true, nil
		}
	}
	return false, nil
}

func startMessage(ev models.Event, netbox *models.Netbox) string {
	switch ev.EventType {
	case models.EventBoxState:
		return fmt.Sprintf("%s is down", netbox.Sysname)
	case models.EventServiceState:
		return fmt.Sprintf("%s on %s is down", ev.Vars["handler"], netbox.Sysname)
	case models.EventModuleState:
		return fmt.Sprintf("module %s on %s is down", ev.SubID, netbox.Sysname)
	case models.EventLinkState:
		return fmt.Sprintf("link %s on %s is down", ev.SubID, netbox.Sysname)
	case models.EventMaintenanceState:
		return fmt.Sprintf("%s went on maintenance", netbox.Sysname)
	default:
		return fmt.Sprintf("%s on %s", ev.EventType, netbox.Sysname)
	}
}

func endMessage(ev models.Event, netbox *models.Netbox) string {
	switch ev.EventType {
	case models.EventBoxState:
		return fmt.Sprintf("%s is up", netbox.Sysname)
	case models.EventServiceState:
		return fmt.Sprintf("%s on %s is up", ev.Vars["handler"], netbox.Sysname)
	case models.EventModuleState:
		return fmt.Sprintf("module %s on %s is up", ev.SubID, netbox.Sysname)
	case models.EventLinkState:
		return fmt.Sprintf("link %s on %s is up", ev.SubID, netbox.Sysname)
	case models.EventMaintenanceState:
		return fmt.Sprintf("%s came off maintenance", netbox.Sysname)
	default:
		return fmt.Sprintf("%s on %s ended", ev.EventType, netbox.Sysname)
	}
}

func statelessMessage(ev models.Event, netbox *models.Netbox) string {
	switch ev.EventType {
	case models.EventTypeChanged:
		return fmt.Sprintf("%s changed type to %s", netbox.Sysname, ev.Vars["newtype"])
	case models.EventVersion:
		return fmt.Sprintf("%s %s version changed from %q to %q",
			netbox.Sysname, ev.Vars["handler"], ev.Vars["oldversion"], ev.Vars["newversion"])
	case models.EventInfo:
		return fmt.Sprintf("%s: %s", netbox.Sysname, ev.Vars["message"])
	default:
		return fmt.Sprintf("%s: %s", netbox.Sysname, ev.EventType)
	}
}
