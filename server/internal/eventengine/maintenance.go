package eventengine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

// maintenanceLoop periodically flips maintenance windows that have opened or
// closed and posts maintenanceState events for every netbox they cover. The
// events land back on the queue so history entries go through the same path
// as everything else.
func (e *Engine) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(e.MaintenanceCheck)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.transitionMaintenance(ctx); err != nil {
				slog.Error("maintenance transition failed", "err", err)
			}
		}
	}
}

func (e *Engine) transitionMaintenance(ctx context.Context) error {
	started, ended, err := e.store.TransitionDue(ctx, e.now())
	if err != nil {
		return err
	}
	if len(started) == 0 && len(ended) == 0 {
		return nil
	}

	for i := range started {
		e.postMaintenanceEvents(ctx, &started[i], models.StateStart)
	}
	for i := range ended {
		e.postMaintenanceEvents(ctx, &ended[i], models.StateEnd)
	}
	return nil
}

func (e *Engine) postMaintenanceEvents(ctx context.Context, task *models.MaintenanceTask, state string) {
	boxes, err := e.coveredNetboxes(ctx, task)
	if err != nil {
		slog.Error("resolving maintenance components failed",
			"task", task.ID, "err", err)
		return
	}
	slog.Info("maintenance window transition",
		"task", task.ID, "state", state, "netboxes", len(boxes))

	for _, n := range boxes {
		ev := models.Event{
			Source:    "eventEngine",
			Target:    "eventEngine",
			NetboxID:  n.ID,
			EventType: models.EventMaintenanceState,
			State:     state,
			Severity:  models.SeverityLow,
			Time:      e.now(),
			Vars: map[string]string{
				"sysname":  n.Sysname,
				"maint_id": fmt.Sprint(task.ID),
			},
		}
		if err := e.store.PostEvent(ctx, ev); err != nil {
			slog.Error("posting maintenance event failed",
				"netbox", n.Sysname, "err", err)
		}
	}
}

// coveredNetboxes expands a task's components to concrete netboxes. Room
// components cover every box in the room at transition time.
func (e *Engine) coveredNetboxes(ctx context.Context, task *models.MaintenanceTask) ([]*models.Netbox, error) {
	all, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}
	var covered []*models.Netbox
	for _, n := range all {
		if task.Covers(n.ID, n.RoomID) {
			covered = append(covered, n)
		}
	}
	return covered, nil
}
