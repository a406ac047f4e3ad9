package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

// MaintenanceRepo manages planned service windows and the components they
// cover.
type MaintenanceRepo struct {
	db *sql.DB
}

func NewMaintenanceRepo(conn *sql.DB) *MaintenanceRepo {
	return &MaintenanceRepo{db: conn}
}

// Create stores a task with its components and returns the new id.
func (r *MaintenanceRepo) Create(ctx context.Context, task *models.MaintenanceTask) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("maint: begin: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO maint_task (maint_start, maint_end, description, author, state)
		 VALUES ($1, $2, $3, $4, $5) RETURNING maint_taskid`,
		task.Start, task.End, task.Description, task.Author, models.TaskScheduled).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("maint: create: %w", err)
	}
	for _, c := range task.Components {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO maint_component (maint_taskid, netboxid, roomid) VALUES ($1, $2, $3)`,
			id, c.NetboxID, c.RoomID)
		if err != nil {
			return 0, fmt.Errorf("maint: create component: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("maint: commit: %w", err)
	}
	return id, nil
}

// SetState moves a task to a new lifecycle state.
func (r *MaintenanceRepo) SetState(ctx context.Context, id int64, state string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE maint_task SET state = $2 WHERE maint_taskid = $1`, id, state)
	if err != nil {
		return fmt.Errorf("maint: set state of %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("maint task %d", id))
}

// Cancel marks a task canceled; its suppression stops immediately.
func (r *MaintenanceRepo) Cancel(ctx context.Context, id int64) error {
	return r.SetState(ctx, id, models.TaskCanceled)
}

// Get returns one task with its components.
func (r *MaintenanceRepo) Get(ctx context.Context, id int64) (*models.MaintenanceTask, error) {
	tasks, err := r.query(ctx,
		`SELECT maint_taskid, maint_start, maint_end, description, author, state
		 FROM maint_task WHERE maint_taskid = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrNotFound
	}
	return &tasks[0], nil
}

// List returns all tasks not yet passed, soonest window first.
func (r *MaintenanceRepo) List(ctx context.Context) ([]models.MaintenanceTask, error) {
	return r.query(ctx,
		`SELECT maint_taskid, maint_start, maint_end, description, author, state
		 FROM maint_task WHERE state != $1 ORDER BY maint_start`, models.TaskPassed)
}

// ActiveTasks returns tasks whose window covers at and that are not canceled.
// The event engine consults this set to suppress alerts during maintenance.
func (r *MaintenanceRepo) ActiveTasks(ctx context.Context, at time.Time) ([]models.MaintenanceTask, error) {
	return r.query(ctx,
		`SELECT maint_taskid, maint_start, maint_end, description, author, state
		 FROM maint_task
		 WHERE maint_start <= $1 AND maint_end > $1 AND state != $2`,
		at, models.TaskCanceled)
}

// TransitionDue flips scheduled tasks whose window has opened to active and
// active tasks whose window has closed to passed, returning the tasks that
// changed. The engine posts maintenanceState events for each.
func (r *MaintenanceRepo) TransitionDue(ctx context.Context, at time.Time) (started, ended []models.MaintenanceTask, err error) {
	started, err = r.query(ctx,
		`UPDATE maint_task SET state = 'active'
		 WHERE state = 'scheduled' AND maint_start <= $1 AND maint_end > $1
		 RETURNING maint_taskid, maint_start, maint_end, description, author, state`, at)
	if err != nil {
		return nil, nil, err
	}
	ended, err = r.query(ctx,
		`UPDATE maint_task SET state = 'passed'
		 WHERE state = 'active' AND maint_end <= $1
		 RETURNING maint_taskid, maint_start, maint_end, description, author, state`, at)
	if err != nil {
		return nil, nil, err
	}
	return started, ended, nil
}

func (r *MaintenanceRepo) query(ctx context.Context, q string, args ...any) ([]models.MaintenanceTask, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("maint: query: %w", err)
	}
	defer rows.Close()

	var out []models.MaintenanceTask
	for rows.Next() {
		var t models.MaintenanceTask
		err := rows.Scan(&t.ID, &t.Start, &t.End, &t.Description, &t.Author, &t.State)
		if err != nil {
			return nil, fmt.Errorf("maint: scan: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.loadComponents(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *MaintenanceRepo) loadComponents(ctx context.Context, task *models.MaintenanceTask) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT maint_taskid, netboxid, roomid FROM maint_component WHERE maint_taskid = $1`,
		task.ID)
	if err != nil {
		return fmt.Errorf("maint: components of %d: %w", task.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.MaintenanceComponent
		var netboxID sql.NullInt64
		var roomID sql.NullString
		if err := rows.Scan(&c.TaskID, &netboxID, &roomID); err != nil {
			return fmt.Errorf("maint: scan component: %w", err)
		}
		if netboxID.Valid {
			v := netboxID.Int64
			c.NetboxID = &v
		}
		if roomID.Valid {
			v := roomID.String
			c.RoomID = &v
		}
		task.Components = append(task.Components, c)
	}
	return rows.Err()
}
