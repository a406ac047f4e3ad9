package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

const serviceColumns = `serviceid, netboxid, handler, active, up, version, responsetime, lastcheck`

// ServiceRepo persists monitored services and their check results.
type ServiceRepo struct {
	db *sql.DB
}

func NewServiceRepo(conn *sql.DB) *ServiceRepo {
	return &ServiceRepo{db: conn}
}

func scanService(row interface{ Scan(...interface{}) error }) (*models.Service, error) {
	var s models.Service
	var responseTime sql.NullFloat64
	var lastCheck sql.NullTime
	err := row.Scan(&s.ID, &s.NetboxID, &s.Handler, &s.Active, &s.Up,
		&s.Version, &responseTime, &lastCheck)
	if err != nil {
		return nil, err
	}
	if responseTime.Valid {
		s.ResponseTime = &responseTime.Float64
	}
	if lastCheck.Valid {
		s.LastCheck = &lastCheck.Time
	}
	return &s, nil
}

// Active returns every active service with its properties loaded.
func (r *ServiceRepo) Active(ctx context.Context) ([]*models.Service, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serviceColumns+` FROM service WHERE active ORDER BY serviceid`)
	if err != nil {
		return nil, fmt.Errorf("service: load active: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("service: scan: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("service: load active: %w", err)
	}
	for _, s := range services {
		if err := r.loadProperties(ctx, s); err != nil {
			return nil, err
		}
	}
	return services, nil
}

// Get returns one service by id, with properties.
func (r *ServiceRepo) Get(ctx context.Context, id int64) (*models.Service, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM service WHERE serviceid = $1`, id)
	s, err := scanService(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("service %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("service: get %d: %w", id, err)
	}
	if err := r.loadProperties(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ServiceRepo) loadProperties(ctx context.Context, s *models.Service) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT property, value FROM serviceprop WHERE serviceid = $1`, s.ID)
	if err != nil {
		return fmt.Errorf("service: load properties %d: %w", s.ID, err)
	}
	defer rows.Close()

	s.Properties = make(map[string]string)
	for rows.Next() {
		var property, value string
		if err := rows.Scan(&property, &value); err != nil {
			return fmt.Errorf("service: scan property: %w", err)
		}
		s.Properties[property] = value
	}
	return rows.Err()
}

// RecordResult stores the outcome of a check run: the new up state, the
// response time (only meaningful when up) and the check time.
func (r *ServiceRepo) RecordResult(ctx context.Context, id int64, up string, responseTime float64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE service SET up = $2, responsetime = $3, lastcheck = $4 WHERE serviceid = $1`,
		id, up, responseTime, at)
	if err != nil {
		return fmt.Errorf("service: record result %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("service %d", id))
}

// SetVersion stores the version string a checker read from the service
// greeting.
func (r *ServiceRepo) SetVersion(ctx context.Context, id int64, version string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE service SET version = $2 WHERE serviceid = $1`, id, version)
	if err != nil {
		return fmt.Errorf("service: set version %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("service %d", id))
}

// Insert registers a service to monitor. Properties are stored alongside.
func (r *ServiceRepo) Insert(ctx context.Context, s *models.Service) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("service: insert: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO service (netboxid, handler, active, up, version)
		 VALUES ($1, $2, $3, $4, $5) RETURNING serviceid`,
		s.NetboxID, s.Handler, s.Active, orUp(s.Up), s.Version).Scan(&s.ID)
	if err != nil {
		return 0, fmt.Errorf("service: insert: %w", err)
	}
	for property, value := range s.Properties {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO serviceprop (serviceid, property, value) VALUES ($1, $2, $3)`,
			s.ID, property, value)
		if err != nil {
			return 0, fmt.Errorf("service: insert property %s: %w", property, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("service: insert: %w", err)
	}
	return s.ID, nil
}

// Delete removes a service and its properties.
func (r *ServiceRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM service WHERE serviceid = $1`, id)
	if err != nil {
		return fmt.Errorf("service: delete %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("service %d", id))
}

func orUp(up string) string {
	if up == "" {
		return models.UpUp
	}
	return up
}
