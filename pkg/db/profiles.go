package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nav-nms/nav/pkg/models"
)

// ProfileRepo manages alert profiles: the per-account notification setup of
// time periods, filter matches, addresses and subscriptions.
type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(conn *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: conn}
}

// ActiveProfiles returns every active profile fully loaded: periods with
// their subscriptions, and filter matches. The event engine reloads this set
// periodically rather than per alert.
func (r *ProfileRepo) ActiveProfiles(ctx context.Context) ([]models.AlertProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT alertprofileid, account, name, active
		 FROM alertprofile WHERE active ORDER BY alertprofileid`)
	if err != nil {
		return nil, fmt.Errorf("profiles: list active: %w", err)
	}
	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, err
	}
	for i := range profiles {
		if err := r.load(ctx, &profiles[i]); err != nil {
			return nil, err
		}
	}
	return profiles, nil
}

// Profiles returns all profiles of an account, unloaded, for listing.
func (r *ProfileRepo) Profiles(ctx context.Context, account string) ([]models.AlertProfile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT alertprofileid, account, name, active
		 FROM alertprofile WHERE account = $1 ORDER BY name`, account)
	if err != nil {
		return nil, fmt.Errorf("profiles: list for %s: %w", account, err)
	}
	return scanProfiles(rows)
}

// Get returns one profile fully loaded.
func (r *ProfileRepo) Get(ctx context.Context, id int64) (*models.AlertProfile, error) {
	p := &models.AlertProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT alertprofileid, account, name, active
		 FROM alertprofile WHERE alertprofileid = $1`, id).
		Scan(&p.ID, &p.Account, &p.Name, &p.Active)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profiles: get %d: %w", id, err)
	}
	if err := r.load(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Save inserts or updates a profile head. Periods and matches are managed
// through their own operations.
func (r *ProfileRepo) Save(ctx context.Context, p *models.AlertProfile) error {
	if p.ID == 0 {
		err := r.db.QueryRowContext(ctx,
			`INSERT INTO alertprofile (account, name, active)
			 VALUES ($1, $2, $3) RETURNING alertprofileid`,
			p.Account, p.Name, p.Active).Scan(&p.ID)
		if err != nil {
			return fmt.Errorf("profiles: insert %q: %w", p.Name, err)
		}
		return nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE alertprofile SET name = $2, active = $3 WHERE alertprofileid = $1`,
		p.ID, p.Name, p.Active)
	if err != nil {
		return fmt.Errorf("profiles: update %d: %w", p.ID, err)
	}
	return requireRow(res, fmt.Sprintf("profile %d", p.ID))
}

// Delete removes a profile; periods, matches and subscriptions cascade.
func (r *ProfileRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM alertprofile WHERE alertprofileid = $1`, id)
	if err != nil {
		return fmt.Errorf("profiles: delete %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("profile %d", id))
}

// AddPeriod appends a time period to a profile.
func (r *ProfileRepo) AddPeriod(ctx context.Context, tp *models.TimePeriod) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO timeperiod (alertprofileid, valid_during, start_time)
		 VALUES ($1, $2, $3) RETURNING timeperiodid`,
		tp.ProfileID, tp.ValidDuring, tp.Start).Scan(&tp.ID)
	if err != nil {
		return fmt.Errorf("profiles: add period: %w", err)
	}
	return nil
}

// UpdatePeriod changes a period's class or start time.
func (r *ProfileRepo) UpdatePeriod(ctx context.Context, tp *models.TimePeriod) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE timeperiod SET valid_during = $2, start_time = $3 WHERE timeperiodid = $1`,
		tp.ID, tp.ValidDuring, tp.Start)
	if err != nil {
		return fmt.Errorf("profiles: update period %d: %w", tp.ID, err)
	}
	return requireRow(res, fmt.Sprintf("period %d", tp.ID))
}

// DeletePeriod removes a period; its subscriptions cascade.
func (r *ProfileRepo) DeletePeriod(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM timeperiod WHERE timeperiodid = $1`, id)
	if err != nil {
		return fmt.Errorf("profiles: delete period %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("period %d", id))
}

// AddMatch appends a filter match to a profile.
func (r *ProfileRepo) AddMatch(ctx context.Context, profileID int64, m *models.FilterMatch) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO filtermatch (alertprofileid, field, operator, value)
		 VALUES ($1, $2, $3, $4) RETURNING filtermatchid`,
		profileID, m.Field, m.Operator, m.Value).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("profiles: add match: %w", err)
	}
	return nil
}

// UpdateMatch changes an existing filter match.
func (r *ProfileRepo) UpdateMatch(ctx context.Context, m *models.FilterMatch) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE filtermatch SET field = $2, operator = $3, value = $4
		 WHERE filtermatchid = $1`,
		m.ID, m.Field, m.Operator, m.Value)
	if err != nil {
		return fmt.Errorf("profiles: update match %d: %w", m.ID, err)
	}
	return requireRow(res, fmt.Sprintf("match %d", m.ID))
}

// DeleteMatch removes a filter match.
func (r *ProfileRepo) DeleteMatch(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM filtermatch WHERE filtermatchid = $1`, id)
	if err != nil {
		return fmt.Errorf("profiles: delete match %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("match %d", id))
}

// Addresses returns an account's delivery addresses.
func (r *ProfileRepo) Addresses(ctx context.Context, account string) ([]models.AlertAddress, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT alertaddressid, account, type, address
		 FROM alertaddress WHERE account = $1 ORDER BY alertaddressid`, account)
	if err != nil {
		return nil, fmt.Errorf("profiles: addresses of %s: %w", account, err)
	}
	defer rows.Close()

	var out []models.AlertAddress
	for rows.Next() {
		var a models.AlertAddress
		if err := rows.Scan(&a.ID, &a.Account, &a.Type, &a.Address); err != nil {
			return nil, fmt.Errorf("profiles: scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Address resolves one delivery address by id. The dispatcher calls this for
// each subscription on a fired alert.
func (r *ProfileRepo) Address(ctx context.Context, id int64) (*models.AlertAddress, error) {
	a := &models.AlertAddress{}
	err := r.db.QueryRowContext(ctx,
		`SELECT alertaddressid, account, type, address
		 FROM alertaddress WHERE alertaddressid = $1`, id).
		Scan(&a.ID, &a.Account, &a.Type, &a.Address)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profiles: address %d: %w", id, err)
	}
	return a, nil
}

// SaveAddress inserts or updates a delivery address.
func (r *ProfileRepo) SaveAddress(ctx context.Context, a *models.AlertAddress) error {
	if a.ID == 0 {
		err := r.db.QueryRowContext(ctx,
			`INSERT INTO alertaddress (account, type, address)
			 VALUES ($1, $2, $3) RETURNING alertaddressid`,
			a.Account, a.Type, a.Address).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("profiles: insert address: %w", err)
		}
		return nil
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE alertaddress SET type = $2, address = $3 WHERE alertaddressid = $1`,
		a.ID, a.Type, a.Address)
	if err != nil {
		return fmt.Errorf("profiles: update address %d: %w", a.ID, err)
	}
	return requireRow(res, fmt.Sprintf("address %d", a.ID))
}

// DeleteAddress removes an address; subscriptions pointing at it cascade.
func (r *ProfileRepo) DeleteAddress(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM alertaddress WHERE alertaddressid = $1`, id)
	if err != nil {
		return fmt.Errorf("profiles: delete address %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("address %d", id))
}

// Subscribe routes a time period's alerts to an address.
func (r *ProfileRepo) Subscribe(ctx context.Context, periodID, addressID int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO alertsubscription (timeperiodid, alertaddressid)
		 VALUES ($1, $2) RETURNING alertsubscriptionid`,
		periodID, addressID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("profiles: subscribe: %w", err)
	}
	return id, nil
}

// Unsubscribe removes a subscription.
func (r *ProfileRepo) Unsubscribe(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM alertsubscription WHERE alertsubscriptionid = $1`, id)
	if err != nil {
		return fmt.Errorf("profiles: unsubscribe %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("subscription %d", id))
}

func (r *ProfileRepo) load(ctx context.Context, p *models.AlertProfile) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT timeperiodid, alertprofileid, valid_during, start_time
		 FROM timeperiod WHERE alertprofileid = $1 ORDER BY start_time`, p.ID)
	if err != nil {
		return fmt.Errorf("profiles: periods of %d: %w", p.ID, err)
	}
	p.Periods, err = scanPeriods(rows)
	if err != nil {
		return err
	}
	for i := range p.Periods {
		tp := &p.Periods[i]
		subs, err := r.db.QueryContext(ctx,
			`SELECT alertsubscriptionid, timeperiodid, alertaddressid
			 FROM alertsubscription WHERE timeperiodid = $1`, tp.ID)
		if err != nil {
			return fmt.Errorf("profiles: subscriptions of %d: %w", tp.ID, err)
		}
		tp.Subscriptions, err = scanSubscriptions(subs)
		if err != nil {
			return err
		}
	}

	matches, err := r.db.QueryContext(ctx,
		`SELECT filtermatchid, field, operator, value
		 FROM filtermatch WHERE alertprofileid = $1 ORDER BY filtermatchid`, p.ID)
	if err != nil {
		return fmt.Errorf("profiles: matches of %d: %w", p.ID, err)
	}
	defer matches.Close()
	p.Filters = nil
	for matches.Next() {
		var m models.FilterMatch
		if err := matches.Scan(&m.ID, &m.Field, &m.Operator, &m.Value); err != nil {
			return fmt.Errorf("profiles: scan match: %w", err)
		}
		p.Filters = append(p.Filters, m)
	}
	return matches.Err()
}

func scanProfiles(rows *sql.Rows) ([]models.AlertProfile, error) {
	defer rows.Close()
	var out []models.AlertProfile
	for rows.Next() {
		var p models.AlertProfile
		if err := rows.Scan(&p.ID, &p.Account, &p.Name, &p.Active); err != nil {
			return nil, fmt.Errorf("profiles: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPeriods(rows *sql.Rows) ([]models.TimePeriod, error) {
	defer rows.Close()
	var out []models.TimePeriod
	for rows.Next() {
		var tp models.TimePeriod
		if err := rows.Scan(&tp.ID, &tp.ProfileID, &tp.ValidDuring, &tp.Start); err != nil {
			return nil, fmt.Errorf("profiles: scan period: %w", err)
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}

func scanSubscriptions(rows *sql.Rows) ([]models.AlertSubscription, error) {
	defer rows.Close()
	var out []models.AlertSubscription
	for rows.Next() {
		var s models.AlertSubscription
		if err := rows.Scan(&s.ID, &s.PeriodID, &s.AddressID); err != nil {
			return nil, fmt.Errorf("profiles: scan subscription: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
