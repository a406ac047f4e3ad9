package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

// NetboxRepo reads and writes netbox records and their management profiles.
type NetboxRepo struct {
	db *sql.DB
}

func NewNetboxRepo(conn *sql.DB) *NetboxRepo {
	return &NetboxRepo{db: conn}
}

const netboxColumns = `netboxid, ip, sysname, roomid, catid, orgid, typeid,
	up, upsince, discovered, deleted_at, data`

func scanNetbox(row interface{ Scan(...interface{}) error }) (*models.Netbox, error) {
	var n models.Netbox
	var dataRaw json.RawMessage
	err := row.Scan(&n.ID, &n.IP, &n.Sysname, &n.RoomID, &n.CategoryID,
		&n.OrgID, &n.TypeID, &n.Up, &n.UpSince, &n.Discovered,
		&n.DeletedAt, &dataRaw)
	if err != nil {
		return nil, err
	}
	if len(dataRaw) > 0 {
		if err := json.Unmarshal(dataRaw, &n.Data); err != nil {
			return nil, fmt.Errorf("netbox %d: decode data: %w", n.ID, err)
		}
	}
	return &n, nil
}

// Get returns a single netbox with its management profiles loaded.
func (r *NetboxRepo) Get(ctx context.Context, id int64) (*models.Netbox, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+netboxColumns+` FROM netbox WHERE netboxid = $1`, id)
	n, err := scanNetbox(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get netbox %d: %w", id, err)
	}
	if err := r.loadProfiles(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// List returns all netboxes that have not been soft-deleted, without
// profiles, ordered by sysname.
func (r *NetboxRepo) List(ctx context.Context) ([]*models.Netbox, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+netboxColumns+` FROM netbox
		 WHERE deleted_at IS NULL ORDER BY sysname`)
	if err != nil {
		return nil, fmt.Errorf("list netboxes: %w", err)
	}
	defer rows.Close()

	var out []*models.Netbox
	for rows.Next() {
		n, err := scanNetbox(rows)
		if err != nil {
			return nil, fmt.Errorf("list netboxes: scan: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// LoadEnabled returns the set the pollers should work on: all live netboxes
// with their management profiles attached.
func (r *NetboxRepo) LoadEnabled(ctx context.Context) ([]*models.Netbox, error) {
	boxes, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range boxes {
		if err := r.loadProfiles(ctx, n); err != nil {
			return nil, err
		}
	}
	return boxes, nil
}

func (r *NetboxRepo) loadProfiles(ctx context.Context, n *models.Netbox) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.profileid, p.name, p.protocol, p.community, p.version,
		        p.sec_level, p.sec_name, p.auth_protocol, p.auth_password,
		        p.priv_protocol, p.priv_password, p.port, p.write
		 FROM management_profile p
		 JOIN netbox_profile np ON np.profileid = p.profileid
		 WHERE np.netboxid = $1`, n.ID)
	if err != nil {
		return fmt.Errorf("load profiles for netbox %d: %w", n.ID, err)
	}
	defer rows.Close()

	n.Profiles = nil
	for rows.Next() {
		var p models.ManagementProfile
		err := rows.Scan(&p.ID, &p.Name, &p.Protocol, &p.Community,
			&p.Version, &p.SecLevel, &p.SecName, &p.AuthProtocol,
			&p.AuthPassword, &p.PrivProtocol, &p.PrivPassword,
			&p.Port, &p.Write)
		if err != nil {
			return fmt.Errorf("load profiles for netbox %d: scan: %w", n.ID, err)
		}
		n.Profiles = append(n.Profiles, p)
	}
	return rows.Err()
}

// Insert creates a netbox together with its management profiles. An empty
// sysname falls back to the IP string.
func (r *NetboxRepo) Insert(ctx context.Context, n *models.Netbox) (int64, error) {
	if n.Sysname == "" {
		n.Sysname = n.IP
	}
	data, err := json.Marshal(orEmpty(n.Data))
	if err != nil {
		return 0, fmt.Errorf("insert netbox: encode data: %w", err)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert netbox %s: begin: %w", n.IP, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO netbox (ip, sysname, roomid, catid, orgid, typeid, data)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING netboxid`,
		n.IP, n.Sysname, n.RoomID, n.CategoryID, n.OrgID, n.TypeID, data).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert netbox %s: %w", n.IP, err)
	}
	if err := saveProfiles(ctx, tx, id, n.Profiles); err != nil {
		return 0, fmt.Errorf("insert netbox %s: %w", n.IP, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert netbox %s: commit: %w", n.IP, err)
	}
	return id, nil
}

// Update rewrites the editable fields of a netbox. A non-nil Profiles slice
// replaces the box's profile links; nil leaves them untouched.
func (r *NetboxRepo) Update(ctx context.Context, n *models.Netbox) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update netbox %d: begin: %w", n.ID, err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE netbox SET ip = $2, sysname = $3, roomid = $4, catid = $5, orgid = $6
		 WHERE netboxid = $1`,
		n.ID, n.IP, n.Sysname, n.RoomID, n.CategoryID, n.OrgID)
	if err != nil {
		return fmt.Errorf("update netbox %d: %w", n.ID, err)
	}
	if err := requireRow(res, fmt.Sprintf("netbox %d", n.ID)); err != nil {
		return err
	}
	if n.Profiles != nil {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM netbox_profile WHERE netboxid = $1`, n.ID)
		if err != nil {
			return fmt.Errorf("update netbox %d: unlink profiles: %w", n.ID, err)
		}
		if err := saveProfiles(ctx, tx, n.ID, n.Profiles); err != nil {
			return fmt.Errorf("update netbox %d: %w", n.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update netbox %d: commit: %w", n.ID, err)
	}
	return nil
}

// saveProfiles persists each management profile and links it to the netbox.
// Profiles without an id are created; ones carrying an id are linked as-is,
// so shared profiles can be attached to many boxes.
func saveProfiles(ctx context.Context, tx *sql.Tx, netboxID int64, profiles []models.ManagementProfile) error {
	for i := range profiles {
		p := &profiles[i]
		if p.ID == 0 {
			err := tx.QueryRowContext(ctx,
				`INSERT INTO management_profile
				   (name, protocol, community, version, sec_level, sec_name,
				    auth_protocol, auth_password, priv_protocol, priv_password,
				    port, write)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
				 RETURNING profileid`,
				p.Name, p.Protocol, p.Community, p.Version, p.SecLevel,
				p.SecName, p.AuthProtocol, p.AuthPassword, p.PrivProtocol,
				p.PrivPassword, p.Port, p.Write).Scan(&p.ID)
			if err != nil {
				return fmt.Errorf("save profile %q: %w", p.Name, err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO netbox_profile (netboxid, profileid) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`, netboxID, p.ID)
		if err != nil {
			return fmt.Errorf("link profile %q: %w", p.Name, err)
		}
	}
	return nil
}

// SoftDelete marks a netbox as deleted without losing its history.
func (r *NetboxRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE netbox SET deleted_at = $2 WHERE netboxid = $1 AND deleted_at IS NULL`,
		id, at)
	if err != nil {
		return fmt.Errorf("delete netbox %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("netbox %d", id))
}

// SetUpState records an up/down/shadow transition. Going up resets upsince.
func (r *NetboxRepo) SetUpState(ctx context.Context, id int64, up string, at time.Time) error {
	var err error
	if up == models.UpUp {
		_, err = r.db.ExecContext(ctx,
			`UPDATE netbox SET up = $2, upsince = $3 WHERE netboxid = $1`, id, up, at)
	} else {
		_, err = r.db.ExecContext(ctx,
			`UPDATE netbox SET up = $2 WHERE netboxid = $1`, id, up)
	}
	if err != nil {
		return fmt.Errorf("set up-state on netbox %d: %w", id, err)
	}
	return nil
}

// SetType binds a netbox to the type resolved from its sysObjectID.
func (r *NetboxRepo) SetType(ctx context.Context, id int64, typeID *int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE netbox SET typeid = $2 WHERE netboxid = $1`, id, typeID)
	if err != nil {
		return fmt.Errorf("set type on netbox %d: %w", id, err)
	}
	return nil
}

// SaveCollected stores what the system plugin learned: the canonical sysname
// and the free-form attribute map.
func (r *NetboxRepo) SaveCollected(ctx context.Context, id int64, sysname string, data map[string]string) error {
	raw, err := json.Marshal(orEmpty(data))
	if err != nil {
		return fmt.Errorf("save collected for netbox %d: encode: %w", id, err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE netbox SET sysname = $2, data = data || $3::jsonb WHERE netboxid = $1`,
		id, sysname, raw)
	if err != nil {
		return fmt.Errorf("save collected for netbox %d: %w", id, err)
	}
	return nil
}

// TypeBySysObjectID resolves a collected sysObjectID to a registered type.
func (r *NetboxRepo) TypeBySysObjectID(ctx context.Context, sysObjectID string) (*models.NetboxType, error) {
	var t models.NetboxType
	err := r.db.QueryRowContext(ctx,
		`SELECT typeid, vendorid, typename, sysobjectid, descr
		 FROM netboxtype WHERE sysobjectid = $1`, sysObjectID).
		Scan(&t.ID, &t.VendorID, &t.Name, &t.SysObjectID, &t.Description)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup type %s: %w", sysObjectID, err)
	}
	return &t, nil
}

// Groups returns the netbox group memberships for one box.
func (r *NetboxRepo) Groups(ctx context.Context, id int64) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category FROM netboxcategory WHERE netboxid = $1 ORDER BY category`, id)
	if err != nil {
		return nil, fmt.Errorf("groups for netbox %d: %w", id, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
