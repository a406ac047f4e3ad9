package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nav-nms/nav/pkg/models"
)

// TopologyRepo persists what the collection plugins learn about interfaces,
// prefixes and vlans.
type TopologyRepo struct {
	db *sql.DB
}

func NewTopologyRepo(conn *sql.DB) *TopologyRepo {
	return &TopologyRepo{db: conn}
}

// Interfaces returns the stored interfaces of a netbox ordered by ifindex.
func (r *TopologyRepo) Interfaces(ctx context.Context, netboxID int64) ([]models.Interface, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT interfaceid, netboxid, ifindex, ifname, ifdescr, iftype,
		        speed, ifadminstatus, ifoperstatus
		 FROM interface WHERE netboxid = $1 ORDER BY ifindex`, netboxID)
	if err != nil {
		return nil, fmt.Errorf("interfaces of netbox %d: %w", netboxID, err)
	}
	defer rows.Close()

	var out []models.Interface
	for rows.Next() {
		var ifc models.Interface
		err := rows.Scan(&ifc.ID, &ifc.NetboxID, &ifc.Ifindex, &ifc.Ifname,
			&ifc.Ifdescr, &ifc.IfType, &ifc.Speed, &ifc.AdminStatus,
			&ifc.OperStatus)
		if err != nil {
			return nil, fmt.Errorf("interfaces of netbox %d: scan: %w", netboxID, err)
		}
		out = append(out, ifc)
	}
	return out, rows.Err()
}

// UpsertInterface stores one collected interface row, keyed on
// (netbox, ifindex).
func (r *TopologyRepo) UpsertInterface(ctx context.Context, ifc *models.Interface) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO interface
		   (netboxid, ifindex, ifname, ifdescr, iftype, speed,
		    ifadminstatus, ifoperstatus)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (netboxid, ifindex) DO UPDATE
		 SET ifname = $3, ifdescr = $4, iftype = $5, speed = $6,
		     ifadminstatus = $7, ifoperstatus = $8`,
		ifc.NetboxID, ifc.Ifindex, ifc.Ifname, ifc.Ifdescr, ifc.IfType,
		ifc.Speed, ifc.AdminStatus, ifc.OperStatus)
	if err != nil {
		return fmt.Errorf("upsert interface %d/%d: %w", ifc.NetboxID, ifc.Ifindex, err)
	}
	return nil
}

// EnsureVlan returns the id of the vlan row with the given number, creating
// it when missing.
func (r *TopologyRepo) EnsureVlan(ctx context.Context, vlan int, netType string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`SELECT vlanid FROM vlan WHERE vlan = $1`, vlan).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup vlan %d: %w", vlan, err)
	}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO vlan (vlan, nettype) VALUES ($1, $2) RETURNING vlanid`,
		vlan, netType).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create vlan %d: %w", vlan, err)
	}
	return id, nil
}

// UpsertPrefix stores a prefix and returns its id. A nil vlanID leaves an
// existing prefix's vlan link untouched; a brand-new prefix without one gets
// a fresh anonymous vlan record instead, so the link is created exactly once
// no matter how often the prefix is re-synced.
func (r *TopologyRepo) UpsertPrefix(ctx context.Context, netAddress string, vlanID *int64, netType string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("upsert prefix %s: %w", netAddress, err)
	}
	defer tx.Rollback()

	var id int64
	var linked sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO prefix (net_address, vlanid) VALUES ($1, $2)
		 ON CONFLICT (net_address) DO UPDATE SET vlanid = COALESCE($2, prefix.vlanid)
		 RETURNING prefixid, vlanid`,
		netAddress, vlanID).Scan(&id, &linked)
	if err != nil {
		return 0, fmt.Errorf("upsert prefix %s: %w", netAddress, err)
	}
	if !linked.Valid {
		var anon int64
		err = tx.QueryRowContext(ctx,
			`INSERT INTO vlan (nettype) VALUES ($1) RETURNING vlanid`,
			netType).Scan(&anon)
		if err != nil {
			return 0, fmt.Errorf("create anonymous vlan: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE prefix SET vlanid = $1 WHERE prefixid = $2`, anon, id); err != nil {
			return 0, fmt.Errorf("link prefix %s: %w", netAddress, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("upsert prefix %s: %w", netAddress, err)
	}
	return id, nil
}

// SetGwPortPrefix records a router port address within a prefix.
func (r *TopologyRepo) SetGwPortPrefix(ctx context.Context, netboxID int64, ifindex int, prefixID int64, gwIP string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO gwportprefix (interfaceid, prefixid, gwip)
		 SELECT interfaceid, $3, $4 FROM interface
		 WHERE netboxid = $1 AND ifindex = $2
		 ON CONFLICT (gwip) DO UPDATE SET prefixid = $3`,
		netboxID, ifindex, prefixID, gwIP)
	if err != nil {
		return fmt.Errorf("gwportprefix %s: %w", gwIP, err)
	}
	return nil
}
