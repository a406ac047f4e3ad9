package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

// ArpCamRepo maintains the arp and cam sighting intervals and answers the
// machine-tracker queries over them.
type ArpCamRepo struct {
	db *sql.DB
}

func NewArpCamRepo(conn *sql.DB) *ArpCamRepo {
	return &ArpCamRepo{db: conn}
}

// ArpSighting is one (ip, mac) pair seen in a collection run.
type ArpSighting struct {
	IP  string
	Mac string
}

// SyncArp reconciles the open arp rows of a netbox against the sightings of
// the latest run: unseen open rows are closed, unknown sightings opened.
// Rows already open for a still-present pair are left alone, so start_time
// keeps the first time the pair was seen.
func (r *ArpCamRepo) SyncArp(ctx context.Context, netboxID int64, sysname string, sightings []ArpSighting, now time.Time) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT arpid, ip, mac FROM arp WHERE netboxid = $1 AND end_time IS NULL`,
		netboxID)
	if err != nil {
		return fmt.Errorf("sync arp %d: load open: %w", netboxID, err)
	}

	open := make(map[string]int64)
	for rows.Next() {
		var id int64
		var ip, mac string
		if err := rows.Scan(&id, &ip, &mac); err != nil {
			rows.Close()
			return fmt.Errorf("sync arp %d: scan: %w", netboxID, err)
		}
		open[ip+"|"+mac] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sync arp %d: %w", netboxID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sync arp %d: begin: %w", netboxID, err)
	}
	defer tx.Rollback()

	seen := make(map[string]bool, len(sightings))
	for _, s := range sightings {
		key := s.IP + "|" + s.Mac
		seen[key] = true
		if _, ok := open[key]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO arp (netboxid, sysname, ip, mac, start_time)
			 VALUES ($1, $2, $3, $4, $5)`,
			netboxID, sysname, s.IP, s.Mac, now); err != nil {
			return fmt.Errorf("sync arp %d: open %s: %w", netboxID, key, err)
		}
	}
	for key, id := range open {
		if seen[key] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE arp SET end_time = $2 WHERE arpid = $1`, id, now); err != nil {
			return fmt.Errorf("sync arp %d: close %s: %w", netboxID, key, err)
		}
	}
	return tx.Commit()
}

// CamSighting is one (ifindex, mac) pair seen in a bridge table run.
type CamSighting struct {
	Ifindex int
	Port    string
	Mac     string
}

// SyncCam reconciles open cam rows the same way SyncArp does for arp.
func (r *ArpCamRepo) SyncCam(ctx context.Context, netboxID int64, sysname string, sightings []CamSighting, now time.Time) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT camid, ifindex, mac FROM cam WHERE netboxid = $1 AND end_time IS NULL`,
		netboxID)
	if err != nil {
		return fmt.Errorf("sync cam %d: load open: %w", netboxID, err)
	}

	open := make(map[string]int64)
	for rows.Next() {
		var id int64
		var ifindex int
		var mac string
		if err := rows.Scan(&id, &ifindex, &mac); err != nil {
			rows.Close()
			return fmt.Errorf("sync cam %d: scan: %w", netboxID, err)
		}
		open[camKey(ifindex, mac)] = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sync cam %d: %w", netboxID, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sync cam %d: begin: %w", netboxID, err)
	}
	defer tx.Rollback()

	seen := make(map[string]bool, len(sightings))
	for _, s := range sightings {
		key := camKey(s.Ifindex, s.Mac)
		seen[key] = true
		if _, ok := open[key]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cam (netboxid, sysname, ifindex, port, mac, start_time)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			netboxID, sysname, s.Ifindex, s.Port, s.Mac, now); err != nil {
			return fmt.Errorf("sync cam %d: open %s: %w", netboxID, key, err)
		}
	}
	for key, id := range open {
		if seen[key] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cam SET end_time = $2 WHERE camid = $1`, id, now); err != nil {
			return fmt.Errorf("sync cam %d: close %s: %w", netboxID, key, err)
		}
	}
	return tx.Commit()
}

func camKey(ifindex int, mac string) string {
	return fmt.Sprintf("%d|%s", ifindex, mac)
}

// CloseArp closes every open arp row of a netbox, used when the box is
// removed from monitoring.
func (r *ArpCamRepo) CloseArp(ctx context.Context, netboxID int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE arp SET end_time = $2 WHERE netboxid = $1 AND end_time IS NULL`,
		netboxID, now)
	if err != nil {
		return fmt.Errorf("close arp %d: %w", netboxID, err)
	}
	return nil
}

const arpColumns = `arpid, netboxid, sysname, ip, mac, start_time, end_time`

// SearchArpByIP finds sighting intervals for addresses within the given
// prefix. A bare address works too; the cast to cidr accepts both.
func (r *ArpCamRepo) SearchArpByIP(ctx context.Context, cidr string, limit int) ([]models.Arp, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+arpColumns+` FROM arp
		 WHERE ip <<= $1::cidr ORDER BY start_time DESC LIMIT $2`,
		cidr, limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("arp search %s: %w", cidr, err)
	}
	return scanArpRows(rows)
}

// SearchArpByMac finds sighting intervals for one MAC address.
func (r *ArpCamRepo) SearchArpByMac(ctx context.Context, mac string, limit int) ([]models.Arp, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+arpColumns+` FROM arp
		 WHERE mac = $1::macaddr ORDER BY start_time DESC LIMIT $2`,
		mac, limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("arp search %s: %w", mac, err)
	}
	return scanArpRows(rows)
}

func scanArpRows(rows *sql.Rows) ([]models.Arp, error) {
	defer rows.Close()
	var out []models.Arp
	for rows.Next() {
		var a models.Arp
		err := rows.Scan(&a.ID, &a.NetboxID, &a.Sysname, &a.IP, &a.Mac,
			&a.StartTime, &a.EndTime)
		if err != nil {
			return nil, fmt.Errorf("arp scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SearchCamByMac finds the switch ports a MAC address has been seen behind.
func (r *ArpCamRepo) SearchCamByMac(ctx context.Context, mac string, limit int) ([]models.Cam, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT camid, netboxid, sysname, ifindex, port, mac, start_time, end_time
		 FROM cam WHERE mac = $1::macaddr ORDER BY start_time DESC LIMIT $2`,
		mac, limitOr(limit))
	if err != nil {
		return nil, fmt.Errorf("cam search %s: %w", mac, err)
	}
	defer rows.Close()

	var out []models.Cam
	for rows.Next() {
		var c models.Cam
		err := rows.Scan(&c.ID, &c.NetboxID, &c.Sysname, &c.Ifindex, &c.Port,
			&c.Mac, &c.StartTime, &c.EndTime)
		if err != nil {
			return nil, fmt.Errorf("cam scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func limitOr(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}
