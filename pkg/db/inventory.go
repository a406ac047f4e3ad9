package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nav-nms/nav/pkg/models"
)

// InventoryRepo covers the seldom-changing inventory tables: rooms,
// locations, organizations, categories and netbox groups.
type InventoryRepo struct {
	db *sql.DB
}

func NewInventoryRepo(conn *sql.DB) *InventoryRepo {
	return &InventoryRepo{db: conn}
}

// --- rooms ------------------------------------------------------------------

func (r *InventoryRepo) Rooms(ctx context.Context) ([]models.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT roomid, locationid, descr, position, data FROM room ORDER BY roomid`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []models.Room
	for rows.Next() {
		var room models.Room
		var dataRaw json.RawMessage
		if err := rows.Scan(&room.ID, &room.LocationID, &room.Description,
			&room.Position, &dataRaw); err != nil {
			return nil, fmt.Errorf("list rooms: scan: %w", err)
		}
		if len(dataRaw) > 0 {
			if err := json.Unmarshal(dataRaw, &room.Data); err != nil {
				return nil, fmt.Errorf("room %s: decode data: %w", room.ID, err)
			}
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func (r *InventoryRepo) SaveRoom(ctx context.Context, room *models.Room) error {
	data, err := json.Marshal(orEmpty(room.Data))
	if err != nil {
		return fmt.Errorf("save room %s: encode data: %w", room.ID, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO room (roomid, locationid, descr, position, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (roomid) DO UPDATE
		 SET locationid = $2, descr = $3, position = $4, data = $5`,
		room.ID, room.LocationID, room.Description, room.Position, data)
	if err != nil {
		return fmt.Errorf("save room %s: %w", room.ID, err)
	}
	return nil
}

func (r *InventoryRepo) DeleteRoom(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM room WHERE roomid = $1`, id)
	if err != nil {
		return fmt.Errorf("delete room %s: %w", id, err)
	}
	return requireRow(res, "room "+id)
}

// RoomOf returns the room id of a netbox; used by the event engine for
// maintenance coverage.
func (r *InventoryRepo) RoomOf(ctx context.Context, netboxID int64) (string, error) {
	var roomID string
	err := r.db.QueryRowContext(ctx,
		`SELECT roomid FROM netbox WHERE netboxid = $1`, netboxID).Scan(&roomID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("room of netbox %d: %w", netboxID, err)
	}
	return roomID, nil
}

// --- organizations ----------------------------------------------------------

func (r *InventoryRepo) Organizations(ctx context.Context) ([]models.Organization, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT orgid, parent, descr FROM org ORDER BY orgid`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var out []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.ParentID, &org.Description); err != nil {
			return nil, fmt.Errorf("list organizations: scan: %w", err)
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

func (r *InventoryRepo) SaveOrganization(ctx context.Context, org *models.Organization) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO org (orgid, parent, descr) VALUES ($1, $2, $3)
		 ON CONFLICT (orgid) DO UPDATE SET parent = $2, descr = $3`,
		org.ID, org.ParentID, org.Description)
	if err != nil {
		return fmt.Errorf("save organization %s: %w", org.ID, err)
	}
	return nil
}

func (r *InventoryRepo) DeleteOrganization(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM org WHERE orgid = $1`, id)
	if err != nil {
		return fmt.Errorf("delete organization %s: %w", id, err)
	}
	return requireRow(res, "organization "+id)
}

// --- netbox groups ----------------------------------------------------------

func (r *InventoryRepo) Groups(ctx context.Context) ([]models.NetboxGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT netboxgroupid, descr FROM netboxgroup ORDER BY netboxgroupid`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var out []models.NetboxGroup
	for rows.Next() {
		var g models.NetboxGroup
		if err := rows.Scan(&g.ID, &g.Description); err != nil {
			return nil, fmt.Errorf("list groups: scan: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *InventoryRepo) SaveGroup(ctx context.Context, g *models.NetboxGroup) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO netboxgroup (netboxgroupid, descr) VALUES ($1, $2)
		 ON CONFLICT (netboxgroupid) DO UPDATE SET descr = $2`,
		g.ID, g.Description)
	if err != nil {
		return fmt.Errorf("save group %s: %w", g.ID, err)
	}
	return nil
}

func (r *InventoryRepo) DeleteGroup(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM netboxgroup WHERE netboxgroupid = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group %s: %w", id, err)
	}
	return requireRow(res, "group "+id)
}

// SetGroupMembers replaces the member set of a group.
func (r *InventoryRepo) SetGroupMembers(ctx context.Context, groupID string, netboxIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("group members %s: begin: %w", groupID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM netboxcategory WHERE category = $1`, groupID); err != nil {
		return fmt.Errorf("group members %s: clear: %w", groupID, err)
	}
	for _, id := range netboxIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO netboxcategory (netboxid, category) VALUES ($1, $2)`,
			id, groupID); err != nil {
			return fmt.Errorf("group members %s: add %d: %w", groupID, id, err)
		}
	}
	return tx.Commit()
}

// --- categories -------------------------------------------------------------

func (r *InventoryRepo) Categories(ctx context.Context) ([]models.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT catid, descr, req_snmp FROM cat ORDER BY catid`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Description, &c.ReqSNMP); err != nil {
			return nil, fmt.Errorf("list categories: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
