package api

import (
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

type errorResponse struct {
	Error string `json:"error"`
}

// NetboxResponse is the JSON shape of a netbox.
type NetboxResponse struct {
	ID         int64             `json:"id"`
	IP         string            `json:"ip"`
	Sysname    string            `json:"sysname"`
	Room       string            `json:"room"`
	Category   string            `json:"category"`
	Org        string            `json:"org"`
	Up         string            `json:"up"`
	UpSince    time.Time         `json:"up_since"`
	Discovered time.Time         `json:"discovered"`
	Data       map[string]string `json:"data,omitempty"`
}

// NetboxRequest is the body of netbox create and update calls.
type NetboxRequest struct {
	IP       string                     `json:"ip"`
	Sysname  string                     `json:"sysname"`
	Room     string                     `json:"room"`
	Category string                     `json:"category"`
	Org      string                     `json:"org"`
	Profiles []models.ManagementProfile `json:"profiles,omitempty"`
}

// SnmpCheckResponse reports the outcome of a live connectivity check
// against a netbox's preferred management profile.
type SnmpCheckResponse struct {
	Sysname             string `json:"sysname"`
	SnmpVersion         int    `json:"snmp_version"`
	NetboxType          string `json:"netbox_type"`
	Serial              string `json:"serial"`
	SnmpWriteSuccessful bool   `json:"snmp_write_successful"`
	SnmpWriteFeedback   string `json:"snmp_write_feedback"`
}

// TrackerResponse is one ARP or CAM sighting interval from the machine
// tracker. Port is set for CAM rows only.
type TrackerResponse struct {
	Kind      string     `json:"kind"` // "arp" or "cam"
	Sysname   string     `json:"sysname"`
	IP        string     `json:"ip,omitempty"`
	Mac       string     `json:"mac"`
	Port      string     `json:"port,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Open      bool       `json:"open"`
}

// HistoryResponse is one alert history entry on a netbox.
type HistoryResponse struct {
	ID        int64      `json:"id"`
	EventType string     `json:"eventtype"`
	SubID     string     `json:"subid,omitempty"`
	Severity  int        `json:"severity"`
	Message   string     `json:"message"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Open      bool       `json:"open"`
}

// MaintenanceRequest is the body of maintenance task creation.
type MaintenanceRequest struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	Netboxes    []int64   `json:"netboxes,omitempty"`
	Rooms       []string  `json:"rooms,omitempty"`
}

// MaintenanceResponse is the JSON shape of a maintenance task.
type MaintenanceResponse struct {
	ID          int64     `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	State       string    `json:"state"`
	Netboxes    []int64   `json:"netboxes,omitempty"`
	Rooms       []string  `json:"rooms,omitempty"`
}

// EventRequest posts a raw event on the queue, mainly for testing alert
// routing end to end.
type EventRequest struct {
	NetboxID  int64             `json:"netboxid"`
	EventType string            `json:"eventtype"`
	State     string            `json:"state"`
	SubID     string            `json:"subid,omitempty"`
	Severity  int               `json:"severity"`
	Vars      map[string]string `json:"vars,omitempty"`
}

func toNetboxResponse(n *models.Netbox) NetboxResponse {
	return NetboxResponse{
		ID:         n.ID,
		IP:         n.IP,
		Sysname:    n.Sysname,
		Room:       n.RoomID,
		Category:   n.CategoryID,
		Org:        n.OrgID,
		Up:         n.Up,
		UpSince:    n.UpSince,
		Discovered: n.Discovered,
		Data:       n.Data,
	}
}

func toHistoryResponse(a *models.AlertHistory) HistoryResponse {
	return HistoryResponse{
		ID:        a.ID,
		EventType: a.EventType,
		SubID:     a.SubID,
		Severity:  a.Severity,
		Message:   a.Message,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Open:      a.Open(),
	}
}

func toMaintenanceResponse(t *models.MaintenanceTask) MaintenanceResponse {
	resp := MaintenanceResponse{
		ID:          t.ID,
		Start:       t.Start,
		End:         t.End,
		Description: t.Description,
		Author:      t.Author,
		State:       t.State,
	}
	for _, c := range t.Components {
		if c.NetboxID != nil {
			resp.Netboxes = append(resp.Netboxes, *c.NetboxID)
		}
		if c.RoomID != nil {
			resp.Rooms = append(resp.Rooms, *c.RoomID)
		}
	}
	return resp
}
