// Package client wraps navd's JSON API for the navctl commands.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to one navd instance.
type Client struct {
	http *resty.Client
}

// New builds a client for the API at baseURL. An empty apiKey leaves the
// X-API-Key header unset, matching a server with authentication disabled.
func New(baseURL, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &Client{http: c}
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Boxes       int       `json:"boxes"`
	Up          int       `json:"up"`
	Down        int       `json:"down"`
	Shadow      int       `json:"shadow"`
	OpenAlerts  int       `json:"open_alerts"`
	Maintenance int       `json:"active_maintenance_tasks"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Netbox mirrors the API's netbox shape.
type Netbox struct {
	ID       int64  `json:"id"`
	IP       string `json:"ip"`
	Sysname  string `json:"sysname"`
	Room     string `json:"room"`
	Category string `json:"category"`
	Org      string `json:"org"`
	Up       string `json:"up"`
}

// NetboxRequest is the body of a netbox create call.
type NetboxRequest struct {
	IP       string `json:"ip"`
	Sysname  string `json:"sysname,omitempty"`
	Room     string `json:"room"`
	Category string `json:"category"`
	Org      string `json:"org,omitempty"`
}

// Maintenance mirrors the API's maintenance task shape.
type Maintenance struct {
	ID          int64     `json:"id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Author      string    `json:"author"`
	State       string    `json:"state"`
	Netboxes    []int64   `json:"netboxes,omitempty"`
	Rooms       []string  `json:"rooms,omitempty"`
}

// Event is the body of POST /api/v1/events.
type Event struct {
	NetboxID  int64             `json:"netboxid"`
	EventType string            `json:"eventtype"`
	State     string            `json:"state"`
	SubID     string            `json:"subid,omitempty"`
	Severity  int               `json:"severity"`
	Vars      map[string]string `json:"vars,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Status fetches the current network status summary.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out Status
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	if err := apiErr(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

// Netboxes lists all netboxes.
func (c *Client) Netboxes(ctx context.Context) ([]Netbox, error) {
	var out []Netbox
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/api/v1/netboxes")
	if err != nil {
		return nil, fmt.Errorf("list netboxes: %w", err)
	}
	if err := apiErr(resp); err != nil {
		return nil, err
	}
	return out, nil
}

// AddNetbox creates a netbox and returns it with its assigned id.
func (c *Client) AddNetbox(ctx context.Context, req NetboxRequest) (*Netbox, error) {
	var out Netbox
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&errorBody{}).
		Post("/api/v1/netboxes")
	if err != nil {
		return nil, fmt.Errorf("add netbox: %w", err)
	}
	if err := apiErr(resp); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteNetbox soft-deletes a netbox by id.
func (c *Client) DeleteNetbox(ctx context.Context, id int64) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&errorBody{}).
		Delete(fmt.Sprintf("/api/v1/netboxes/%d", id))
	if err != nil {
		return fmt.Errorf("delete netbox %d: %w", id, err)
	}
	return apiErr(resp)
}

// PostEvent injects an event on the server's queue.
func (c *Client) PostEvent(ctx context.Context, ev Event) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(ev).
		SetError(&errorBody{}).
		Post("/api/v1/events")
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	return apiErr(resp)
}

// MaintenanceTasks lists all maintenance tasks.
func (c *Client) MaintenanceTasks(ctx context.Context) ([]Maintenance, error) {
	var out []Maintenance
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errorBody{}).
		Get("/api/v1/maintenance")
	if err != nil {
		return nil, fmt.Errorf("list maintenance: %w", err)
	}
	if err := apiErr(resp); err != nil {
		return nil, err
	}
	return out, nil
}

// apiErr turns a non-2xx response into an error carrying the server's
// message when one was given.
func apiErr(resp *resty.Response) error {
	if !resp.IsError() {
		return nil
	}
	if body, ok := resp.Error().(*errorBody); ok && body.Error != "" {
		return fmt.Errorf("server: %s (%s)", body.Error, resp.Status())
	}
	return fmt.Errorf("server: %s", resp.Status())
}
