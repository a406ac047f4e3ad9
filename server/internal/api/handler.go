package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/server/internal/status"
)

// The handler talks to the database through narrow interfaces so tests can
// run against in-memory fakes.

// NetboxStore is the netbox surface of the API.
type NetboxStore interface {
	List(ctx context.Context) ([]*models.Netbox, error)
	Get(ctx context.Context, id int64) (*models.Netbox, error)
	Insert(ctx context.Context, n *models.Netbox) (int64, error)
	Update(ctx context.Context, n *models.Netbox) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

// InventoryStore covers rooms, organizations and netbox groups.
type InventoryStore interface {
	Rooms(ctx context.Context) ([]models.Room, error)
	SaveRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, id string) error
	Organizations(ctx context.Context) ([]models.Organization, error)
	SaveOrganization(ctx context.Context, org *models.Organization) error
	DeleteOrganization(ctx context.Context, id string) error
	Groups(ctx context.Context) ([]models.NetboxGroup, error)
	SaveGroup(ctx context.Context, g *models.NetboxGroup) error
	DeleteGroup(ctx context.Context, id string) error
	SetGroupMembers(ctx context.Context, groupID string, netboxIDs []int64) error
}

// TrackerStore is the ARP/CAM search surface behind the machine tracker.
type TrackerStore interface {
	SearchArpByIP(ctx context.Context, cidr string, limit int) ([]models.Arp, error)
	SearchArpByMac(ctx context.Context, mac string, limit int) ([]models.Arp, error)
	SearchCamByMac(ctx context.Context, mac string, limit int) ([]models.Cam, error)
}

// HistoryStore reads alert history for the device history endpoint.
type HistoryStore interface {
	History(ctx context.Context, netboxID int64, since time.Time, limit int) ([]models.AlertHistory, error)
}

// MaintenanceStore is the maintenance task surface.
type MaintenanceStore interface {
	Create(ctx context.Context, task *models.MaintenanceTask) (int64, error)
	Get(ctx context.Context, id int64) (*models.MaintenanceTask, error)
	List(ctx context.Context) ([]models.MaintenanceTask, error)
	Cancel(ctx context.Context, id int64) error
}

// ProfileStore is the alert profile admin surface.
type ProfileStore interface {
	Profiles(ctx context.Context, account string) ([]models.AlertProfile, error)
	Get(ctx context.Context, id int64) (*models.AlertProfile, error)
	Save(ctx context.Context, p *models.AlertProfile) error
	Delete(ctx context.Context, id int64) error
	AddPeriod(ctx context.Context, tp *models.TimePeriod) error
	DeletePeriod(ctx context.Context, id int64) error
	AddMatch(ctx context.Context, profileID int64, m *models.FilterMatch) error
	DeleteMatch(ctx context.Context, id int64) error
	Addresses(ctx context.Context, account string) ([]models.AlertAddress, error)
	SaveAddress(ctx context.Context, a *models.AlertAddress) error
	DeleteAddress(ctx context.Context, id int64) error
	Subscribe(ctx context.Context, periodID, addressID int64) (int64, error)
	Unsubscribe(ctx context.Context, id int64) error
}

// StatusSource serves the cached status summary.
type StatusSource interface {
	Summary(ctx context.Context) (*status.Summary, error)
}

// EventPoster puts an event on the queue.
type EventPoster interface {
	Post(ctx context.Context, ev *models.Event) error
}

// SnmpChecker runs the live connectivity check for one netbox.
type SnmpChecker func(ctx context.Context, n *models.Netbox) SnmpCheckResponse

// Deps bundles everything the handler needs.
type Deps struct {
	Netboxes    NetboxStore
	Inventory   InventoryStore
	Tracker     TrackerStore
	History     HistoryStore
	Maintenance MaintenanceStore
	Profiles    ProfileStore
	Status      StatusSource
	Events      EventPoster
	SnmpCheck   SnmpChecker
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	deps Deps
	mux  *http.ServeMux
	now  func() time.Time
}

// New registers all routes and returns the handler.
func New(deps Deps) *Handler {
	h := &Handler{deps: deps, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/diagnostics", h.diagnostics)
	h.mux.HandleFunc("/api/v1/netboxes", h.netboxes)
	h.mux.HandleFunc("/api/v1/netboxes/", h.netbox) // subtree: {id}, {id}/snmpcheck, {id}/history
	h.mux.HandleFunc("/api/v1/rooms", h.rooms)
	h.mux.HandleFunc("/api/v1/rooms/", h.rooms)
	h.mux.HandleFunc("/api/v1/organizations", h.organizations)
	h.mux.HandleFunc("/api/v1/organizations/", h.organizations)
	h.mux.HandleFunc("/api/v1/netboxgroups", h.groups)
	h.mux.HandleFunc("/api/v1/netboxgroups/", h.groups)
	h.mux.HandleFunc("/api/v1/machinetracker", h.machinetracker)
	h.mux.HandleFunc("/api/v1/maintenance", h.maintenance)
	h.mux.HandleFunc("/api/v1/maintenance/", h.maintenanceTask)
	h.mux.HandleFunc("/api/v1/alertprofiles", h.profiles)
	h.mux.HandleFunc("/api/v1/alertprofiles/", h.profile)
	h.mux.HandleFunc("/api/v1/alertaddresses", h.addresses)
	h.mux.HandleFunc("/api/v1/alertaddresses/", h.address)
	h.mux.HandleFunc("/api/v1/events", h.postEvent)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: a bare liveness answer.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, map[string]string{"status": "ok"})
}

// status returns GET /api/v1/status: up/down/shadow counts and open alerts.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s, err := h.deps.Status.Summary(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, s)
}

// postEvent handles POST /api/v1/events: inject an event on the queue.
func (h *Handler) postEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "bad request body")
		return
	}
	if req.EventType == "" || req.State == "" {
		jsonErr(w, http.StatusBadRequest, "eventtype and state are required")
		return
	}
	ev := models.Event{
		Source:    "api",
		Target:    "eventEngine",
		NetboxID:  req.NetboxID,
		SubID:     req.SubID,
		EventType: req.EventType,
		State:     req.State,
		Severity:  req.Severity,
		Time:      h.now(),
		Vars:      req.Vars,
	}
	if err := h.deps.Events.Post(r.Context(), &ev); err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// storeErr maps a repository error to 404 or 500.
func storeErr(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrNotFound) {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	jsonErr(w, http.StatusInternalServerError, err.Error())
}

// pathID parses the numeric id segment after prefix, returning the id and
// any trailing subpath ("snmpcheck", "history", "").
func pathID(path, prefix string) (int64, string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	seg, sub, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, sub, true
}
