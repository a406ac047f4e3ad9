package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/server/internal/status"
)

// --- fakes ------------------------------------------------------------------

type fakeNetboxes struct {
	boxes   map[int64]*models.Netbox
	nextID  int64
	deleted []int64
}

func (f *fakeNetboxes) List(context.Context) ([]*models.Netbox, error) {
	var out []*models.Netbox
	for _, n := range f.boxes {
		out = append(out, n)
	}
	return out, nil
}

func (f *fakeNetboxes) Get(_ context.Context, id int64) (*models.Netbox, error) {
	n, ok := f.boxes[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return n, nil
}

func (f *fakeNetboxes) Insert(_ context.Context, n *models.Netbox) (int64, error) {
	f.nextID++
	n.ID = f.nextID
	f.boxes[n.ID] = n
	return n.ID, nil
}

func (f *fakeNetboxes) Update(_ context.Context, n *models.Netbox) error {
	if _, ok := f.boxes[n.ID]; !ok {
		return db.ErrNotFound
	}
	f.boxes[n.ID] = n
	return nil
}

func (f *fakeNetboxes) SoftDelete(_ context.Context, id int64, _ time.Time) error {
	if _, ok := f.boxes[id]; !ok {
		return db.ErrNotFound
	}
	delete(f.boxes, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeTracker struct {
	arps []models.Arp
	cams []models.Cam
}

func (f *fakeTracker) SearchArpByIP(context.Context, string, int) ([]models.Arp, error) {
	return f.arps, nil
}

func (f *fakeTracker) SearchArpByMac(context.Context, string, int) ([]models.Arp, error) {
	return f.arps, nil
}

func (f *fakeTracker) SearchCamByMac(context.Context, string, int) ([]models.Cam, error) {
	return f.cams, nil
}

type fakeHistory struct {
	entries []models.AlertHistory
	since   time.Time
	limit   int
}

func (f *fakeHistory) History(_ context.Context, _ int64, since time.Time, limit int) ([]models.AlertHistory, error) {
	f.since, f.limit = since, limit
	return f.entries, nil
}

type fakeMaintenance struct {
	tasks    map[int64]*models.MaintenanceTask
	nextID   int64
	canceled []int64
}

func (f *fakeMaintenance) Create(_ context.Context, task *models.MaintenanceTask) (int64, error) {
	f.nextID++
	task.ID = f.nextID
	f.tasks[task.ID] = task
	return task.ID, nil
}

func (f *fakeMaintenance) Get(_ context.Context, id int64) (*models.MaintenanceTask, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return t, nil
}

func (f *fakeMaintenance) List(context.Context) ([]models.MaintenanceTask, error) {
	var out []models.MaintenanceTask
	for _, t := range f.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (f *fakeMaintenance) Cancel(_ context.Context, id int64) error {
	if _, ok := f.tasks[id]; !ok {
		return db.ErrNotFound
	}
	f.canceled = append(f.canceled, id)
	return nil
}

type fakeStatus struct {
	summary status.Summary
}

func (f *fakeStatus) Summary(context.Context) (*status.Summary, error) {
	s := f.summary
	return &s, nil
}

type fakeEvents struct {
	posted []models.Event
}

func (f *fakeEvents) Post(_ context.Context, ev *models.Event) error {
	f.posted = append(f.posted, *ev)
	return nil
}

type fixture struct {
	handler     *Handler
	netboxes    *fakeNetboxes
	tracker     *fakeTracker
	history     *fakeHistory
	maintenance *fakeMaintenance
	status      *fakeStatus
	events      *fakeEvents
}

func newFixture() *fixture {
	f := &fixture{
		netboxes: &fakeNetboxes{boxes: map[int64]*models.Netbox{
			1: {ID: 1, IP: "10.0.0.1", Sysname: "gw.example.org",
				RoomID: "serverroom", CategoryID: "GW", Up: models.UpUp},
		}, nextID: 1},
		tracker:     &fakeTracker{},
		history:     &fakeHistory{},
		maintenance: &fakeMaintenance{tasks: map[int64]*models.MaintenanceTask{}},
		status:      &fakeStatus{summary: status.Summary{Boxes: 1, Up: 1}},
		events:      &fakeEvents{},
	}
	f.handler = New(Deps{
		Netboxes:    f.netboxes,
		Tracker:     f.tracker,
		History:     f.history,
		Maintenance: f.maintenance,
		Status:      f.status,
		Events:      f.events,
		SnmpCheck: func(_ context.Context, n *models.Netbox) SnmpCheckResponse {
			return SnmpCheckResponse{
				Sysname:             n.Sysname,
				SnmpVersion:         2,
				NetboxType:          "cisco-3750",
				Serial:              "CAT1234",
				SnmpWriteSuccessful: true,
				SnmpWriteFeedback:   "write access verified",
			}
		},
	})
	f.handler.now = func() time.Time { return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// --- tests ------------------------------------------------------------------

func TestListNetboxes(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/netboxes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[[]NetboxResponse](t, rec)
	require.Len(t, out, 1)
	assert.Equal(t, "gw.example.org", out[0].Sysname)
}

func TestCreateNetbox(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/netboxes", NetboxRequest{
		IP: "10.0.0.2", Room: "serverroom", Category: "SW",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decode[NetboxResponse](t, rec)
	assert.Equal(t, int64(2), out.ID)
	// Sysname falls back to the IP until the poller learns the real one.
	assert.Equal(t, "10.0.0.2", out.Sysname)
}

func TestCreateNetboxValidation(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/netboxes", NetboxRequest{IP: "10.0.0.2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNetboxNotFound(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/netboxes/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateNetbox(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPut, "/api/v1/netboxes/1", NetboxRequest{Room: "basement"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "basement", f.netboxes.boxes[1].RoomID)
	// Fields absent from the request stay untouched.
	assert.Equal(t, "10.0.0.1", f.netboxes.boxes[1].IP)
}

func TestDeleteNetbox(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodDelete, "/api/v1/netboxes/1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{1}, f.netboxes.deleted)
}

func TestSnmpCheckPayload(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/netboxes/1/snmpcheck", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The payload keys are a stable wire contract.
	raw := decode[map[string]any](t, rec)
	for _, key := range []string{
		"sysname", "snmp_version", "netbox_type", "serial",
		"snmp_write_successful", "snmp_write_feedback",
	} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, "gw.example.org", raw["sysname"])
	assert.Equal(t, true, raw["snmp_write_successful"])
}

func TestHistoryQueryParams(t *testing.T) {
	f := newFixture()
	f.history.entries = []models.AlertHistory{
		{ID: 1, EventType: models.EventBoxState, Message: "gw.example.org is down",
			StartTime: time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)},
	}
	rec := f.do(t, http.MethodGet, "/api/v1/netboxes/1/history?days=2&limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 10, f.history.limit)
	assert.Equal(t, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), f.history.since)

	out := decode[[]HistoryResponse](t, rec)
	require.Len(t, out, 1)
	assert.True(t, out[0].Open)
}

func TestMachineTrackerByIP(t *testing.T) {
	f := newFixture()
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	f.tracker.arps = []models.Arp{
		{Sysname: "gw.example.org", IP: "10.0.0.42", Mac: "aa:bb:cc:dd:ee:ff",
			StartTime: end.Add(-time.Hour), EndTime: &end},
	}
	rec := f.do(t, http.MethodGet, "/api/v1/machinetracker?ip=10.0.0.0/24", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[[]TrackerResponse](t, rec)
	require.Len(t, out, 1)
	assert.Equal(t, "arp", out[0].Kind)
	assert.False(t, out[0].Open)
}

func TestMachineTrackerByMacMergesArpAndCam(t *testing.T) {
	f := newFixture()
	f.tracker.arps = []models.Arp{{Sysname: "gw", IP: "10.0.0.42", Mac: "aa:bb:cc:dd:ee:ff", StartTime: time.Now()}}
	f.tracker.cams = []models.Cam{{Sysname: "sw", Port: "Gi1/0/3", Mac: "aa:bb:cc:dd:ee:ff", StartTime: time.Now()}}

	rec := f.do(t, http.MethodGet, "/api/v1/machinetracker?mac=aa:bb:cc:dd:ee:ff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[[]TrackerResponse](t, rec)
	require.Len(t, out, 2)
	assert.Equal(t, "arp", out[0].Kind)
	assert.Equal(t, "cam", out[1].Kind)
	assert.Equal(t, "Gi1/0/3", out[1].Port)
}

func TestMachineTrackerRequiresExactlyOneParam(t *testing.T) {
	f := newFixture()
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodGet, "/api/v1/machinetracker", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodGet, "/api/v1/machinetracker?ip=10.0.0.1&mac=aa:bb", nil).Code)
}

func TestCreateMaintenance(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/maintenance", MaintenanceRequest{
		Start:    time.Date(2026, 3, 5, 22, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 3, 6, 2, 0, 0, 0, time.UTC),
		Author:   "admin",
		Netboxes: []int64{1},
		Rooms:    []string{"serverroom"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decode[MaintenanceResponse](t, rec)
	assert.Equal(t, models.TaskScheduled, out.State)
	assert.Equal(t, []int64{1}, out.Netboxes)
	assert.Equal(t, []string{"serverroom"}, out.Rooms)
}

func TestCreateMaintenanceRejectsEmptyWindow(t *testing.T) {
	f := newFixture()
	at := time.Date(2026, 3, 5, 22, 0, 0, 0, time.UTC)
	rec := f.do(t, http.MethodPost, "/api/v1/maintenance", MaintenanceRequest{
		Start: at, End: at, Netboxes: []int64{1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelMaintenance(t *testing.T) {
	f := newFixture()
	f.maintenance.tasks[3] = &models.MaintenanceTask{ID: 3, State: models.TaskScheduled}
	rec := f.do(t, http.MethodDelete, "/api/v1/maintenance/3", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int64{3}, f.maintenance.canceled)
}

func TestStatusSummary(t *testing.T) {
	f := newFixture()
	f.status.summary = status.Summary{Boxes: 10, Up: 8, Down: 1, Shadow: 1, OpenAlerts: 2}
	rec := f.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[status.Summary](t, rec)
	assert.Equal(t, 10, out.Boxes)
	assert.Equal(t, 1, out.Down)
}

func TestDiagnosticsDownAndMaintenance(t *testing.T) {
	f := newFixture()
	f.status.summary = status.Summary{Boxes: 10, Up: 7, Down: 2, Shadow: 1, Maintenance: 1}
	rec := f.do(t, http.MethodGet, "/api/v1/diagnostics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	hints := decode[[]DiagnosticHint](t, rec)
	keys := make([]string, 0, len(hints))
	for _, h := range hints {
		keys = append(keys, h.Key)
	}
	assert.Equal(t, []string{"boxes_down", "boxes_shadow", "maintenance_active"}, keys)
	assert.Equal(t, "critical", hints[0].Level) // 2 of 10 down
}

func TestDiagnosticsAllClear(t *testing.T) {
	f := newFixture()
	f.status.summary = status.Summary{Boxes: 5, Up: 5}
	hints := decode[[]DiagnosticHint](t, f.do(t, http.MethodGet, "/api/v1/diagnostics", nil))
	require.Len(t, hints, 1)
	assert.Equal(t, "all_clear", hints[0].Key)
}

func TestPostEvent(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/events", EventRequest{
		NetboxID: 1, EventType: models.EventBoxState, State: models.StateStart,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, f.events.posted, 1)
	assert.Equal(t, "api", f.events.posted[0].Source)
	assert.Equal(t, "eventEngine", f.events.posted[0].Target)
}

func TestPostEventValidation(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodPost, "/api/v1/events", EventRequest{NetboxID: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture()
	rec := f.do(t, http.MethodDelete, "/api/v1/status", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	out := decode[map[string]string](t, rec)
	assert.Equal(t, "method not allowed", out["error"])
}
