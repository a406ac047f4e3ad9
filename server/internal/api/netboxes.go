package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/nav-nms/nav/pkg/models"
)

// netboxes handles GET (list) and POST (create) on /api/v1/netboxes.
func (h *Handler) netboxes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		boxes, err := h.deps.Netboxes.List(r.Context())
		if err != nil {
			storeErr(w, err)
			return
		}
		out := make([]NetboxResponse, 0, len(boxes))
		for _, n := range boxes {
			out = append(out, toNetboxResponse(n))
		}
		jsonResp(w, http.StatusOK, out)

	case http.MethodPost:
		var req NetboxRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		if req.IP == "" || req.Room == "" || req.Category == "" {
			jsonErr(w, http.StatusBadRequest, "ip, room and category are required")
			return
		}
		n := &models.Netbox{
			IP:         req.IP,
			Sysname:    req.Sysname,
			RoomID:     req.Room,
			CategoryID: req.Category,
			OrgID:      req.Org,
			Up:         models.UpUp,
			Profiles:   req.Profiles,
		}
		if n.Sysname == "" {
			n.Sysname = n.IP
		}
		id, err := h.deps.Netboxes.Insert(r.Context(), n)
		if err != nil {
			storeErr(w, err)
			return
		}
		n.ID = id
		jsonResp(w, http.StatusCreated, toNetboxResponse(n))

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// netbox handles the /api/v1/netboxes/{id} subtree: the box itself plus
// the snmpcheck and history sub-resources.
func (h *Handler) netbox(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := pathID(r.URL.Path, "/api/v1/netboxes/")
	if !ok {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	switch sub {
	case "":
		h.netboxByID(w, r, id)
	case "snmpcheck":
		h.snmpcheck(w, r, id)
	case "history":
		h.history(w, r, id)
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) netboxByID(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		n, err := h.deps.Netboxes.Get(r.Context(), id)
		if err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, toNetboxResponse(n))

	case http.MethodPut:
		n, err := h.deps.Netboxes.Get(r.Context(), id)
		if err != nil {
			storeErr(w, err)
			return
		}
		var req NetboxRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		if req.IP != "" {
			n.IP = req.IP
		}
		if req.Sysname != "" {
			n.Sysname = req.Sysname
		}
		if req.Room != "" {
			n.RoomID = req.Room
		}
		if req.Category != "" {
			n.CategoryID = req.Category
		}
		if req.Org != "" {
			n.OrgID = req.Org
		}
		if req.Profiles != nil {
			n.Profiles = req.Profiles
		}
		if err := h.deps.Netboxes.Update(r.Context(), n); err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, toNetboxResponse(n))

	case http.MethodDelete:
		if err := h.deps.Netboxes.SoftDelete(r.Context(), id, h.now()); err != nil {
			storeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// snmpcheck runs a live connectivity check against the box's preferred
// management profile, including a harmless write check when a write
// profile is configured.
func (h *Handler) snmpcheck(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	n, err := h.deps.Netboxes.Get(r.Context(), id)
	if err != nil {
		storeErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, h.deps.SnmpCheck(r.Context(), n))
}

// history returns the alert history of one box, newest first. Query
// parameters: days (default 7), limit (default 100).
func (h *Handler) history(w http.ResponseWriter, r *http.Request, id int64) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	days := queryInt(r, "days", 7)
	limit := queryInt(r, "limit", 100)
	since := h.now().Add(-time.Duration(days) * 24 * time.Hour)

	entries, err := h.deps.History.History(r.Context(), id, since, limit)
	if err != nil {
		storeErr(w, err)
		return
	}
	out := make([]HistoryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toHistoryResponse(&entries[i]))
	}
	jsonResp(w, http.StatusOK, out)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
