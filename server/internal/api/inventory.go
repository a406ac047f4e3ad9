package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nav-nms/nav/pkg/models"
)

// rooms handles /api/v1/rooms and /api/v1/rooms/{id}.
func (h *Handler) rooms(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/v1/rooms"), "/")

	switch {
	case r.Method == http.MethodGet && id == "":
		rooms, err := h.deps.Inventory.Rooms(r.Context())
		if err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, rooms)

	case r.Method == http.MethodPost || r.Method == http.MethodPut:
		var room models.Room
		if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		if id != "" {
			room.ID = id
		}
		if room.ID == "" {
			jsonErr(w, http.StatusBadRequest, "room id is required")
			return
		}
		if err := h.deps.Inventory.SaveRoom(r.Context(), &room); err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, room)

	case r.Method == http.MethodDelete && id != "":
		if err := h.deps.Inventory.DeleteRoom(r.Context(), id); err != nil {
			storeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// organizations handles /api/v1/organizations and /api/v1/organizations/{id}.
func (h *Handler) organizations(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/v1/organizations"), "/")

	switch {
	case r.Method == http.MethodGet && id == "":
		orgs, err := h.deps.Inventory.Organizations(r.Context())
		if err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, orgs)

	case r.Method == http.MethodPost || r.Method == http.MethodPut:
		var org models.Organization
		if err := json.NewDecoder(r.Body).Decode(&org); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		if id != "" {
			org.ID = id
		}
		if org.ID == "" {
			jsonErr(w, http.StatusBadRequest, "organization id is required")
			return
		}
		if err := h.deps.Inventory.SaveOrganization(r.Context(), &org); err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, org)

	case r.Method == http.MethodDelete && id != "":
		if err := h.deps.Inventory.DeleteOrganization(r.Context(), id); err != nil {
			storeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// groupRequest is a netbox group plus its member list.
type groupRequest struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Netboxes    []int64 `json:"netboxes"`
}

// groups handles /api/v1/netboxgroups and /api/v1/netboxgroups/{id}.
// Saving a group with a member list replaces the membership.
func (h *Handler) groups(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, "/api/v1/netboxgroups"), "/")

	switch {
	case r.Method == http.MethodGet && id == "":
		groups, err := h.deps.Inventory.Groups(r.Context())
		if err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, groups)

	case r.Method == http.MethodPost || r.Method == http.MethodPut:
		var req groupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		if id != "" {
			req.ID = id
		}
		if req.ID == "" {
			jsonErr(w, http.StatusBadRequest, "group id is required")
			return
		}
		g := models.NetboxGroup{ID: req.ID, Description: req.Description}
		if err := h.deps.Inventory.SaveGroup(r.Context(), &g); err != nil {
			storeErr(w, err)
			return
		}
		if req.Netboxes != nil {
			if err := h.deps.Inventory.SetGroupMembers(r.Context(), g.ID, req.Netboxes); err != nil {
				storeErr(w, err)
				return
			}
		}
		jsonResp(w, http.StatusOK, req)

	case r.Method == http.MethodDelete && id != "":
		if err := h.deps.Inventory.DeleteGroup(r.Context(), id); err != nil {
			storeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
