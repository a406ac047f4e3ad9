package api

import (
	"encoding/json"
	"net/http"

	"github.com/nav-nms/nav/pkg/models"
)

// maintenance handles GET (list) and POST (schedule) on /api/v1/maintenance.
func (h *Handler) maintenance(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := h.deps.Maintenance.List(r.Context())
		if err != nil {
			storeErr(w, err)
			return
		}
		out := make([]MaintenanceResponse, 0, len(tasks))
		for i := range tasks {
			out = append(out, toMaintenanceResponse(&tasks[i]))
		}
		jsonResp(w, http.StatusOK, out)

	case http.MethodPost:
		var req MaintenanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		if !req.End.After(req.Start) {
			jsonErr(w, http.StatusBadRequest, "end must be after start")
			return
		}
		if len(req.Netboxes) == 0 && len(req.Rooms) == 0 {
			jsonErr(w, http.StatusBadRequest, "at least one netbox or room is required")
			return
		}
		task := models.MaintenanceTask{
			Start:       req.Start,
			End:         req.End,
			Description: req.Description,
			Author:      req.Author,
			State:       models.TaskScheduled,
		}
		for i := range req.Netboxes {
			task.Components = append(task.Components,
				models.MaintenanceComponent{NetboxID: &req.Netboxes[i]})
		}
		for i := range req.Rooms {
			task.Components = append(task.Components,
				models.MaintenanceComponent{RoomID: &req.Rooms[i]})
		}
		id, err := h.deps.Maintenance.Create(r.Context(), &task)
		if err != nil {
			storeErr(w, err)
			return
		}
		task.ID = id
		jsonResp(w, http.StatusCreated, toMaintenanceResponse(&task))

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// maintenanceTask handles GET and DELETE on /api/v1/maintenance/{id}.
// Deleting cancels the task rather than erasing it.
func (h *Handler) maintenanceTask(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := pathID(r.URL.Path, "/api/v1/maintenance/")
	if !ok || sub != "" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		task, err := h.deps.Maintenance.Get(r.Context(), id)
		if err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, toMaintenanceResponse(task))

	case http.MethodDelete:
		if err := h.deps.Maintenance.Cancel(r.Context(), id); err != nil {
			storeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
