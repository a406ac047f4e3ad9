package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/nav-nms/nav/pkg/models"
)

// profiles handles GET (list, by ?account=) and POST (create) on
// /api/v1/alertprofiles.
func (h *Handler) profiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		account := r.URL.Query().Get("account")
		if account == "" {
			jsonErr(w, http.StatusBadRequest, "account is required")
			return
		}
		profiles, err := h.deps.Profiles.Profiles(r.Context(), account)
		if err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, profiles)

	case http.MethodPost:
		var p models.AlertProfile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		if p.Account == "" || p.Name == "" {
			jsonErr(w, http.StatusBadRequest, "account and name are required")
			return
		}
		if err := h.deps.Profiles.Save(r.Context(), &p); err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusCreated, p)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// profile handles the /api/v1/alertprofiles/{id} subtree, including the
// nested periods, matches and subscriptions admin.
func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := pathID(r.URL.Path, "/api/v1/alertprofiles/")
	if !ok {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case sub == "":
		h.profileByID(w, r, id)
	case sub == "periods" || strings.HasPrefix(sub, "periods/"):
		h.profilePeriods(w, r, id, strings.TrimPrefix(sub, "periods"))
	case sub == "matches" || strings.HasPrefix(sub, "matches/"):
		h.profileMatches(w, r, id, strings.TrimPrefix(sub, "matches"))
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) profileByID(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		p, err := h.deps.Profiles.Get(r.Context(), id)
		if err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, p)

	case http.MethodPut:
		var p models.AlertProfile
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		p.ID = id
		if err := h.deps.Profiles.Save(r.Context(), &p); err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, p)

	case http.MethodDelete:
		if err := h.deps.Profiles.Delete(r.Context(), id); err != nil {
			storeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// subscribeRequest ties a time period to an alert address.
type subscribeRequest struct {
	AddressID int64 `json:"address_id"`
}

// profilePeriods handles .../periods, .../periods/{pid} and
// .../periods/{pid}/subscriptions[/{sid}]. rest is the path after
// "periods", starting with "/" when non-empty.
func (h *Handler) profilePeriods(w http.ResponseWriter, r *http.Request, profileID int64, rest string) {
	rest = strings.TrimPrefix(rest, "/")

	// POST .../periods
	if rest == "" {
		if r.Method != http.MethodPost {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var tp models.TimePeriod
		if err := json.NewDecoder(r.Body).Decode(&tp); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		tp.ProfileID = profileID
		if err := h.deps.Profiles.AddPeriod(r.Context(), &tp); err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusCreated, tp)
		return
	}

	seg, tail, _ := strings.Cut(rest, "/")
	periodID, err := strconv.ParseInt(seg, 10, 64)
	if err != nil || periodID <= 0 {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	// DELETE .../periods/{pid}
	case tail == "":
		if r.Method != http.MethodDelete {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := h.deps.Profiles.DeletePeriod(r.Context(), periodID); err != nil {
			storeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	// POST .../periods/{pid}/subscriptions
	case tail == "subscriptions" && r.Method == http.MethodPost:
		var req subscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AddressID <= 0 {
			jsonErr(w, http.StatusBadRequest, "address_id is required")
			return
		}
		id, err := h.deps.Profiles.Subscribe(r.Context(), periodID, req.AddressID)
		if err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusCreated, map[string]int64{"id": id})

	// DELETE .../periods/{pid}/subscriptions/{sid}
	case strings.HasPrefix(tail, "subscriptions/") && r.Method == http.MethodDelete:
		sid, err := strconv.ParseInt(strings.TrimPrefix(tail, "subscriptions/"), 10, 64)
		if err != nil || sid <= 0 {
			jsonErr(w, http.StatusNotFound, "not found")
			return
		}
		if err := h.deps.Profiles.Unsubscribe(r.Context(), sid); err != nil {
			storeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

// profileMatches handles .../matches and .../matches/{mid}.
func (h *Handler) profileMatches(w http.ResponseWriter, r *http.Request, profileID int64, rest string) {
	rest = strings.TrimPrefix(rest, "/")

	if rest == "" {
		if r.Method != http.MethodPost {
			jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var m models.FilterMatch
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		if err := h.deps.Profiles.AddMatch(r.Context(), profileID, &m); err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusCreated, m)
		return
	}

	matchID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || matchID <= 0 {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := h.deps.Profiles.DeleteMatch(r.Context(), matchID); err != nil {
		storeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// addresses handles GET (list, by ?account=) and POST on
// /api/v1/alertaddresses.
func (h *Handler) addresses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		account := r.URL.Query().Get("account")
		if account == "" {
			jsonErr(w, http.StatusBadRequest, "account is required")
			return
		}
		addrs, err := h.deps.Profiles.Addresses(r.Context(), account)
		if err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusOK, addrs)

	case http.MethodPost:
		var a models.AlertAddress
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			jsonErr(w, http.StatusBadRequest, "bad request body")
			return
		}
		if a.Account == "" || a.Type == "" || a.Address == "" {
			jsonErr(w, http.StatusBadRequest, "account, type and address are required")
			return
		}
		if err := h.deps.Profiles.SaveAddress(r.Context(), &a); err != nil {
			storeErr(w, err)
			return
		}
		jsonResp(w, http.StatusCreated, a)

	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// address handles DELETE /api/v1/alertaddresses/{id}.
func (h *Handler) address(w http.ResponseWriter, r *http.Request) {
	id, sub, ok := pathID(r.URL.Path, "/api/v1/alertaddresses/")
	if !ok || sub != "" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodDelete {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := h.deps.Profiles.DeleteAddress(r.Context(), id); err != nil {
		storeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
