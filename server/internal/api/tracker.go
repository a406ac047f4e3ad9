package api

import (
	"net/http"
)

const trackerLimit = 500

// machinetracker answers GET /api/v1/machinetracker?ip=CIDR or ?mac=MAC:
// where has this address been seen, and when. An ip search returns ARP
// intervals; a mac search returns both ARP and CAM intervals.
func (h *Handler) machinetracker(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	ip, mac := q.Get("ip"), q.Get("mac")
	if (ip == "") == (mac == "") {
		jsonErr(w, http.StatusBadRequest, "exactly one of ip or mac is required")
		return
	}

	out := make([]TrackerResponse, 0)

	if ip != "" {
		arps, err := h.deps.Tracker.SearchArpByIP(r.Context(), ip, trackerLimit)
		if err != nil {
			storeErr(w, err)
			return
		}
		for i := range arps {
			a := &arps[i]
			out = append(out, TrackerResponse{
				Kind: "arp", Sysname: a.Sysname, IP: a.IP, Mac: a.Mac,
				StartTime: a.StartTime, EndTime: a.EndTime, Open: a.Open(),
			})
		}
		jsonResp(w, http.StatusOK, out)
		return
	}

	arps, err := h.deps.Tracker.SearchArpByMac(r.Context(), mac, trackerLimit)
	if err != nil {
		storeErr(w, err)
		return
	}
	for i := range arps {
		a := &arps[i]
		out = append(out, TrackerResponse{
			Kind: "arp", Sysname: a.Sysname, IP: a.IP, Mac: a.Mac,
			StartTime: a.StartTime, EndTime: a.EndTime, Open: a.Open(),
		})
	}

	cams, err := h.deps.Tracker.SearchCamByMac(r.Context(), mac, trackerLimit)
	if err != nil {
		storeErr(w, err)
		return
	}
	for i := range cams {
		c := &cams[i]
		out = append(out, TrackerResponse{
			Kind: "cam", Sysname: c.Sysname, Mac: c.Mac, Port: c.Port,
			StartTime: c.StartTime, EndTime: c.EndTime, Open: c.Open(),
		})
	}
	jsonResp(w, http.StatusOK, out)
}
