package api

import (
	"fmt"
	"net/http"

	"github.com/nav-nms/nav/server/internal/status"
)

// DiagnosticHint is one human-readable insight about the state of the
// network, derived from the status summary. Ordered critical first.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number behind the hint, e.g. a count.
	Value *float64 `json:"value,omitempty"`
}

// diagnostics returns GET /api/v1/diagnostics.
func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s, err := h.deps.Status.Summary(r.Context())
	if err != nil {
		jsonErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, computeDiagnostics(s))
}

func count(n int) *float64 {
	v := float64(n)
	return &v
}

// computeDiagnostics derives hints from a summary: what is down, what is in
// shadow, how much of it is planned.
func computeDiagnostics(s *status.Summary) []DiagnosticHint {
	var hints []DiagnosticHint

	if s.Boxes == 0 {
		return []DiagnosticHint{{
			Key:    "no_netboxes",
			Level:  "info",
			Title:  "Nothing monitored",
			Detail: "No netboxes are registered. Add devices before expecting any status.",
		}}
	}

	if s.Down > 0 {
		level := "warning"
		if s.Down*10 >= s.Boxes {
			level = "critical"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "boxes_down",
			Level: level,
			Title: "Devices down",
			Detail: fmt.Sprintf(
				"%d of %d monitored devices are down. Check the open alerts for which ones and since when.",
				s.Down, s.Boxes),
			Value: count(s.Down),
		})
	}

	if s.Shadow > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "boxes_shadow",
			Level: "warning",
			Title: "Devices in shadow",
			Detail: fmt.Sprintf(
				"%d devices are unreachable because something between them and the monitor is down. "+
					"Fix the device behind them first.", s.Shadow),
			Value: count(s.Shadow),
		})
	}

	if s.Maintenance > 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "maintenance_active",
			Level: "info",
			Title: "Maintenance ongoing",
			Detail: fmt.Sprintf(
				"%d maintenance windows are active. Alerts for covered devices are being suppressed.",
				s.Maintenance),
			Value: count(s.Maintenance),
		})
	}

	if s.OpenAlerts > 0 && s.Down == 0 && s.Shadow == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "open_alerts",
			Level: "warning",
			Title: "Open alerts",
			Detail: fmt.Sprintf(
				"%d alerts are open while no devices are down, so they concern services, links or modules.",
				s.OpenAlerts),
			Value: count(s.OpenAlerts),
		})
	}

	if len(hints) == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "all_clear",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("All %d monitored devices are up and no alerts are open.", s.Boxes),
		})
	}
	return hints
}
