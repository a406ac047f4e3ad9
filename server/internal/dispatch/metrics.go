package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "nav_notification_deliveries_total",
	Help: "Notification delivery attempts by address type and result.",
}, []string{"type", "result"})
