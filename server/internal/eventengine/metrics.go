package eventengine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nav_engine_events_total",
		Help: "Events consumed from the queue by type and state.",
	}, []string{"eventtype", "state"})

	suppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nav_engine_notifications_suppressed_total",
		Help: "Notifications dropped because the netbox was on maintenance.",
	})
)
