package runner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "servicemon_checks_total",
		Help: "Completed service checks by handler and result.",
	}, []string{"handler", "result"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "servicemon_state_transitions_total",
		Help: "Accepted service state transitions by handler.",
	}, []string{"handler"})
)
