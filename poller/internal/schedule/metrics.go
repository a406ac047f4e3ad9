package schedule

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ipdevpoll_job_runs_total",
		Help: "Completed job runs by job name and result.",
	}, []string{"job", "result"})

	activeJobs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ipdevpoll_active_jobs",
		Help: "Job runs currently executing, by job name.",
	}, []string{"job"})
)
