// Package schedule runs polling jobs against netboxes: one JobScheduler per
// configured job, one goroutine per (job, netbox) pair. Runs of the same
// job+netbox never overlap, concurrency per job is capped by its intensity,
// and the netbox set is reloaded periodically from the database.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/poller/internal/config"
)

// Failed runs are retried at a random delay in this window, so one broken
// box does not hammer itself in lockstep.
const (
	failureDelayMin = 5 * time.Minute
	failureDelayMax = 10 * time.Minute
)

// Runner executes one run of a job against one netbox.
type Runner interface {
	RunJob(ctx context.Context, job config.Job, netbox *models.Netbox) error
}

// Loader supplies the current netbox set.
type Loader interface {
	LoadEnabled(ctx context.Context) ([]*models.Netbox, error)
}

// JobScheduler schedules one job descriptor across the whole netbox set.
type JobScheduler struct {
	job     config.Job
	runner  Runner
	loader  Loader
	limiter *limiter

	// ReloadInterval and JobLogInterval come from [ipdevpoll].
	ReloadInterval time.Duration
	JobLogInterval time.Duration

	now      func() time.Time
	randfunc func(min, max time.Duration) time.Duration

	mu     sync.Mutex
	active map[int64]*netboxScheduler
	prints map[int64]string
	wg     sync.WaitGroup
}

// NewJobScheduler builds a scheduler for one job.
func NewJobScheduler(job config.Job, runner Runner, loader Loader) *JobScheduler {
	return &JobScheduler{
		job:            job,
		runner:         runner,
		loader:         loader,
		limiter:        newLimiter(job.Intensity),
		ReloadInterval: config.DefaultNetboxReload,
		JobLogInterval: config.DefaultJobLogInterval,
		now:            time.Now,
		randfunc:       randomDelay,
		active:         make(map[int64]*netboxScheduler),
		prints:         make(map[int64]string),
	}
}

func randomDelay(min, max time.Duration) time.Duration {
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// Run schedules the job until ctx is cancelled, reloading the netbox set on
// every tick and logging active runs periodically.
func (s *JobScheduler) Run(ctx context.Context) error {
	if err := s.reload(ctx); err != nil {
		return fmt.Errorf("schedule %s: initial load: %w", s.job.Name, err)
	}

	reload := time.NewTicker(s.ReloadInterval)
	defer reload.Stop()
	joblog := time.NewTicker(s.JobLogInterval)
	defer joblog.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		case <-reload.C:
			if err := s.reload(ctx); err != nil {
				slog.Error("netbox reload failed", "job", s.job.Name, "err", err)
			}
		case <-joblog.C:
			s.logActiveJobs()
		}
	}
}

// reload re-reads the netbox set and reconciles schedules: new boxes are
// added, removed boxes cancelled, changed boxes cancelled and re-added so
// they pick up their new attributes.
func (s *JobScheduler) reload(ctx context.Context) error {
	boxes, err := s.loader.LoadEnabled(ctx)
	if err != nil {
		return err
	}

	current := make(map[int64]*models.Netbox, len(boxes))
	for _, n := range boxes {
		current[n.ID] = n
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var added, removed, changed int
	for id, sched := range s.active {
		n, ok := current[id]
		if ok && s.prints[id] == fingerprint(n) {
			continue
		}
		sched.cancel()
		delete(s.active, id)
		delete(s.prints, id)
		if ok {
			changed++
		} else {
			removed++
		}
	}
	for id, n := range current {
		if _, ok := s.active[id]; ok {
			continue
		}
		s.add(ctx, n)
		added++
	}

	if added+removed+changed > 0 {
		slog.Info("netbox set reloaded", "job", s.job.Name,
			"total", len(current), "new", added, "removed", removed, "changed", changed)
	}
	return nil
}

// add starts a netbox scheduler. Caller holds s.mu.
func (s *JobScheduler) add(ctx context.Context, n *models.Netbox) {
	runCtx, cancel := context.WithCancel(ctx)
	sched := &netboxScheduler{
		parent: s,
		netbox: n,
		stop:   cancel,
	}
	s.active[n.ID] = sched
	s.prints[n.ID] = fingerprint(n)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sched.loop(runCtx)
	}()
}

// CancelNetbox drops a netbox from this job's schedule, e.g. after a type
// change invalidated its collected data.
func (s *JobScheduler) CancelNetbox(netboxID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sched, ok := s.active[netboxID]; ok {
		sched.cancel()
		delete(s.active, netboxID)
		delete(s.prints, netboxID)
	}
}

// logActiveJobs logs the currently running jobs sorted by descending
// runtime, so stuck boxes surface at the top.
func (s *JobScheduler) logActiveJobs() {
	type runningJob struct {
		sysname string
		runtime time.Duration
	}
	s.mu.Lock()
	var jobs []runningJob
	for _, sched := range s.active {
		if since, running := sched.runningSince(); running {
			jobs = append(jobs, runningJob{
				sysname: sched.netbox.Sysname,
				runtime: s.now().Sub(since),
			})
		}
	}
	s.mu.Unlock()

	if len(jobs) == 0 {
		slog.Debug("no active jobs", "job", s.job.Name)
		return
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].runtime > jobs[j].runtime })

	lines := make([]string, 0, len(jobs))
	for _, j := range jobs {
		lines = append(lines, fmt.Sprintf("%s %s", j.sysname, j.runtime.Round(time.Second)))
	}
	slog.Info("currently active jobs", "job", s.job.Name,
		"count", len(jobs), "jobs", strings.Join(lines, ", "))
}

// fingerprint captures the netbox attributes whose change requires a
// reschedule.
func fingerprint(n *models.Netbox) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s|%s", n.IP, n.Sysname, n.CategoryID, n.RoomID)
	for _, p := range n.Profiles {
		fmt.Fprintf(&b, "|%d:%s:%d", p.ID, p.Protocol, p.Version)
	}
	return b.String()
}

// netboxScheduler runs one job against one netbox, rescheduling itself
// after every run.
type netboxScheduler struct {
	parent *JobScheduler
	netbox *models.Netbox
	stop   context.CancelFunc

	mu        sync.Mutex
	startedAt time.Time
	running   bool
}

func (s *netboxScheduler) cancel() {
	s.stop()
}

func (s *netboxScheduler) runningSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt, s.running
}

// loop runs the job, then sleeps until the next scheduled run. The first run
// starts immediately. Because the next run is only scheduled after the
// current one finishes, runs of the same job+netbox never overlap.
func (s *netboxScheduler) loop(ctx context.Context) {
	job := s.parent.job
	delay := time.Duration(0)

	for {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !s.parent.limiter.acquire(ctx) {
			return
		}

		start := s.parent.now()
		s.mu.Lock()
		s.startedAt = start
		s.running = true
		s.mu.Unlock()
		activeJobs.WithLabelValues(job.Name).Inc()

		err := s.parent.runner.RunJob(ctx, job, s.netbox)

		activeJobs.WithLabelValues(job.Name).Dec()
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.parent.limiter.release()

		runtime := s.parent.now().Sub(start)
		delay = s.nextDelay(runtime, err)

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("job failed", "job", job.Name, "netbox", s.netbox.Sysname,
				"runtime", runtime.Round(time.Millisecond),
				"next_run_in", delay.Round(time.Second), "err", err)
			jobRuns.WithLabelValues(job.Name, "failure").Inc()
		} else {
			slog.Info("job completed", "job", job.Name, "netbox", s.netbox.Sysname,
				"runtime", runtime.Round(time.Millisecond),
				"next_run_in", delay.Round(time.Second))
			jobRuns.WithLabelValues(job.Name, "success").Inc()
		}
	}
}

// nextDelay picks the wait before the next run: interval minus the time the
// run took on success (floor zero), a randomized backoff on failure.
func (s *netboxScheduler) nextDelay(runtime time.Duration, err error) time.Duration {
	if err != nil {
		return s.parent.randfunc(failureDelayMin, failureDelayMax)
	}
	delay := s.parent.job.Interval - runtime
	if delay < 0 {
		delay = 0
	}
	return delay
}
