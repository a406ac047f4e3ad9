package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/poller/internal/config"
)

// fakeRunner counts concurrent and total runs, optionally blocking until
// released so tests can hold jobs "running".
type fakeRunner struct {
	mu         sync.Mutex
	running    int
	maxRunning int
	total      int
	block      chan struct{} // nil = return immediately
	err        error
}

func (f *fakeRunner) RunJob(ctx context.Context, job config.Job, netbox *models.Netbox) error {
	f.mu.Lock()
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	f.total++
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
		}
	}

	f.mu.Lock()
	f.running--
	f.mu.Unlock()
	return f.err
}

func (f *fakeRunner) stats() (maxRunning, total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRunning, f.total
}

type fakeLoader struct {
	mu    sync.Mutex
	boxes []*models.Netbox
}

func (f *fakeLoader) LoadEnabled(ctx context.Context) ([]*models.Netbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boxes, nil
}

func (f *fakeLoader) set(boxes []*models.Netbox) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boxes = boxes
}

func box(id int64, sysname string) *models.Netbox {
	return &models.Netbox{ID: id, IP: sysname, Sysname: sysname}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRunsNeverOverlapPerNetbox(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	loader := &fakeLoader{boxes: []*models.Netbox{box(1, "gw")}}

	s := NewJobScheduler(config.Job{Name: "inventory", Interval: time.Millisecond, Plugins: []string{"system"}}, runner, loader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	// The first run starts and blocks. Even though the interval is tiny,
	// no second run may start while it holds.
	waitFor(t, "first run", func() bool { _, total := runner.stats(); return total == 1 })
	time.Sleep(20 * time.Millisecond)
	if _, total := runner.stats(); total != 1 {
		t.Fatalf("total = %d while first run still active, want 1", total)
	}

	close(runner.block)
	waitFor(t, "second run", func() bool { _, total := runner.stats(); return total >= 2 })
	cancel()
	<-done
}

func TestIntensityCapsConcurrency(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	loader := &fakeLoader{boxes: []*models.Netbox{
		box(1, "a"), box(2, "b"), box(3, "c"), box(4, "d"),
	}}

	s := NewJobScheduler(config.Job{Name: "inventory", Interval: time.Hour, Intensity: 2, Plugins: []string{"system"}}, runner, loader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() { s.Run(ctx); close(done) }()

	waitFor(t, "two concurrent runs", func() bool {
		running, _ := runner.stats()
		return running == 2
	})
	time.Sleep(20 * time.Millisecond)
	if maxRunning, _ := runner.stats(); maxRunning > 2 {
		t.Fatalf("maxRunning = %d, want <= 2", maxRunning)
	}

	// Freeing the blockage drains the queue; every box eventually runs.
	close(runner.block)
	waitFor(t, "all four runs", func() bool { _, total := runner.stats(); return total >= 4 })
	if maxRunning, _ := runner.stats(); maxRunning > 2 {
		t.Errorf("maxRunning = %d, want <= 2", maxRunning)
	}
	cancel()
	<-done
}

func TestNextDelay(t *testing.T) {
	s := NewJobScheduler(config.Job{Name: "x", Interval: time.Minute, Plugins: []string{"p"}}, &fakeRunner{}, &fakeLoader{})
	s.randfunc = func(min, max time.Duration) time.Duration { return min }
	sched := &netboxScheduler{parent: s}

	tests := []struct {
		name    string
		runtime time.Duration
		err     error
		want    time.Duration
	}{
		{"fast success waits the remaining interval", 10 * time.Second, nil, 50 * time.Second},
		{"slow success reschedules immediately", 2 * time.Minute, nil, 0},
		{"failure backs off", time.Second, errors.New("boom"), failureDelayMin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sched.nextDelay(tt.runtime, tt.err); got != tt.want {
				t.Errorf("nextDelay(%v, %v) = %v, want %v", tt.runtime, tt.err, got, tt.want)
			}
		})
	}
}

func TestReloadCancelsRemovedAndReschedulesChanged(t *testing.T) {
	runner := &fakeRunner{}
	loader := &fakeLoader{boxes: []*models.Netbox{box(1, "a"), box(2, "b")}}

	s := NewJobScheduler(config.Job{Name: "inventory", Interval: time.Hour, Plugins: []string{"system"}}, runner, loader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(s.active) != 2 {
		t.Fatalf("active = %d, want 2", len(s.active))
	}

	// Box 2 disappears, box 1 changes address, box 3 is new.
	changed := box(1, "a")
	changed.IP = "192.0.2.99"
	loader.set([]*models.Netbox{changed, box(3, "c")})

	if err := s.reload(ctx); err != nil {
		t.Fatalf("second reload: %v", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.active) != 2 {
		t.Fatalf("active = %d, want 2", len(s.active))
	}
	if _, ok := s.active[2]; ok {
		t.Errorf("removed box still scheduled")
	}
	if _, ok := s.active[3]; !ok {
		t.Errorf("new box not scheduled")
	}
	if s.prints[1] != fingerprint(changed) {
		t.Errorf("changed box kept stale fingerprint")
	}
}

func TestCancelNetboxStopsFutureRuns(t *testing.T) {
	runner := &fakeRunner{}
	loader := &fakeLoader{boxes: []*models.Netbox{box(1, "a")}}

	s := NewJobScheduler(config.Job{Name: "inventory", Interval: time.Millisecond, Plugins: []string{"system"}}, runner, loader)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	waitFor(t, "first run", func() bool { _, total := runner.stats(); return total >= 1 })

	s.CancelNetbox(1)
	time.Sleep(10 * time.Millisecond)
	_, before := runner.stats()
	time.Sleep(20 * time.Millisecond)
	if _, after := runner.stats(); after != before {
		t.Errorf("runs continued after cancel: %d -> %d", before, after)
	}
}

func TestLimiterFIFO(t *testing.T) {
	l := newLimiter(1)
	ctx := context.Background()

	if !l.acquire(ctx) {
		t.Fatal("first acquire failed")
	}

	order := make(chan int, 2)
	ready := make(chan struct{}, 2)
	for i := 1; i <= 2; i++ {
		i := i
		go func() {
			ready <- struct{}{}
			l.acquire(ctx)
			order <- i
		}()
		<-ready
		time.Sleep(5 * time.Millisecond) // let the waiter enqueue
	}

	l.release()
	first := <-order
	l.release()
	second := <-order
	if first != 1 || second != 2 {
		t.Errorf("wakeup order = %d, %d; want 1, 2", first, second)
	}
	l.release()
}

func TestLimiterAcquireAbortsOnCancel(t *testing.T) {
	l := newLimiter(1)
	if !l.acquire(context.Background()) {
		t.Fatal("first acquire failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool)
	go func() { done <- l.acquire(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()
	if got := <-done; got {
		t.Error("acquire succeeded after cancel")
	}

	// The slot is still usable by others.
	l.release()
	if !l.acquire(context.Background()) {
		t.Error("slot lost after cancelled waiter")
	}
}
