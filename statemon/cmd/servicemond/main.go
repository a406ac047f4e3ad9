package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/statemon/internal/checker"
	"github.com/nav-nms/nav/statemon/internal/runner"
)

func main() {
	navConfPath := flag.String("nav-config", "/etc/nav/nav.conf", "path to nav.conf (database settings)")
	interval := flag.Duration("interval", runner.DefaultInterval, "time between check rounds")
	workers := flag.Int("workers", runner.DefaultWorkers, "concurrent checks")
	listenAddr := flag.String("listen", ":9322", "metrics listen address")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("servicemond starting", "interval", *interval, "workers", *workers)

	dbCfg, err := db.ConfigFromFile(*navConfPath)
	if err != nil {
		slog.Error("failed to load database config", "err", err)
		os.Exit(1)
	}
	conn, err := db.Open(dbCfg)
	if err != nil {
		slog.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := checker.NewRegistry()
	registry.Register(checker.NewPort())
	registry.Register(checker.NewHTTP())
	registry.Register(checker.NewSSH())
	slog.Info("checkers registered", "types", registry.Types())

	store := &monitorStore{
		services: db.NewServiceRepo(conn),
		netboxes: db.NewNetboxRepo(conn),
		events:   db.NewEventQueue(conn, dbCfg.DSN(), "serviceping"),
	}

	r := runner.New(registry, store)
	r.Interval = *interval
	r.Workers = *workers

	go serveMetrics(ctx, *listenAddr)

	if err := r.Run(ctx); err != nil {
		slog.Error("runner stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("servicemond shutting down")
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("metrics server stopped", "err", err)
	}
}

// monitorStore composes the repositories into the runner's Store.
type monitorStore struct {
	services *db.ServiceRepo
	netboxes *db.NetboxRepo
	events   *db.EventQueue
}

var _ runner.Store = (*monitorStore)(nil)

func (s *monitorStore) Active(ctx context.Context) ([]*models.Service, error) {
	return s.services.Active(ctx)
}

func (s *monitorStore) Netbox(ctx context.Context, id int64) (*models.Netbox, error) {
	return s.netboxes.Get(ctx, id)
}

func (s *monitorStore) RecordResult(ctx context.Context, id int64, up string, responseTime float64, at time.Time) error {
	return s.services.RecordResult(ctx, id, up, responseTime, at)
}

func (s *monitorStore) SetVersion(ctx context.Context, id int64, version string) error {
	return s.services.SetVersion(ctx, id, version)
}

func (s *monitorStore) PostEvent(ctx context.Context, ev *models.Event) error {
	return s.events.Post(ctx, ev)
}
