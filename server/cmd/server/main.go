package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/pkg/snmp"
	"github.com/nav-nms/nav/server/internal/api"
	"github.com/nav-nms/nav/server/internal/auth"
	"github.com/nav-nms/nav/server/internal/config"
	"github.com/nav-nms/nav/server/internal/dispatch"
	"github.com/nav-nms/nav/server/internal/eventengine"
	"github.com/nav-nms/nav/server/internal/status"
	"github.com/nav-nms/nav/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "/etc/nav/nav.conf", "path to nav.conf")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("navd starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"http_port", cfg.HTTP.Port,
		"auth", cfg.HTTP.APIKey != "",
		"export", cfg.Export.Enabled,
	)

	dbCfg, err := db.ConfigFromFile(*configPath)
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

	queue := db.NewEventQueue(conn, dbCfg.DSN(), "eventEngine")
	queue.PollInterval = cfg.EventEngine.QueuePoll

	repos := &repoSet{
		netboxes:    db.NewNetboxRepo(conn),
		inventory:   db.NewInventoryRepo(conn),
		arpcam:      db.NewArpCamRepo(conn),
		alerts:      db.NewAlertHistRepo(conn),
		maintenance: db.NewMaintenanceRepo(conn),
		profiles:    db.NewProfileRepo(conn),
		events:      queue,
	}

	// Event engine: queue consumer feeding history, state and notifications.
	set := buildDispatchers(cfg)
	engine := eventengine.New(repos, set, builtins(cfg))
	engine.MaintenanceCheck = cfg.EventEngine.MaintenanceCheck
	go func() {
		if err := engine.Run(ctx, queue); err != nil {
			slog.Error("event engine stopped", "err", err)
			cancel()
		}
	}()

	// Status collector shared by the API and the WebSocket hub.
	collector := status.New(repos, cfg.HTTP.WSInterval)

	hub := ws.New(collector, cfg.HTTP.WSInterval)
	go hub.Run(ctx)

	handler := api.New(api.Deps{
		Netboxes:    repos.netboxes,
		Inventory:   repos.inventory,
		Tracker:     repos.arpcam,
		History:     repos.alerts,
		Maintenance: repos.maintenance,
		Profiles:    repos.profiles,
		Status:      collector,
		Events:      queue,
		SnmpCheck: api.NewSnmpChecker(repos.netboxes, snmp.Options{
			Timeout:        2 * time.Second,
			Retries:        2,
			MaxRepetitions: 10,
		}),
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", auth.APIKey(cfg.HTTP.APIKey, handler))
	mux.Handle("/ws/status", hub)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: mux,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("navd shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
}

// buildDispatchers wires one dispatcher per supported address type. The AMQP
// export is only connected when [export] enables it.
func buildDispatchers(cfg *config.Config) *dispatch.Set {
	dispatchers := []dispatch.Dispatcher{
		dispatch.NewLog(),
		dispatch.NewSlack(),
		dispatch.NewWebhook(),
	}
	if cfg.Export.Enabled {
		dispatchers = append(dispatchers, dispatch.NewAMQP(cfg.Export.URL, cfg.Export.Queue))
	}
	return dispatch.NewSet(dispatchers...)
}

// builtins turns the [alerts] section into always-on delivery targets.
func builtins(cfg *config.Config) []eventengine.Builtin {
	var b []eventengine.Builtin
	if cfg.Alerts.SlackURL != "" {
		b = append(b, eventengine.Builtin{Type: "slack", Address: cfg.Alerts.SlackURL})
	}
	if cfg.Alerts.WebhookURL != "" {
		b = append(b, eventengine.Builtin{Type: "http", Address: cfg.Alerts.WebhookURL})
	}
	if cfg.Export.Enabled {
		b = append(b, eventengine.Builtin{Type: "amqp", Address: cfg.Export.Queue})
	}
	return b
}

// repoSet composes the repositories into the surfaces the engine and the
// status collector consume.
type repoSet struct {
	netboxes    *db.NetboxRepo
	inventory   *db.InventoryRepo
	arpcam      *db.ArpCamRepo
	alerts      *db.AlertHistRepo
	maintenance *db.MaintenanceRepo
	profiles    *db.ProfileRepo
	events      *db.EventQueue
}

var (
	_ eventengine.Store = (*repoSet)(nil)
	_ status.Source     = (*repoSet)(nil)
)

func (s *repoSet) Netbox(ctx context.Context, id int64) (*models.Netbox, error) {
	return s.netboxes.Get(ctx, id)
}

func (s *repoSet) List(ctx context.Context) ([]*models.Netbox, error) {
	return s.netboxes.List(ctx)
}

func (s *repoSet) Groups(ctx context.Context, netboxID int64) ([]string, error) {
	return s.netboxes.Groups(ctx, netboxID)
}

func (s *repoSet) SetUpState(ctx context.Context, id int64, up string, at time.Time) error {
	return s.netboxes.SetUpState(ctx, id, up, at)
}

func (s *repoSet) OpenAlert(ctx context.Context, a *models.AlertHistory) (int64, bool, error) {
	return s.alerts.Open(ctx, a)
}

func (s *repoSet) ResolveAlert(ctx context.Context, netboxID int64, eventType, subID string, at time.Time) (bool, error) {
	return s.alerts.Resolve(ctx, netboxID, eventType, subID, at)
}

func (s *repoSet) OpenAlerts(ctx context.Context) ([]models.AlertHistory, error) {
	return s.alerts.OpenAlerts(ctx)
}

func (s *repoSet) ActiveProfiles(ctx context.Context) ([]models.AlertProfile, error) {
	return s.profiles.ActiveProfiles(ctx)
}

func (s *repoSet) Address(ctx context.Context, id int64) (*models.AlertAddress, error) {
	return s.profiles.Address(ctx, id)
}

func (s *repoSet) ActiveTasks(ctx context.Context, at time.Time) ([]models.MaintenanceTask, error) {
	return s.maintenance.ActiveTasks(ctx, at)
}

func (s *repoSet) TransitionDue(ctx context.Context, at time.Time) (started, ended []models.MaintenanceTask, err error) {
	return s.maintenance.TransitionDue(ctx, at)
}

func (s *repoSet) PostEvent(ctx context.Context, ev models.Event) error {
	return s.events.Post(ctx, &ev)
}
