package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nav-nms/nav/pkg/db"
	"github.com/nav-nms/nav/pkg/models"
	"github.com/nav-nms/nav/poller/internal/arpcache"
	"github.com/nav-nms/nav/poller/internal/config"
	"github.com/nav-nms/nav/poller/internal/plugins"
	"github.com/nav-nms/nav/poller/internal/schedule"
	"github.com/nav-nms/nav/poller/internal/smi"
	"github.com/nav-nms/nav/pkg/snmp"
)

func main() {
	configPath := flag.String("config", "/etc/nav/ipdevpoll.conf", "path to ipdevpoll.conf")
	navConfPath := flag.String("nav-config", "/etc/nav/nav.conf", "path to nav.conf (database settings)")
	listenAddr := flag.String("listen", ":9321", "metrics listen address")
	redisAddr := flag.String("redis", "", "redis address for the ARP neighbor cache (empty = in-memory)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("ipdevpolld starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "plugins", cfg.Plugins, "jobs", len(cfg.Jobs))

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

	store := &pollStore{
		netboxes: db.NewNetboxRepo(conn),
		topology: db.NewTopologyRepo(conn),
		arpcam:   db.NewArpCamRepo(conn),
		events:   db.NewEventQueue(conn, dbCfg.DSN(), "ipdevpoll"),
	}

	registry := buildRegistry(cfg, *redisAddr)
	slog.Info("plugins registered", "names", registry.Names())

	snmpOpts := snmp.Options{
		Timeout:        cfg.SNMP.Timeout,
		Retries:        cfg.SNMP.Retries,
		MaxRepetitions: cfg.SNMP.MaxRepetitions,
	}
	runner := schedule.NewPluginRunner(registry, store, snmpOpts)

	// One scheduler per job descriptor, each with its own netbox loop.
	for _, job := range cfg.Jobs {
		s := schedule.NewJobScheduler(job, runner, store.netboxes)
		s.ReloadInterval = cfg.NetboxReload
		s.JobLogInterval = cfg.JobLogInterval
		go func(name string) {
			if err := s.Run(ctx); err != nil {
				slog.Error("job scheduler stopped", "job", name, "err", err)
			}
		}(job.Name)
		slog.Info("job scheduled", "job", job.Name,
			"interval", job.Interval, "intensity", job.Intensity, "plugins", job.Plugins)
	}

	// Hot reload only adjusts intervals on the next restart; a changed job
	// set requires a restart, which the log makes explicit.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config changed on disk, restart to apply job changes",
				"jobs", len(updated.Jobs))
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	go serveMetrics(ctx, *listenAddr)

	<-ctx.Done()
	slog.Info("ipdevpolld shutting down")
}

// buildRegistry registers every plugin named in [plugins], wired with its
// per-plugin options.
func buildRegistry(cfg *config.Config, redisAddr string) *plugins.Registry {
	var resolver *smi.Resolver
	if paths := splitList(cfg.PluginOption("mib", "paths", "")); len(paths) > 0 {
		resolver = smi.New(paths, splitList(cfg.PluginOption("mib", "modules", "")))
	}

	var kv arpcache.KV
	if redisAddr != "" {
		kv = arpcache.NewRedisKV(redis.NewClient(&redis.Options{Addr: redisAddr}))
		slog.Info("ARP cache using redis", "addr", redisAddr)
	} else {
		kv = arpcache.NewMemKV()
	}
	cache := arpcache.New(kv, time.Hour)

	registry := plugins.NewRegistry()
	for _, name := range cfg.Plugins {
		switch name {
		case "system":
			registry.Register(plugins.NewSystem(resolver))
		case "interfaces":
			registry.Register(plugins.NewInterfaces())
		case "prefix":
			registry.Register(plugins.NewPrefix(cfg.PluginOption("prefix", "ignored", "")))
		case "arp":
			registry.Register(plugins.NewArp(cache))
		default:
			slog.Warn("unknown plugin in [plugins], skipping", "plugin", name)
		}
	}
	return registry
}

// splitList parses a comma-separated option value, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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

// pollStore composes the repositories into the single surface the plugins
// write through.
type pollStore struct {
	netboxes *db.NetboxRepo
	topology *db.TopologyRepo
	arpcam   *db.ArpCamRepo
	events   *db.EventQueue
}

var _ plugins.Store = (*pollStore)(nil)

func (s *pollStore) SaveCollected(ctx context.Context, netboxID int64, sysname string, data map[string]string) error {
	return s.netboxes.SaveCollected(ctx, netboxID, sysname, data)
}

func (s *pollStore) TypeBySysObjectID(ctx context.Context, sysObjectID string) (*models.NetboxType, error) {
	return s.netboxes.TypeBySysObjectID(ctx, sysObjectID)
}

func (s *pollStore) SetType(ctx context.Context, netboxID int64, typeID *int64) error {
	return s.netboxes.SetType(ctx, netboxID, typeID)
}

func (s *pollStore) Interfaces(ctx context.Context, netboxID int64) ([]models.Interface, error) {
	return s.topology.Interfaces(ctx, netboxID)
}

func (s *pollStore) UpsertInterface(ctx context.Context, ifc *models.Interface) error {
	return s.topology.UpsertInterface(ctx, ifc)
}

func (s *pollStore) EnsureVlan(ctx context.Context, vlan int, netType string) (int64, error) {
	return s.topology.EnsureVlan(ctx, vlan, netType)
}

func (s *pollStore) UpsertPrefix(ctx context.Context, netAddress string, vlanID *int64, netType string) (int64, error) {
	return s.topology.UpsertPrefix(ctx, netAddress, vlanID, netType)
}

func (s *pollStore) SetGwPortPrefix(ctx context.Context, netboxID int64, ifindex int, prefixID int64, gwIP string) error {
	return s.topology.SetGwPortPrefix(ctx, netboxID, ifindex, prefixID, gwIP)
}

func (s *pollStore) SyncArp(ctx context.Context, netboxID int64, sysname string, sightings []db.ArpSighting, now time.Time) error {
	return s.arpcam.SyncArp(ctx, netboxID, sysname, sightings, now)
}

func (s *pollStore) PostEvent(ctx context.Context, ev *models.Event) error {
	return s.events.Post(ctx, ev)
}
