package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// Defaults for the server configuration.
const (
	DefaultHTTPPort         = 8080
	DefaultWSInterval       = 5 * time.Second
	DefaultQueuePoll        = 30 * time.Second
	DefaultMaintenanceCheck = time.Minute
)

// Config holds the navd settings read from nav.conf. The [database] section
// of the same file is parsed separately by the db package.
type Config struct {
	HTTP        HTTPConfig
	EventEngine EventEngineConfig
	Export      ExportConfig
	Alerts      AlertsConfig
}

// HTTPConfig comes from [httpd].
type HTTPConfig struct {
	// Port serves the JSON API and the WebSocket hub.
	Port int

	// APIKey, when set, is required in the X-API-Key header on every
	// /api/ request.
	APIKey string

	// WSInterval is how often the WebSocket hub broadcasts the status
	// summary.
	WSInterval time.Duration
}

// EventEngineConfig comes from [eventengine].
type EventEngineConfig struct {
	// QueuePoll is the fallback drain interval for the event queue when
	// a NOTIFY is lost.
	QueuePoll time.Duration

	// MaintenanceCheck is how often scheduled maintenance windows are
	// checked for transitions.
	MaintenanceCheck time.Duration
}

// ExportConfig comes from [export]: alerts are mirrored to an AMQP queue for
// external consumers when enabled.
type ExportConfig struct {
	Enabled bool
	URL     string
	Queue   string
}

// AlertsConfig comes from [alerts]: built-in delivery targets that receive
// every notification regardless of profiles.
type AlertsConfig struct {
	SlackURL   string
	WebhookURL string
}

// Load reads nav.conf. Missing keys fall back to defaults.
func Load(path string) (*Config, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("server config: load %s: %w", path, err)
	}
	return parse(file)
}

// LoadBytes parses an in-memory nav.conf, for tests.
func LoadBytes(data []byte) (*Config, error) {
	file, err := ini.Load(data)
	if err != nil {
		return nil, fmt.Errorf("server config: parse: %w", err)
	}
	return parse(file)
}

func parse(file *ini.File) (*Config, error) {
	httpd := file.Section("httpd")
	engine := file.Section("eventengine")
	export := file.Section("export")
	alerts := file.Section("alerts")

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:       httpd.Key("port").MustInt(DefaultHTTPPort),
			APIKey:     httpd.Key("api_key").String(),
			WSInterval: httpd.Key("ws_interval").MustDuration(DefaultWSInterval),
		},
		EventEngine: EventEngineConfig{
			QueuePoll:        engine.Key("queue_poll").MustDuration(DefaultQueuePoll),
			MaintenanceCheck: engine.Key("maintenance_check").MustDuration(DefaultMaintenanceCheck),
		},
		Export: ExportConfig{
			Enabled: export.Key("enabled").MustBool(false),
			URL:     export.Key("url").String(),
			Queue:   export.Key("queue").MustString("nav.alerts"),
		},
		Alerts: AlertsConfig{
			SlackURL:   alerts.Key("slack_url").String(),
			WebhookURL: alerts.Key("webhook_url").String(),
		},
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("[httpd] port %d is out of range [1, 65535]", cfg.HTTP.Port)
	}
	if cfg.HTTP.WSInterval <= 0 {
		return fmt.Errorf("[httpd] ws_interval must be positive")
	}
	if cfg.EventEngine.QueuePoll <= 0 {
		return fmt.Errorf("[eventengine] queue_poll must be positive")
	}
	if cfg.EventEngine.MaintenanceCheck <= 0 {
		return fmt.Errorf("[eventengine] maintenance_check must be positive")
	}
	if cfg.Export.Enabled && cfg.Export.URL == "" {
		return fmt.Errorf("[export] url is required when export is enabled")
	}
	return nil
}
