// Package config loads and watches the ipdevpolld configuration file.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/ini.v1"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultNetboxReload   = 2 * time.Minute
	DefaultJobLogInterval = 5 * time.Minute
	DefaultSNMPTimeout    = 3 * time.Second
	DefaultSNMPRetries    = 1
	DefaultMaxRepetitions = 10
)

// Config is the parsed form of ipdevpoll.conf.
type Config struct {
	// NetboxReload is how often the netbox set is re-read from the
	// database ([ipdevpoll] netbox_reload_interval).
	NetboxReload time.Duration

	// JobLogInterval is how often the scheduler logs its active jobs
	// ([ipdevpoll] joblog_interval).
	JobLogInterval time.Duration

	SNMP SNMPDefaults

	// Plugins lists the plugin names enabled in the [plugins] section,
	// in file order.
	Plugins []string

	// Jobs holds one descriptor per [job_*] section, keyed by job name.
	Jobs map[string]Job

	// PluginOptions holds the raw key/value pairs of per-plugin sections,
	// e.g. the prefix plugin's ignore list.
	PluginOptions map[string]map[string]string
}

// SNMPDefaults come from the [snmp] section and apply to every session.
type SNMPDefaults struct {
	Timeout        time.Duration
	Retries        int
	MaxRepetitions int
}

// Job describes one polling job: which plugins run, how often, and how many
// netboxes may run it at once.
type Job struct {
	Name        string
	Description string

	// Interval is the time between runs against the same netbox.
	Interval time.Duration

	// Intensity caps how many netboxes may run this job concurrently.
	// Zero means unlimited.
	Intensity int

	// Plugins is the ordered list of plugin names the job executes.
	Plugins []string
}

// PluginOption returns one option of a per-plugin section, or fallback when
// the section or key is absent.
func (c *Config) PluginOption(plugin, key, fallback string) string {
	if opts, ok := c.PluginOptions[plugin]; ok {
		if v, ok := opts[key]; ok {
			return v
		}
	}
	return fallback
}

// Bare keys are allowed so plugin lists can be written one name per line.
var iniOpts = ini.LoadOptions{AllowBooleanKeys: true}

// Load reads and parses the INI config file at path. Missing optional fields
// are filled with defaults.
func Load(path string) (*Config, error) {
	file, err := ini.LoadSources(iniOpts, path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return parse(file)
}

// LoadBytes parses config from memory, for tests.
func LoadBytes(data []byte) (*Config, error) {
	file, err := ini.LoadSources(iniOpts, data)
	if err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	return parse(file)
}

func parse(file *ini.File) (*Config, error) {
	cfg := &Config{
		NetboxReload:   DefaultNetboxReload,
		JobLogInterval: DefaultJobLogInterval,
		SNMP: SNMPDefaults{
			Timeout:        DefaultSNMPTimeout,
			Retries:        DefaultSNMPRetries,
			MaxRepetitions: DefaultMaxRepetitions,
		},
		Jobs:          make(map[string]Job),
		PluginOptions: make(map[string]map[string]string),
	}

	core := file.Section("ipdevpoll")
	if core.HasKey("netbox_reload_interval") {
		cfg.NetboxReload = core.Key("netbox_reload_interval").MustDuration(DefaultNetboxReload)
	}
	if core.HasKey("joblog_interval") {
		cfg.JobLogInterval = core.Key("joblog_interval").MustDuration(DefaultJobLogInterval)
	}

	snmp := file.Section("snmp")
	if snmp.HasKey("timeout") {
		cfg.SNMP.Timeout = snmp.Key("timeout").MustDuration(DefaultSNMPTimeout)
	}
	if snmp.HasKey("retries") {
		cfg.SNMP.Retries = snmp.Key("retries").MustInt(DefaultSNMPRetries)
	}
	if snmp.HasKey("max-repetitions") {
		cfg.SNMP.MaxRepetitions = snmp.Key("max-repetitions").MustInt(DefaultMaxRepetitions)
	}

	for _, key := range file.Section("plugins").Keys() {
		cfg.Plugins = append(cfg.Plugins, key.Name())
	}

	for _, section := range file.Sections() {
		name := section.Name()
		switch {
		case strings.HasPrefix(name, "job_"):
			job, err := parseJob(strings.TrimPrefix(name, "job_"), section)
			if err != nil {
				return nil, err
			}
			cfg.Jobs[job.Name] = job
		case isPluginSection(name, cfg.Plugins):
			opts := make(map[string]string)
			for _, key := range section.Keys() {
				opts[key.Name()] = key.Value()
			}
			cfg.PluginOptions[name] = opts
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func parseJob(name string, section *ini.Section) (Job, error) {
	job := Job{
		Name:        name,
		Description: section.Key("description").String(),
		Intensity:   section.Key("intensity").MustInt(0),
	}
	if !section.HasKey("interval") {
		return job, fmt.Errorf("job_%s: interval is required", name)
	}
	job.Interval = section.Key("interval").MustDuration(0)
	job.Plugins = strings.Fields(section.Key("plugins").String())
	return job, nil
}

func isPluginSection(name string, plugins []string) bool {
	for _, p := range plugins {
		if p == name {
			return true
		}
	}
	return false
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.NetboxReload <= 0 {
		return fmt.Errorf("ipdevpoll.netbox_reload_interval must be positive")
	}
	if cfg.SNMP.Timeout <= 0 {
		return fmt.Errorf("snmp.timeout must be positive")
	}
	if cfg.SNMP.MaxRepetitions <= 0 {
		return fmt.Errorf("snmp.max-repetitions must be positive")
	}
	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("at least one [job_*] section is required")
	}

	enabled := make(map[string]bool, len(cfg.Plugins))
	for _, p := range cfg.Plugins {
		enabled[p] = true
	}
	names := make([]string, 0, len(cfg.Jobs))
	for name := range cfg.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		job := cfg.Jobs[name]
		if job.Interval <= 0 {
			return fmt.Errorf("job_%s: interval must be positive", name)
		}
		if job.Intensity < 0 {
			return fmt.Errorf("job_%s: intensity must not be negative", name)
		}
		if len(job.Plugins) == 0 {
			return fmt.Errorf("job_%s: plugins is required", name)
		}
		for _, p := range job.Plugins {
			if !enabled[p] {
				return fmt.Errorf("job_%s: plugin %q is not enabled in [plugins]", name, p)
			}
		}
	}
	return nil
}
