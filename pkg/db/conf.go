package db

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// ConfigFromFile reads the [database] section shared by all daemons,
// normally from nav.conf.
func ConfigFromFile(path string) (Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return Config{}, fmt.Errorf("db: load %s: %w", path, err)
	}
	sec := f.Section("database")
	cfg := Config{
		Host:     sec.Key("host").MustString("localhost"),
		Port:     sec.Key("port").MustInt(5432),
		User:     sec.Key("user").MustString("nav"),
		Password: sec.Key("password").String(),
		Name:     sec.Key("dbname").MustString("nav"),
		SSLMode:  sec.Key("sslmode").String(),
		MaxConns: sec.Key("max_connections").MustInt(0),
		MaxIdle:  sec.Key("max_idle").MustInt(0),
	}
	if cfg.User == "" || cfg.Name == "" {
		return Config{}, fmt.Errorf("db: %s: [database] user and dbname are required", path)
	}
	return cfg, nil
}
