package models

import "time"

// Service is a monitored service on a netbox: a checker name plus its
// properties (port, url, hostname overrides). Up uses the same y/n codes as
// Netbox.
type Service struct {
	ID       int64
	NetboxID int64
	Handler  string
	Active   bool
	Up       string
	Version  string

	// ResponseTime is the duration of the last successful check in
	// seconds, nil before the first check.
	ResponseTime *float64
	LastCheck    *time.Time

	// Properties hold checker-specific settings, e.g. "port" for the
	// port checker.
	Properties map[string]string
}

// Property returns a checker setting, or fallback when unset.
func (s *Service) Property(key, fallback string) string {
	if v, ok := s.Properties[key]; ok && v != "" {
		return v
	}
	return fallback
}
