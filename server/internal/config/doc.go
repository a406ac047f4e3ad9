// Package config loads the navd settings from nav.conf (INI).
//
// Sections:
//   - [httpd]: port, api_key, ws_interval
//   - [eventengine]: queue_poll, maintenance_check
//   - [export]: enabled, url, queue (AMQP alert export)
//   - [alerts]: slack_url, webhook_url (built-in delivery targets)
//
// The [database] section of the same file is read by pkg/db.
package config
