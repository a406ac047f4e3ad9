// Package db is the PostgreSQL access layer shared by the daemons. It holds
// one repository type per subject area (netboxes, topology, arp/cam, alert
// history, ...) plus the event queue the daemons use to hand events to the
// event engine. All methods take a context and return wrapped errors; no
// repository logs on its own.
package db
