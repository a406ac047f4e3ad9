// Package api implements the JSON API of navd.
//
// New(deps) returns the handler for:
//
//	GET    /api/v1/health                    liveness
//	GET    /api/v1/status                    up/down/shadow counts, open alerts
//	GET    /api/v1/diagnostics               human-readable network hints
//	GET    /api/v1/netboxes                  all netboxes
//	POST   /api/v1/netboxes                  register a netbox
//	GET    /api/v1/netboxes/{id}             one netbox; PUT updates, DELETE retires
//	GET    /api/v1/netboxes/{id}/snmpcheck   live SNMP read/write check
//	GET    /api/v1/netboxes/{id}/history     alert history (?days=, ?limit=)
//	GET    /api/v1/machinetracker            ARP/CAM search (?ip=CIDR or ?mac=)
//	...    /api/v1/rooms[/{id}]              room admin
//	...    /api/v1/organizations[/{id}]      organization admin
//	...    /api/v1/netboxgroups[/{id}]       group admin, membership via body
//	...    /api/v1/maintenance[/{id}]        maintenance windows; DELETE cancels
//	...    /api/v1/alertprofiles[/{id}]      alert profiles, nested periods,
//	                                         matches and subscriptions
//	...    /api/v1/alertaddresses[/{id}]     delivery addresses
//	POST   /api/v1/events                    inject an event on the queue
//
// All endpoints respond with Content-Type: application/json and return 405
// for unsupported methods. Authentication is the auth package's API key
// middleware, wired in by the daemon main.
package api
