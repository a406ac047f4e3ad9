// Package models defines the shared domain types used by the pollers, the
// event engine and the web API. These are the canonical in-memory
// representations of the rows in the NAV schema, separate from any wire or
// storage format.
package models
