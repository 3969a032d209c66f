// Package storage defines persistence contracts for users, teams, and
// memberships.
//
// These interfaces let the authorization service depend on relational
// semantics (conflicts, missing rows, non-empty teams) without coupling to
// SQLite details.
package storage
