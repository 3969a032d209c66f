// Package sqlite provides SQLite-backed access persistence.
//
// One database file holds users, teams, and memberships. The file's absence
// at Open time is what triggers schema creation and the one-time default
// administrator bootstrap.
package sqlite
