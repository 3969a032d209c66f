// Package access hosts the Roadwork identity and access-control service.
//
// Users authenticate with a username and secret; authorization answers whether
// a verified caller is an administrator or belongs to a team. Users, teams and
// memberships live in a single SQLite store that enforces referential
// integrity and bootstraps a default administrator on first start.
package access
