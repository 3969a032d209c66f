// Package authz verifies credentials and decides whether a caller may act.
//
// Credential failures are reported as booleans, never as errors; errors are
// reserved for storage failures and rejected mutations.
package authz
