// Package user defines the identity records shared by the access service:
// users, team names, and the bootstrap administrator constants.
//
// Validation here is the single point where untrusted names and secrets are
// normalized before they reach storage or the hasher.
package user
