// Package server wires the access store, service, HTTP surface, and gRPC
// health endpoint into one process lifecycle.
package server
