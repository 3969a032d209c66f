// Package grpc holds client helpers for talking to the service's gRPC health
// endpoint.
package grpc
