// Package main starts the roadwork access service process lifecycle.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	roadworkcmd "github.com/louisbranch/roadwork/internal/cmd/roadwork"
	entrypoint "github.com/louisbranch/roadwork/internal/platform/cmd"
	"github.com/louisbranch/roadwork/internal/platform/config"
)

func main() {
	cfg, err := roadworkcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf(entrypoint.ServiceRoadwork, "parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := roadworkcmd.Run(ctx, cfg); err != nil {
		stop()
		config.Exitf(entrypoint.ServiceRoadwork, "failed to serve: %v", err)
	}
}
