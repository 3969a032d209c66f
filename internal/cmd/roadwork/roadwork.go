// Package roadwork parses access service flags and launches the service.
package roadwork

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/louisbranch/roadwork/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/roadwork/internal/platform/grpc"
	"github.com/louisbranch/roadwork/internal/platform/logging"
	server "github.com/louisbranch/roadwork/internal/services/access/app"
	"go.uber.org/zap"
)

const probeTimeout = 3 * time.Second

// Config holds roadwork command configuration.
type Config struct {
	HTTPAddr   string `env:"ROADWORK_HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GRPCPort   int    `env:"ROADWORK_GRPC_PORT" envDefault:"8081"`
	DBPath     string `env:"ROADWORK_DB_PATH" envDefault:"database/users"`
	BcryptCost int    `env:"ROADWORK_BCRYPT_COST" envDefault:"10"`
	LogLevel   string `env:"ROADWORK_LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"ROADWORK_LOG_FORMAT" envDefault:"json"`

	// Probe checks the health of a running instance instead of serving.
	Probe bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The HTTP API listen address")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The gRPC health server port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path of the SQLite user database")
	fs.IntVar(&cfg.BcryptCost, "bcrypt-cost", cfg.BcryptCost, "bcrypt work factor for new password hashes")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")
	fs.BoolVar(&cfg.Probe, "probe", false, "Check the gRPC health of a running server and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.GRPCPort < 0 || cfg.GRPCPort > 65535 {
		return Config{}, fmt.Errorf("grpc port %d out of range", cfg.GRPCPort)
	}
	return cfg, nil
}

// Run starts the access service, or probes a running one when cfg.Probe is set.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Probe {
		return probe(ctx, cfg)
	}

	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceRoadwork, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		logger.Info("starting roadwork",
			zap.String("http_addr", cfg.HTTPAddr),
			zap.Int("grpc_port", cfg.GRPCPort),
			zap.String("db_path", cfg.DBPath),
		)
		return server.Run(ctx, server.Config{
			HTTPAddr:   cfg.HTTPAddr,
			GRPCAddr:   fmt.Sprintf(":%d", cfg.GRPCPort),
			DBPath:     cfg.DBPath,
			BcryptCost: cfg.BcryptCost,
			Logger:     logger,
		})
	})
}

func probe(ctx context.Context, cfg Config) error {
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.GRPCPort)
	if err := platformgrpc.Probe(ctx, addr, server.HealthServiceName, probeTimeout); err != nil {
		return fmt.Errorf("probe %s: %w", addr, err)
	}
	return nil
}
