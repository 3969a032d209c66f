package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/louisbranch/roadwork/internal/platform/logging"
	"github.com/louisbranch/roadwork/internal/platform/timeouts"
	"github.com/louisbranch/roadwork/internal/services/access/api/httpapi"
	"github.com/louisbranch/roadwork/internal/services/access/authz"
	"github.com/louisbranch/roadwork/internal/services/access/password"
	accesssqlite "github.com/louisbranch/roadwork/internal/services/access/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the gRPC health entry reported for the access service.
const HealthServiceName = "roadwork.access.v1.AccessService"

// Config describes the listeners and storage of one server instance.
type Config struct {
	HTTPAddr   string
	GRPCAddr   string
	DBPath     string
	BcryptCost int
	Logger     *zap.Logger
}

// Server hosts the access HTTP API and the gRPC health endpoint.
type Server struct {
	logger       *zap.Logger
	store        *accesssqlite.Store
	httpListener net.Listener
	httpServer   *http.Server
	grpcListener net.Listener
	grpcServer   *grpc.Server
	health       *health.Server
}

// New opens the store, builds the service, and binds both listeners.
func New(cfg Config) (*Server, error) {
	logger := logging.OrNop(cfg.Logger)
	if strings.TrimSpace(cfg.DBPath) == "" {
		return nil, errors.New("database path is required")
	}

	hasher := password.NewBcrypt(cfg.BcryptCost)
	store, err := accesssqlite.Open(cfg.DBPath, accesssqlite.Options{
		Logger: logger.Named("store"),
		Hasher: hasher,
	})
	if err != nil {
		return nil, fmt.Errorf("open access sqlite store: %w", err)
	}

	httpListener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on http addr %s: %w", cfg.HTTPAddr, err)
	}
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		_ = httpListener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("listen on grpc addr %s: %w", cfg.GRPCAddr, err)
	}

	service := authz.NewService(store, hasher, logger.Named("authz"))
	httpServer := &http.Server{
		Handler:           httpapi.NewHandler(service, logger.Named("http")),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(HealthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		logger:       logger,
		store:        store,
		httpListener: httpListener,
		httpServer:   httpServer,
		grpcListener: grpcListener,
		grpcServer:   grpcServer,
		health:       healthServer,
	}, nil
}

// Run creates and serves a server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	srv, err := New(cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// HTTPAddr returns the bound HTTP listener address.
func (s *Server) HTTPAddr() string {
	if s == nil || s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// GRPCAddr returns the bound gRPC listener address.
func (s *Server) GRPCAddr() string {
	if s == nil || s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// Serve runs both listeners and blocks until the context ends or either
// listener fails. The store is closed on return.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStore()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		s.logger.Info("grpc health listening", zap.String("addr", s.GRPCAddr()))
		if err := s.grpcServer.Serve(s.grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		s.logger.Info("http listening", zap.String("addr", s.HTTPAddr()))
		if err := s.httpServer.Serve(s.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve HTTP: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		s.shutdown()
		return nil
	})

	return group.Wait()
}

func (s *Server) shutdown() {
	s.health.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
	s.grpcServer.GracefulStop()
	s.logger.Info("server stopped")
}

func (s *Server) closeStore() {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("close access store", zap.Error(err))
	}
}
