package grpc

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// ProbeStage describes where a probe failed.
type ProbeStage string

const (
	// ProbeStageConnect indicates the client could not be created.
	ProbeStageConnect ProbeStage = "connect"
	// ProbeStageHealth indicates the health check failed or was not SERVING.
	ProbeStageHealth ProbeStage = "health"
)

// ProbeError wraps connect and health check failures with a stage indicator.
type ProbeError struct {
	Stage ProbeStage
	Err   error
}

// Error implements the error interface.
func (e *ProbeError) Error() string {
	if e == nil {
		return "gRPC probe error"
	}
	return fmt.Sprintf("gRPC %s error: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProbeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DefaultClientOptions returns plaintext client options with OTel stats so
// probes propagate trace context when a TracerProvider is registered.
func DefaultClientOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// Probe performs a single health check against addr and reports an error
// unless service is SERVING.
func Probe(ctx context.Context, addr string, service string, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := gogrpc.NewClient(addr, DefaultClientOptions()...)
	if err != nil {
		return &ProbeError{Stage: ProbeStageConnect, Err: err}
	}
	defer conn.Close()

	status, err := checkOnce(ctx, grpc_health_v1.NewHealthClient(conn), service)
	if err != nil {
		return &ProbeError{Stage: ProbeStageHealth, Err: err}
	}
	if status != grpc_health_v1.HealthCheckResponse_SERVING {
		return &ProbeError{Stage: ProbeStageHealth, Err: fmt.Errorf("status %s", status)}
	}
	return nil
}

// DialWithHealth connects to addr and waits until service reports SERVING,
// bounded by timeout. The connection is closed when the wait fails.
func DialWithHealth(ctx context.Context, addr string, service string, timeout time.Duration, logger *zap.Logger) (*gogrpc.ClientConn, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := gogrpc.NewClient(addr, DefaultClientOptions()...)
	if err != nil {
		return nil, &ProbeError{Stage: ProbeStageConnect, Err: err}
	}
	if err := WaitForHealth(waitCtx, conn, service, logger); err != nil {
		_ = conn.Close()
		return nil, &ProbeError{Stage: ProbeStageHealth, Err: err}
	}
	return conn, nil
}
