// Package grpc hosts the gRPC health listener that runs beside the REST API
// and the client helpers operators use to probe it.
package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer serves grpc.health.v1 for the overall process ("") and for
// each named component.
type HealthServer struct {
	server *gogrpc.Server
	health *health.Server

	mu         sync.Mutex
	components []string
}

// NewHealthServer builds a health-only gRPC server. Every component starts
// NOT_SERVING until MarkServing is called.
func NewHealthServer(components ...string) *HealthServer {
	server := gogrpc.NewServer(gogrpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	h := &HealthServer{server: server, health: healthServer}
	h.components = append([]string{""}, components...)
	for _, component := range h.components {
		healthServer.SetServingStatus(component, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	}
	return h
}

// MarkServing flips every registered component to SERVING.
func (h *HealthServer) MarkServing() {
	h.setAll(grpc_health_v1.HealthCheckResponse_SERVING)
}

// SetComponent updates a single component's status.
func (h *HealthServer) SetComponent(component string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(component, status)
}

func (h *HealthServer) setAll(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, component := range h.components {
		h.health.SetServingStatus(component, status)
	}
}

// Serve blocks until ctx ends or the listener fails. On shutdown every
// component is reported NOT_SERVING before the server drains.
func (h *HealthServer) Serve(ctx context.Context, listener net.Listener) error {
	if listener == nil {
		return fmt.Errorf("health listener is required")
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- h.server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		h.health.Shutdown()
		h.server.GracefulStop()
		err := <-serveErr
		if err != nil && !errors.Is(err, gogrpc.ErrServerStopped) {
			return fmt.Errorf("serve health: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err != nil && !errors.Is(err, gogrpc.ErrServerStopped) {
			return fmt.Errorf("serve health: %w", err)
		}
		return nil
	}
}
