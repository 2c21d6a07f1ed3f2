package grpc

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const checkTimeout = 2 * time.Second

// Checker reports whether a dependency answers.
type Checker func(ctx context.Context) error

// HealthHandler answers grpc.health.v1 checks by pinging the stores. The
// empty service name covers every dependency.
type HealthHandler struct {
	healthpb.UnimplementedHealthServer

	checks map[string]Checker
	log    *zap.Logger
}

func NewHealthHandler(checks map[string]Checker, log *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, log: log}
}

func (h *HealthHandler) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	names := h.names()
	if svc := req.GetService(); svc != "" {
		if _, ok := h.checks[svc]; !ok {
			return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
		}
		names = []string{svc}
	}

	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.log.Warn("health check failed", zap.String("dependency", name), zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	return &healthpb.HealthCheckResponse{Status: st}, nil
}

func (h *HealthHandler) names() []string {
	out := make([]string, 0, len(h.checks))
	for name := range h.checks {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
