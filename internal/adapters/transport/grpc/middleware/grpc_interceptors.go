package middleware

import (
	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/ratelimit"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// Порядок важен: recovery снаружи, лимит последним, чтобы отказы
// попадали и в лог, и в метрики.
func ChainUnaryServer(logger *zap.Logger, limiter *ratelimit.PerKey) grpc.UnaryServerInterceptor {
	return grpc_middleware.ChainUnaryServer(
		grpc_recovery.UnaryServerInterceptor(),
		grpc_zap.UnaryServerInterceptor(logger),
		grpc_prometheus.UnaryServerInterceptor,
		NewRateLimitPerIP(limiter),
	)
}

// Тот же порядок для стримов (health Watch).
func ChainStreamServer(logger *zap.Logger, limiter *ratelimit.PerKey) grpc.StreamServerInterceptor {
	return grpc_middleware.ChainStreamServer(
		grpc_recovery.StreamServerInterceptor(),
		grpc_zap.StreamServerInterceptor(logger),
		grpc_prometheus.StreamServerInterceptor,
		NewStreamRateLimitPerIP(limiter),
	)
}
