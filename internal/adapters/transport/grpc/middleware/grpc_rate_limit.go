package middleware

import (
	"context"
	"net"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

var errRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")

// NewRateLimitPerIP rejects calls with ResourceExhausted once the peer IP
// has spent its quota. Calls without a peer are rejected too.
func NewRateLimitPerIP(limiter *ratelimit.PerKey) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		_ *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !allowPeer(ctx, limiter) {
			return nil, errRateLimited
		}
		return handler(ctx, req)
	}
}

// NewStreamRateLimitPerIP charges one token per opened stream, not per message.
func NewStreamRateLimitPerIP(limiter *ratelimit.PerKey) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		_ *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if !allowPeer(ss.Context(), limiter) {
			return errRateLimited
		}
		return handler(srv, ss)
	}
}

func allowPeer(ctx context.Context, limiter *ratelimit.PerKey) bool {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return false
	}
	host, _, err := net.SplitHostPort(p.Addr.String())
	if err != nil {
		host = p.Addr.String()
	}
	return limiter.Allow(host)
}
