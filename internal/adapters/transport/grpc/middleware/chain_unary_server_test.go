package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/Miraines/MoonyAndStarry/tfa-auth/internal/infra/ratelimit"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func ctxIP(ip string) context.Context {
	return peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP(ip), Port: 80},
	})
}

func noop(context.Context, any) (any, error) { return nil, nil }

func TestChainUnaryServer_PanicRecovered(t *testing.T) {
	chain := ChainUnaryServer(zap.NewExample(), ratelimit.New(10, 10, 100, time.Hour))

	_, err := chain(ctxIP("8.8.8.8"), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req any) (any, error) {
			panic("boom")
		})
	require.Error(t, err)
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestChainUnaryServer_RateLimitInsideChain(t *testing.T) {
	chain := ChainUnaryServer(zap.NewNop(), ratelimit.New(1, 1, 100, time.Hour))
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	ctx := ctxIP("9.9.9.9")
	_, err := chain(ctx, nil, info, noop)
	require.NoError(t, err)

	_, err = chain(ctx, nil, info, noop)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))

	time.Sleep(time.Second)
	_, err = chain(ctx, nil, info, noop)
	require.NoError(t, err, "quota refills after a second")
}

func TestRateLimitPerIP_BurstAllows(t *testing.T) {
	intc := NewRateLimitPerIP(ratelimit.New(1, 2, 100, time.Hour))
	hit := func(ctx context.Context) error {
		_, err := intc(ctx, nil, &grpc.UnaryServerInfo{}, noop)
		return err
	}

	ctx := ctxIP("192.0.2.1")
	require.NoError(t, hit(ctx))
	require.NoError(t, hit(ctx))
	require.Error(t, hit(ctx))
	require.NoError(t, hit(ctxIP("192.0.2.2")), "other peers keep their own quota")
}

func TestRateLimitPerIP_NoPeer(t *testing.T) {
	intc := NewRateLimitPerIP(ratelimit.New(1, 1, 100, time.Hour))
	_, err := intc(context.Background(), nil, &grpc.UnaryServerInfo{}, noop)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))
}

type peerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *peerStream) Context() context.Context { return s.ctx }

var watchInfo = &grpc.StreamServerInfo{FullMethod: "/grpc.health.v1.Health/Watch", IsServerStream: true}

func TestChainStreamServer_PanicRecovered(t *testing.T) {
	chain := ChainStreamServer(zap.NewNop(), ratelimit.New(10, 10, 100, time.Hour))

	err := chain(nil, &peerStream{ctx: ctxIP("8.8.8.8")}, watchInfo, func(any, grpc.ServerStream) error {
		panic("boom")
	})
	require.Equal(t, codes.Internal, status.Code(err))
}

func TestChainStreamServer_RateLimitPerStream(t *testing.T) {
	chain := ChainStreamServer(zap.NewNop(), ratelimit.New(1, 1, 100, time.Hour))
	opened := 0
	handler := func(any, grpc.ServerStream) error { opened++; return nil }

	ss := &peerStream{ctx: ctxIP("203.0.113.7")}
	require.NoError(t, chain(nil, ss, watchInfo, handler))
	require.Equal(t, codes.ResourceExhausted, status.Code(chain(nil, ss, watchInfo, handler)))
	require.Equal(t, 1, opened)

	require.Equal(t, codes.ResourceExhausted,
		status.Code(chain(nil, &peerStream{ctx: context.Background()}, watchInfo, handler)),
		"streams without a peer are refused")
}
