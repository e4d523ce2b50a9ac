package main

import (
	"context"
	"net"
	"strconv"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/hangyeol-kang/d3RW/pkg/healthcheck"
	"github.com/hangyeol-kang/d3RW/session"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// setupGRPC serves grpc.health.v1.Health, reporting NOT_SERVING while d3 is
// unreachable.
func setupGRPC(ctx context.Context, sess *session.Session, port int, errCh chan<- error) *grpc.Server {
	params := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.StreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}

	s := grpc.NewServer(params...)
	grpc_health_v1.RegisterHealthServer(s, healthcheck.GRPCHealthChecker(sess.Healthy, healthcheck.Quit(ctx.Done())))
	grpc_prometheus.Register(s)

	go func() {
		logger.With("port", port).Info("serving grpc")
		lis, err := net.Listen("tcp", ":"+strconv.Itoa(port))
		if err != nil {
			err = errors.Wrap(err, "failed to listen")
			logger.Error(err)
			panic(err)
		}

		errCh <- s.Serve(lis)
	}()

	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	return s
}
