// Package client dials the panel's gRPC health service and builds d3 API
// clients for command line tools.
package client

import (
	"time"

	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/packethost/pkg/env"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	health "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultAuthority is where the panel serves gRPC unless told otherwise.
const DefaultAuthority = "localhost:42113"

// Conn is a connection to the panel's gRPC server.
type Conn struct {
	health.HealthClient
	Conn *grpc.ClientConn
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.Conn.Close()
}

// Authority returns addr, or D3RW_GRPC_AUTHORITY, or DefaultAuthority.
func Authority(addr string) string {
	if addr != "" {
		return addr
	}
	return env.Get("D3RW_GRPC_AUTHORITY", DefaultAuthority)
}

// New returns a health client for the panel at addr. The panel serves plain
// gRPC so the connection is not encrypted.
func New(addr string) (*Conn, error) {
	conn, err := grpc.Dial(Authority(addr),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connect to d3rw")
	}
	return &Conn{HealthClient: health.NewHealthClient(conn), Conn: conn}, nil
}

// D3 returns a d3 API client for host:port. D3RW_UPSTREAM_TIMEOUT, in
// seconds, bounds every call.
func D3(host string, port int, options ...d3.Option) *d3.Client {
	timeout := time.Duration(env.Int("D3RW_UPSTREAM_TIMEOUT", 10)) * time.Second
	opts := append([]d3.Option{d3.Timeout(timeout)}, options...)
	return d3.New(host, port, opts...)
}
