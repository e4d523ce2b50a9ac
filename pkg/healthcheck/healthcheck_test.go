package healthcheck

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type watchStream struct {
	grpc.ServerStream
	ctx  context.Context
	sent chan grpc_health_v1.HealthCheckResponse_ServingStatus
}

func (w *watchStream) Context() context.Context { return w.ctx }

func (w *watchStream) Send(r *grpc_health_v1.HealthCheckResponse) error {
	w.sent <- r.Status
	return nil
}

func TestCheck(t *testing.T) {
	assert := require.New(t)
	var healthy atomic.Value
	healthy.Store(true)
	h := GRPCHealthChecker(func() bool { return healthy.Load().(bool) })

	resp, err := h.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	assert.NoError(err)
	assert.Equal(grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	healthy.Store(false)
	resp, err = h.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	assert.NoError(err)
	assert.Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)

	resp, err = GRPCHealthChecker(nil).Check(context.Background(), nil)
	assert.NoError(err)
	assert.Equal(grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestWatchSendsChanges(t *testing.T) {
	assert := require.New(t)
	mock := clock.NewMock()
	var healthy atomic.Value
	healthy.Store(true)
	h := GRPCHealthChecker(func() bool { return healthy.Load().(bool) }, Clock(mock), Interval(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	stream := &watchStream{ctx: ctx, sent: make(chan grpc_health_v1.HealthCheckResponse_ServingStatus, 4)}
	done := make(chan error, 1)
	go func() { done <- h.Watch(&grpc_health_v1.HealthCheckRequest{}, stream) }()

	assert.Equal(grpc_health_v1.HealthCheckResponse_SERVING, <-stream.sent)

	// unchanged status is not re-sent
	mock.Add(time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(stream.sent)

	healthy.Store(false)
	assert.Eventually(func() bool {
		mock.Add(time.Second)
		return len(stream.sent) > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, <-stream.sent)

	cancel()
	select {
	case err := <-done:
		assert.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return")
	}
}
