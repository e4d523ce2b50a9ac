package poll

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func waitCall(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not tick")
	}
}

func TestTicks(t *testing.T) {
	assert := require.New(t)
	mock := clock.NewMock()
	calls := make(chan struct{}, 10)

	task := Start(context.Background(), mock, time.Second, func(context.Context) {
		calls <- struct{}{}
	})

	mock.Add(500 * time.Millisecond)
	assert.Empty(calls)

	mock.Add(500 * time.Millisecond)
	waitCall(t, calls)

	mock.Add(time.Second)
	waitCall(t, calls)

	task.Stop()
	select {
	case <-task.Done():
	default:
		t.Fatal("loop still running after Stop")
	}

	mock.Add(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(calls)
}

func TestStopDiscardsInFlight(t *testing.T) {
	assert := require.New(t)
	mock := clock.NewMock()
	started := make(chan struct{})
	release := make(chan struct{})
	committed := make(chan bool, 1)

	task := Start(context.Background(), mock, time.Second, func(ctx context.Context) {
		close(started)
		<-release
		committed <- ctx.Err() == nil
	})

	mock.Add(time.Second)
	waitCall(t, started)

	task.Cancel()
	close(release)
	task.Wait()

	assert.False(<-committed)
	assert.Error(task.Context().Err())
}

func TestParentCancel(t *testing.T) {
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	task := Start(ctx, mock, time.Second, func(context.Context) {})
	cancel()

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on parent cancel")
	}
}
