package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hangyeol-kang/d3RW/session"
	"github.com/packethost/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func readSnapshot(t *testing.T, conn *websocket.Conn) session.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func TestWebSocketPushesChanges(t *testing.T) {
	assert := require.New(t)
	logger = log.Test(t, "github.com/hangyeol-kang/d3RW")

	sess := session.New(session.Target{Host: "10.0.0.5", Port: 80})
	t.Cleanup(sess.Close)
	connected := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_websocket_clients"})
	h := newHub(sess, logger, connected, nil)
	p := &panel{sess: sess, hub: h}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.run(ctx)

	srv := httptest.NewServer(p.routes())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	assert.NoError(err)

	snap := readSnapshot(t, conn)
	assert.Equal("10.0.0.5", snap.Target.Host)
	assert.False(snap.SidebarCollapsed)
	assert.Equal(1, h.count())
	assert.Equal(float64(1), testutil.ToFloat64(connected))

	sess.SetSidebarCollapsed(true)
	assert.True(readSnapshot(t, conn).SidebarCollapsed)

	conn.Close()
	assert.Eventually(func() bool { return h.count() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(func() bool { return testutil.ToFloat64(connected) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastDropsForSlowDashboards(t *testing.T) {
	assert := require.New(t)
	logger = log.Test(t, "github.com/hangyeol-kang/d3RW")

	sess := session.New(session.Target{Host: "10.0.0.5", Port: 80})
	t.Cleanup(sess.Close)
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_websocket_dropped_total"})
	h := newHub(sess, logger, nil, dropped)

	send := make(chan []byte, sendBuffer)
	h.clients["slow"] = send
	for i := 0; i < sendBuffer+2; i++ {
		h.broadcast([]byte("{}"))
	}
	assert.Len(send, sendBuffer)
	assert.Equal(float64(2), testutil.ToFloat64(dropped))
}
