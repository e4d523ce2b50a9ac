package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hangyeol-kang/d3RW/session"
	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	writeWait = 5 * time.Second
	// snapshots queued per dashboard before new ones are dropped
	sendBuffer = 4
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// hub pushes the session snapshot to every connected dashboard whenever the
// state changes.
type hub struct {
	sess      *session.Session
	logger    log.Logger
	connected prometheus.Gauge
	dropped   prometheus.Counter

	mu      sync.RWMutex
	clients map[string]chan []byte
}

func newHub(sess *session.Session, l log.Logger, connected prometheus.Gauge, dropped prometheus.Counter) *hub {
	return &hub{
		sess:      sess,
		logger:    l,
		connected: connected,
		dropped:   dropped,
		clients:   map[string]chan []byte{},
	}
}

func (h *hub) encode() ([]byte, error) {
	b, err := json.Marshal(h.sess.Snapshot())
	return b, errors.Wrap(err, "encode snapshot")
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(errors.Wrap(err, "websocket upgrade"))
		return
	}
	defer conn.Close()

	id := uuid.New().String()
	l := h.logger.With("client", id)
	send := make(chan []byte, sendBuffer)

	data, err := h.encode()
	if err != nil {
		l.Error(err)
		return
	}
	send <- data

	h.mu.Lock()
	h.clients[id] = send
	h.mu.Unlock()
	if h.connected != nil {
		h.connected.Inc()
	}
	l.Info("dashboard connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range send {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				l.Error(errors.Wrap(err, "write snapshot"))
				conn.Close()
				// keep draining so broadcast never blocks on us
				for range send {
				}
				return
			}
		}
	}()

	// the dashboard never sends anything, reading only detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, id)
	close(send)
	h.mu.Unlock()
	<-done
	if h.connected != nil {
		h.connected.Dec()
	}
	l.Info("dashboard disconnected")
}

// broadcast queues data for every dashboard. A dashboard whose queue is full
// skips this snapshot, the next one carries the whole state anyway.
func (h *hub) broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, send := range h.clients {
		select {
		case send <- data:
		default:
			h.logger.With("client", id).Info("dashboard too slow, snapshot dropped")
			if h.dropped != nil {
				h.dropped.Inc()
			}
		}
	}
}

// run broadcasts a snapshot after every state change until ctx is done.
func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.sess.Changes():
			data, err := h.encode()
			if err != nil {
				h.logger.Error(err)
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
