// Package alert holds the short lived notices shown to the operator.
package alert

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/packethost/pkg/log"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultTTL is how long a notice stays visible unless dismissed.
const DefaultTTL = 5 * time.Second

// Notice is a single operator facing message.
type Notice struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Created time.Time `json:"created"`
}

// Surface is the list of active notices.
type Surface struct {
	clock   clock.Clock
	ttl     time.Duration
	notify  func()
	counter prometheus.Counter
	logger  *log.Logger

	mu      sync.Mutex
	notices []Notice
}

// The Option type describes functions that operate on Surface during New.
type Option func(*Surface)

// New returns an empty Surface using the wall clock and DefaultTTL.
func New(options ...Option) *Surface {
	s := &Surface{
		clock: clock.New(),
		ttl:   DefaultTTL,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Clock sets the clock used to stamp and expire notices.
func Clock(c clock.Clock) Option {
	return func(s *Surface) {
		s.clock = c
	}
}

// TTL sets how long notices live.
func TTL(d time.Duration) Option {
	return func(s *Surface) {
		s.ttl = d
	}
}

// Notify sets a func called after every change to the list, including expiry.
func Notify(fn func()) Option {
	return func(s *Surface) {
		s.notify = fn
	}
}

// Counter sets a counter incremented for every pushed notice.
func Counter(c prometheus.Counter) Option {
	return func(s *Surface) {
		s.counter = c
	}
}

// Logger will set the logger used to record pushed notices
func Logger(l log.Logger) Option {
	return func(s *Surface) {
		s.logger = &l
	}
}

// Push adds msg and returns the id of the new notice. Empty messages are
// ignored and return "".
func (s *Surface) Push(msg string) string {
	if msg == "" {
		return ""
	}

	n := Notice{
		ID:      uuid.New().String(),
		Message: msg,
		Created: s.clock.Now(),
	}

	s.mu.Lock()
	s.notices = append(s.notices, n)
	s.mu.Unlock()

	if s.counter != nil {
		s.counter.Inc()
	}
	if s.logger != nil {
		s.logger.With("id", n.ID, "message", msg).Info("alert")
	}

	s.clock.AfterFunc(s.ttl, s.expire)
	s.changed()
	return n.ID
}

// FromStatus pushes the first detail message of st, if any.
func (s *Surface) FromStatus(st d3.Status) string {
	return s.Push(st.DetailMessage())
}

// Active drops expired notices and returns the rest, oldest first.
func (s *Surface) Active() []Notice {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune()
	out := make([]Notice, len(s.notices))
	copy(out, s.notices)
	return out
}

// Dismiss removes the notice with the given id. It reports whether the notice
// was still active.
func (s *Surface) Dismiss(id string) bool {
	s.mu.Lock()
	found := false
	for i, n := range s.notices {
		if n.ID == id {
			s.notices = append(s.notices[:i], s.notices[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.changed()
	}
	return found
}

func (s *Surface) expire() {
	s.mu.Lock()
	before := len(s.notices)
	s.prune()
	pruned := before != len(s.notices)
	s.mu.Unlock()

	if pruned {
		s.changed()
	}
}

// prune must be called with mu held.
func (s *Surface) prune() {
	now := s.clock.Now()
	kept := s.notices[:0]
	for _, n := range s.notices {
		if now.Sub(n.Created) < s.ttl {
			kept = append(kept, n)
		}
	}
	s.notices = kept
}

func (s *Surface) changed() {
	if s.notify != nil {
		s.notify()
	}
}
