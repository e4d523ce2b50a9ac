// Package session is the controller behind the panel. It owns the
// application state, runs the table builders against the current d3 target
// and tells listeners when anything changed.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gammazero/workerpool"
	"github.com/hangyeol-kang/d3RW/alert"
	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/hangyeol-kang/d3RW/poll"
	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"inet.af/netaddr"
)

// Operator facing messages.
const (
	MsgRequestFailed  = "Request failed. Check if the network connection is stable or if d3 is running."
	MsgNoTransport    = "Check if d3 is running."
	MsgNotEngaged     = "Check if the transport is engaged or if d3 is running."
	MsgCaptureTimeout = "Capture timed out"
)

const (
	MonitorInterval      = time.Second
	NotificationInterval = 5 * time.Second
	CaptureInterval      = time.Second
	DefaultCaptureWait   = 120 * time.Second
	// delay before re-reading the transport after a go-to action
	followUpDelay = 100 * time.Millisecond
)

var (
	ErrInvalidTarget  = errors.New("invalid network target")
	ErrNoSelection    = errors.New("nothing selected")
	ErrNoTransport    = errors.New("no active transport")
	ErrNotEngaged     = errors.New("transport is not engaged")
	ErrNoCamera       = errors.New("mr set has no current camera")
	ErrNoCalibration  = errors.New("no spatial calibration loaded")
	ErrCaptureRunning = errors.New("a capture is already in progress")
	ErrCaptureTimeout = errors.New("capture timed out")
	ErrInvalidField   = errors.New("unknown cdl field")
)

// Target is the d3 machine the panel talks to.
type Target struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// Hostname is the d3 name of the target, learned from system detection.
	Hostname string `json:"hostname,omitempty"`
}

// ParseTarget validates host as an IP literal and port as a TCP port.
func ParseTarget(host string, port int) (Target, error) {
	if _, err := netaddr.ParseIP(host); err != nil {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "host %q is not an ip address", host)
	}
	if port < 1 || port > 65535 {
		return Target{}, errors.Wrapf(ErrInvalidTarget, "port %d out of range", port)
	}
	return Target{Host: host, Port: port}, nil
}

// Session is the panel controller. All methods are safe for concurrent use.
type Session struct {
	logger         *log.Logger
	clock          clock.Clock
	settings       Settings
	clientOpts     []d3.Option
	workers        int
	captureTimeout time.Duration
	tracer         trace.Tracer

	totals       *prometheus.CounterVec
	errs         *prometheus.CounterVec
	ticks        *prometheus.CounterVec
	alertCounter prometheus.Counter

	alerts  *alert.Surface
	changes chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	mu       sync.RWMutex
	st       AppState
	client   *d3.Client
	monitor  *poll.Task
	notifier *poll.Task
}

// The Option type describes functions that operate on Session during New.
type Option func(*Session)

// Logger will set the logger used by the session
func Logger(l log.Logger) Option {
	return func(s *Session) {
		s.logger = &l
	}
}

// Clock sets the clock driving polls, alert expiry and the capture wait.
func Clock(c clock.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// PanelSettings sets the defaults used for sliders and project launches.
func PanelSettings(st Settings) Option {
	return func(s *Session) {
		s.settings = st
	}
}

// ClientOptions are passed to every d3.Client the session creates.
func ClientOptions(opts ...d3.Option) Option {
	return func(s *Session) {
		s.clientOpts = append(s.clientOpts, opts...)
	}
}

// Workers bounds the number of concurrent upstream calls of a fan-out.
func Workers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

// CaptureTimeout bounds the wait for an observation capture.
func CaptureTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.captureTimeout = d
	}
}

// Metrics sets the vectors counting operations and failed operations,
// labelled by "op".
func Metrics(totals, errs *prometheus.CounterVec) Option {
	return func(s *Session) {
		s.totals = totals
		s.errs = errs
	}
}

// PollTicks sets the vector counting poll ticks, labelled by "poll".
func PollTicks(ticks *prometheus.CounterVec) Option {
	return func(s *Session) {
		s.ticks = ticks
	}
}

// AlertCounter sets the counter incremented for every alert.
func AlertCounter(c prometheus.Counter) Option {
	return func(s *Session) {
		s.alertCounter = c
	}
}

// New returns a session aimed at target.
func New(target Target, options ...Option) *Session {
	s := &Session{
		clock:          clock.New(),
		settings:       DefaultSettings,
		workers:        4,
		captureTimeout: DefaultCaptureWait,
		tracer:         otel.Tracer("github.com/hangyeol-kang/d3RW/session"),
		changes:        make(chan struct{}, 1),
		st:             newAppState(target),
	}
	for _, opt := range options {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	alertOpts := []alert.Option{alert.Clock(s.clock), alert.Notify(s.notify)}
	if s.alertCounter != nil {
		alertOpts = append(alertOpts, alert.Counter(s.alertCounter))
	}
	if s.logger != nil {
		alertOpts = append(alertOpts, alert.Logger(s.logger.Package("alert")))
	}
	s.alerts = alert.New(alertOpts...)
	s.client = s.newClient(target)
	return s
}

func (s *Session) newClient(t Target) *d3.Client {
	opts := append([]d3.Option{}, s.clientOpts...)
	opts = append(opts, d3.OnStatus(func(_ context.Context, st d3.Status) {
		s.alerts.FromStatus(st)
	}))
	return d3.New(t.Host, t.Port, opts...)
}

// Close stops every poll. Pending follow-up refreshes are dropped.
func (s *Session) Close() {
	s.cancel()
	s.mu.Lock()
	tasks := s.detachPolls()
	s.mu.Unlock()
	for _, t := range tasks {
		t.Wait()
	}
}

// detachPolls cancels both polls and clears their state. It must be called
// with mu held; the returned tasks must be waited on after unlocking.
func (s *Session) detachPolls() []*poll.Task {
	var tasks []*poll.Task
	if s.monitor != nil {
		s.monitor.Cancel()
		tasks = append(tasks, s.monitor)
		s.monitor = nil
		s.st.monitoring = false
	}
	if s.notifier != nil {
		s.notifier.Cancel()
		tasks = append(tasks, s.notifier)
		s.notifier = nil
	}
	return tasks
}

// Changes receives a value whenever the state changed since the last receive.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	snap := s.st.snapshot()
	s.mu.RUnlock()

	snap.Settings = s.settings
	snap.Alerts = s.alerts.Active()
	return snap
}

func (s *Session) Settings() Settings {
	return s.settings
}

func (s *Session) Target() Target {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.target
}

// SetTarget points the session at another d3 machine. Running polls are
// stopped and the transport is disengaged since they belong to the old target.
func (s *Session) SetTarget(host string, port int) (Target, error) {
	t, err := ParseTarget(host, port)
	if err != nil {
		return Target{}, err
	}

	s.mu.Lock()
	tasks := s.detachPolls()
	s.st.target = t
	s.client = s.newClient(t)
	s.st.cards = nil
	s.clearTransport()
	s.mu.Unlock()

	for _, task := range tasks {
		task.Wait()
	}
	s.logInfo("target changed", "host", t.Host, "port", t.Port)
	s.notify()
	return t, nil
}

func (s *Session) SidebarCollapsed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.sidebar
}

func (s *Session) SetSidebarCollapsed(collapsed bool) {
	s.mu.Lock()
	s.st.sidebar = collapsed
	s.mu.Unlock()
	s.notify()
}

// DismissAlert removes an alert before it expires.
func (s *Session) DismissAlert(id string) bool {
	return s.alerts.Dismiss(id)
}

// Alert shows msg to the operator.
func (s *Session) Alert(msg string) {
	s.alerts.Push(msg)
}

// Healthy reports whether the last upstream call got an answer.
func (s *Session) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.upstream
}

// Bootstrap loads what the panel shows on start: the systems and projects.
func (s *Session) Bootstrap(ctx context.Context) {
	if err := s.RefreshSystems(ctx); err != nil {
		return
	}
	s.RefreshProjects(ctx)
}

// Reload rebuilds every table that depends on the target.
func (s *Session) Reload(ctx context.Context) {
	s.RefreshSystems(ctx)
	s.RefreshProjects(ctx)
	s.RefreshMRSets(ctx)
	s.RefreshLayers(ctx)
}

// check records the outcome of an upstream call. A request failure pushes the
// generic alert, unless ctx was already done, and marks the upstream down.
func (s *Session) check(ctx context.Context, err error) error {
	switch {
	case err == nil, errors.Is(err, d3.ErrStatus):
		s.setUpstream(true)
	case errors.Is(err, d3.ErrRequest):
		if ctx.Err() != nil {
			return err
		}
		s.setUpstream(false)
		s.alerts.Push(MsgRequestFailed)
	}
	return err
}

// observe is check for poll ticks: failures are logged, never alerted.
func (s *Session) observe(ctx context.Context, op string, err error) error {
	switch {
	case err == nil, errors.Is(err, d3.ErrStatus):
		s.setUpstream(true)
	case errors.Is(err, d3.ErrRequest):
		if ctx.Err() != nil {
			return err
		}
		s.setUpstream(false)
		s.logError(err, "op", op)
	}
	return err
}

func (s *Session) setUpstream(ok bool) {
	s.mu.Lock()
	changed := s.st.upstream != ok
	s.st.upstream = ok
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

func (s *Session) setIndicator(i Indicator) {
	s.mu.Lock()
	s.st.indicator = i
	s.mu.Unlock()
	s.notify()
}

// fanOut runs fn for every index on a bounded pool. It returns the first
// request failure if there was one, otherwise the first error.
func (s *Session) fanOut(n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	pool := workerpool.New(s.workers)
	var (
		mu       sync.Mutex
		first    error
		reqFirst error
	)
	for i := 0; i < n; i++ {
		i := i
		pool.Submit(func() {
			err := fn(i)
			if err == nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if first == nil {
				first = err
			}
			if reqFirst == nil && errors.Is(err, d3.ErrRequest) {
				reqFirst = err
			}
		})
	}
	pool.StopWait()
	if reqFirst != nil {
		return reqFirst
	}
	return first
}

// later runs fn after d unless the session is closed first.
func (s *Session) later(d time.Duration, fn func(ctx context.Context)) {
	s.clock.AfterFunc(d, func() {
		if s.ctx.Err() != nil {
			return
		}
		fn(s.ctx)
	})
}

// start opens a span for op and counts it. The returned func ends the span
// and records *errp.
func (s *Session) start(ctx context.Context, op string) (context.Context, func(errp *error)) {
	ctx, span := s.tracer.Start(ctx, "session."+op)
	labels := prometheus.Labels{"op": op}
	if s.totals != nil {
		s.totals.With(labels).Inc()
	}
	return ctx, func(errp *error) {
		if err := *errp; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if s.errs != nil {
				s.errs.With(labels).Inc()
			}
			s.logError(err, "op", op)
		}
		span.End()
	}
}

func (s *Session) tick(name string) {
	if s.ticks != nil {
		s.ticks.With(prometheus.Labels{"poll": name}).Inc()
	}
}

func (s *Session) logInfo(msg string, args ...interface{}) {
	if s.logger == nil {
		return
	}
	s.logger.With(args...).Info(msg)
}

func (s *Session) logError(err error, args ...interface{}) {
	if s.logger == nil {
		return
	}
	s.logger.With(args...).Error(err)
}
