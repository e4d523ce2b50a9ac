// Package d3 is a small client for the disguise (d3) REST API.
package d3

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	// ErrRequest is matched by every failure to get a usable answer out of
	// the server: network errors, non JSON bodies, undecodable results.
	ErrRequest = errors.New("d3 request failed")

	// ErrStatus is returned when the server answered with an error status.
	// The status message has already been handed to the StatusHandler.
	ErrStatus = errors.New("d3 returned an error status")
)

// RequestError describes a failed call.
type RequestError struct {
	Method string
	URL    string
	Err    error
}

func (e *RequestError) Error() string {
	return e.Method + " " + e.URL + ": " + e.Err.Error()
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) Is(target error) bool { return target == ErrRequest }

// StatusHandler receives every server status carrying a detail message.
type StatusHandler func(ctx context.Context, s Status)

// Client talks to one disguise director/actor at host:port.
type Client struct {
	host     string
	port     int
	hc       *http.Client
	logger   *log.Logger
	onStatus StatusHandler

	totals   *prometheus.CounterVec
	errs     *prometheus.CounterVec
	duration prometheus.ObserverVec
}

// The Option type describes functions that operate on Client during New.
type Option func(*Client)

// New returns a Client for http://host:port.
func New(host string, port int, options ...Option) *Client {
	c := &Client{
		host: host,
		port: port,
		hc: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// HTTPClient sets the http.Client used for every request.
func HTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// Timeout sets the overall timeout of a single request, 0 disables it.
func Timeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.hc
		hc.Timeout = d
		c.hc = &hc
	}
}

// Logger will set the logger used to log failed requests
func Logger(l log.Logger) Option {
	return func(c *Client) {
		c.logger = &l
	}
}

// OnStatus sets the handler called with server reported status messages.
func OnStatus(fn StatusHandler) Option {
	return func(c *Client) {
		c.onStatus = fn
	}
}

// Metrics sets the vectors used to count and time requests. All of them are
// labelled by "method" and "group".
func Metrics(totals, errs *prometheus.CounterVec, duration prometheus.ObserverVec) Option {
	return func(c *Client) {
		c.totals = totals
		c.errs = errs
		c.duration = duration
	}
}

// WithHost returns a copy of c aimed at another host on the same port.
func (c *Client) WithHost(host string) *Client {
	cp := *c
	cp.host = host
	return &cp
}

// Get issues a GET for path and decodes the envelope result into result.
func (c *Client) Get(ctx context.Context, path string, query url.Values, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, result)
}

// Post sends body as JSON to path and decodes the envelope result into result,
// which may be nil.
func (c *Client) Post(ctx context.Context, path string, body, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	u := url.URL{
		Scheme:   "http",
		Host:     net.JoinHostPort(c.host, strconv.Itoa(c.port)),
		Path:     path,
		RawQuery: query.Encode(),
	}

	labels := prometheus.Labels{"method": method, "group": group(path)}
	if c.totals != nil {
		c.totals.With(labels).Inc()
	}
	if c.duration != nil {
		timer := prometheus.NewTimer(c.duration.With(labels))
		defer timer.ObserveDuration()
	}

	err := c.roundTrip(ctx, method, u.String(), body, result)
	if err != nil {
		if c.errs != nil {
			c.errs.With(labels).Inc()
		}
		if c.logger != nil {
			c.logger.With("method", method, "url", u.String()).Error(err)
		}
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, u string, body, result interface{}) error {
	fail := func(err error) error {
		return &RequestError{Method: method, URL: u, Err: err}
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fail(errors.Wrap(err, "marshal request body"))
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fail(errors.Wrap(err, "failed to create request"))
	}
	req.Header.Add("Accept", "application/json")
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fail(errors.Wrap(err, "failed to send request"))
	}
	defer resp.Body.Close()

	var env Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fail(errors.Wrapf(err, "decode response, http status %d", resp.StatusCode))
	}

	if msg := env.Status.DetailMessage(); msg != "" && c.onStatus != nil {
		c.onStatus(ctx, env.Status)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Status.Message
		if msg == "" {
			msg = env.Status.DetailMessage()
		}
		return errors.Wrapf(ErrStatus, "http status %d: %s", resp.StatusCode, msg)
	}

	if result == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return fail(errors.Wrap(err, "decode result"))
	}
	return nil
}

// group maps /api/{session,service}/{group}/... to group.
func group(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}
