package main

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/hangyeol-kang/d3RW/prefs"
	"github.com/hangyeol-kang/d3RW/session"
	"github.com/hangyeol-kang/d3RW/table"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// panel serves the dashboard and the JSON API the dashboard drives.
type panel struct {
	sess  *session.Session
	prefs *prefs.Store
	hub   *hub
}

// version is the build of the panel and the d3 machine it drives.
type version struct {
	GitRev  string         `json:"git_rev"`
	Service string         `json:"service_name"`
	Started time.Time      `json:"started"`
	Target  session.Target `json:"target"`
}

func (p *panel) versionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version{
		GitRev:  gitRev,
		Service: "d3rw",
		Started: StartTime,
		Target:  p.sess.Target(),
	})
}

// health reports the panel process and what it knows about its d3 target.
type health struct {
	GitRev     string            `json:"git_rev"`
	Uptime     float64           `json:"uptime"`
	Goroutines int               `json:"goroutines"`
	Target     session.Target    `json:"target"`
	Upstream   bool              `json:"upstream_reachable"`
	Indicator  session.Indicator `json:"indicator"`
	Engaged    bool              `json:"transport_engaged"`
	Monitoring bool              `json:"monitoring"`
	Alerts     int               `json:"alerts"`
	Dashboards int               `json:"dashboards"`
}

// healthCheckHandler answers 503 while the last d3 call failed, so load
// balancers and probes see an unreachable target.
func (p *panel) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	snap := p.sess.Snapshot()
	res := health{
		GitRev:     gitRev,
		Uptime:     time.Since(StartTime).Seconds(),
		Goroutines: runtime.NumGoroutine(),
		Target:     snap.Target,
		Upstream:   snap.UpstreamReachable,
		Indicator:  snap.Indicator,
		Engaged:    snap.Transport.Engaged,
		Monitoring: snap.Renderstream.Monitoring,
		Alerts:     len(snap.Alerts),
	}
	if p.hub != nil {
		res.Dashboards = p.hub.count()
	}

	code := http.StatusOK
	if !res.Upstream {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, res)
}

func (p *panel) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handleDashboard)
	mux.HandleFunc("/setting", p.handleSetting)
	mux.HandleFunc("/ws", p.hub.handleWebSocket)
	mux.HandleFunc("/api/state", p.handleState)

	mux.HandleFunc("/api/target", post(p.handleTarget))
	mux.HandleFunc("/api/prefs/sidebar", post(p.handleSidebar))
	mux.HandleFunc("/api/alerts/dismiss", post(p.handleDismiss))

	mux.HandleFunc("/api/colour/refresh", post(p.run(p.sess.RefreshCDLs)))
	mux.HandleFunc("/api/colour/select", post(p.handleSelect(p.sess.SelectCDL)))
	mux.HandleFunc("/api/colour/update", post(p.handleCDLUpdate))

	mux.HandleFunc("/api/mixedreality/refresh", post(p.run(p.sess.RefreshMRSets)))
	mux.HandleFunc("/api/mixedreality/select", post(p.handleSelect(p.sess.SelectMRSet)))
	mux.HandleFunc("/api/mixedreality/observation", post(p.handleToggle(p.sess.SelectObservation)))
	mux.HandleFunc("/api/mixedreality/action", post(p.handleMRAction))

	mux.HandleFunc("/api/project/refresh", post(p.run(p.refreshProjects)))
	mux.HandleFunc("/api/project/system", post(p.handleToggle(p.sess.SelectSystem)))
	mux.HandleFunc("/api/project/select", post(p.handleToggle(p.sess.SelectProject)))
	mux.HandleFunc("/api/project/action", post(p.handleProjectAction))

	mux.HandleFunc("/api/renderstream/refresh", post(p.run(p.sess.RefreshLayers)))
	mux.HandleFunc("/api/renderstream/select", post(p.handleSelect(p.sess.SelectLayer)))
	mux.HandleFunc("/api/renderstream/monitor", post(p.handleMonitor))
	mux.HandleFunc("/api/renderstream/action", post(p.handleAction(p.sess.LayerAction)))

	mux.HandleFunc("/api/transport/engage", post(p.handleEngage))
	mux.HandleFunc("/api/transport/action", post(p.handleAction(p.sess.TransportAction)))
	mux.HandleFunc("/api/transport/cuelist", post(p.run(p.sess.LoadCueList)))
	mux.HandleFunc("/api/transport/track", post(p.handleTrack))
	mux.HandleFunc("/api/transport/cue", post(p.handleCue))
	mux.HandleFunc("/api/transport/output", post(p.handleOutput))
	mux.HandleFunc("/api/transport/notifications", post(p.run(p.sess.RefreshNotifications)))

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/version", p.versionHandler)
	mux.HandleFunc("/healthcheck", p.healthCheckHandler)
	return otelhttp.NewHandler(mux, "panel")
}

func setupHTTP(ctx context.Context, p *panel, port int, errCh chan<- error) *http.Server {
	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(port),
		Handler: p.routes(),
	}
	go func() {
		logger.With("port", port).Info("serving http")
		err := srv.ListenAndServe()
		if err == http.ErrServerClosed {
			err = nil
		}
		errCh <- err
	}()
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	return srv
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
			return
		}
		h(w, r)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(errors.Wrap(err, "encode response"))
	}
}

var errBadRequest = errors.New("bad request body")

// statusCode maps errors to the answer the dashboard gets. The state stays as
// it was before the call in every case.
func statusCode(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, session.ErrInvalidTarget),
		errors.Is(err, session.ErrInvalidField),
		errors.Is(err, table.ErrUnknownRow),
		errors.Is(err, d3.ErrInvalidAction),
		errors.Is(err, d3.ErrInvalidOutput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoSelection),
		errors.Is(err, session.ErrNoTransport),
		errors.Is(err, session.ErrNotEngaged),
		errors.Is(err, session.ErrNoCamera),
		errors.Is(err, session.ErrNoCalibration),
		errors.Is(err, session.ErrCaptureRunning):
		return http.StatusConflict
	case errors.Is(err, session.ErrCaptureTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, d3.ErrRequest), errors.Is(err, d3.ErrStatus):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// reply answers with the snapshot, or with the error.
func (p *panel) reply(w http.ResponseWriter, err error) {
	if err != nil {
		writeJSON(w, statusCode(err), errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p.sess.Snapshot())
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

func (p *panel) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.sess.Snapshot())
}

func (p *panel) handleSetting(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.sess.Settings())
}

func (p *panel) run(fn func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.reply(w, fn(r.Context()))
	}
}

func (p *panel) refreshProjects(ctx context.Context) error {
	if err := p.sess.RefreshSystems(ctx); err != nil {
		return err
	}
	return p.sess.RefreshProjects(ctx)
}

type keyRequest struct {
	UID  string `json:"uid"`
	IP   string `json:"ip"`
	Path string `json:"path"`
}

func (k keyRequest) key() string {
	switch {
	case k.UID != "":
		return k.UID
	case k.IP != "":
		return k.IP
	}
	return k.Path
}

func (p *panel) handleSelect(fn func(context.Context, string) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req keyRequest
		if err := decode(r, &req); err != nil {
			p.reply(w, err)
			return
		}
		_, err := fn(r.Context(), req.key())
		p.reply(w, err)
	}
}

func (p *panel) handleToggle(fn func(string) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req keyRequest
		if err := decode(r, &req); err != nil {
			p.reply(w, err)
			return
		}
		_, err := fn(req.key())
		p.reply(w, err)
	}
}

type actionRequest struct {
	Action string `json:"action"`
	Camera string `json:"camera,omitempty"`
	All    bool   `json:"all,omitempty"`
}

func (p *panel) handleAction(fn func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req actionRequest
		if err := decode(r, &req); err != nil {
			p.reply(w, err)
			return
		}
		p.reply(w, fn(r.Context(), req.Action))
	}
}

func (p *panel) handleMRAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		p.reply(w, err)
		return
	}
	p.reply(w, p.sess.MRAction(r.Context(), req.Action, req.Camera))
}

func (p *panel) handleProjectAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decode(r, &req); err != nil {
		p.reply(w, err)
		return
	}
	if req.All {
		p.reply(w, p.sess.ProjectActionAll(r.Context(), req.Action))
		return
	}
	p.reply(w, p.sess.ProjectAction(r.Context(), req.Action))
}

func (p *panel) handleTarget(w http.ResponseWriter, r *http.Request) {
	var req session.Target
	if err := decode(r, &req); err != nil {
		p.reply(w, err)
		return
	}
	t, err := p.sess.SetTarget(req.Host, req.Port)
	if err != nil {
		p.reply(w, err)
		return
	}
	if p.prefs != nil {
		if err := p.prefs.SaveTarget(r.Context(), t.Host, t.Port); err != nil {
			logger.Error(err)
		}
	}
	p.sess.Reload(r.Context())
	p.reply(w, nil)
}

func (p *panel) handleSidebar(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Collapsed bool `json:"collapsed"`
	}
	if err := decode(r, &req); err != nil {
		p.reply(w, err)
		return
	}
	p.sess.SetSidebarCollapsed(req.Collapsed)
	if p.prefs != nil {
		if err := p.prefs.SetSidebar(r.Context(), req.Collapsed); err != nil {
			logger.Error(err)
		}
	}
	p.reply(w, nil)
}

func (p *panel) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decode(r, &req); err != nil {
		p.reply(w, err)
		return
	}
	p.sess.DismissAlert(req.ID)
	p.reply(w, nil)
}

func (p *panel) handleCDLUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Field string  `json:"field"`
		Value float64 `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		p.reply(w, err)
		return
	}
	p.reply(w, p.sess.UpdateCDL(r.Context(), req.Field, req.Value))
}

func (p *panel) handleMonitor(w http.ResponseWriter, r *http.Request) {
	p.sess.ToggleMonitoring()
	p.reply(w, nil)
}

func (p *panel) handleEngage(w http.ResponseWriter, r *http.Request) {
	_, err := p.sess.ToggleEngage(r.Context())
	p.reply(w, err)
}

func (p *panel) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	if err := decode(r, &req); err != nil {
		p.reply(w, err)
		return
	}
	p.reply(w, p.sess.GoToTrack(r.Context(), req.UID))
}

func (p *panel) handleCue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Track string `json:"track"`
		Index int    `json:"index"`
	}
	if err := decode(r, &req); err != nil {
		p.reply(w, err)
		return
	}
	p.reply(w, p.sess.GoToCue(r.Context(), req.Track, req.Index))
}

func (p *panel) handleOutput(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Property string  `json:"property"`
		Value    float64 `json:"value"`
	}
	if err := decode(r, &req); err != nil {
		p.reply(w, err)
		return
	}
	p.reply(w, p.sess.SetMasterOutput(r.Context(), req.Property, req.Value))
}
