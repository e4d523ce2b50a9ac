package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	otelinit "github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/hangyeol-kang/d3RW/d3"
	"github.com/hangyeol-kang/d3RW/prefs"
	"github.com/hangyeol-kang/d3RW/session"
	"github.com/packethost/pkg/log"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

var (
	gitRev    = "unknown"
	logger    log.Logger
	StartTime = time.Now()
)

// newSession builds the session from the config, letting saved preferences
// override the configured target.
func newSession(ctx context.Context, cfg Config, store *prefs.Store) (*session.Session, error) {
	host, port := cfg.Target.Host, cfg.Target.Port
	if store != nil {
		h, p, ok, err := store.Target(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			host, port = h, p
		}
	}
	target, err := session.ParseTarget(host, port)
	if err != nil {
		return nil, err
	}

	sess := session.New(target,
		session.Logger(logger.Package("session")),
		session.PanelSettings(cfg.Setting),
		session.Workers(cfg.Upstream.Workers),
		session.CaptureTimeout(cfg.Capture.Timeout),
		session.Metrics(sessionTotals, sessionErrors),
		session.PollTicks(pollTicks),
		session.AlertCounter(alertsTotal),
		session.ClientOptions(
			d3.Timeout(cfg.Upstream.Timeout),
			d3.Logger(logger.Package("d3")),
			d3.Metrics(upstreamTotals, upstreamErrors, upstreamDuration),
		),
	)

	if store != nil {
		collapsed, err := store.Sidebar(ctx)
		if err != nil {
			return nil, err
		}
		sess.SetSidebarCollapsed(collapsed)
	}
	return sess, nil
}

func main() {
	log, err := log.Init("github.com/hangyeol-kang/d3RW")
	if err != nil {
		panic(err)
	}
	logger = log
	defer logger.Close()

	cfg, err := loadConfig(viper.New())
	if err != nil {
		logger.Error(err)
		panic(err)
	}

	ctx, closer := context.WithCancel(context.Background())
	ctx, otelShutdown := otelinit.InitOpenTelemetry(ctx, "d3rw")
	defer otelShutdown(ctx)

	setupMetrics()

	store, err := prefs.Open(ctx, cfg.Prefs.Path)
	if err != nil {
		err = errors.Wrap(err, "open preferences")
		logger.Error(err)
		panic(err)
	}
	defer store.Close()

	sess, err := newSession(ctx, cfg, store)
	if err != nil {
		logger.Error(err)
		panic(err)
	}
	defer sess.Close()
	t := sess.Target()
	logger.With("host", t.Host, "port", t.Port).Info("d3 target")

	h := newHub(sess, logger.Package("websocket"), wsClients, wsDropped)
	go h.run(ctx)
	go sess.Bootstrap(ctx)

	errCh := make(chan error, 2)
	setupGRPC(ctx, sess, cfg.GRPC.Port, errCh)
	setupHTTP(ctx, &panel{sess: sess, prefs: store, hub: h}, cfg.HTTP.Port, errCh)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	select {
	case err = <-errCh:
		logger.Error(err)
		panic(err)
	case sig := <-sigs:
		logger.With("signal", sig.String()).Info("signal received, stopping servers")
	}
	closer()

	// wait for both grpc and http servers to shutdown
	err = <-errCh
	if err != nil {
		logger.Error(err)
		panic(err)
	}
	err = <-errCh
	if err != nil {
		logger.Error(err)
		panic(err)
	}
}
