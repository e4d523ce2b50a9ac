package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	upstreamDuration prometheus.ObserverVec
	upstreamErrors   *prometheus.CounterVec
	upstreamTotals   *prometheus.CounterVec

	sessionErrors *prometheus.CounterVec
	sessionTotals *prometheus.CounterVec
	pollTicks     *prometheus.CounterVec

	alertsTotal prometheus.Counter
	wsClients   prometheus.Gauge
	wsDropped   prometheus.Counter
)

var groups = []string{"colour", "mixedreality", "system", "project", "renderstream", "transport", "status"}

var ops = []string{
	"RefreshCDLs", "SelectCDL", "UpdateCDL",
	"RefreshMRSets", "SelectMRSet", "EnableObservation", "DeleteObservation", "DeleteAllObservations",
	"OverrideCamera", "CaptureObservation",
	"RefreshSystems", "RefreshProjects", "ProjectAction", "ProjectActionAll",
	"RefreshLayers", "SelectLayer", "RefreshCards", "LayerAction",
	"ToggleEngage", "TransportAction", "LoadCueList", "GoToTrack", "GoToCue", "SetMasterOutput",
	"RefreshNotifications",
}

func setupMetrics() {
	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "d3_request_duration_seconds",
		Help:    "Duration of requests to the d3 API.",
		Buckets: prometheus.LinearBuckets(.01, .1, 10),
	}, []string{"method", "group"})
	upstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "d3_request_errors_total",
		Help: "Number of failed requests to the d3 API.",
	}, []string{"method", "group"})
	upstreamTotals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "d3_requests_total",
		Help: "Number of requests to the d3 API.",
	}, []string{"method", "group"})

	logger.Info("initializing label values")
	var labels []prometheus.Labels
	for _, g := range groups {
		labels = append(labels,
			prometheus.Labels{"method": "GET", "group": g},
			prometheus.Labels{"method": "POST", "group": g},
		)
	}
	initObserverLabels(upstreamDuration, labels)
	initCounterLabels(upstreamErrors, labels)
	initCounterLabels(upstreamTotals, labels)

	sessionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_op_errors_total",
		Help: "Number of panel operations that failed.",
	}, []string{"op"})
	sessionTotals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_ops_total",
		Help: "Number of panel operations.",
	}, []string{"op"})
	labels = labels[:0]
	for _, op := range ops {
		labels = append(labels, prometheus.Labels{"op": op})
	}
	initCounterLabels(sessionErrors, labels)
	initCounterLabels(sessionTotals, labels)

	pollTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "poll_ticks_total",
		Help: "Number of ticks of the render-stream monitor and the notification poll.",
	}, []string{"poll"})
	initCounterLabels(pollTicks, []prometheus.Labels{{"poll": "monitor"}, {"poll": "notifications"}})

	alertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerts_total",
		Help: "Number of alerts shown to the operator.",
	})
	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_clients",
		Help: "Number of connected dashboards.",
	})
	wsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_dropped_total",
		Help: "Number of snapshots dropped because a dashboard was too slow.",
	})
}

func initObserverLabels(m prometheus.ObserverVec, l []prometheus.Labels) {
	for _, labels := range l {
		m.With(labels)
	}
}

func initCounterLabels(m *prometheus.CounterVec, l []prometheus.Labels) {
	for _, labels := range l {
		m.With(labels)
	}
}
