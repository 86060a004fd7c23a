// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes sentryd's per-process detection counters as
// Prometheus collectors, generalizing the teacher's internal/ebpf/metrics
// stat-struct pattern (PacketsProcessed/PacketsDropped counters, labeled
// vectors per hook/map) into the handful of counters spec.md §7's
// "user-visible behavior" calls for: decoded packets, raised decoder
// events, alerts fired, and per-thread rule-load failures.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every sentryd Prometheus collector.
type Metrics struct {
	PacketsDecoded   prometheus.Counter
	PacketsDropped   prometheus.Counter
	DecoderEvents    *prometheus.CounterVec
	AlertsFired      *prometheus.CounterVec
	RuleLoadErrors   *prometheus.CounterVec
	RuleLoadFatal    prometheus.Counter
	SignaturesLoaded prometheus.Gauge
	EngineBuilds     prometheus.Counter
	EngineBuildSecs  prometheus.Histogram
}

// NewMetrics constructs a fresh, unregistered Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		PacketsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentryd_packets_decoded_total",
			Help: "Total number of packets successfully decoded.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentryd_packets_dropped_total",
			Help: "Total number of packets dropped before decode (e.g. truncated capture).",
		}),
		DecoderEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentryd_decoder_events_total",
			Help: "Total number of decoder anomaly events raised, by event name.",
		}, []string{"event"}),
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentryd_alerts_fired_total",
			Help: "Total number of alerts fired, by signature id.",
		}, []string{"sid"}),
		RuleLoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentryd_rule_load_errors_total",
			Help: "Total number of rule-parse errors encountered while loading a signature set.",
		}, []string{"reason"}),
		RuleLoadFatal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentryd_rule_load_fatal_total",
			Help: "Total number of rule-load attempts aborted entirely (failure_fatal).",
		}),
		SignaturesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentryd_signatures_loaded",
			Help: "Number of signatures in the currently active engine.",
		}),
		EngineBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sentryd_engine_builds_total",
			Help: "Total number of signature-group engine (re)builds.",
		}),
		EngineBuildSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentryd_engine_build_seconds",
			Help:    "Time taken to build a signature-group engine.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.PacketsDecoded.Describe(ch)
	m.PacketsDropped.Describe(ch)
	m.DecoderEvents.Describe(ch)
	m.AlertsFired.Describe(ch)
	m.RuleLoadErrors.Describe(ch)
	m.RuleLoadFatal.Describe(ch)
	m.SignaturesLoaded.Describe(ch)
	m.EngineBuilds.Describe(ch)
	m.EngineBuildSecs.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.PacketsDecoded.Collect(ch)
	m.PacketsDropped.Collect(ch)
	m.DecoderEvents.Collect(ch)
	m.AlertsFired.Collect(ch)
	m.RuleLoadErrors.Collect(ch)
	m.RuleLoadFatal.Collect(ch)
	m.SignaturesLoaded.Collect(ch)
	m.EngineBuilds.Collect(ch)
	m.EngineBuildSecs.Collect(ch)
}

// Register registers m with the given registerer (prometheus.DefaultRegisterer
// if reg is nil).
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return reg.Register(m)
}

// ObserveAlert increments the per-sid alert counter.
func (m *Metrics) ObserveAlert(sid uint32) {
	m.AlertsFired.WithLabelValues(strconv.FormatUint(uint64(sid), 10)).Inc()
}

// ObserveDecoderEvent increments the per-event decoder counter.
func (m *Metrics) ObserveDecoderEvent(event string) {
	m.DecoderEvents.WithLabelValues(event).Inc()
}
