// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/sentryd/internal/logging"
)

// serveMetrics runs a blocking HTTP server exposing Prometheus metrics at
// /metrics on addr, the same mux.Handle("/metrics", promhttp.Handler())
// wiring the teacher uses in internal/api/server.go and
// internal/ebpf/stats/exporter.go. Callers run it in its own goroutine.
func serveMetrics(addr string, log *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server stopped", "error", err)
	}
}
