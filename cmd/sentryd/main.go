// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command sentryd loads a signature set, builds a detection engine, and
// drives packets from a pcap file through decode -> detect -> alert.
// It mirrors the teacher's cmd/flywall-sim: a single binary that exercises
// the library end to end without needing a live capture interface, since
// the capture front end is out of scope for this core (spec.md §1).
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"grimm.is/sentryd/internal/config"
	"grimm.is/sentryd/internal/errors"
	"grimm.is/sentryd/internal/geoip"
	"grimm.is/sentryd/internal/logging"
	"grimm.is/sentryd/internal/metrics"
	"grimm.is/sentryd/internal/sigparse"
)

var errTooManyFailures = errors.New(errors.KindEngineInit, "rule load failures exceeded failure_fatal threshold")

func main() {
	configPath := flag.String("config", "", "path to engine HCL config file")
	rulesPath := flag.String("rules", "", "path to a rule file or directory of *.rules files")
	replayPath := flag.String("r", "", "pcap file to replay through the detection engine")
	watch := flag.Bool("watch", false, "watch -rules for changes and hot-reload the engine")
	workers := flag.Int("workers", 0, "number of detection worker goroutines (0 = GOMAXPROCS)")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus /metrics on (empty disables)")
	geoDBPath := flag.String("geoip-db", "", "path to a MaxMind country mmdb (empty disables the geoip keyword)")
	flag.Parse()

	if *rulesPath == "" {
		os.Stderr.WriteString("sentryd: -rules is required\n")
		os.Exit(2)
	}

	log := logging.New(logging.DefaultConfig()).WithComponent("sentryd")
	logging.SetDefault(log)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		log.Info("maxprocs", "msg", fmt.Sprintf(format, args...))
	})); err != nil {
		log.Warn("failed to set GOMAXPROCS from cgroup quota", "error", err)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load engine config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	m := metrics.NewMetrics()
	if err := m.Register(nil); err != nil {
		log.Warn("failed to register metrics", "error", err)
	}

	var geo *geoip.Reader
	if *geoDBPath != "" {
		opened, err := geoip.Open(*geoDBPath)
		if err != nil {
			log.Error("failed to open geoip database", "path", *geoDBPath, "error", err)
			os.Exit(1)
		}
		defer opened.Close()
		geo = opened
	}

	sigs, loadErr := loadRuleSet(*rulesPath, cfg, log, m)
	if loadErr != nil {
		log.Error("fatal rule load failure", "error", loadErr)
		os.Exit(1)
	}
	m.SignaturesLoaded.Set(float64(len(sigs)))

	r, err := newReloader(sigs, cfg, log, m, geo)
	if err != nil {
		log.Error("failed to build initial detection engine", "error", err)
		os.Exit(1)
	}

	if *watch {
		stop, err := r.watchRules(*rulesPath)
		if err != nil {
			log.Warn("rule directory watch disabled", "error", err)
		} else {
			defer stop()
		}
	}

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, log)
	}

	if *replayPath == "" {
		log.Info("no -r pcap given; engine built, exiting", "signatures", len(sigs))
		return
	}

	n := *workers
	if n <= 0 {
		n = 1
	}
	if err := replayPcap(*replayPath, r, cfg, m, log, n); err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func loadRuleSet(path string, cfg *config.Config, log *logging.Logger, m *metrics.Metrics) ([]*sigparse.Signature, error) {
	paths, err := sigparse.ResolveRuleFiles(path)
	if err != nil {
		return nil, err
	}

	var sigs []*sigparse.Signature
	var failed int
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			log.Error("failed to open rule file", "path", p, "error", err)
			failed++
			continue
		}
		res, err := sigparse.Load(f)
		f.Close()
		if err != nil {
			log.Error("failed to scan rule file", "path", p, "error", err)
			failed++
			continue
		}
		for _, le := range res.Errors {
			log.Error("rejected rule", "file", p, "line", le.Line, "reason", le.Err)
			m.RuleLoadErrors.WithLabelValues(le.Err.Error()).Inc()
		}
		failed += len(res.Errors)
		sigs = append(sigs, res.Signatures...)
	}

	log.Info("rule load summary", "loaded", len(sigs), "failed", failed)
	if failed > 0 && cfg.FailureFatal {
		m.RuleLoadFatal.Inc()
		return nil, errTooManyFailures
	}
	return sigs, nil
}
