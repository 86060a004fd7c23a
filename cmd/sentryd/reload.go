// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"grimm.is/sentryd/internal/config"
	"grimm.is/sentryd/internal/detect"
	"grimm.is/sentryd/internal/geoip"
	"grimm.is/sentryd/internal/logging"
	"grimm.is/sentryd/internal/metrics"
	"grimm.is/sentryd/internal/sigparse"
)

// reloader holds the active detection engine behind an atomic pointer, so
// workers reading it concurrently never observe a partially-built engine
// (spec.md §5: "the loader calls SigGroupBuild, which is not safe to call
// concurrently with workers" — here the build itself runs off to the
// side and only the pointer swap is visible to workers).
type reloader struct {
	active atomic.Pointer[detect.Engine]
	cfg    *config.Config
	log    *logging.Logger
	m      *metrics.Metrics
	geo    *geoip.Reader
	group  singleflight.Group
}

func newReloader(sigs []*sigparse.Signature, cfg *config.Config, log *logging.Logger, m *metrics.Metrics, geo *geoip.Reader) (*reloader, error) {
	r := &reloader{cfg: cfg, log: log, m: m, geo: geo}
	if err := r.rebuild(sigs); err != nil {
		return nil, err
	}
	return r, nil
}

// Engine returns the currently active engine for workers to call Inspect on.
func (r *reloader) Engine() *detect.Engine {
	return r.active.Load()
}

func (r *reloader) rebuild(sigs []*sigparse.Signature) error {
	start := time.Now()
	eng, err := detect.BuildWithProfile(sigs, r.cfg.Profile())
	if err != nil {
		return err
	}
	if r.geo != nil {
		eng.SetGeoLookup(r.geo)
	}
	r.active.Store(eng)
	r.m.EngineBuilds.Inc()
	r.m.EngineBuildSecs.Observe(time.Since(start).Seconds())
	r.m.SignaturesLoaded.Set(float64(len(sigs)))
	return nil
}

// reloadFromPath re-reads every rule file under path and swaps in a fresh
// engine. Concurrent triggers (several fsnotify events for one save)
// dedupe onto a single in-flight rebuild via singleflight.
func (r *reloader) reloadFromPath(path string) {
	_, _, _ = r.group.Do(path, func() (any, error) {
		sigs, err := loadRuleSet(path, r.cfg, r.log, r.m)
		if err != nil {
			r.log.Error("rule reload aborted", "path", path, "error", err)
			return nil, err
		}
		if err := r.rebuild(sigs); err != nil {
			r.log.Error("engine rebuild failed, keeping previous engine", "error", err)
			return nil, err
		}
		r.log.Info("engine reloaded", "signatures", len(sigs))
		return nil, nil
	})
}

// watchRules starts an fsnotify watch on path (or its containing
// directory, if path is a single file) and triggers reloadFromPath on any
// write/create/remove/rename event. The returned stop func closes the
// watcher; callers should defer it.
func (r *reloader) watchRules(path string) (stop func(), err error) {
	watchDir, err := watchTarget(path)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(watchDir); err != nil {
		w.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					r.reloadFromPath(path)
				}
			case watchErr, ok := <-w.Errors:
				if !ok {
					return
				}
				r.log.Warn("rule watch error", "error", watchErr)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		w.Close()
	}, nil
}
