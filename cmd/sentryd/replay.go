// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"grimm.is/sentryd/internal/alert"
	"grimm.is/sentryd/internal/config"
	"grimm.is/sentryd/internal/decode"
	"grimm.is/sentryd/internal/logging"
	"grimm.is/sentryd/internal/metrics"
)

// replayPcap reads path frame by frame and runs each decoded packet
// through the active engine, fanning work out across workers goroutines
// (golang.org/x/sync/errgroup, the same pool-driver dependency the
// teacher's flywall-sim replay loop uses). Tunnel pseudo-packets that a
// decode call queues on the PendingQueue are inspected in the same
// worker before it moves to the next frame, so a GRE-in-IP packet never
// crosses goroutines mid-decode.
func replayPcap(path string, r *reloader, cfg *config.Config, m *metrics.Metrics, log *logging.Logger, workers int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	src, err := decode.NewReplaySource(f)
	if err != nil {
		return err
	}

	fastLogPath := filepath.Join(cfg.DefaultLogDir, "fast.log")
	if err := rotateIfNeeded(fastLogPath, cfg.LogRotateBytes, log); err != nil {
		log.Warn("fast log rotation failed, continuing without rotating", "error", err)
	}
	out, err := os.OpenFile(fastLogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	fastLog := alert.NewFastLog(alert.NewCtx(out))
	defer fastLog.Close()

	frames := make(chan *decode.Packet, workers*4)
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		defer close(frames)
		stats := &decode.DecodeStats{}
		tctx := decode.NewThreadCtx(stats)
		var pq decode.PendingQueue
		for {
			p, err := src.Next(tctx, &pq)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			select {
			case frames <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
			for _, inner := range pq.Drain() {
				select {
				case frames <- inner:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for p := range frames {
				inspectOne(r, fastLog, m, p)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("replay complete", "alerts", fastLog.Alerts())
	return nil
}

func inspectOne(r *reloader, fastLog *alert.FastLog, m *metrics.Metrics, p *decode.Packet) {
	defer decode.ReleasePacket(p)

	m.PacketsDecoded.Inc()
	for _, ev := range p.Events.Events() {
		m.ObserveDecoderEvent(ev.String())
	}

	r.Engine().Inspect(p)
	if p.AlertCount == 0 {
		return
	}
	p.SortAlerts()
	for i := 0; i < p.AlertCount; i++ {
		m.ObserveAlert(p.Alerts[i].SID)
	}
	_ = fastLog.Emit(p)
}
