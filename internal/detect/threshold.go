// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detect

import (
	"net/netip"
	"sync"
	"time"

	"grimm.is/sentryd/internal/sigparse"
)

// thresholdKey identifies one tracked (sid, track-key) bucket (spec.md
// §4.5 "per-(sid, track-key) entry").
type thresholdKey struct {
	sid    uint32
	bucket netip.Addr
}

type thresholdEntry struct {
	windowStart time.Time
	count       int
	// armed latches true the first time a TYPE_DETECTION entry reaches
	// its count within a window, and never resets: spec.md §8 scenario 5
	// has a match 200s after the last one (long past the 60s window)
	// still alert on its own, with no further matches needed to rebuild
	// up to count. Unused by the other threshold types.
	armed bool
}

// ThresholdTable tracks threshold/detection_filter state across packets,
// one entry per (sid, track-key) (spec.md §4.5).
type ThresholdTable struct {
	mu      sync.Mutex
	entries map[thresholdKey]*thresholdEntry
}

// NewThresholdTable returns an empty table.
func NewThresholdTable() *ThresholdTable {
	return &ThresholdTable{entries: make(map[thresholdKey]*thresholdEntry)}
}

func bucketFor(track sigparse.ThresholdTrack, src, dst netip.Addr) netip.Addr {
	switch track {
	case sigparse.TrackBySrc:
		return src
	case sigparse.TrackByDst:
		return dst
	default:
		return netip.Addr{}
	}
}

// Allow reports whether the current match against sid, under clause th,
// should produce an alert, given the wall-clock time of the match and the
// packet's addresses to key by (spec.md §4.5's four threshold types).
func (t *ThresholdTable) Allow(sid uint32, th *sigparse.Threshold, now time.Time, src, dst netip.Addr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := thresholdKey{sid: sid, bucket: bucketFor(th.Track, src, dst)}
	e, ok := t.entries[k]
	if !ok {
		e = &thresholdEntry{windowStart: now}
		t.entries[k] = e
	}
	if now.Sub(e.windowStart) >= time.Duration(th.Seconds)*time.Second {
		e.windowStart = now
		e.count = 0
	}
	e.count++

	switch th.Type {
	case sigparse.TypeLimit:
		return e.count <= th.Count
	case sigparse.TypeThreshold:
		if e.count == th.Count {
			e.count = 0
			return true
		}
		return false
	case sigparse.TypeBoth:
		return e.count == th.Count
	case sigparse.TypeDetection:
		if e.armed {
			return true
		}
		if e.count >= th.Count {
			e.armed = true
			return true
		}
		return false
	default:
		return true
	}
}
