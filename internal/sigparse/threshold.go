// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import (
	"fmt"
	"strconv"
	"strings"
)

// ThresholdType selects the counting semantics (spec.md §4.5).
type ThresholdType int

const (
	TypeLimit ThresholdType = iota
	TypeThreshold
	TypeBoth
	TypeDetection
)

// ThresholdTrack selects the key a threshold/detection_filter counts by.
type ThresholdTrack int

const (
	TrackBySrc ThresholdTrack = iota
	TrackByDst
	TrackByRule
)

// Threshold is a parsed `threshold`/`detection_filter` clause.
type Threshold struct {
	Type    ThresholdType
	Track   ThresholdTrack
	Count   int
	Seconds int
}

// ParseThreshold parses a `threshold:` clause:
// "type limit|threshold|both, track by_src|by_dst|by_rule, count N, seconds N".
func ParseThreshold(arg string) (*Threshold, error) {
	t, err := parseThresholdFields(arg)
	if err != nil {
		return nil, err
	}
	if t.Type == TypeDetection {
		return nil, fmt.Errorf("sigparse: threshold clause cannot set type detection")
	}
	return t, nil
}

// ParseDetectionFilter parses a `detection_filter:` clause: the same
// track/count/seconds fields, always TYPE_DETECTION.
func ParseDetectionFilter(arg string) (*Threshold, error) {
	t, err := parseThresholdFields(arg)
	if err != nil {
		return nil, err
	}
	t.Type = TypeDetection
	return t, nil
}

func parseThresholdFields(arg string) (*Threshold, error) {
	t := &Threshold{Type: TypeLimit, Track: TrackByRule}
	for _, field := range strings.Split(arg, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		kv := strings.SplitN(field, " ", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("sigparse: malformed threshold field %q", field)
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case "type":
			switch val {
			case "limit":
				t.Type = TypeLimit
			case "threshold":
				t.Type = TypeThreshold
			case "both":
				t.Type = TypeBoth
			default:
				return nil, fmt.Errorf("sigparse: unknown threshold type %q", val)
			}
		case "track":
			switch val {
			case "by_src":
				t.Track = TrackBySrc
			case "by_dst":
				t.Track = TrackByDst
			case "by_rule":
				t.Track = TrackByRule
			default:
				return nil, fmt.Errorf("sigparse: unknown threshold track %q", val)
			}
		case "count":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("sigparse: threshold count must be a positive integer")
			}
			t.Count = n
		case "seconds":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("sigparse: threshold seconds must be a positive integer")
			}
			t.Seconds = n
		default:
			return nil, fmt.Errorf("sigparse: unknown threshold field %q", key)
		}
	}
	if t.Count == 0 || t.Seconds == 0 {
		return nil, fmt.Errorf("sigparse: threshold clause requires count and seconds")
	}
	return t, nil
}
