// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveAlertIncrementsPerSID(t *testing.T) {
	m := NewMetrics()
	m.ObserveAlert(1)
	m.ObserveAlert(1)
	m.ObserveAlert(2)

	require.Equal(t, float64(2), testutil.ToFloat64(m.AlertsFired.WithLabelValues("1")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.AlertsFired.WithLabelValues("2")))
}

func TestObserveDecoderEventIncrementsPerEvent(t *testing.T) {
	m := NewMetrics()
	m.ObserveDecoderEvent("IPV4_OPT_PAD_REQUIRED")
	m.ObserveDecoderEvent("IPV4_OPT_PAD_REQUIRED")

	require.Equal(t, float64(2), testutil.ToFloat64(m.DecoderEvents.WithLabelValues("IPV4_OPT_PAD_REQUIRED")))
}

func TestRegisterSucceedsOnce(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))
	require.Error(t, m.Register(reg)) // duplicate collector registration
}
