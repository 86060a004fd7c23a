// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package addr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePortRangeSingle(t *testing.T) {
	r, err := ParsePortRange("80")
	require.NoError(t, err)
	require.True(t, r.Matches(80))
	require.False(t, r.Matches(81))
}

func TestParsePortRangeSpan(t *testing.T) {
	r, err := ParsePortRange("1024:2048")
	require.NoError(t, err)
	require.True(t, r.Matches(1500))
	require.False(t, r.Matches(1023))
	require.False(t, r.Matches(2049))
}

func TestParsePortRangeOpenEnded(t *testing.T) {
	hi, err := ParsePortRange("1024:")
	require.NoError(t, err)
	require.True(t, hi.Matches(65535))
	require.False(t, hi.Matches(1023))

	lo, err := ParsePortRange(":1024")
	require.NoError(t, err)
	require.True(t, lo.Matches(0))
	require.False(t, lo.Matches(1025))
}

func TestParsePortRangeAny(t *testing.T) {
	r, err := ParsePortRange("any")
	require.NoError(t, err)
	require.True(t, r.IsAny())
}

func TestParsePortRangeNegated(t *testing.T) {
	r, err := ParsePortRange("!80")
	require.NoError(t, err)
	require.True(t, r.Negated)
	require.False(t, r.Matches(80))
	require.True(t, r.Matches(81))
}

func TestParsePortRangeInvalid(t *testing.T) {
	_, err := ParsePortRange("notaport")
	require.Error(t, err)
	_, err = ParsePortRange("70000")
	require.Error(t, err)
	_, err = ParsePortRange("100:50")
	require.Error(t, err)
}

func TestPortRangeOverlaps(t *testing.T) {
	a, _ := ParsePortRange("1:100")
	b, _ := ParsePortRange("50:200")
	c, _ := ParsePortRange("300:400")
	require.True(t, a.Overlaps(b))
	require.False(t, a.Overlaps(c))
}
