// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package addr

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRangeCIDR(t *testing.T) {
	r, err := ParseRange("192.168.0.0/16")
	require.NoError(t, err)
	require.Equal(t, FamilyIPv4, r.Family)
	require.True(t, r.Matches(netip.MustParseAddr("192.168.1.5")))
	require.False(t, r.Matches(netip.MustParseAddr("10.0.0.1")))
}

func TestParseRangeNegated(t *testing.T) {
	r, err := ParseRange("!10.0.0.0/8")
	require.NoError(t, err)
	require.True(t, r.Negated)
	require.False(t, r.Matches(netip.MustParseAddr("10.1.2.3")))
	require.True(t, r.Matches(netip.MustParseAddr("8.8.8.8")))
}

func TestParseRangeHost(t *testing.T) {
	r, err := ParseRange("203.0.113.5")
	require.NoError(t, err)
	require.True(t, r.Matches(netip.MustParseAddr("203.0.113.5")))
	require.False(t, r.Matches(netip.MustParseAddr("203.0.113.6")))
}

func TestParseRangeIPv6(t *testing.T) {
	r, err := ParseRange("2001:db8::/32")
	require.NoError(t, err)
	require.Equal(t, FamilyIPv6, r.Family)
	require.True(t, r.Matches(netip.MustParseAddr("2001:db8::1")))
	require.False(t, r.Matches(netip.MustParseAddr("2001:db9::1")))
}

func TestParseRangeZeroCIDR(t *testing.T) {
	v4, err := ParseRange("0.0.0.0/0")
	require.NoError(t, err)
	require.True(t, v4.IsAny())
	require.True(t, v4.Matches(netip.MustParseAddr("1.2.3.4")))

	v6, err := ParseRange("::/0")
	require.NoError(t, err)
	require.True(t, v6.IsAny())
	require.True(t, v6.Matches(netip.MustParseAddr("::1")))
}

func TestRangeOverlaps(t *testing.T) {
	a, _ := ParseRange("10.0.0.0/8")
	b, _ := ParseRange("10.1.0.0/16")
	c, _ := ParseRange("192.168.0.0/16")
	require.True(t, a.Overlaps(b))
	require.False(t, a.Overlaps(c))
}

func TestParseRangeInvalid(t *testing.T) {
	_, err := ParseRange("not-an-address")
	require.Error(t, err)
	_, err = ParseRange("")
	require.Error(t, err)
}
