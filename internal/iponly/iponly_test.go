// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package iponly

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/sentryd/internal/sigparse"
)

func mustParse(t *testing.T, rule string) *sigparse.Signature {
	t.Helper()
	s, err := sigparse.Parse(rule)
	require.NoError(t, err)
	return s
}

func TestBuildLookupMatchesContainingCIDR(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip 10.0.0.0/24 any -> any any (msg:"a"; sid:1;)`),
	}
	require.True(t, sigs[0].Flags.Has(sigparse.FlagIPOnly))

	e := Build(sigs)
	hit := e.Lookup(6, netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("1.2.3.4"))
	require.True(t, hit.Has(0))

	miss := e.Lookup(6, netip.MustParseAddr("10.0.1.5"), netip.MustParseAddr("1.2.3.4"))
	require.False(t, miss.Has(0))
}

func TestBuildLookupOverlappingCIDRsBothFire(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip 10.0.0.0/8 any -> any any (msg:"wide"; sid:1;)`),
		mustParse(t, `alert ip 10.0.0.0/24 any -> any any (msg:"narrow"; sid:2;)`),
	}
	e := Build(sigs)

	inBoth := e.Lookup(6, netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("1.2.3.4"))
	require.True(t, inBoth.Has(0))
	require.True(t, inBoth.Has(1))

	wideOnly := e.Lookup(6, netip.MustParseAddr("10.5.5.5"), netip.MustParseAddr("1.2.3.4"))
	require.True(t, wideOnly.Has(0))
	require.False(t, wideOnly.Has(1))
}

func TestBuildLookupNegatedCIDRExcludesBlock(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip !10.0.0.0/24 any -> any any (msg:"notblock"; sid:1;)`),
	}
	e := Build(sigs)

	inside := e.Lookup(6, netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("1.2.3.4"))
	require.False(t, inside.Has(0))

	outside := e.Lookup(6, netip.MustParseAddr("10.0.1.5"), netip.MustParseAddr("1.2.3.4"))
	require.True(t, outside.Has(0))

	elsewhere := e.Lookup(6, netip.MustParseAddr("200.1.1.1"), netip.MustParseAddr("1.2.3.4"))
	require.True(t, elsewhere.Has(0))
}

func TestBuildSkipsNonIPOnlySignatures(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp 10.0.0.0/24 any -> any any (msg:"has content"; content:"GET"; sid:1;)`),
	}
	require.False(t, sigs[0].Flags.Has(sigparse.FlagIPOnly))

	e := Build(sigs)
	hit := e.Lookup(6, netip.MustParseAddr("10.0.0.5"), netip.MustParseAddr("1.2.3.4"))
	require.True(t, hit.IsZero())
}

func TestBuildSrcAndDstMustBothMatch(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip 10.0.0.0/24 any -> 20.0.0.0/24 any (msg:"pair"; sid:1;)`),
	}
	e := Build(sigs)

	require.True(t, e.Lookup(6, netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("20.0.0.1")).Has(0))
	require.False(t, e.Lookup(6, netip.MustParseAddr("10.0.0.1"), netip.MustParseAddr("1.2.3.4")).Has(0))
	require.False(t, e.Lookup(6, netip.MustParseAddr("1.2.3.4"), netip.MustParseAddr("20.0.0.1")).Has(0))
}

func TestBuildIPv6(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip fe80::/10 any -> any any (msg:"v6"; sid:1;)`),
	}
	e := Build(sigs)
	require.True(t, e.Lookup(41, netip.MustParseAddr("fe80::1"), netip.MustParseAddr("::1")).Has(0))
	require.False(t, e.Lookup(41, netip.MustParseAddr("2001:db8::1"), netip.MustParseAddr("::1")).Has(0))
}
