// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package radix

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBestMatchWorkedExample(t *testing.T) {
	tree := NewIPv4Tree(nil)
	_, err := tree.AddPrefix(netip.MustParsePrefix("192.168.0.0/16"), 100, nil)
	require.NoError(t, err)
	_, err = tree.AddPrefix(netip.MustParsePrefix("192.168.1.0/24"), 200, nil)
	require.NoError(t, err)

	n := tree.FindBestMatchAddr(netip.MustParseAddr("192.168.1.5"))
	require.NotNil(t, n)
	require.Equal(t, 200, n.Entries()[0].UserData)

	n = tree.FindBestMatchAddr(netip.MustParseAddr("192.168.2.5"))
	require.NotNil(t, n)
	require.Equal(t, 100, n.Entries()[0].UserData)

	n = tree.FindBestMatchAddr(netip.MustParseAddr("10.0.0.1"))
	require.Nil(t, n)
}

func TestExactMatch(t *testing.T) {
	tree := NewIPv4Tree(nil)
	_, err := tree.AddPrefix(netip.MustParsePrefix("10.0.0.0/8"), "a", nil)
	require.NoError(t, err)

	require.NotNil(t, tree.FindExactPrefix(netip.MustParsePrefix("10.0.0.0/8")))
	require.Nil(t, tree.FindExactPrefix(netip.MustParsePrefix("10.0.0.0/16")))
}

func TestZeroNetmaskMatchesAll(t *testing.T) {
	tree := NewIPv4Tree(nil)
	_, err := tree.AddPrefix(netip.MustParsePrefix("0.0.0.0/0"), "default", nil)
	require.NoError(t, err)

	for _, s := range []string{"1.2.3.4", "255.255.255.255", "0.0.0.0"} {
		n := tree.FindBestMatchAddr(netip.MustParseAddr(s))
		require.NotNil(t, n, s)
		require.Equal(t, "default", n.Entries()[0].UserData)
	}

	_, err = tree.AddPrefix(netip.MustParsePrefix("10.0.0.0/8"), "specific", nil)
	require.NoError(t, err)
	n := tree.FindBestMatchAddr(netip.MustParseAddr("10.1.1.1"))
	require.Equal(t, "specific", n.Entries()[0].UserData)
	n = tree.FindBestMatchAddr(netip.MustParseAddr("8.8.8.8"))
	require.Equal(t, "default", n.Entries()[0].UserData)
}

func TestAddRemoveRoundTrip(t *testing.T) {
	tree := NewIPv4Tree(nil)
	p := netip.MustParsePrefix("172.16.0.0/12")
	_, err := tree.AddPrefix(p, 1, nil)
	require.NoError(t, err)
	require.NotNil(t, tree.FindExactPrefix(p))

	ok := tree.RemovePrefix(p)
	require.True(t, ok)
	require.Nil(t, tree.FindExactPrefix(p))
	require.Nil(t, tree.root)
}

func TestMultipleNetmasksSamePrefix(t *testing.T) {
	tree := NewIPv4Tree(nil)
	_, err := tree.AddPrefix(netip.MustParsePrefix("192.168.0.0/16"), "slash16", nil)
	require.NoError(t, err)
	_, err = tree.AddPrefix(netip.MustParsePrefix("192.168.0.0/20"), "slash20", nil)
	require.NoError(t, err)

	n16 := tree.FindExactPrefix(netip.MustParsePrefix("192.168.0.0/16"))
	require.Equal(t, "slash16", n16.Entries()[0].UserData)
	n20 := tree.FindExactPrefix(netip.MustParsePrefix("192.168.0.0/20"))
	require.Equal(t, "slash20", n20.Entries()[0].UserData)

	best := tree.FindBestMatchAddr(netip.MustParseAddr("192.168.0.5"))
	require.Equal(t, "slash20", best.Entries()[0].UserData)
}

func TestMergeOnDuplicateInsert(t *testing.T) {
	tree := NewIPv4Tree(nil)
	p := netip.MustParsePrefix("10.0.0.0/8")
	merge := func(old, new any) any { return old.(int) + new.(int) }
	_, err := tree.AddPrefix(p, 1, merge)
	require.NoError(t, err)
	_, err = tree.AddPrefix(p, 2, merge)
	require.NoError(t, err)

	n := tree.FindExactPrefix(p)
	require.Equal(t, 3, n.Entries()[0].UserData)
}

func TestIPv6Tree(t *testing.T) {
	tree := NewIPv6Tree(nil)
	_, err := tree.AddPrefix(netip.MustParsePrefix("2001:db8::/32"), "doc", nil)
	require.NoError(t, err)

	n := tree.FindBestMatchAddr(netip.MustParseAddr("2001:db8::1"))
	require.NotNil(t, n)
	require.Equal(t, "doc", n.Entries()[0].UserData)

	n = tree.FindBestMatchAddr(netip.MustParseAddr("2001:db9::1"))
	require.Nil(t, n)
}

func TestHostRoute(t *testing.T) {
	tree := NewIPv4Tree(nil)
	a := netip.MustParseAddr("203.0.113.5")
	_, err := tree.AddHost(a, "host", nil)
	require.NoError(t, err)

	n := tree.FindBestMatchAddr(a)
	require.NotNil(t, n)
	require.Equal(t, "host", n.Entries()[0].UserData)
	require.Nil(t, tree.FindBestMatchAddr(netip.MustParseAddr("203.0.113.6")))
}

func TestFreeCallback(t *testing.T) {
	var freed []any
	tree := NewIPv4Tree(func(v any) { freed = append(freed, v) })
	_, _ = tree.AddPrefix(netip.MustParsePrefix("10.0.0.0/8"), "x", nil)
	_, _ = tree.AddPrefix(netip.MustParsePrefix("192.168.0.0/16"), "y", nil)
	tree.Free()
	require.ElementsMatch(t, []any{"x", "y"}, freed)
	require.Nil(t, tree.root)
}
