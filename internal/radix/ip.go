// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package radix

import "net/netip"

// NewIPv4Tree creates an empty 32-bit tree.
func NewIPv4Tree(free func(any)) *Tree { return NewTree(32, free) }

// NewIPv6Tree creates an empty 128-bit tree.
func NewIPv6Tree(free func(any)) *Tree { return NewTree(128, free) }

// AddPrefix inserts a netip.Prefix into the tree. The prefix's address
// family must match the tree's bit width.
func (t *Tree) AddPrefix(p netip.Prefix, data any, merge func(old, new any) any) (*Node, error) {
	a := p.Addr().Unmap()
	return t.AddKey(a.AsSlice(), p.Bits(), data, merge)
}

// AddHost inserts a single address as a host route (netmask == bit width).
func (t *Tree) AddHost(a netip.Addr, data any, merge func(old, new any) any) (*Node, error) {
	a = a.Unmap()
	return t.AddKey(a.AsSlice(), t.Bitlen, data, merge)
}

// FindBestMatchAddr is FindBestMatch for a netip.Addr.
func (t *Tree) FindBestMatchAddr(a netip.Addr) *Node {
	a = a.Unmap()
	return t.FindBestMatch(a.AsSlice())
}

// MatchPathAddr is MatchPath for a netip.Addr.
func (t *Tree) MatchPathAddr(a netip.Addr) []*Node {
	a = a.Unmap()
	return t.MatchPath(a.AsSlice())
}

// FindExactPrefix is FindExact for a netip.Prefix.
func (t *Tree) FindExactPrefix(p netip.Prefix) *Node {
	a := p.Addr().Unmap()
	return t.FindExact(a.AsSlice(), p.Bits())
}

// RemovePrefix is RemoveKey for a netip.Prefix.
func (t *Tree) RemovePrefix(p netip.Prefix) bool {
	a := p.Addr().Unmap()
	return t.RemoveKey(a.AsSlice(), p.Bits())
}
