// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package iponly implements the IP-only fast path of C6: four radix trees
// (src_v4, dst_v4, src_v6, dst_v6) that resolve a packet's (src, dst) pair
// straight to a signature-number bit array in O(bits-in-address) time, with
// no content inspection at all.
//
// Grounded on spec.md §4.4 and original_source/src/detect-engine-iponly.c
// (IPOnlyInit, IPOnlyMatchPacket): the original keeps one address tree per
// direction per family and ORs per-netblock bit arrays together on a
// best-match lookup. This implementation walks every containing netblock
// along the path (internal/radix's MatchPath) rather than stopping at the
// single longest match, because two signatures with differently sized
// CIDRs can both cover an address without either shadowing the other.
package iponly

import (
	"net/netip"

	"go4.org/netipx"

	"grimm.is/sentryd/internal/addr"
	"grimm.is/sentryd/internal/radix"
	"grimm.is/sentryd/internal/sigparse"
)

// Bits is a signature-number bit array, the same shape as internal/siggroup's
// canonical bit array but kept as its own type: the two engines dedup and
// hash independently and have no reason to share representation.
type Bits []uint64

// NewBits allocates a bit array wide enough to hold n signature indices.
func NewBits(n int) Bits { return make(Bits, (n+63)/64) }

func (b Bits) set(i int) { b[i/64] |= 1 << uint(i%64) }

// Has reports whether signature index i is a member.
func (b Bits) Has(i int) bool {
	if i/64 >= len(b) {
		return false
	}
	return b[i/64]&(1<<uint(i%64)) != 0
}

func (b Bits) clone() Bits {
	out := make(Bits, len(b))
	copy(out, b)
	return out
}

func (b Bits) xor(o Bits) Bits {
	n := len(b)
	if len(o) > n {
		n = len(o)
	}
	out := make(Bits, n)
	copy(out, b)
	for i, w := range o {
		out[i] ^= w
	}
	return out
}

// And intersects two bit arrays.
func (b Bits) And(o Bits) Bits {
	n := len(b)
	if len(o) < n {
		n = len(o)
	}
	out := make(Bits, n)
	for i := 0; i < n; i++ {
		out[i] = b[i] & o[i]
	}
	return out
}

// IsZero reports whether no signature is a member.
func (b Bits) IsZero() bool {
	for _, w := range b {
		if w != 0 {
			return false
		}
	}
	return true
}

func mergeUnion(oldV, newV any) any {
	o, n := oldV.(Bits), newV.(Bits)
	out := o.clone()
	if len(n) > len(out) {
		grown := make(Bits, len(n))
		copy(grown, out)
		out = grown
	}
	for i, w := range n {
		out[i] |= w
	}
	return out
}

func freeEntry(any) {}

// Engine is the four-tree IP-only index.
type Engine struct {
	srcV4, dstV4 *radix.Tree
	srcV6, dstV6 *radix.Tree
	numSigs      int
}

// Build indexes every IP-only signature's flattened CIDR lists. Signatures
// that aren't IP-only (spec.md §4.2's classifyIPOnly) are skipped; they're
// matched by the detection runtime's content path instead.
func Build(sigs []*sigparse.Signature) *Engine {
	e := &Engine{
		srcV4:   radix.NewIPv4Tree(freeEntry),
		dstV4:   radix.NewIPv4Tree(freeEntry),
		srcV6:   radix.NewIPv6Tree(freeEntry),
		dstV6:   radix.NewIPv6Tree(freeEntry),
		numSigs: len(sigs),
	}
	for idx, s := range sigs {
		if !s.Flags.Has(sigparse.FlagIPOnly) {
			continue
		}
		if s.Flags.Has(sigparse.FlagAnySrc) {
			e.insertAny(true, idx)
		} else {
			for _, item := range s.CidrSrc {
				e.insert(e.treeFor(item.Range.Family, true), item.Range, idx)
			}
		}
		if s.Flags.Has(sigparse.FlagAnyDst) {
			e.insertAny(false, idx)
		} else {
			for _, item := range s.CidrDst {
				e.insert(e.treeFor(item.Range.Family, false), item.Range, idx)
			}
		}
	}
	return e
}

// insertAny sets a signature's bit at the netmask-0 node of both families'
// tree for one side (src or dst): a bare "any" address field has no
// IPOnlyCIDRItem at all (parseAddrGroup returns nil ranges for "any"), so
// without this the signature's bit would never be set on that side and an
// AND against the other side would always come up empty.
func (e *Engine) insertAny(src bool, idx int) {
	b := NewBits(e.numSigs)
	b.set(idx)
	v4 := netip.PrefixFrom(addr.AnyRange(addr.FamilyIPv4).Lo, 0)
	v6 := netip.PrefixFrom(addr.AnyRange(addr.FamilyIPv6).Lo, 0)
	e.treeFor(addr.FamilyIPv4, src).AddPrefix(v4, b.clone(), mergeUnion)
	e.treeFor(addr.FamilyIPv6, src).AddPrefix(v6, b.clone(), mergeUnion)
}

// NumSignatures reports the bit-array width the engine was built with.
func (e *Engine) NumSignatures() int { return e.numSigs }

func (e *Engine) treeFor(family addr.Family, src bool) *radix.Tree {
	switch {
	case src && family == addr.FamilyIPv4:
		return e.srcV4
	case src:
		return e.srcV6
	case family == addr.FamilyIPv4:
		return e.dstV4
	default:
		return e.dstV6
	}
}

// insert adds one signature's contribution to t. A positive range inserts
// directly into every CIDR block covering [Lo, Hi]. A negated range (per
// spec.md §4.4, "the engine adds an overlapping wider match plus a
// subtracted narrower match, and the final signature set is the XOR of
// these contributions") instead inserts into the whole address space
// (netmask 0) *and* into the negated block itself: at lookup time, a query
// address inside the negated block walks through both contributions and
// they cancel; an address outside only ever sees the wide one.
func (e *Engine) insert(t *radix.Tree, r addr.Range, idx int) {
	b := NewBits(e.numSigs)
	b.set(idx)

	if r.Negated {
		wide := netip.PrefixFrom(addr.AnyRange(r.Family).Lo, 0)
		t.AddPrefix(wide, b.clone(), mergeUnion)
		for _, p := range netipx.IPRangeFrom(r.Lo, r.Hi).Prefixes() {
			t.AddPrefix(p, b.clone(), mergeUnion)
		}
		return
	}
	for _, p := range netipx.IPRangeFrom(r.Lo, r.Hi).Prefixes() {
		t.AddPrefix(p, b.clone(), mergeUnion)
	}
}

// Lookup intersects the src and dst contributions for one packet, giving
// every IP-only signature number that fires without any content
// inspection at all.
func (e *Engine) Lookup(proto uint8, src, dst netip.Addr) Bits {
	s := e.accumulate(e.treeFor(addr.FamilyOf(src), true), src)
	d := e.accumulate(e.treeFor(addr.FamilyOf(dst), false), dst)
	return s.And(d)
}

func (e *Engine) accumulate(t *radix.Tree, a netip.Addr) Bits {
	out := NewBits(e.numSigs)
	for _, n := range t.MatchPathAddr(a) {
		for _, entry := range n.Entries() {
			if b, ok := entry.UserData.(Bits); ok {
				out = out.xor(b)
			}
		}
	}
	return out
}
