// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package siggroup

import (
	"net/netip"
	"sort"

	"grimm.is/sentryd/internal/addr"
)

// addrNext returns a+1 and whether that succeeded (false on overflow at
// the top of the family's address space).
func addrNext(a netip.Addr) (netip.Addr, bool) {
	b := a.AsSlice()
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xff {
			b[i]++
			out, _ := netip.AddrFromSlice(b)
			if a.Is4() {
				out = out.Unmap()
			}
			return out, true
		}
		b[i] = 0
	}
	return a, false
}

// addrPrev returns a-1 and whether that succeeded (false at the bottom of
// the family's address space).
func addrPrev(a netip.Addr) (netip.Addr, bool) {
	b := a.AsSlice()
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0x00 {
			b[i]--
			out, _ := netip.AddrFromSlice(b)
			if a.Is4() {
				out = out.Unmap()
			}
			return out, true
		}
		b[i] = 0xff
	}
	return a, false
}

// addrRangeGroup is one elementary (non-overlapping) address sub-range
// produced by the sweep, with the set of signature indices active there.
type addrRangeGroup struct {
	Lo, Hi netip.Addr
	Sigs   []int
}

// partitionAddrAxis implements the address-splitting half of spec.md
// §4.3 step 2/3 ("walking CIDR lists and inserting signatures into each
// overlapping ... range, splitting ranges where necessary so that within
// each leaf range the signature set is constant") as a coordinate-sweep
// over one address family, rather than the source's incremental
// DetectAddress linked-list splice — a standard, provably-correct
// interval-partition algorithm producing the same "constant signature set
// per leaf range" postcondition.
func partitionAddrAxis(family addr.Family, entries map[int][]addr.Range) []addrRangeGroup {
	type event struct {
		at    netip.Addr
		delta int
		sig   int
	}
	var events []event
	for sig, ranges := range entries {
		for _, r := range effectiveAddrRanges(family, ranges) {
			events = append(events, event{at: r.Lo, delta: 1, sig: sig})
			if next, ok := addrNext(r.Hi); ok {
				events = append(events, event{at: next, delta: -1, sig: sig})
			}
		}
	}
	if len(events) == 0 {
		return nil
	}
	sort.Slice(events, func(i, j int) bool { return events[i].at.Compare(events[j].at) < 0 })

	coords := make([]netip.Addr, 0, len(events))
	seen := map[netip.Addr]bool{}
	for _, e := range events {
		if !seen[e.at] {
			seen[e.at] = true
			coords = append(coords, e.at)
		}
	}

	active := map[int]int{}
	eventsByCoord := map[netip.Addr][]event{}
	for _, e := range events {
		eventsByCoord[e.at] = append(eventsByCoord[e.at], e)
	}

	famMax := addr.AnyRange(family).Hi
	var out []addrRangeGroup
	for i, c := range coords {
		for _, e := range eventsByCoord[c] {
			active[e.sig] += e.delta
		}
		var end netip.Addr
		if i+1 < len(coords) {
			end, _ = addrPrev(coords[i+1])
		} else {
			end = famMax
		}
		if len(active) == 0 {
			continue
		}
		var sigs []int
		for s, n := range active {
			if n > 0 {
				sigs = append(sigs, s)
			}
		}
		if len(sigs) == 0 {
			continue
		}
		sort.Ints(sigs)
		out = append(out, addrRangeGroup{Lo: c, Hi: end, Sigs: sigs})
	}
	return out
}

// effectiveAddrRanges resolves one signature's address-group entry into
// plain (non-negated) coverage ranges: the union of its positive ranges
// intersected with the complement of its negated ranges, matching rule
// syntax where negation means "anything but this."
func effectiveAddrRanges(family addr.Family, ranges []addr.Range) []addr.Range {
	var pos, neg []addr.Range
	for _, r := range ranges {
		if r.Family != family {
			continue
		}
		if r.Negated {
			neg = append(neg, addr.Range{Family: r.Family, Lo: r.Lo, Hi: r.Hi})
		} else {
			pos = append(pos, addr.Range{Family: r.Family, Lo: r.Lo, Hi: r.Hi})
		}
	}
	switch {
	case len(pos) == 0 && len(neg) == 0:
		return nil
	case len(neg) == 0:
		return mergeAddrRanges(pos)
	case len(pos) == 0:
		return complementAddrRanges(family, neg)
	default:
		return intersectAddrRangeLists(mergeAddrRanges(pos), complementAddrRanges(family, neg))
	}
}

func mergeAddrRanges(rs []addr.Range) []addr.Range {
	if len(rs) == 0 {
		return nil
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Lo.Compare(rs[j].Lo) < 0 })
	out := []addr.Range{rs[0]}
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if next, ok := addrNext(last.Hi); ok && r.Lo.Compare(next) <= 0 {
			if r.Hi.Compare(last.Hi) > 0 {
				last.Hi = r.Hi
			}
			continue
		}
		if r.Lo.Compare(last.Hi) <= 0 {
			if r.Hi.Compare(last.Hi) > 0 {
				last.Hi = r.Hi
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func complementAddrRanges(family addr.Family, rs []addr.Range) []addr.Range {
	merged := mergeAddrRanges(rs)
	full := addr.AnyRange(family)
	var out []addr.Range
	cur := full.Lo
	for _, r := range merged {
		if cur.Compare(r.Lo) < 0 {
			if hi, ok := addrPrev(r.Lo); ok {
				out = append(out, addr.Range{Family: family, Lo: cur, Hi: hi})
			}
		}
		if next, ok := addrNext(r.Hi); ok {
			cur = next
		} else {
			return out
		}
	}
	if cur.Compare(full.Hi) <= 0 {
		out = append(out, addr.Range{Family: family, Lo: cur, Hi: full.Hi})
	}
	return out
}

func intersectAddrRangeLists(a, b []addr.Range) []addr.Range {
	var out []addr.Range
	for _, ra := range a {
		for _, rb := range b {
			lo := ra.Lo
			if rb.Lo.Compare(lo) > 0 {
				lo = rb.Lo
			}
			hi := ra.Hi
			if rb.Hi.Compare(hi) < 0 {
				hi = rb.Hi
			}
			if lo.Compare(hi) <= 0 {
				out = append(out, addr.Range{Family: ra.Family, Lo: lo, Hi: hi})
			}
		}
	}
	return out
}

// portRangeGroup mirrors addrRangeGroup for the 16-bit port axis, where
// coordinate arithmetic is plain integer +/-1 instead of byte-slice
// carry/borrow.
type portRangeGroup struct {
	Lo, Hi addr.Port
	Sigs   []int
}

func partitionPortAxis(entries map[int][]addr.PortRange) []portRangeGroup {
	type event struct {
		at    int
		delta int
		sig   int
	}
	var events []event
	for sig, ranges := range entries {
		for _, r := range effectivePortRanges(ranges) {
			events = append(events, event{at: int(r.Lo), delta: 1, sig: sig})
			if int(r.Hi) < 65535 {
				events = append(events, event{at: int(r.Hi) + 1, delta: -1, sig: sig})
			}
		}
	}
	if len(events) == 0 {
		return nil
	}
	sort.Slice(events, func(i, j int) bool { return events[i].at < events[j].at })

	coords := make([]int, 0, len(events))
	seen := map[int]bool{}
	for _, e := range events {
		if !seen[e.at] {
			seen[e.at] = true
			coords = append(coords, e.at)
		}
	}

	active := map[int]int{}
	eventsByCoord := map[int][]event{}
	for _, e := range events {
		eventsByCoord[e.at] = append(eventsByCoord[e.at], e)
	}

	var out []portRangeGroup
	for i, c := range coords {
		for _, e := range eventsByCoord[c] {
			active[e.sig] += e.delta
		}
		end := 65535
		if i+1 < len(coords) {
			end = coords[i+1] - 1
		}
		var sigs []int
		for s, n := range active {
			if n > 0 {
				sigs = append(sigs, s)
			}
		}
		if len(sigs) == 0 {
			continue
		}
		sort.Ints(sigs)
		out = append(out, portRangeGroup{Lo: addr.Port(c), Hi: addr.Port(end), Sigs: sigs})
	}
	return out
}

func effectivePortRanges(ranges []addr.PortRange) []addr.PortRange {
	var pos, neg []addr.PortRange
	for _, r := range ranges {
		if r.Negated {
			neg = append(neg, addr.PortRange{Lo: r.Lo, Hi: r.Hi})
		} else {
			pos = append(pos, addr.PortRange{Lo: r.Lo, Hi: r.Hi})
		}
	}
	switch {
	case len(pos) == 0 && len(neg) == 0:
		return nil
	case len(neg) == 0:
		return mergePortRanges(pos)
	case len(pos) == 0:
		return complementPortRanges(neg)
	default:
		return intersectPortRangeLists(mergePortRanges(pos), complementPortRanges(neg))
	}
}

func mergePortRanges(rs []addr.PortRange) []addr.PortRange {
	if len(rs) == 0 {
		return nil
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Lo < rs[j].Lo })
	out := []addr.PortRange{rs[0]}
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if int(r.Lo) <= int(last.Hi)+1 {
			if r.Hi > last.Hi {
				last.Hi = r.Hi
			}
			continue
		}
		out = append(out, r)
	}
	return out
}

func complementPortRanges(rs []addr.PortRange) []addr.PortRange {
	merged := mergePortRanges(rs)
	var out []addr.PortRange
	cur := 0
	for _, r := range merged {
		if cur < int(r.Lo) {
			out = append(out, addr.PortRange{Lo: addr.Port(cur), Hi: addr.Port(int(r.Lo) - 1)})
		}
		cur = int(r.Hi) + 1
	}
	if cur <= 65535 {
		out = append(out, addr.PortRange{Lo: addr.Port(cur), Hi: 65535})
	}
	return out
}

func intersectPortRangeLists(a, b []addr.PortRange) []addr.PortRange {
	var out []addr.PortRange
	for _, ra := range a {
		for _, rb := range b {
			lo := ra.Lo
			if rb.Lo > lo {
				lo = rb.Lo
			}
			hi := ra.Hi
			if rb.Hi < hi {
				hi = rb.Hi
			}
			if lo <= hi {
				out = append(out, addr.PortRange{Lo: lo, Hi: hi})
			}
		}
	}
	return out
}
