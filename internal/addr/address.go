// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package addr implements the address/port primitives of C1: family-tagged
// addresses, CIDR ranges and port ranges, with the containment and overlap
// relations the rule-group organizer (C5) and IP-only engine (C6) need.
//
// Addresses are represented on top of net/netip rather than a hand-rolled
// {IPv4(u32), IPv6([u32;4])} union: net/netip.Addr already is exactly that
// tagged union, and every address-handling file in the reference corpus
// (grimm-is-flywall/internal/netutil, dantte-lp-gobfd) reaches for net or
// net/netip rather than a third-party CIDR library for this concern.
package addr

import (
	"fmt"
	"net/netip"
)

// Family identifies the address family carried by a Range or Address.
type Family uint8

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
)

func (f Family) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// FamilyOf returns the Family of a netip.Addr.
func FamilyOf(a netip.Addr) Family {
	if a.Is4() || a.Is4In6() {
		return FamilyIPv4
	}
	return FamilyIPv6
}

// Range is one address-group element: a single host, a CIDR netblock, or
// (following the grammar of bracketed rule address groups) an explicit
// lo-hi span, optionally negated. Equality is family+bits; ordering within
// a family is lexicographic by the unmasked lo address.
type Range struct {
	Family   Family
	Lo, Hi   netip.Addr
	Negated  bool
}

// Host returns a Range matching exactly one address.
func Host(a netip.Addr) Range {
	a = a.Unmap()
	return Range{Family: FamilyOf(a), Lo: a, Hi: a}
}

// CIDR returns a Range spanning an entire netblock.
func CIDR(p netip.Prefix) Range {
	p = netip.PrefixFrom(p.Addr().Unmap(), p.Bits())
	lo := p.Masked().Addr()
	hi := lastAddr(p)
	return Range{Family: FamilyOf(lo), Lo: lo, Hi: hi}
}

// ParseRange parses a single address-group token: "1.2.3.4", "1.2.3.0/24",
// "::1", "fe80::/10", with an optional leading "!" for negation.
func ParseRange(tok string) (Range, error) {
	negated := false
	if len(tok) > 0 && tok[0] == '!' {
		negated = true
		tok = tok[1:]
	}
	if tok == "" {
		return Range{}, fmt.Errorf("addr: empty address token")
	}

	if p, err := netip.ParsePrefix(tok); err == nil {
		r := CIDR(p)
		r.Negated = negated
		return r, nil
	}
	a, err := netip.ParseAddr(tok)
	if err != nil {
		return Range{}, fmt.Errorf("addr: invalid address %q: %w", tok, err)
	}
	r := Host(a)
	r.Negated = negated
	return r, nil
}

// lastAddr computes the broadcast/highest address of a masked prefix.
func lastAddr(p netip.Prefix) netip.Addr {
	base := p.Masked().Addr()
	bytes := base.AsSlice()
	bits := p.Bits()
	total := len(bytes) * 8
	for i := bits; i < total; i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		bytes[byteIdx] |= 1 << bitIdx
	}
	out, _ := netip.AddrFromSlice(bytes)
	if p.Addr().Is4() {
		out = out.Unmap()
	}
	return out
}

// Contains reports whether a lies within r's span (ignoring negation: callers
// apply negation by flipping the result, matching the AST's own Negated
// bookkeeping rather than baking it into Contains itself).
func (r Range) Contains(a netip.Addr) bool {
	a = a.Unmap()
	if FamilyOf(a) != r.Family {
		return false
	}
	return cmpAddr(a, r.Lo) >= 0 && cmpAddr(a, r.Hi) <= 0
}

// Matches applies negation on top of Contains, the form match evaluation
// actually wants.
func (r Range) Matches(a netip.Addr) bool {
	hit := r.Contains(a)
	if r.Negated {
		return !hit
	}
	return hit
}

// Overlaps reports whether two ranges of the same family share any address.
func (r Range) Overlaps(o Range) bool {
	if r.Family != o.Family {
		return false
	}
	return cmpAddr(r.Lo, o.Hi) <= 0 && cmpAddr(o.Lo, r.Hi) <= 0
}

// Equal reports structural equality (family, bounds, negation).
func (r Range) Equal(o Range) bool {
	return r.Family == o.Family && r.Lo == o.Lo && r.Hi == o.Hi && r.Negated == o.Negated
}

// IsAny reports whether r spans the whole address space for its family
// (the "any" sentinel the AST's any-src/any-dst flags track).
func (r Range) IsAny() bool {
	switch r.Family {
	case FamilyIPv4:
		return r.Lo == netip.IPv4Unspecified() && r.Hi == v4Max
	default:
		return r.Lo == netip.IPv6Unspecified() && r.Hi == v6Max
	}
}

var (
	v4Max = netip.MustParseAddr("255.255.255.255")
	v6Max = netip.MustParseAddr("ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff")
)

// AnyRange returns the full-space Range for a family.
func AnyRange(f Family) Range {
	if f == FamilyIPv4 {
		return Range{Family: f, Lo: netip.IPv4Unspecified(), Hi: v4Max}
	}
	return Range{Family: f, Lo: netip.IPv6Unspecified(), Hi: v6Max}
}

func cmpAddr(a, b netip.Addr) int {
	return a.Compare(b)
}

func (r Range) String() string {
	neg := ""
	if r.Negated {
		neg = "!"
	}
	if r.Lo == r.Hi {
		return fmt.Sprintf("%s%s", neg, r.Lo)
	}
	return fmt.Sprintf("%s%s-%s", neg, r.Lo, r.Hi)
}
