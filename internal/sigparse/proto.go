// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package sigparse implements the signature parser & AST of C4: turning one
// textual rule line into a Signature, or rejecting it with a specific
// error (spec.md §4.2, §7). Grounded on the keyword-routing and DCE
// splicing description in spec.md §4.2/§3; the teacher carries no rule
// language of its own, so the AST shape and parse algorithm are built
// directly from spec.md and original_source's decode headers for constant
// values, in the teacher's established style (explicit structs, errors
// via internal/errors, no panics on malformed input).
package sigparse

import "grimm.is/sentryd/internal/decode"

// DetectProto is the signature's 256-bit protocol mask (spec.md §3).
type DetectProto struct {
	Any  bool
	bits [256 / 64]uint64
}

// AnyProto returns a mask matching every protocol ("ip" or "any" in rule text).
func AnyProto() DetectProto { return DetectProto{Any: true} }

// Set marks protocol number n as matched.
func (d *DetectProto) Set(n uint8) {
	d.bits[n/64] |= 1 << uint(n%64)
}

// Matches reports whether protocol p is selected by the mask.
func (d DetectProto) Matches(p decode.Proto) bool {
	if d.Any {
		return true
	}
	n := uint8(p)
	return d.bits[n/64]&(1<<uint(n%64)) != 0
}

// Protocols returns the concrete protocol numbers set in the mask. It
// returns nil when Any is set — callers should check Any first, since a
// fully-enumerated any-mask would be 256 entries for no benefit.
func (d DetectProto) Protocols() []uint8 {
	if d.Any {
		return nil
	}
	var out []uint8
	for word := 0; word < len(d.bits); word++ {
		w := d.bits[word]
		for w != 0 {
			bit := uint8(word*64) + uint8(trailingZeros64(w))
			out = append(out, bit)
			w &= w - 1
		}
	}
	return out
}

func trailingZeros64(x uint64) int {
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

// ProtoFromToken resolves a rule-text protocol token to a wire protocol
// number, or false if it names an application protocol instead (handled
// as AppProto, not a DetectProto bit).
func ProtoFromToken(tok string) (uint8, bool) {
	switch tok {
	case "tcp":
		return uint8(decode.ProtoTCP), true
	case "udp":
		return uint8(decode.ProtoUDP), true
	case "icmp":
		return uint8(decode.ProtoICMP), true
	case "icmpv6", "icmp6":
		return uint8(decode.ProtoICMPv6), true
	default:
		return 0, false
	}
}
