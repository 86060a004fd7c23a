// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package detect implements the per-packet detection runtime of C7: the
// gate -> SGH lookup -> IP-only pass -> per-signature match-list walk ->
// threshold gate -> alert pipeline (spec.md §4.5).
//
// Grounded on spec.md §4.5 and §5 (exhaustive read): the teacher
// (grimm-is-flywall) has no signature-based matcher of its own to adapt
// (internal/ebpf/ips/ enforces static verdicts, not a rule AST), so the
// control flow here is built directly from the spec using the C4/C5/C6
// packages it already produced. What this package deliberately does NOT
// implement: HTTP/FTP/DCERPC application-layer parsers, so umatch/amatch/
// dmatch predicates (which need those buffers) are recorded on the AST
// and grouped into SigGroupHeads correctly but never evaluated — a
// signature needing them structurally exists and is counted, but can
// never fire. Recorded as an Open Question decision in DESIGN.md rather
// than silently dropped.
package detect

import (
	"net/netip"
	"strings"
	"time"

	"grimm.is/sentryd/internal/addr"
	"grimm.is/sentryd/internal/decode"
	"grimm.is/sentryd/internal/iponly"
	"grimm.is/sentryd/internal/sigparse"
	"grimm.is/sentryd/internal/siggroup"
)

// GeoLookup resolves an address to an ISO country code, the contract
// internal/geoip.Reader satisfies; kept as an interface here so this
// package never imports a MaxMind database binding directly.
type GeoLookup interface {
	Country(addr netip.Addr) (code string, ok bool)
}

// Engine is the built, frozen detection engine: the SGH forest (C5), the
// IP-only fast path (C6), the flat signature slice, and the threshold
// table every thread sharing this Engine consults (spec.md §5 "signature
// graph ... frozen"). Build is not safe to call concurrently with
// Inspect; once built, Inspect itself is safe for concurrent callers
// (the threshold table is the only runtime-mutable shared state, and it
// carries its own mutex).
type Engine struct {
	sigs       []*sigparse.Signature
	sgh        *siggroup.Engine
	ipOnly     *iponly.Engine
	thresholds *ThresholdTable
	geo        GeoLookup
}

// SetGeoLookup attaches an optional country-code resolver for the geoip
// keyword; a signature using it never matches until this is called
// (geoip requires an operator-supplied MaxMind database, spec.md's
// distillation has no bundled one).
func (e *Engine) SetGeoLookup(g GeoLookup) { e.geo = g }

// Build constructs an Engine from a parsed signature set.
func Build(sigs []*sigparse.Signature) (*Engine, error) {
	return BuildWithProfile(sigs, siggroup.DefaultProfile)
}

// BuildWithProfile is Build with an explicit siggroup.EngineProfile.
func BuildWithProfile(sigs []*sigparse.Signature, profile siggroup.EngineProfile) (*Engine, error) {
	sgh, err := siggroup.BuildWithProfile(sigs, profile)
	if err != nil {
		return nil, err
	}
	return &Engine{
		sigs:       sigs,
		sgh:        sgh,
		ipOnly:     iponly.Build(sigs),
		thresholds: NewThresholdTable(),
	}, nil
}

// flowState classifies a packet's direction for the SGH lookup: a TCP
// SYN with no ACK is the client's first segment (to_server); everything
// else defaults to to_server too, since this engine keeps no cross-
// packet flow table to track a connection's established direction
// (spec.md §9's "global mutable state" notwithstanding, a real flow
// table is out of scope here — recorded in DESIGN.md).
func flowState(p *decode.Packet) siggroup.FlowState {
	if p.TCP != nil && p.TCP.Flags&decode.TCPFlagSYN != 0 && p.TCP.Flags&decode.TCPFlagACK != 0 {
		return siggroup.ToClient
	}
	return siggroup.ToServer
}

// Inspect runs the full detection pipeline against p, queuing alerts via
// p.AddAlert and leaving them in detection order; callers that need
// num-sorted output call p.SortAlerts afterward (spec.md §4.5 steps 1-6,
// §5 "alerts sorted by num before output").
func (e *Engine) Inspect(p *decode.Packet) {
	if p.SuppressPayloadInspection && p.IP4 == nil && p.IP6 == nil {
		return
	}
	if !p.SrcAddr.IsValid() || !p.DstAddr.IsValid() {
		return
	}

	fs := flowState(p)
	sgh := e.sgh.Lookup(fs, uint8(p.Proto), p.SrcAddr, p.DstAddr, addr.Port(p.SrcPort), addr.Port(p.DstPort))
	if sgh == nil {
		return
	}

	var ipBits iponly.Bits
	now := p.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	for _, header := range sgh.HeadArray {
		sig := header.Sig
		if sig.Flags.Has(sigparse.FlagIPOnly) {
			if ipBits == nil {
				ipBits = e.ipOnly.Lookup(uint8(p.Proto), p.SrcAddr, p.DstAddr)
			}
			if !ipBits.Has(header.Num) {
				continue
			}
			e.fire(p, header, now)
			continue
		}
		if !e.matchSignature(p, sig) {
			continue
		}
		e.fire(p, header, now)
	}
}

// fire applies threshold/detection_filter gating and, if the match
// survives it, appends an alert (spec.md §4.5 step 6 "post-match
// actions: alert/... /threshold-counter"). Num is the SGH-assigned
// ordering key (the signature's input-order index), the key alerts are
// later stable-sorted by (spec.md §5, §8).
func (e *Engine) fire(p *decode.Packet, header *siggroup.SignatureHeader, now time.Time) {
	sig := header.Sig
	if sig.Flags.Has(sigparse.FlagNoAlert) {
		return
	}
	if th := sig.ThresholdClause(); th != nil {
		if !e.thresholds.Allow(sig.SID, th, now, p.SrcAddr, p.DstAddr) {
			return
		}
	} else if df := sig.DetectionFilterClause(); df != nil {
		if !e.thresholds.Allow(sig.SID, df, now, p.SrcAddr, p.DstAddr) {
			return
		}
	}
	p.AddAlert(decode.PacketAlert{
		Num:        uint32(header.Num),
		SID:        sig.SID,
		GID:        sig.GID,
		Rev:        sig.Rev,
		Priority:   sig.Priority,
		Action:     sig.Action,
		Msg:        sig.Msg,
		Class:      sig.ClassType,
		ClassMsg:   sig.ClassMsg,
		References: sig.References,
	})
}

// matchSignature walks a non-IP-only signature's match lists against p in
// order, stopping at the first predicate that fails (spec.md §4.5 steps
// 2a/2b). umatch/dmatch-bearing signatures never match (no HTTP/URI or
// DCERPC parser exists here; see the package doc comment and DESIGN.md).
// amatch is evaluated for the two supplemental keywords this engine
// understands (dns_query, ja3); any other amatch predicate still never
// matches, the same as before those two were added.
func (e *Engine) matchSignature(p *decode.Packet, sig *sigparse.Signature) bool {
	if sig.Flags.Has(sigparse.FlagUMatchPresent) || sig.Flags.Has(sigparse.FlagDMatchPresent) {
		return false
	}
	if sig.Flags.Has(sigparse.FlagAMatchPresent) && !matchAppLayerList(p, sig.AMatch()) {
		return false
	}
	if !matchPacketList(p, sig.Match(), e.geo) {
		return false
	}
	return matchPayloadList(p.Payload, sig.PMatch())
}

// matchAppLayerList evaluates amatch for the keywords this engine can
// resolve from decoder-populated packet fields. Both sides are already
// lowercased at decode/parse time, so plain byte comparison suffices.
// Any other amatch entry (e.g. ftpbounce, which needs an FTP command
// parser this engine doesn't have) fails the signature outright,
// consistent with the "no app-layer parser" scope line recorded in
// DESIGN.md.
func matchAppLayerList(p *decode.Packet, list []*sigparse.SigMatch) bool {
	for _, sm := range list {
		switch sm.Type {
		case "dns_query":
			if p.DNSQuery == "" || !strings.Contains(p.DNSQuery, sm.Ctx.(string)) {
				return false
			}
		case "ja3":
			if p.TLSJA3 == "" || p.TLSJA3 != sm.Ctx.(string) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// matchPacketList evaluates the packet-level (non-payload) match list:
// any failure here stops the signature (spec.md §201). Each keyword's
// SigMatch.Type and parsed Ctx come from sigparse/packetfields.go, one
// per keyword, grounded on original_source/src/detect-ttl.c (the
// EQ/LT/GT/RA numeric grammar shared by ttl/itype/icode/fragoffset) and
// detect-csum.c (the seven *-csum keywords, wired through decode's
// ChecksumCache). geo may be nil (no database loaded), in which case a
// geoip predicate never matches. flow and flowbits are evaluated by the
// flow-tracking layer elsewhere, not here.
func matchPacketList(p *decode.Packet, list []*sigparse.SigMatch, geo GeoLookup) bool {
	for _, sm := range list {
		switch sm.Type {
		case "dsize":
			if !evalDsize(len(p.Payload), sm.Ctx.(string)) {
				return false
			}
		case "decode-event":
			ev, ok := decode.EventFromName(sm.Ctx.(string))
			if !ok || !p.Events.Has(ev) {
				return false
			}
		case "geoip":
			if !evalGeoIP(p, sm.Ctx.(*sigparse.GeoIP), geo) {
				return false
			}
		case "ttl":
			if !evalTtl(p, sm.Ctx.(*sigparse.NumMatch)) {
				return false
			}
		case "itype":
			if !evalIcmpType(p, sm.Ctx.(*sigparse.NumMatch)) {
				return false
			}
		case "icode":
			if !evalIcmpCode(p, sm.Ctx.(*sigparse.NumMatch)) {
				return false
			}
		case "ack":
			if p.TCP == nil || p.TCP.Ack != sm.Ctx.(uint32) {
				return false
			}
		case "seq":
			if p.TCP == nil || p.TCP.Seq != sm.Ctx.(uint32) {
				return false
			}
		case "id":
			if p.IP4 == nil || p.IP4.ID != sm.Ctx.(uint16) {
				return false
			}
		case "flags":
			if p.TCP == nil || !sm.Ctx.(*sigparse.FlagsMatch).Match(p.TCP.Flags) {
				return false
			}
		case "fragbits":
			if p.IP4 == nil || !sm.Ctx.(*sigparse.FragbitsMatch).Match(p.IP4.FlagsFrag) {
				return false
			}
		case "fragoffset":
			if p.IP4 == nil || !sm.Ctx.(*sigparse.NumMatch).Match(int(p.IP4.FragOffset())) {
				return false
			}
		case "ipopts":
			if p.IP4 == nil || !evalIpopts(p.IP4, sm.Ctx.(string)) {
				return false
			}
		case "ipproto":
			if !evalIpproto(p, sm.Ctx.(*sigparse.IPProtoMatch)) {
				return false
			}
		case "sameip":
			if p.IP4 == nil && p.IP6 == nil {
				return false
			}
			if p.SrcAddr != p.DstAddr {
				return false
			}
		case "stream_size":
			// No TCP stream-reassembly tracker exists to read a
			// reassembled byte count from (DESIGN.md Open Question);
			// parsed for rule-file validity but never gates.
		case "ipv4-csum":
			if !evalCsum(p.IP4 != nil, p.IPv4ChecksumValid(), sm.Ctx.(*sigparse.CsumMatch)) {
				return false
			}
		case "tcpv4-csum":
			if !evalCsum(p.IP4 != nil && p.TCP != nil, p.TCPChecksumValid(), sm.Ctx.(*sigparse.CsumMatch)) {
				return false
			}
		case "tcpv6-csum":
			if !evalCsum(p.IP6 != nil && p.TCP != nil, p.TCPChecksumValid(), sm.Ctx.(*sigparse.CsumMatch)) {
				return false
			}
		case "udpv4-csum":
			if !evalCsum(p.IP4 != nil && p.UDP != nil, p.UDPChecksumValid(), sm.Ctx.(*sigparse.CsumMatch)) {
				return false
			}
		case "udpv6-csum":
			if !evalCsum(p.IP6 != nil && p.UDP != nil, p.UDPChecksumValid(), sm.Ctx.(*sigparse.CsumMatch)) {
				return false
			}
		case "icmpv4-csum":
			if !evalCsum(p.ICMP4 != nil, p.ICMPChecksumValid(), sm.Ctx.(*sigparse.CsumMatch)) {
				return false
			}
		case "icmpv6-csum":
			if !evalCsum(p.ICMP6 != nil, p.ICMPChecksumValid(), sm.Ctx.(*sigparse.CsumMatch)) {
				return false
			}
		case "threshold", "detection_filter":
			// consulted separately by fire(), not a pass/fail predicate here
		default:
			// flow, flowbits: evaluated by the flow-tracking layer
		}
	}
	return true
}

// evalTtl reads the packet's TTL/hop-limit and applies m, failing (not
// passing through) when neither an IPv4 nor an IPv6 header was decoded
// (detect-ttl.c's DetectTtlMatch returns no-match in that case).
func evalTtl(p *decode.Packet, m *sigparse.NumMatch) bool {
	switch {
	case p.IP4 != nil:
		return m.Match(int(p.IP4.TTL))
	case p.IP6 != nil:
		return m.Match(int(p.IP6.HopLimit))
	default:
		return false
	}
}

func evalIcmpType(p *decode.Packet, m *sigparse.NumMatch) bool {
	if p.ICMP4 == nil && p.ICMP6 == nil {
		return false
	}
	return m.Match(int(p.ICMPType))
}

func evalIcmpCode(p *decode.Packet, m *sigparse.NumMatch) bool {
	if p.ICMP4 == nil && p.ICMP6 == nil {
		return false
	}
	return m.Match(int(p.ICMPCode))
}

// evalIpopts reports whether hdr carries the named option (sigparse's
// ipoptNames slot names, decode.IPv4OptSlots' field names).
func evalIpopts(hdr *decode.IPv4Hdr, slot string) bool {
	switch slot {
	case "RR":
		return hdr.OptSlots.RR != nil
	case "QS":
		return hdr.OptSlots.QS != nil
	case "TS":
		return hdr.OptSlots.TS != nil
	case "SEC":
		return hdr.OptSlots.SEC != nil
	case "LSRR":
		return hdr.OptSlots.LSRR != nil
	case "CIPSO":
		return hdr.OptSlots.CIPSO != nil
	case "SID":
		return hdr.OptSlots.SID != nil
	case "SSRR":
		return hdr.OptSlots.SSRR != nil
	case "RTRALT":
		return hdr.OptSlots.RTRALT != nil
	default:
		return false
	}
}

// evalIpproto applies m against the packet's protocol number.
func evalIpproto(p *decode.Packet, m *sigparse.IPProtoMatch) bool {
	switch {
	case m.Less:
		return p.Proto < m.Proto
	case m.More:
		return p.Proto > m.Proto
	case m.Negate:
		return p.Proto != m.Proto
	default:
		return p.Proto == m.Proto
	}
}

// evalCsum implements detect-csum.c's shared Match shape: when the
// keyword's protocol/IP-version combination doesn't apply to this packet
// (applicable is false), the keyword passes through without gating;
// otherwise it compares the cached checksum validity against the
// valid/invalid argument.
func evalCsum(applicable, validChecksum bool, m *sigparse.CsumMatch) bool {
	if !applicable {
		return true
	}
	return validChecksum == m.Valid
}

// evalGeoIP resolves the tracked side(s) of p against geo and checks
// country-code membership, honoring GeoIP.Negated.
func evalGeoIP(p *decode.Packet, g *sigparse.GeoIP, geo GeoLookup) bool {
	if geo == nil {
		return false
	}
	hit := false
	if g.Track == "src" || g.Track == "both" {
		if code, ok := geo.Country(p.SrcAddr); ok && geoContains(g.Countries, code) {
			hit = true
		}
	}
	if !hit && (g.Track == "dst" || g.Track == "both") {
		if code, ok := geo.Country(p.DstAddr); ok && geoContains(g.Countries, code) {
			hit = true
		}
	}
	if g.Negated {
		return !hit
	}
	return hit
}

func geoContains(countries []string, code string) bool {
	for _, c := range countries {
		if c == code {
			return true
		}
	}
	return false
}

// matchPayloadList walks pmatch in order with a single shared cursor
// (spec.md §4.5 step 2b).
func matchPayloadList(payload []byte, list []*sigparse.SigMatch) bool {
	cursor := 0
	for _, sm := range list {
		switch sm.Type {
		case "content":
			c := sm.Ctx.(*sigparse.Content)
			nc, ok := matchContent(payload, cursor, c)
			if !ok {
				return false
			}
			cursor = nc
		case "byte_test":
			ok, err := evalByteTest(payload, cursor, sm.Ctx.(*sigparse.ByteTest))
			if err != nil || !ok {
				return false
			}
		case "byte_jump":
			nc, err := evalByteJump(payload, cursor, sm.Ctx.(*sigparse.ByteJump))
			if err != nil {
				return false
			}
			cursor = nc
		case "isdataat":
			if !evalIsDataAt(payload, cursor, sm.Ctx.(string)) {
				return false
			}
		case "pcre":
			nc, ok, err := matchPCRE(payload, cursor, sm.Ctx.(string))
			if err != nil || !ok {
				return false
			}
			cursor = nc
		case "dce_stub_data":
			// no DCERPC stub buffer decoded in this engine; see package doc.
			return false
		}
	}
	return true
}
