// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

const (
	icmpv4HeaderLen = 8
	icmpv6HeaderLen = 4
)

// DecodeICMPv4 decodes an ICMPv4 header, mapping type/code onto the
// packet's ICMPType/ICMPCode fields that substitute for ports in
// port-group matching (spec.md §3).
func DecodeICMPv4(tctx *ThreadCtx, p *Packet, data []byte) {
	tctx.Stats.ICMPv4.Add(1)
	if len(data) < icmpv4HeaderLen {
		p.Events.Set(EventICMPv4PktTooSmall)
		return
	}
	hdr := &ICMPv4Hdr{
		Type:     data[0],
		Code:     data[1],
		Checksum: beU16(data, 2),
		ID:       beU16(data, 4),
		Seq:      beU16(data, 6),
		Raw:      data,
	}
	p.ICMP4 = hdr
	p.ICMPType = hdr.Type
	p.ICMPCode = hdr.Code
	p.Payload = data[icmpv4HeaderLen:]
}

// icmpv6 types worth distinguishing for the ICMPV6_UNKNOWN_TYPE event;
// the full IANA registry is large and matchers key off the raw type byte
// regardless, so this only needs to bound "known enough to not flag".
const (
	icmpv6EchoRequest       = 128
	icmpv6EchoReply         = 129
	icmpv6DestUnreachable   = 1
	icmpv6PacketTooBig      = 2
	icmpv6TimeExceeded      = 3
	icmpv6ParamProblem      = 4
	icmpv6RouterSolicit     = 133
	icmpv6RouterAdvert      = 134
	icmpv6NeighborSolicit   = 135
	icmpv6NeighborAdvert    = 136
)

// DecodeICMPv6 decodes an ICMPv6 header.
func DecodeICMPv6(tctx *ThreadCtx, p *Packet, data []byte) {
	tctx.Stats.ICMPv6.Add(1)
	if len(data) < icmpv6HeaderLen {
		p.Events.Set(EventICMPv6PktTooSmall)
		return
	}
	hdr := &ICMPv6Hdr{Type: data[0], Code: data[1], Checksum: beU16(data, 2), Raw: data}
	p.ICMP6 = hdr
	p.ICMPType = hdr.Type
	p.ICMPCode = hdr.Code
	p.Payload = data[icmpv6HeaderLen:]

	switch hdr.Type {
	case icmpv6EchoRequest, icmpv6EchoReply, icmpv6DestUnreachable, icmpv6PacketTooBig,
		icmpv6TimeExceeded, icmpv6ParamProblem, icmpv6RouterSolicit, icmpv6RouterAdvert,
		icmpv6NeighborSolicit, icmpv6NeighborAdvert:
	default:
		p.Events.Set(EventICMPv6UnknownType)
	}
}
