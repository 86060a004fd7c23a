// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

// PPP header: 2 bytes address/control (0xff, 0x03) + 2 byte protocol field
// (original_source/src/decode-ppp.c), or a plain 2-byte protocol field when
// an upstream layer has already consumed the framing bytes.
const pppHeaderLen = 4

const (
	pppProtoIP       = 0x0021
	pppProtoIPv6     = 0x0057
	pppProtoVJCompressed = 0x002d
	pppProtoVJUncompressed = 0x002f
)

// unsupportedPPPProto are control/NCP protocols this decoder recognizes by
// name but does not decode further into (spec.md names only the IP/IPv6
// dispatch paths as in-scope).
var unsupportedPPPProto = map[uint16]bool{
	0x002b: true, // IPX
	0x0023: true, // OSI
	0x8021: true, // IPCP
	0x8057: true, // IPv6CP
	0xc021: true, // LCP
	0xc023: true, // PAP
	0xc025: true, // LQM
	0xc223: true, // CHAP
}

// DecodePPP decodes a PPP-framed datagram.
func DecodePPP(tctx *ThreadCtx, p *Packet, data []byte, pq *PendingQueue) {
	tctx.Stats.PPP.Add(1)
	if len(data) < pppHeaderLen {
		p.Events.Set(EventPPPPktTooSmall)
		return
	}
	proto := beU16(data, 2)
	p.PPP = &PPPHdr{Protocol: proto}
	rest := data[pppHeaderLen:]

	switch proto {
	case pppProtoIP:
		if len(rest) < 20 {
			p.Events.Set(EventPPPPktTooSmall)
			return
		}
		DecodeIPv4(tctx, p, rest, pq)
	case pppProtoIPv6:
		if len(rest) < ipv6HeaderLen {
			p.Events.Set(EventPPPPktTooSmall)
			return
		}
		DecodeIPv6(tctx, p, rest, pq)
	case pppProtoVJUncompressed:
		if len(rest) < 20 {
			p.Events.Set(EventPPPVJUCompTooSmall)
			return
		}
		if rest[0]>>4 == 4 {
			DecodeIPv4(tctx, p, rest, pq)
		}
	default:
		p.Events.Set(EventPPPUnsupProto)
	}
}
