// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import "net/netip"

const ipv6HeaderLen = 40

const (
	nhHopByHop  = 0
	nhRouting   = 43
	nhFragment  = 44
	nhDstOpts   = 60
	nhNone      = 59
)

const maxIPv6ExtHeaders = 16

// DecodeIPv6 decodes an IPv6 fixed header and extension header chain, then
// dispatches to the transport layer by the terminal next-header value.
func DecodeIPv6(tctx *ThreadCtx, p *Packet, data []byte, pq *PendingQueue) {
	tctx.Stats.IPv6.Add(1)

	if len(data) < ipv6HeaderLen {
		p.Events.Set(EventIPv6PktTooSmall)
		return
	}
	version := data[0] >> 4
	if version != 6 {
		p.Events.Set(EventIPv6WrongIPVer)
		return
	}
	payloadLen := int(beU16(data, 4))
	if len(data) < ipv6HeaderLen+payloadLen {
		p.Events.Set(EventIPv6TruncPkt)
		return
	}

	hdr := &IPv6Hdr{
		TrafficClass: (data[0]&0x0f)<<4 | data[1]>>4,
		FlowLabel:    beU32(data, 0) & 0x000fffff,
		PayloadLen:   uint16(payloadLen),
		NextHeader:   Proto(data[6]),
		HopLimit:     data[7],
	}
	var src, dst [16]byte
	copy(src[:], data[8:24])
	copy(dst[:], data[24:40])
	hdr.Src = netip.AddrFrom16(src)
	hdr.Dst = netip.AddrFrom16(dst)

	rest := data[ipv6HeaderLen : ipv6HeaderLen+payloadLen]
	nextHeader := hdr.NextHeader
	for count := 0; isExtHeader(nextHeader) && count < maxIPv6ExtHeaders; count++ {
		if len(rest) < 8 {
			p.Events.Set(EventIPv6TruncPkt)
			return
		}
		nh := Proto(rest[0])
		var hlen int
		if nextHeader == Proto(nhFragment) {
			hlen = 8
		} else {
			hlen = (int(rest[1]) + 1) * 8
		}
		if hlen > len(rest) {
			p.Events.Set(EventIPv6ExthdrTooBig)
			return
		}
		hdr.ExtHeaders = append(hdr.ExtHeaders, IPv6ExtHdr{NextHeader: nh, Type: uint8(nextHeader), Len: hlen})
		rest = rest[hlen:]
		nextHeader = nh
	}

	p.IP6 = hdr
	p.SrcAddr = hdr.Src
	p.DstAddr = hdr.Dst
	p.Proto = nextHeader

	switch nextHeader {
	case ProtoTCP:
		DecodeTCP(tctx, p, rest)
	case ProtoUDP:
		DecodeUDP(tctx, p, rest)
	case ProtoICMPv6:
		DecodeICMPv6(tctx, p, rest)
	case ProtoGRE:
		DecodeGRE(tctx, p, rest, pq)
	case 4: // IPv4-in-IPv6
		DecodeTunnel(tctx, p, rest, pq, LinkTypeRaw)
	case Proto(nhNone):
		// no upper-layer payload
	default:
		p.Payload = rest
	}
}

func isExtHeader(p Proto) bool {
	switch p {
	case Proto(nhHopByHop), Proto(nhRouting), Proto(nhFragment), Proto(nhDstOpts):
		return true
	default:
		return false
	}
}
