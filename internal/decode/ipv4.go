// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import "net/netip"

// IPv4 option type bytes (original_source/src/decode-ipv4.h).
const (
	optEOL    = 0x00
	optNOP    = 0x01
	optRR     = 0x07
	optQS     = 0x19
	optTS     = 0x44
	optSEC    = 0x82
	optLSRR   = 0x83
	optCIPSO  = 0x86
	optSID    = 0x88
	optSSRR   = 0x89
	optRTRALT = 0x94
)

const (
	optSECLen    = 11
	optSIDLen    = 4
	optRTRALTLen = 4
	optRouteMin  = 3
	optQSMin     = 8
	optTSMin     = 5
	optCIPSOMin  = 10
)

// DecodeIPv4 decodes an IPv4 header (options included) and dispatches to
// the transport layer. Malformed input raises decoder events and, for the
// fatal cases spec.md §4.1 enumerates, stops without a transport header.
func DecodeIPv4(tctx *ThreadCtx, p *Packet, data []byte, pq *PendingQueue) {
	tctx.Stats.IPv4.Add(1)

	if len(data) < 20 {
		p.Events.Set(EventIPv4PktTooSmall)
		return
	}
	version := data[0] >> 4
	if version != 4 {
		p.Events.Set(EventIPv4WrongIPVer)
		return
	}
	ihl := int(data[0]&0x0f) * 4
	if ihl < 20 {
		p.Events.Set(EventIPv4HlenTooSmall)
		return
	}
	totalLen := int(beU16(data, 2))
	if totalLen < ihl {
		p.Events.Set(EventIPv4IPLenSmallerThanHlen)
		return
	}
	if len(data) < totalLen {
		p.Events.Set(EventIPv4TruncPkt)
		return
	}

	hdr := &IPv4Hdr{
		Version:   version,
		IHL:       uint8(ihl / 4),
		TOS:       data[1],
		TotalLen:  uint16(totalLen),
		ID:        beU16(data, 4),
		FlagsFrag: beU16(data, 6),
		TTL:       data[8],
		Protocol:  Proto(data[9]),
		Checksum:  beU16(data, 10),
	}
	var src, dst [4]byte
	copy(src[:], data[12:16])
	copy(dst[:], data[16:20])
	hdr.Src = netip.AddrFrom4(src)
	hdr.Dst = netip.AddrFrom4(dst)

	if ihl > 20 {
		parseIPv4Options(p, hdr, data[20:ihl])
	}
	hdr.HeaderRaw = data[:ihl]

	p.IP4 = hdr
	p.SrcAddr = hdr.Src
	p.DstAddr = hdr.Dst
	p.Proto = hdr.Protocol

	if tctx.ValidateChecksums {
		p.IP4Csum.Valid(func() bool {
			return ipv4HeaderChecksum(data[:ihl]) == 0
		})
	}

	payload := data[ihl:totalLen]

	// Fragments are handed to an external reassembler in the real system;
	// this decoder exposes the hook point but does not itself reassemble
	// (spec.md §4.1 step 8 names reassembly as "external").
	if hdr.FragOffset() != 0 || hdr.MoreFragments() {
		p.Payload = payload
		return
	}

	switch hdr.Protocol {
	case ProtoTCP:
		DecodeTCP(tctx, p, payload)
	case ProtoUDP:
		DecodeUDP(tctx, p, payload)
	case ProtoICMP:
		DecodeICMPv4(tctx, p, payload)
	case ProtoGRE:
		DecodeGRE(tctx, p, payload, pq)
	case 41: // IPv6-in-IPv4 tunnel
		DecodeTunnel(tctx, p, payload, pq, LinkTypeRaw)
	default:
		p.Payload = payload
	}
}

func parseIPv4Options(p *Packet, hdr *IPv4Hdr, opts []byte) {
	i := 0
	for i < len(opts) {
		t := opts[i]
		if t == optEOL {
			break
		}
		if t == optNOP {
			i++
			continue
		}
		if i+1 >= len(opts) {
			p.Events.Set(EventIPv4OptInvalidLen)
			break
		}
		l := int(opts[i+1])
		remaining := len(opts) - i
		if l < 2 || l > remaining {
			p.Events.Set(EventIPv4OptInvalidLen)
			break
		}
		data := opts[i+2 : i+l]
		opt := IPv4Opt{Type: t, Len: uint8(l), Data: data}

		if len(hdr.Opts) < MaxIPv4Options {
			hdr.Opts = append(hdr.Opts, opt)
		}
		validateIPv4Option(p, hdr, &opt)
		bindNamedOption(p, hdr, &opt)

		i += l
	}
	if i%8 != 0 && i > 0 {
		p.Events.Set(EventIPv4OptPadRequired)
	}
}

func validateIPv4Option(p *Packet, hdr *IPv4Hdr, opt *IPv4Opt) {
	switch opt.Type {
	case optRR, optLSRR, optSSRR:
		if int(opt.Len) < optRouteMin {
			p.Events.Set(EventIPv4OptMalformed)
			return
		}
		if len(opt.Data) < 1 {
			p.Events.Set(EventIPv4OptMalformed)
			return
		}
		ptr := opt.Data[0]
		if ptr < 4 || ptr%4 != 0 || int(ptr) > int(opt.Len)+1 {
			p.Events.Set(EventIPv4OptMalformed)
		}
	case optTS:
		if int(opt.Len) < optTSMin || len(opt.Data) < 2 {
			p.Events.Set(EventIPv4OptMalformed)
			return
		}
		ptr := opt.Data[0]
		if ptr < 5 {
			p.Events.Set(EventIPv4OptMalformed)
			return
		}
		flags := opt.Data[1] & 0x0f
		recordSize := 4
		if flags == 1 || flags == 3 {
			recordSize = 8
		}
		_ = recordSize
		if int(ptr)-1 > int(opt.Len) {
			p.Events.Set(EventIPv4OptMalformed)
		}
	case optCIPSO:
		if int(opt.Len) < optCIPSOMin || len(opt.Data) < 6 {
			p.Events.Set(EventIPv4OptMalformed)
			return
		}
		doi := beU32(opt.Data, 0)
		_ = doi // DOI 0 tolerated leniently, see DESIGN.md open-question note
		tags := opt.Data[4:]
		j := 0
		for j < len(tags) {
			if j+2 > len(tags) {
				p.Events.Set(EventIPv4OptMalformed)
				return
			}
			ttype := tags[j]
			tlen := int(tags[j+1])
			if ttype == 0 {
				p.Events.Set(EventIPv4OptMalformed)
				return
			}
			if tlen < 4 || tlen > len(tags)-j {
				p.Events.Set(EventIPv4OptMalformed)
				return
			}
			if ttype != 7 && tlen > 2 && tags[j+2] != 0 {
				p.Events.Set(EventIPv4OptMalformed)
			}
			j += tlen
		}
	case optSEC:
		if int(opt.Len) != optSECLen {
			p.Events.Set(EventIPv4OptMalformed)
		}
	case optSID:
		if int(opt.Len) != optSIDLen {
			p.Events.Set(EventIPv4OptMalformed)
		}
	case optRTRALT:
		if int(opt.Len) != optRTRALTLen {
			p.Events.Set(EventIPv4OptMalformed)
		}
	case optQS:
		if int(opt.Len) < optQSMin {
			p.Events.Set(EventIPv4OptMalformed)
		}
	default:
		p.Events.Set(EventIPv4OptUnknown)
	}
}

// bindNamedOption records the first occurrence of each named option into
// its slot, raising IPV4_OPT_DUPLICATE (but keeping the first binding) on
// repeats, per spec.md §3.
func bindNamedOption(p *Packet, hdr *IPv4Hdr, opt *IPv4Opt) {
	slot := func(field **IPv4Opt) {
		if *field != nil {
			p.Events.Set(EventIPv4OptDuplicate)
			return
		}
		*field = opt
	}
	switch opt.Type {
	case optRR:
		slot(&hdr.OptSlots.RR)
	case optQS:
		slot(&hdr.OptSlots.QS)
	case optTS:
		slot(&hdr.OptSlots.TS)
	case optSEC:
		slot(&hdr.OptSlots.SEC)
	case optLSRR:
		slot(&hdr.OptSlots.LSRR)
	case optCIPSO:
		slot(&hdr.OptSlots.CIPSO)
	case optSID:
		slot(&hdr.OptSlots.SID)
	case optSSRR:
		slot(&hdr.OptSlots.SSRR)
	case optRTRALT:
		slot(&hdr.OptSlots.RTRALT)
	}
}
