// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

const greMinHeaderLen = 4
const maxGRERecursion = 8

// DecodeGRE decodes a GRE header (RFC 2784 version 0, and the PPTP
// enhanced version 1 carrying a key/sequence per RFC 2637) and recurses
// into the encapsulated protocol via the tunnel path.
func DecodeGRE(tctx *ThreadCtx, p *Packet, data []byte, pq *PendingQueue) {
	tctx.Stats.GRE.Add(1)
	if len(data) < greMinHeaderLen {
		p.Events.Set(EventGREPktTooSmall)
		return
	}

	flags := beU16(data, 0)
	version := uint8(flags & 0x0007)
	hasChecksum := flags&0x8000 != 0
	hasKey := flags&0x2000 != 0
	hasSeq := flags&0x1000 != 0

	hdr := &GREHdr{Version: version, HasChecksum: hasChecksum, HasKey: hasKey, HasSeq: hasSeq}
	offset := 4
	if version == 0 {
		if p.RecursionLevel > maxGRERecursion {
			p.Events.Set(EventGREVersion0RecurTooBig)
			return
		}
		hdr.ProtocolType = beU16(data, 2)
		if hasChecksum {
			offset += 4
		}
		if hasKey {
			offset += 4
		}
		if hasSeq {
			offset += 4
		}
	} else if version == 1 {
		// PPTP: key field always present, sequence/ack optional.
		hdr.ProtocolType = beU16(data, 2)
		if !hasKey {
			p.Events.Set(EventGREVersion1Invalid)
			return
		}
		offset += 4
		if hasSeq {
			offset += 4
		}
		if flags&0x0080 != 0 { // ack present
			offset += 4
		}
	} else {
		p.Events.Set(EventGREVersion1Invalid)
		return
	}
	if offset > len(data) {
		p.Events.Set(EventGREPktTooSmall)
		return
	}
	hdr.HeaderLen = offset
	p.GRE = hdr

	inner := data[offset:]
	switch hdr.ProtocolType {
	case etherTypeIPv4:
		DecodeTunnel(tctx, p, inner, pq, LinkTypeRaw)
	case etherTypeIPv6:
		DecodeTunnel(tctx, p, inner, pq, LinkTypeRaw)
	case 0x6558: // transparent Ethernet bridging
		DecodeTunnel(tctx, p, inner, pq, LinkTypeEthernet)
	default:
		p.Payload = inner
	}
}
