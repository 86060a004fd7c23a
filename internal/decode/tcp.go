// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import "grimm.is/sentryd/internal/addr"

const tcpHeaderLen = 20

// DecodeTCP decodes a TCP header. spec.md §3's invariant — "tcph != null
// implies full-length TCP header and sane offset" — means this decoder
// either fully validates the header or leaves p.TCP nil; there is no
// partially-populated state visible to matchers.
func DecodeTCP(tctx *ThreadCtx, p *Packet, data []byte) {
	tctx.Stats.TCP.Add(1)

	if len(data) < tcpHeaderLen {
		p.Events.Set(EventTCPPktTooSmall)
		return
	}
	dataOffset := (data[12] >> 4) * 4
	if int(dataOffset) < tcpHeaderLen {
		p.Events.Set(EventTCPHlenTooSmall)
		return
	}
	if int(dataOffset) > len(data) {
		p.Events.Set(EventTCPPktTooSmall)
		return
	}
	if !validTCPOptions(data[tcpHeaderLen:dataOffset]) {
		p.Events.Set(EventTCPInvalidOptlenval)
		return
	}

	hdr := &TCPHdr{
		SrcPort:    beU16(data, 0),
		DstPort:    beU16(data, 2),
		Seq:        beU32(data, 4),
		Ack:        beU32(data, 8),
		DataOffset: dataOffset,
		Flags:      data[13],
		Window:     beU16(data, 14),
		Checksum:   beU16(data, 16),
		Urgent:     beU16(data, 18),
		Opts:       data[tcpHeaderLen:dataOffset],
		Raw:        data,
	}
	p.TCP = hdr
	p.SrcPort = hdr.SrcPort
	p.DstPort = hdr.DstPort
	p.Payload = data[dataOffset:]

	if tctx.ValidateChecksums {
		p.TCPCsum.Valid(func() bool { return tcpChecksumOK(p, data, hdr.Checksum) })
	}

	sniffJA3(p)
}

// validTCPOptions walks the TCP option area only far enough to catch
// declared lengths that run past the option area (TCP_INVALID_OPTLENVAL);
// it does not need to understand individual option kinds the way the
// IPv4 option sub-machine does, since no named-slot bookkeeping exists
// for TCP options in this spec.
func validTCPOptions(opts []byte) bool {
	i := 0
	for i < len(opts) {
		kind := opts[i]
		if kind == 0 { // EOL
			return true
		}
		if kind == 1 { // NOP
			i++
			continue
		}
		if i+1 >= len(opts) {
			return false
		}
		l := int(opts[i+1])
		if l < 2 || i+l > len(opts) {
			return false
		}
		i += l
	}
	return true
}

func tcpChecksumOK(p *Packet, segment []byte, wire uint16) bool {
	var got uint16
	if p.AddressFamily() == addr.FamilyIPv4 {
		got = transportChecksumV4(p.SrcAddr.As4(), p.DstAddr.As4(), ProtoTCP, withZeroChecksum(segment, 16))
	} else {
		got = transportChecksumV6(p.SrcAddr.As16(), p.DstAddr.As16(), ProtoTCP, withZeroChecksum(segment, 16))
	}
	return got == wire || wire == 0
}

func withZeroChecksum(b []byte, csumOffset int) []byte {
	out := append([]byte(nil), b...)
	if csumOffset+2 <= len(out) {
		out[csumOffset] = 0
		out[csumOffset+1] = 0
	}
	return out
}
