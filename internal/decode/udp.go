// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import "grimm.is/sentryd/internal/addr"

const udpHeaderLen = 8

// DecodeUDP decodes a UDP header.
func DecodeUDP(tctx *ThreadCtx, p *Packet, data []byte) {
	tctx.Stats.UDP.Add(1)

	if len(data) < udpHeaderLen {
		p.Events.Set(EventUDPPktTooSmall)
		return
	}
	length := int(beU16(data, 4))
	if length < udpHeaderLen {
		p.Events.Set(EventUDPHlenInvalid)
		return
	}
	if length > len(data) {
		p.Events.Set(EventUDPHlenTooSmall)
		return
	}

	hdr := &UDPHdr{
		SrcPort:  beU16(data, 0),
		DstPort:  beU16(data, 2),
		Length:   uint16(length),
		Checksum: beU16(data, 6),
		Raw:      data[:length],
	}
	p.UDP = hdr
	p.SrcPort = hdr.SrcPort
	p.DstPort = hdr.DstPort
	p.Payload = data[udpHeaderLen:length]

	if tctx.ValidateChecksums && hdr.Checksum != 0 {
		p.UDPCsum.Valid(func() bool { return udpChecksumOK(p, data[:length], hdr.Checksum) })
	}

	sniffDNSQuery(p)
}

func udpChecksumOK(p *Packet, segment []byte, wire uint16) bool {
	var got uint16
	if p.AddressFamily() == addr.FamilyIPv4 {
		got = transportChecksumV4(p.SrcAddr.As4(), p.DstAddr.As4(), ProtoUDP, withZeroChecksum(segment, 6))
	} else {
		got = transportChecksumV6(p.SrcAddr.As16(), p.DstAddr.As16(), ProtoUDP, withZeroChecksum(segment, 6))
	}
	return got == wire
}
