// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import (
	"encoding/hex"

	"github.com/dreadl0ck/ja3"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// emptyMD5 is ja3.DigestPacket's output when it found no ClientHello to
// fingerprint (md5("")); sniffJA3 treats it the same as "no hash".
const emptyMD5 = "d41d8cd98f00b204e9800998ecf8427e"

// sniffJA3 sets p.TLSJA3 when p's TCP payload opens with a TLS
// ClientHello, reusing the teacher's internal/scanner/tls.go ClientHello
// sniff (TLS record type 0x16, handshake type 0x01) ahead of the actual
// digest call. ja3.DigestPacket wants a gopacket.Packet rather than a raw
// buffer, so the frame is re-parsed through gopacket only on this slow
// path — every other TCP packet never pays this cost.
func sniffJA3(p *Packet) {
	payload := p.Payload
	if len(payload) < 6 || payload[0] != 0x16 || payload[5] != 0x01 {
		return
	}
	if len(p.Raw) == 0 {
		return
	}
	pkt := gopacket.NewPacket(p.Raw, gopacketLinkType(p.LinkType), gopacket.NoCopy)
	digest := ja3.DigestPacket(pkt)
	hash := hex.EncodeToString(digest[:])
	if hash == emptyMD5 {
		return
	}
	p.TLSJA3 = hash
}

func gopacketLinkType(lt LinkType) layers.LinkType {
	switch lt {
	case LinkTypeEthernet:
		return layers.LinkTypeEthernet
	case LinkTypeSLL:
		return layers.LinkTypeLinuxSLL
	case LinkTypePPP:
		return layers.LinkTypePPP
	case LinkTypeNull:
		return layers.LinkTypeNull
	default:
		return layers.LinkTypeRaw
	}
}
