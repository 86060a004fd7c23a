// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import "grimm.is/sentryd/internal/netutil"

const (
	etherTypeIPv4  = 0x0800
	etherTypeARP   = 0x0806
	etherTypeVLAN  = 0x8100
	etherTypeVLANQ = 0x88a8
	etherTypeIPv6  = 0x86dd
	etherTypePPPoEDiscovery = 0x8863
	etherTypePPPoESession   = 0x8864
)

const ethernetHeaderLen = 14

// DecodeEthernet decodes an Ethernet II frame and dispatches to the next
// layer by EtherType, chasing any stack of 802.1Q tags first.
func DecodeEthernet(tctx *ThreadCtx, p *Packet, data []byte, pq *PendingQueue) {
	tctx.Stats.Ethernet.Add(1)
	if len(data) < ethernetHeaderLen {
		p.Events.Set(EventEthernetPktTooSmall)
		return
	}

	hdr := &EthernetHdr{EtherType: beU16(data, 12)}
	copy(hdr.Dst[:], data[0:6])
	copy(hdr.Src[:], data[6:12])
	p.Ethernet = hdr

	rest := data[ethernetHeaderLen:]
	ethertype := hdr.EtherType
	for ethertype == etherTypeVLAN || ethertype == etherTypeVLANQ {
		if len(rest) < 4 {
			p.Events.Set(EventVLANHeaderTooSmall)
			return
		}
		tctx.Stats.VLAN.Add(1)
		tci := beU16(rest, 0)
		v := VLANHdr{
			Priority:  uint8(tci >> 13),
			DropElig:  tci&0x1000 != 0,
			VLANID:    tci & 0x0fff,
			EtherType: beU16(rest, 2),
		}
		p.VLAN = append(p.VLAN, v)
		ethertype = v.EtherType
		rest = rest[4:]
	}

	decodeByEtherType(tctx, p, ethertype, rest, pq)
}

func decodeByEtherType(tctx *ThreadCtx, p *Packet, ethertype uint16, rest []byte, pq *PendingQueue) {
	switch ethertype {
	case etherTypeIPv4:
		DecodeIPv4(tctx, p, rest, pq)
	case etherTypeIPv6:
		DecodeIPv6(tctx, p, rest, pq)
	case etherTypePPPoEDiscovery:
		DecodePPPoEDiscovery(tctx, p, rest, pq)
	case etherTypePPPoESession:
		DecodePPPoESession(tctx, p, rest, pq)
	default:
		// ARP and anything else the matcher set never inspects below
		// the packet/header level: leave headers absent, not an event.
	}
}

// EthernetMAC formats a frame's source/destination in the teacher's
// netutil notation, used by the fast-log and alert formatters.
func EthernetMAC(mac [6]byte) string {
	return netutil.FormatMAC(mac[:])
}
