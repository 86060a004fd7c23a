// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

// DecodeRaw decodes a bare IP datagram with no link-layer framing,
// dispatching on the IP version nibble (spec.md §4.1 "decode_raw").
func DecodeRaw(tctx *ThreadCtx, p *Packet, data []byte, pq *PendingQueue) {
	if len(data) == 0 {
		p.Events.Set(EventIPv4PktTooSmall)
		return
	}
	switch data[0] >> 4 {
	case 4:
		DecodeIPv4(tctx, p, data, pq)
	case 6:
		DecodeIPv6(tctx, p, data, pq)
	default:
		p.Events.Set(EventIPv4WrongIPVer)
	}
}

// DecodeTunnel implements packet_pseudo_setup (spec.md §4.1 "Tunnel
// construction"): it splices off a pseudo-packet for the encapsulated
// datagram, links it to the tunnel root, bumps the root's tpr_cnt under
// its mutex, and suppresses payload (but not header) inspection on the
// parent.
func DecodeTunnel(tctx *ThreadCtx, parent *Packet, inner []byte, pq *PendingQueue, lt LinkType) {
	tctx.Stats.Tunnel.Add(1)
	if parent.RecursionLevel >= tctx.MaxRecursion {
		return
	}

	child := AcquirePacket()
	child.Timestamp = parent.Timestamp
	child.LinkType = lt
	child.RecursionLevel = parent.RecursionLevel + 1
	child.TunnelParent = parent

	root := parent.Tunnel
	if root == nil {
		root = &TunnelLink{Root: parent}
		parent.Tunnel = root
		parent.IsTunnelRoot = true
	}
	child.Tunnel = root
	root.incTPR()

	parent.SuppressPayloadInspection = true

	child.Raw = append(child.Raw[:0], inner...)
	switch lt {
	case LinkTypeEthernet:
		DecodeEthernet(tctx, child, child.Raw, pq)
	default:
		DecodeRaw(tctx, child, child.Raw, pq)
	}

	pq.Push(child)
}
