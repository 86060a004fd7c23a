// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

const sllHeaderLen = 16

// DecodeSLL decodes a Linux "cooked capture" (SLL) header, used for
// any-interface captures where no real link-layer framing exists.
func DecodeSLL(tctx *ThreadCtx, p *Packet, data []byte, pq *PendingQueue) {
	if len(data) < sllHeaderLen {
		p.Events.Set(EventEthernetPktTooSmall)
		return
	}
	protocol := beU16(data, 14)
	decodeByEtherType(tctx, p, protocol, data[sllHeaderLen:], pq)
}
