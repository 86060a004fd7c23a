// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

const pppoeHeaderLen = 6

const (
	pppoeCodeSession         = 0x00
	pppoeCodePADI            = 0x09
	pppoeCodePADO            = 0x07
	pppoeCodePADR            = 0x19
	pppoeCodePADS            = 0x65
	pppoeCodePADT            = 0xa7
)

// DecodePPPoESession decodes a PPPoE session-stage frame and hands the
// inner payload to PPP decode.
func DecodePPPoESession(tctx *ThreadCtx, p *Packet, data []byte, pq *PendingQueue) {
	tctx.Stats.PPPoE.Add(1)
	if len(data) < pppoeHeaderLen {
		p.Events.Set(EventPPPoEPktTooSmall)
		return
	}
	code := data[1]
	if code != pppoeCodeSession {
		p.Events.Set(EventPPPoEWrongCode)
		return
	}
	hdr := &PPPoEHdr{
		Code:      code,
		SessID:    beU16(data, 2),
		Length:    beU16(data, 4),
		IsSession: true,
	}
	p.PPPoE = hdr
	payloadEnd := pppoeHeaderLen + int(hdr.Length)
	if payloadEnd > len(data) {
		payloadEnd = len(data)
	}
	DecodePPP(tctx, p, data[pppoeHeaderLen:payloadEnd], pq)
}

// DecodePPPoEDiscovery decodes a PPPoE discovery-stage frame (PADI/PADO/
// PADR/PADS/PADT). The discovery stage never carries an IP payload, so
// this stops at header validation — matchers that need the session tags
// can inspect the header fields directly.
func DecodePPPoEDiscovery(tctx *ThreadCtx, p *Packet, data []byte, pq *PendingQueue) {
	tctx.Stats.PPPoE.Add(1)
	if len(data) < pppoeHeaderLen {
		p.Events.Set(EventPPPoEPktTooSmall)
		return
	}
	code := data[1]
	switch code {
	case pppoeCodePADI, pppoeCodePADO, pppoeCodePADR, pppoeCodePADS, pppoeCodePADT:
		p.PPPoE = &PPPoEHdr{Code: code, SessID: beU16(data, 2), Length: beU16(data, 4)}
	default:
		p.Events.Set(EventPPPoEWrongCode)
	}
}
