// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import (
	"fmt"
	"io"

	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcapgo"
)

// ReplaySource reads a pcap file (as the teacher's cmd/flywall-sim/replay.go
// does for simulation input) and feeds each frame through this package's
// native layered decoder rather than gopacket's own layer types — spec.md
// §4.1's event-flag-not-exception contract can't survive a round trip
// through gopacket's DecodeFeedback/error-return model, so only the
// framing (link type, frame bytes, capture timestamp) crosses the bridge.
type ReplaySource struct {
	r        *pcapgo.Reader
	linkType LinkType
}

// NewReplaySource opens a pcap stream for offline replay (cmd/sentryd's
// -r flag).
func NewReplaySource(r io.Reader) (*ReplaySource, error) {
	pr, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decode: open pcap: %w", err)
	}
	lt, err := mapLinkType(pr.LinkType())
	if err != nil {
		return nil, err
	}
	return &ReplaySource{r: pr, linkType: lt}, nil
}

func mapLinkType(lt layers.LinkType) (LinkType, error) {
	switch lt {
	case layers.LinkTypeEthernet:
		return LinkTypeEthernet, nil
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		return LinkTypeRaw, nil
	case layers.LinkTypeLinuxSLL:
		return LinkTypeSLL, nil
	case layers.LinkTypePPP:
		return LinkTypePPP, nil
	case layers.LinkTypeNull, layers.LinkTypeLoop:
		return LinkTypeNull, nil
	default:
		return 0, fmt.Errorf("decode: unsupported pcap link type %v", lt)
	}
}

// Next decodes the next frame into a fresh Packet, or returns io.EOF.
func (s *ReplaySource) Next(tctx *ThreadCtx, pq *PendingQueue) (*Packet, error) {
	data, ci, err := s.r.ReadPacketData()
	if err != nil {
		return nil, err
	}
	p := AcquirePacket()
	p.Timestamp = ci.Timestamp
	p.LinkType = s.linkType
	p.Raw = data

	switch s.linkType {
	case LinkTypeEthernet:
		DecodeEthernet(tctx, p, data, pq)
	case LinkTypeSLL:
		DecodeSLL(tctx, p, data, pq)
	case LinkTypePPP:
		DecodePPP(tctx, p, data, pq)
	default:
		DecodeRaw(tctx, p, data, pq)
	}
	return p, nil
}
