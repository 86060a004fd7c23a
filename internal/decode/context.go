// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import "sync/atomic"

// LinkType identifies the datalink framing of the first decode call,
// mirroring libpcap's DLT_* / gopacket's layers.LinkType space closely
// enough that cmd/sentryd's pcap-replay front end can map one onto the
// other directly (see gopacket_bridge.go).
type LinkType int

const (
	LinkTypeEthernet LinkType = iota
	LinkTypeRaw
	LinkTypeSLL
	LinkTypePPP
	LinkTypeNull
	LinkTypeGRE
)

// ThreadCtx is the per-worker decode context (spec.md §4.1 calls this
// thread_ctx): decode toggles plus the stats block this worker bumps.
// One ThreadCtx per detection worker (C7); never shared across goroutines.
type ThreadCtx struct {
	Stats *DecodeStats

	// ValidateChecksums gates whether layer decoders eagerly verify wire
	// checksums (false trusts offload/NIC-verified checksums, matching
	// most production deployments' default).
	ValidateChecksums bool

	// MaxRecursion bounds tunnel nesting (spec.md §5 resource model).
	MaxRecursion int
}

// NewThreadCtx builds a ThreadCtx with sane defaults.
func NewThreadCtx(stats *DecodeStats) *ThreadCtx {
	return &ThreadCtx{Stats: stats, ValidateChecksums: false, MaxRecursion: 8}
}

// DecodeStats accumulates per-layer decode/event counters. Fields are
// atomic so a single DecodeStats can be shared for process-wide metrics
// export (internal/metrics) while each ThreadCtx decodes independently.
type DecodeStats struct {
	Ethernet   atomic.Int64
	VLAN       atomic.Int64
	PPP        atomic.Int64
	PPPoE      atomic.Int64
	GRE        atomic.Int64
	IPv4       atomic.Int64
	IPv6       atomic.Int64
	TCP        atomic.Int64
	UDP        atomic.Int64
	ICMPv4     atomic.Int64
	ICMPv6     atomic.Int64
	Tunnel     atomic.Int64
	Events     atomic.Int64
	Rejected   atomic.Int64
}

// PendingQueue collects packets produced mid-decode: tunnel pseudo-packets
// and reassembled fragments re-entering decode_ipv4 (spec.md §4.1 step 8).
// The caller (C7's worker loop) drains it after the initiating decode call
// returns.
type PendingQueue struct {
	packets []*Packet
}

// Push enqueues a packet for re-processing.
func (q *PendingQueue) Push(p *Packet) { q.packets = append(q.packets, p) }

// Drain returns and clears the queued packets.
func (q *PendingQueue) Drain() []*Packet {
	out := q.packets
	q.packets = nil
	return out
}

// Len reports the number of queued packets.
func (q *PendingQueue) Len() int { return len(q.packets) }
