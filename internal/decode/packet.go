// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import (
	"net/netip"
	"sort"
	"sync"
	"time"

	"grimm.is/sentryd/internal/addr"
)

// MaxCapLen bounds the byte storage backing a Packet: the largest IPv6
// payload plus headroom for encapsulation (spec.md §3).
const MaxCapLen = 40 /* IPv6 header */ + 65536 + 28

// MaxAlerts bounds the per-packet alert set (spec.md §3/§4.6).
const MaxAlerts = 256

// MaxIPv4Options bounds the IPv4 option array (spec.md §3).
const MaxIPv4Options = 40

// Proto mirrors the IANA transport/next-header protocol numbers this
// decoder dispatches on.
type Proto uint8

const (
	ProtoICMP   Proto = 1
	ProtoTCP    Proto = 6
	ProtoUDP    Proto = 17
	ProtoGRE    Proto = 47
	ProtoICMPv6 Proto = 58
)

// EthernetHdr is the decoded Ethernet II header view.
type EthernetHdr struct {
	Dst, Src  [6]byte
	EtherType uint16
}

// VLANHdr is one 802.1Q tag.
type VLANHdr struct {
	Priority uint8
	DropElig bool
	VLANID   uint16
	EtherType uint16
}

// PPPHdr is a decoded PPP header (RFC 1661 framing already stripped).
type PPPHdr struct {
	Protocol uint16
}

// PPPoEHdr is a decoded PPPoE session/discovery header.
type PPPoEHdr struct {
	Code     uint8
	SessID   uint16
	Length   uint16
	IsSession bool
}

// GREHdr is a decoded GRE header (v0 and PPTP v1).
type GREHdr struct {
	Version       uint8
	ProtocolType  uint16
	HasChecksum   bool
	HasKey        bool
	HasSeq        bool
	HeaderLen     int
}

// IPv4Opt is one parsed IPv4 option (spec.md §3 "IPv4 option record").
type IPv4Opt struct {
	Type byte
	Len  byte
	Data []byte
}

// IPv4OptSlots names the commonly-queried IPv4 options (spec.md §3).
type IPv4OptSlots struct {
	RR, QS, TS, SEC, LSRR, CIPSO, SID, SSRR, RTRALT *IPv4Opt
}

// IPv4Hdr is the decoded IPv4 header view, options included.
type IPv4Hdr struct {
	Version  uint8
	IHL      uint8
	TOS      uint8
	TotalLen uint16
	ID       uint16
	FlagsFrag uint16
	TTL      uint8
	Protocol Proto
	Checksum uint16
	Src, Dst netip.Addr

	Opts     []IPv4Opt
	OptSlots IPv4OptSlots

	// HeaderRaw is the wire bytes of this header (options included),
	// retained for the ipv4-csum matcher's lazy recompute (spec.md §4.1
	// "Checksum cache"). Aliases the decode buffer, never copied.
	HeaderRaw []byte
}

// FragOffset returns the 13-bit fragment offset in 8-byte units.
func (h *IPv4Hdr) FragOffset() uint16 { return h.FlagsFrag & 0x1fff }

// MoreFragments reports the MF bit.
func (h *IPv4Hdr) MoreFragments() bool { return h.FlagsFrag&0x2000 != 0 }

// DontFragment reports the DF bit.
func (h *IPv4Hdr) DontFragment() bool { return h.FlagsFrag&0x4000 != 0 }

// IPv6ExtHdr is one parsed IPv6 extension header (hop-by-hop, routing,
// fragment, destination options).
type IPv6ExtHdr struct {
	NextHeader Proto
	Type       uint8
	Len        int
}

// IPv6Hdr is the decoded IPv6 header view.
type IPv6Hdr struct {
	TrafficClass uint8
	FlowLabel    uint32
	PayloadLen   uint16
	NextHeader   Proto
	HopLimit     uint8
	Src, Dst     netip.Addr
	ExtHeaders   []IPv6ExtHdr
}

// TCPHdr is the decoded TCP header view. Only present once the header is
// fully validated (spec.md §3 invariant).
type TCPHdr struct {
	SrcPort, DstPort uint16
	Seq, Ack         uint32
	DataOffset       uint8
	Flags            uint8
	Window           uint16
	Checksum         uint16
	Urgent           uint16
	Opts             []byte

	// Raw is the full segment (header plus payload) as decoded, retained
	// for the tcpv4-csum/tcpv6-csum matchers' lazy recompute.
	Raw []byte
}

const (
	TCPFlagFIN = 0x01
	TCPFlagSYN = 0x02
	TCPFlagRST = 0x04
	TCPFlagPSH = 0x08
	TCPFlagACK = 0x10
	TCPFlagURG = 0x20
)

// UDPHdr is the decoded UDP header view.
type UDPHdr struct {
	SrcPort, DstPort uint16
	Length           uint16
	Checksum         uint16

	// Raw is the full datagram (header plus payload), retained for the
	// udpv4-csum/udpv6-csum matchers' lazy recompute.
	Raw []byte
}

// ICMPv4Hdr is the decoded ICMPv4 header view.
type ICMPv4Hdr struct {
	Type, Code uint8
	Checksum   uint16
	ID, Seq    uint16

	// Raw is the full ICMP message (header plus payload), retained for
	// the icmpv4-csum matcher's lazy recompute.
	Raw []byte
}

// ICMPv6Hdr is the decoded ICMPv6 header view.
type ICMPv6Hdr struct {
	Type, Code uint8
	Checksum   uint16

	// Raw is the full ICMPv6 message (header plus payload), retained for
	// the icmpv6-csum matcher's lazy recompute.
	Raw []byte
}

// ChecksumCache lazily memoizes a layer's checksum validity (spec.md §4.1
// "Checksum cache"): -1 means unset, otherwise 0 (bad) or 1 (good).
type ChecksumCache struct {
	computed int32
}

const (
	csumUnset = -1
	csumBad   = 0
	csumGood  = 1
)

// Valid lazily computes and caches validity via compute, which must return
// true if the checksum is correct.
func (c *ChecksumCache) Valid(compute func() bool) bool {
	if c.computed == csumUnset {
		if compute() {
			c.computed = csumGood
		} else {
			c.computed = csumBad
		}
	}
	return c.computed == csumGood
}

// Reset marks the cache unset, for packet-pool reuse.
func (c *ChecksumCache) Reset() { c.computed = csumUnset }

// PacketAlert is one queued match result, pre-sort-by-num (spec.md §4.6
// "PacketAlert { sid, gid, rev, prio, class, action, msg, class_msg,
// references, num, order_id }").
type PacketAlert struct {
	Num      uint32 // SigGroupHead-assigned ordering key
	SID      uint32
	GID      uint32
	Rev      uint32
	Priority int
	Action   string
	Msg      string
	Class    string
	ClassMsg string
	References []string
	OrderID  uint32 // assigned at emission (spec.md §5 "per-packet detection order")
}

// TunnelLink holds the cross-packet bookkeeping for tunnel/pseudo-packets
// (spec.md §3 "tunnel linkage").
type TunnelLink struct {
	mu       sync.Mutex
	Root     *Packet
	RTVCount int
	TPRCount int
}

func (t *TunnelLink) incTPR() {
	t.mu.Lock()
	t.TPRCount++
	t.mu.Unlock()
}

func (t *TunnelLink) incRTV() {
	t.mu.Lock()
	t.RTVCount++
	t.mu.Unlock()
}

// Packet is a single decoded frame (spec.md §3 "Packet").
type Packet struct {
	Timestamp time.Time
	LinkType  LinkType

	SrcAddr, DstAddr netip.Addr
	SrcPort, DstPort uint16
	ICMPType, ICMPCode uint8
	Proto            Proto
	RecursionLevel   int

	Ethernet *EthernetHdr
	VLAN     []VLANHdr
	PPP      *PPPHdr
	PPPoE    *PPPoEHdr
	GRE      *GREHdr
	IP4      *IPv4Hdr
	IP6      *IPv6Hdr
	TCP      *TCPHdr
	UDP      *UDPHdr
	ICMP4    *ICMPv4Hdr
	ICMP6    *ICMPv6Hdr

	Events EventSet

	// Raw holds the full captured bytes; Payload is the transport-layer
	// payload slice, a sub-slice of Raw (spec.md §3 invariant).
	Raw     []byte
	Payload []byte

	// DNSQuery is the question-section name of a parsed DNS request on
	// this packet's UDP/53 payload, lowercased with the trailing root
	// dot stripped; empty when the payload isn't a DNS query this
	// decoder could parse. Feeds sigparse's dns_query keyword.
	DNSQuery string

	// TLSJA3 is the JA3 fingerprint hash of a TLS ClientHello found on
	// this packet's TCP payload, empty otherwise. Feeds sigparse's
	// ja3 keyword.
	TLSJA3 string

	IP4Csum ChecksumCache
	TCPCsum ChecksumCache
	UDPCsum ChecksumCache
	ICMPCsum ChecksumCache

	Alerts      [MaxAlerts]PacketAlert
	AlertCount  int
	AlertOverflow int

	Tunnel       *TunnelLink
	IsTunnelRoot bool
	TunnelParent *Packet

	// SuppressPayloadInspection is set on a tunnel parent once a pseudo
	// packet has been spliced off it (spec.md §4.1 tunnel construction).
	SuppressPayloadInspection bool
}

// NewPacket allocates a zeroed Packet with checksum caches unset, matching
// the pool-handoff initialization spec.md §3 describes.
func NewPacket() *Packet {
	p := &Packet{}
	p.Reset()
	return p
}

var packetPool = sync.Pool{New: func() any { return NewPacket() }}

// AcquirePacket takes a Packet from the pool, zeroed as NewPacket would
// leave it (spec.md §3 "Pseudo-packets ... created by the decoder").
func AcquirePacket() *Packet {
	p := packetPool.Get().(*Packet)
	p.Reset()
	return p
}

// ReleasePacket returns a Packet to the pool (spec.md §5 recycling).
func ReleasePacket(p *Packet) {
	packetPool.Put(p)
}

// Reset clears a Packet for pool reuse (spec.md §5).
func (p *Packet) Reset() {
	*p = Packet{}
	p.IP4Csum.Reset()
	p.TCPCsum.Reset()
	p.UDPCsum.Reset()
	p.ICMPCsum.Reset()
}

// AddAlert appends a match result, dropping silently past MaxAlerts with
// a counter bump (spec.md §3 invariant). OrderID is assigned here, at
// emission, so output modules can recover per-packet detection order even
// after SortAlerts reorders the array by Num (spec.md §5).
func (p *Packet) AddAlert(a PacketAlert) {
	if p.AlertCount >= MaxAlerts {
		p.AlertOverflow++
		return
	}
	a.OrderID = uint32(p.AlertCount)
	p.Alerts[p.AlertCount] = a
	p.AlertCount++
}

// SortAlerts stably sorts the populated prefix of Alerts by Num ascending,
// the spec.md §8 invariant output modules rely on ("the alert array is
// sorted ascending by num after detection").
func (p *Packet) SortAlerts() {
	s := p.Alerts[:p.AlertCount]
	sort.SliceStable(s, func(i, j int) bool { return s[i].Num < s[j].Num })
}

// AddressFamily reports the family of the packet's network-layer headers.
func (p *Packet) AddressFamily() addr.Family {
	if p.IP6 != nil {
		return addr.FamilyIPv6
	}
	return addr.FamilyIPv4
}
