// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package decode implements the layered packet decoder of C3: byte slices
// in, a fully populated Packet out, with malformed input surfaced through
// a bounded decoder-event set rather than Go errors — matchers downstream
// (C7) need to be able to alert *on* a decode anomaly, not just abort on it.
//
// Grounded on original_source/src/decode-ipv4.{c,h}, decode-ipv6.h,
// decode-tcp.h, decode-udp.h, decode-icmpv4.h, decode-ppp.c and spec.md
// §4.1. The teacher (grimm-is-flywall) has no layered decoder of its own
// (internal/ebpf/ips/ only inspects already-terminated TCP payloads); the
// layer-by-layer structure, the event-flag-not-exception contract, and the
// checksum cache are new code built directly from the original C sources in
// the teacher's documented style (explicit structs, no panics, errors
// package for anything that legitimately needs to bubble a Go error).
package decode

// Event is one decoder-event tag. Bounded to 16 per packet (spec.md §3).
type Event uint16

const (
	EventIPv4PktTooSmall Event = iota
	EventIPv4WrongIPVer
	EventIPv4HlenTooSmall
	EventIPv4IPLenSmallerThanHlen
	EventIPv4TruncPkt
	EventIPv4OptInvalidLen
	EventIPv4OptMalformed
	EventIPv4OptPadRequired
	EventIPv4OptDuplicate
	EventIPv4OptUnknown

	EventIPv6PktTooSmall
	EventIPv6WrongIPVer
	EventIPv6TruncPkt
	EventIPv6ExthdrTooBig

	EventTCPPktTooSmall
	EventTCPHlenTooSmall
	EventTCPInvalidOptlenval

	EventUDPPktTooSmall
	EventUDPHlenInvalid
	EventUDPHlenTooSmall

	EventICMPv4PktTooSmall
	EventICMPv6PktTooSmall
	EventICMPv6UnknownType

	EventVLANHeaderTooSmall
	EventVLANUnknownType

	EventGREPktTooSmall
	EventGREVersion0RecurTooBig
	EventGREVersion1Invalid

	EventPPPPktTooSmall
	EventPPPVJUCompTooSmall
	EventPPPIPXTooSmall
	EventPPPUnsupProto

	EventPPPoEPktTooSmall
	EventPPPoEWrongCode

	EventEthernetPktTooSmall
)

var eventNames = map[Event]string{
	EventIPv4PktTooSmall:          "IPV4_PKT_TOO_SMALL",
	EventIPv4WrongIPVer:           "IPV4_WRONG_IP_VER",
	EventIPv4HlenTooSmall:         "IPV4_HLEN_TOO_SMALL",
	EventIPv4IPLenSmallerThanHlen: "IPV4_IPLEN_SMALLER_THAN_HLEN",
	EventIPv4TruncPkt:             "IPV4_TRUNC_PKT",
	EventIPv4OptInvalidLen:        "IPV4_OPT_INVALID_LEN",
	EventIPv4OptMalformed:         "IPV4_OPT_MALFORMED",
	EventIPv4OptPadRequired:       "IPV4_OPT_PAD_REQUIRED",
	EventIPv4OptDuplicate:         "IPV4_OPT_DUPLICATE",
	EventIPv4OptUnknown:           "IPV4_OPT_UNKNOWN",
	EventIPv6PktTooSmall:          "IPV6_PKT_TOO_SMALL",
	EventIPv6WrongIPVer:           "IPV6_WRONG_IP_VER",
	EventIPv6TruncPkt:             "IPV6_TRUNC_PKT",
	EventIPv6ExthdrTooBig:         "IPV6_EXTHDR_TOO_BIG",
	EventTCPPktTooSmall:           "TCP_PKT_TOO_SMALL",
	EventTCPHlenTooSmall:          "TCP_HLEN_TOO_SMALL",
	EventTCPInvalidOptlenval:      "TCP_INVALID_OPTLENVAL",
	EventUDPPktTooSmall:           "UDP_PKT_TOO_SMALL",
	EventUDPHlenInvalid:           "UDP_HLEN_INVALID",
	EventUDPHlenTooSmall:          "UDP_HLEN_TOO_SMALL",
	EventICMPv4PktTooSmall:        "ICMPV4_PKT_TOO_SMALL",
	EventICMPv6PktTooSmall:        "ICMPV6_PKT_TOO_SMALL",
	EventICMPv6UnknownType:        "ICMPV6_UNKNOWN_TYPE",
	EventVLANHeaderTooSmall:       "VLAN_HEADER_TOO_SMALL",
	EventVLANUnknownType:          "VLAN_UNKNOWN_TYPE",
	EventGREPktTooSmall:           "GRE_PKT_TOO_SMALL",
	EventGREVersion0RecurTooBig:   "GRE_VERSION0_RECUR_TOO_BIG",
	EventGREVersion1Invalid:       "GRE_VERSION1_INVALID",
	EventPPPPktTooSmall:           "PPP_PKT_TOO_SMALL",
	EventPPPVJUCompTooSmall:       "PPPVJU_COMP_TOO_SMALL",
	EventPPPIPXTooSmall:           "PPP_IPX_TOO_SMALL",
	EventPPPUnsupProto:            "PPP_UNSUP_PROTO",
	EventPPPoEPktTooSmall:         "PPPOE_PKT_TOO_SMALL",
	EventPPPoEWrongCode:           "PPPOE_WRONG_CODE",
	EventEthernetPktTooSmall:      "ETHERNET_PKT_TOO_SMALL",
}

func (e Event) String() string {
	if s, ok := eventNames[e]; ok {
		return s
	}
	return "UNKNOWN_EVENT"
}

var eventsByName map[string]Event

func init() {
	eventsByName = make(map[string]Event, len(eventNames))
	for e, name := range eventNames {
		eventsByName[name] = e
	}
}

// EventFromName looks up an Event by its wire name (the `decode-event`
// keyword's argument, e.g. "IPV4_OPT_PAD_REQUIRED"), case-insensitively
// and tolerating '.'/'-' in place of '_'.
func EventFromName(name string) (Event, bool) {
	norm := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '.' || c == '-':
			norm = append(norm, '_')
		case c >= 'a' && c <= 'z':
			norm = append(norm, c-'a'+'A')
		default:
			norm = append(norm, c)
		}
	}
	e, ok := eventsByName[string(norm)]
	return e, ok
}

// MaxEvents bounds the per-packet decoder-event set (spec.md §3).
const MaxEvents = 16

// EventSet is a bounded, order-preserving set of decoder events.
type EventSet struct {
	events   [MaxEvents]Event
	count    int
	overflow int
}

// Set raises an event, dropping it silently (with an overflow counter
// bump) past MaxEvents, matching spec.md's "bounded ... overflow is
// dropped silently with a counter bump" rule for the alert set.
func (s *EventSet) Set(e Event) {
	if s.count >= MaxEvents {
		s.overflow++
		return
	}
	s.events[s.count] = e
	s.count++
}

// Has reports whether e was raised.
func (s *EventSet) Has(e Event) bool {
	for i := 0; i < s.count; i++ {
		if s.events[i] == e {
			return true
		}
	}
	return false
}

// Events returns the raised events in raise order.
func (s *EventSet) Events() []Event { return append([]Event(nil), s.events[:s.count]...) }

// Overflow returns how many events were dropped for exceeding MaxEvents.
func (s *EventSet) Overflow() int { return s.overflow }

// Reset clears the set for packet-pool reuse (spec.md §5 recycling).
func (s *EventSet) Reset() {
	s.count = 0
	s.overflow = 0
}
