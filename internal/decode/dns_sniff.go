// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import (
	"strings"

	"github.com/miekg/dns"
)

const dnsPort = 53

// sniffDNSQuery sets p.DNSQuery to the first question name of a DNS
// message carried on p's UDP/53 payload, lowercased with the trailing
// root dot trimmed. Malformed or non-DNS payloads on port 53 are left
// alone rather than raising a decoder event — this is a best-effort
// supplemental field, not a validated protocol decode like the IPv4/TCP
// layers above it.
func sniffDNSQuery(p *Packet) {
	if p.SrcPort != dnsPort && p.DstPort != dnsPort {
		return
	}
	if len(p.Payload) == 0 {
		return
	}
	var msg dns.Msg
	if err := msg.Unpack(p.Payload); err != nil {
		return
	}
	if len(msg.Question) == 0 {
		return
	}
	p.DNSQuery = strings.ToLower(strings.TrimSuffix(msg.Question[0].Name, "."))
}
