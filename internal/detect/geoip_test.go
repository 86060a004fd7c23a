// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detect

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/sentryd/internal/sigparse"
)

// fakeGeo resolves every address in a fixed lookup table, for exercising
// the geoip keyword without a real MaxMind database.
type fakeGeo map[string]string

func (f fakeGeo) Country(addr netip.Addr) (string, bool) {
	code, ok := f[addr.String()]
	return code, ok
}

func TestInspectGeoIPSrcMatch(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip any any -> any any (msg:"geo"; geoip:src,RU,CN; sid:200;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)
	e.SetGeoLookup(fakeGeo{"203.0.113.9": "RU"})

	hit := tcpPacket(t, "203.0.113.9", "10.0.0.1", 1, 2, "")
	e.Inspect(hit)
	require.Equal(t, 1, hit.AlertCount)

	miss := tcpPacket(t, "198.51.100.2", "10.0.0.1", 1, 2, "")
	e.Inspect(miss)
	require.Equal(t, 0, miss.AlertCount)
}

func TestInspectGeoIPNegatedDst(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip any any -> any any (msg:"geo"; geoip:dst,!US; sid:201;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)
	e.SetGeoLookup(fakeGeo{"10.0.0.1": "US", "10.0.0.2": "DE"})

	us := tcpPacket(t, "1.1.1.1", "10.0.0.1", 1, 2, "")
	e.Inspect(us)
	require.Equal(t, 0, us.AlertCount)

	de := tcpPacket(t, "1.1.1.1", "10.0.0.2", 1, 2, "")
	e.Inspect(de)
	require.Equal(t, 1, de.AlertCount)
}

func TestInspectGeoIPNoLookupConfigured(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip any any -> any any (msg:"geo"; geoip:src,RU; sid:202;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	p := tcpPacket(t, "203.0.113.9", "10.0.0.1", 1, 2, "")
	e.Inspect(p)
	require.Equal(t, 0, p.AlertCount)
}

func TestInspectDNSQueryAndJA3(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert udp any any -> any 53 (msg:"dns"; dns_query:"bad.example.com"; sid:210;)`),
		mustParse(t, `alert tcp any any -> any 443 (msg:"ja3"; ja3:deadbeefdeadbeefdeadbeefdeadbeef; sid:211;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	dnsHit := tcpPacket(t, "10.0.0.1", "10.0.0.2", 5555, 53, "")
	dnsHit.DNSQuery = "www.bad.example.com"
	e.Inspect(dnsHit)
	require.Equal(t, 1, dnsHit.AlertCount)

	dnsMiss := tcpPacket(t, "10.0.0.1", "10.0.0.2", 5555, 53, "")
	dnsMiss.DNSQuery = "www.fine.example.com"
	e.Inspect(dnsMiss)
	require.Equal(t, 0, dnsMiss.AlertCount)

	ja3Hit := tcpPacket(t, "10.0.0.1", "93.184.216.34", 5555, 443, "")
	ja3Hit.TLSJA3 = "deadbeefdeadbeefdeadbeefdeadbeef"
	e.Inspect(ja3Hit)
	require.Equal(t, 1, ja3Hit.AlertCount)

	ja3Miss := tcpPacket(t, "10.0.0.1", "93.184.216.34", 5555, 443, "")
	ja3Miss.TLSJA3 = "0000000000000000000000000000000"
	e.Inspect(ja3Miss)
	require.Equal(t, 0, ja3Miss.AlertCount)
}
