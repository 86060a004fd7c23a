// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGeoIPTrackBoth(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (geoip:both,US,CA; sid:100;)`)
	require.NoError(t, err)
	require.Len(t, s.Match(), 1)

	g := s.Match()[0].Ctx.(*GeoIP)
	require.Equal(t, "both", g.Track)
	require.False(t, g.Negated)
	require.Equal(t, []string{"US", "CA"}, g.Countries)
}

func TestParseGeoIPNegated(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (geoip:src,!RU; sid:101;)`)
	require.NoError(t, err)
	g := s.Match()[0].Ctx.(*GeoIP)
	require.Equal(t, "src", g.Track)
	require.True(t, g.Negated)
	require.Equal(t, []string{"RU"}, g.Countries)
}

func TestParseGeoIPBadTrack(t *testing.T) {
	_, err := Parse(`alert ip any any -> any any (geoip:both_ways,US; sid:102;)`)
	require.Error(t, err)
}

func TestParseGeoIPMissingCountry(t *testing.T) {
	_, err := Parse(`alert ip any any -> any any (geoip:src; sid:103;)`)
	require.Error(t, err)
}

func TestParseDNSQuery(t *testing.T) {
	s, err := Parse(`alert udp any any -> any 53 (dns_query:"Evil.Example.Com"; sid:110;)`)
	require.NoError(t, err)
	require.True(t, s.Flags.Has(FlagAMatchPresent))
	require.Len(t, s.AMatch(), 1)
	require.Equal(t, "dns_query", s.AMatch()[0].Type)
	require.Equal(t, "evil.example.com", s.AMatch()[0].Ctx.(string))
}

func TestParseDNSQueryEmptyRejected(t *testing.T) {
	_, err := Parse(`alert udp any any -> any 53 (dns_query:""; sid:111;)`)
	require.Error(t, err)
}

func TestParseJA3(t *testing.T) {
	s, err := Parse(`alert tcp any any -> any 443 (ja3:E7D705A3286E19EA42F587B344EE6865; sid:120;)`)
	require.NoError(t, err)
	require.True(t, s.Flags.Has(FlagAMatchPresent))
	require.Equal(t, "ja3", s.AMatch()[0].Type)
	require.Equal(t, "e7d705a3286e19ea42f587b344ee6865", s.AMatch()[0].Ctx.(string))
}
