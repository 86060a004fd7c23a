// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import (
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/sentryd/internal/decode"
)

func TestParseTtlEquality(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (ttl:15; sid:200;)`)
	require.NoError(t, err)
	require.Len(t, s.Match(), 1)
	require.Equal(t, "ttl", s.Match()[0].Type)
	m := s.Match()[0].Ctx.(*NumMatch)
	require.True(t, m.Match(15))
	require.False(t, m.Match(16))
}

func TestParseTtlLessThan(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (ttl:<17; sid:201;)`)
	require.NoError(t, err)
	m := s.Match()[0].Ctx.(*NumMatch)
	require.True(t, m.Match(15))
	require.False(t, m.Match(17))
}

func TestParseTtlRangeExclusive(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (ttl:1-30; sid:202;)`)
	require.NoError(t, err)
	m := s.Match()[0].Ctx.(*NumMatch)
	require.True(t, m.Match(15))
	require.False(t, m.Match(1))
	require.False(t, m.Match(30))
}

func TestParseTtlRejectsBadOperator(t *testing.T) {
	_, err := Parse(`alert ip any any -> any any (ttl:1<>2; sid:203;)`)
	require.Error(t, err)
}

func TestParseAck(t *testing.T) {
	s, err := Parse(`alert tcp any any -> any any (ack:700000000; sid:210;)`)
	require.NoError(t, err)
	require.Equal(t, "ack", s.Match()[0].Type)
	require.Equal(t, uint32(700000000), s.Match()[0].Ctx.(uint32))
}

func TestParseSeqRejectsNonNumeric(t *testing.T) {
	_, err := Parse(`alert tcp any any -> any any (seq:notanumber; sid:211;)`)
	require.Error(t, err)
}

func TestParseIdRejectsOutOfRange(t *testing.T) {
	_, err := Parse(`alert ip any any -> any any (id:70000; sid:212;)`)
	require.Error(t, err)
}

func TestParseIpprotoByName(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (ipproto:tcp; sid:220;)`)
	require.NoError(t, err)
	m := s.Match()[0].Ctx.(*IPProtoMatch)
	require.Equal(t, decode.ProtoTCP, m.Proto)
	require.False(t, m.Negate)
}

func TestParseIpprotoNegated(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (ipproto:!udp; sid:221;)`)
	require.NoError(t, err)
	m := s.Match()[0].Ctx.(*IPProtoMatch)
	require.True(t, m.Negate)
	require.Equal(t, decode.ProtoUDP, m.Proto)
}

func TestParseFlagsExactSet(t *testing.T) {
	s, err := Parse(`alert tcp any any -> any any (flags:SA; sid:230;)`)
	require.NoError(t, err)
	m := s.Match()[0].Ctx.(*FlagsMatch)
	require.True(t, m.Match(decode.TCPFlagSYN|decode.TCPFlagACK))
	require.False(t, m.Match(decode.TCPFlagSYN))
	require.False(t, m.Match(decode.TCPFlagSYN|decode.TCPFlagACK|decode.TCPFlagPSH))
}

func TestParseFlagsAtLeast(t *testing.T) {
	s, err := Parse(`alert tcp any any -> any any (flags:+S; sid:231;)`)
	require.NoError(t, err)
	m := s.Match()[0].Ctx.(*FlagsMatch)
	require.True(t, m.Match(decode.TCPFlagSYN|decode.TCPFlagACK))
	require.False(t, m.Match(decode.TCPFlagACK))
}

func TestParseFlagsRejectsUnknownLetter(t *testing.T) {
	_, err := Parse(`alert tcp any any -> any any (flags:Z; sid:232;)`)
	require.Error(t, err)
}

func TestParseFragbitsModifier(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (fragbits:!MD; sid:240;)`)
	require.NoError(t, err)
	m := s.Match()[0].Ctx.(*FragbitsMatch)
	require.Equal(t, byte('!'), m.Modifier)
	require.True(t, m.Match(0))
	require.False(t, m.Match(0x4000))
}

func TestParseFragoffsetLessThan(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (fragoffset:<10; sid:250;)`)
	require.NoError(t, err)
	m := s.Match()[0].Ctx.(*NumMatch)
	require.True(t, m.Match(5))
	require.False(t, m.Match(10))
}

func TestParseIpoptsKnownName(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (ipopts:lsrr; sid:260;)`)
	require.NoError(t, err)
	require.Equal(t, "LSRR", s.Match()[0].Ctx.(string))
}

func TestParseIpoptsRejectsUnknownName(t *testing.T) {
	_, err := Parse(`alert ip any any -> any any (ipopts:bogus; sid:261;)`)
	require.Error(t, err)
}

func TestParseSameip(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (sameip; sid:270;)`)
	require.NoError(t, err)
	require.Equal(t, "sameip", s.Match()[0].Type)
}

func TestParseStreamSize(t *testing.T) {
	s, err := Parse(`alert tcp any any -> any any (stream_size:client,>,100; sid:280;)`)
	require.NoError(t, err)
	m := s.Match()[0].Ctx.(*StreamSizeMatch)
	require.Equal(t, "client", m.Dir)
	require.Equal(t, byte('>'), m.Op)
	require.Equal(t, uint64(100), m.Bytes)
}

func TestParseStreamSizeRejectsMalformed(t *testing.T) {
	_, err := Parse(`alert tcp any any -> any any (stream_size:client,100; sid:281;)`)
	require.Error(t, err)
}

func TestParseCsumValid(t *testing.T) {
	s, err := Parse(`alert tcp any any -> any any (tcpv4-csum:valid; sid:290;)`)
	require.NoError(t, err)
	require.Equal(t, "tcpv4-csum", s.Match()[0].Type)
	require.True(t, s.Match()[0].Ctx.(*CsumMatch).Valid)
}

func TestParseCsumInvalidQuoted(t *testing.T) {
	s, err := Parse(`alert ip any any -> any any (ipv4-csum:"invalid"; sid:291;)`)
	require.NoError(t, err)
	require.False(t, s.Match()[0].Ctx.(*CsumMatch).Valid)
}

func TestParseCsumRejectsBadArgument(t *testing.T) {
	_, err := Parse(`alert ip any any -> any any (ipv4-csum:maybe; sid:292;)`)
	require.Error(t, err)
}
