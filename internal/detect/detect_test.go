// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detect

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grimm.is/sentryd/internal/decode"
	"grimm.is/sentryd/internal/sigparse"
)

func mustParse(t *testing.T, rule string) *sigparse.Signature {
	t.Helper()
	s, err := sigparse.Parse(rule)
	require.NoError(t, err)
	return s
}

func tcpPacket(t *testing.T, src, dst string, sp, dp uint16, payload string) *decode.Packet {
	t.Helper()
	p := decode.AcquirePacket()
	p.IP4 = &decode.IPv4Hdr{}
	p.TCP = &decode.TCPHdr{SrcPort: sp, DstPort: dp}
	p.Proto = decode.ProtoTCP
	p.SrcAddr = netip.MustParseAddr(src)
	p.DstAddr = netip.MustParseAddr(dst)
	p.SrcPort = sp
	p.DstPort = dp
	p.Payload = []byte(payload)
	p.Timestamp = time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	return p
}

func TestInspectFastPathAlert(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> any 80 (msg:"t1"; content:"GET"; sid:1;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	p := tcpPacket(t, "10.0.0.1", "93.184.216.34", 12345, 80, "GET /one/ HTTP/1.1\r\n")
	e.Inspect(p)

	require.Equal(t, 1, p.AlertCount)
	require.Equal(t, uint32(1), p.Alerts[0].SID)
	require.Equal(t, uint32(1), p.Alerts[0].GID)
	require.Equal(t, uint32(0), p.Alerts[0].Rev)
	require.Equal(t, "t1", p.Alerts[0].Msg)
}

func TestInspectRelativeContentWithin(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> any any (msg:"rel"; content:"GET"; content:"HTTP"; within:20; sid:2;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	hit := tcpPacket(t, "1.2.3.4", "5.6.7.8", 1111, 2222, "GET /index.html HTTP/1.1\r\n")
	e.Inspect(hit)
	require.Equal(t, 1, hit.AlertCount)

	miss := tcpPacket(t, "1.2.3.4", "5.6.7.8", 1111, 2222, "GET /a/very/long/path/that/pushes/HTTP/past/twenty\r\n")
	e.Inspect(miss)
	require.Equal(t, 0, miss.AlertCount)
}

func TestInspectNegatedContentWithDepth(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> any any (msg:"neg"; content:!"ADMIN"; depth:10; sid:3;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	noAdmin := tcpPacket(t, "1.2.3.4", "5.6.7.8", 1, 2, "GET /x HTTP/1.1")
	e.Inspect(noAdmin)
	require.Equal(t, 1, noAdmin.AlertCount)

	withAdmin := tcpPacket(t, "1.2.3.4", "5.6.7.8", 1, 2, "ADMIN login")
	e.Inspect(withAdmin)
	require.Equal(t, 0, withAdmin.AlertCount)
}

func TestInspectByteTest(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> any any (msg:"bt"; content:"X"; byte_test:1,=,5,0,relative; sid:4;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	p := tcpPacket(t, "1.2.3.4", "5.6.7.8", 1, 2, "X\x05rest")
	e.Inspect(p)
	require.Equal(t, 1, p.AlertCount)

	miss := tcpPacket(t, "1.2.3.4", "5.6.7.8", 1, 2, "X\x06rest")
	e.Inspect(miss)
	require.Equal(t, 0, miss.AlertCount)
}

func TestInspectIPOnlySignature(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip 10.0.0.0/24 any -> any any (msg:"ipo"; sid:5;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	hit := tcpPacket(t, "10.0.0.5", "1.2.3.4", 1, 2, "")
	e.Inspect(hit)
	require.Equal(t, 1, hit.AlertCount)

	miss := tcpPacket(t, "10.0.1.5", "1.2.3.4", 1, 2, "")
	e.Inspect(miss)
	require.Equal(t, 0, miss.AlertCount)
}

func TestInspectDetectionFilterScenario(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> 2.2.2.2 any (msg:"df"; content:"X"; detection_filter: track by_dst, count 4, seconds 60; sid:6;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	alerted := 0
	for i := 0; i < 8; i++ {
		p := tcpPacket(t, "9.9.9.9", "2.2.2.2", 1, 2, "X")
		p.Timestamp = base.Add(time.Duration(i) * time.Second)
		e.Inspect(p)
		if p.AlertCount > 0 {
			alerted++
		}
	}
	require.Equal(t, 5, alerted) // matches 4-8 (1-indexed) each alert

	late := tcpPacket(t, "9.9.9.9", "2.2.2.2", 1, 2, "X")
	late.Timestamp = base.Add(200 * time.Second)
	e.Inspect(late)
	require.Equal(t, 1, late.AlertCount)
}

func TestInspectNoMatchOnWrongPort(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> any 80 (msg:"t1"; content:"GET"; sid:1;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	p := tcpPacket(t, "10.0.0.1", "93.184.216.34", 12345, 443, "GET / HTTP/1.1")
	e.Inspect(p)
	require.Equal(t, 0, p.AlertCount)
}

func TestThresholdTableLimit(t *testing.T) {
	tbl := NewThresholdTable()
	th := &sigparse.Threshold{Type: sigparse.TypeLimit, Track: sigparse.TrackByRule, Count: 2, Seconds: 60}
	now := time.Now()
	require.True(t, tbl.Allow(1, th, now, netip.Addr{}, netip.Addr{}))
	require.True(t, tbl.Allow(1, th, now, netip.Addr{}, netip.Addr{}))
	require.False(t, tbl.Allow(1, th, now, netip.Addr{}, netip.Addr{}))
}

func TestThresholdTableThresholdResets(t *testing.T) {
	tbl := NewThresholdTable()
	th := &sigparse.Threshold{Type: sigparse.TypeThreshold, Track: sigparse.TrackByRule, Count: 3, Seconds: 60}
	now := time.Now()
	require.False(t, tbl.Allow(1, th, now, netip.Addr{}, netip.Addr{}))
	require.False(t, tbl.Allow(1, th, now, netip.Addr{}, netip.Addr{}))
	require.True(t, tbl.Allow(1, th, now, netip.Addr{}, netip.Addr{}))
	require.False(t, tbl.Allow(1, th, now, netip.Addr{}, netip.Addr{}))
}
