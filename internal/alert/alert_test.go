// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package alert

import (
	"bytes"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"grimm.is/sentryd/internal/decode"
)

func TestCreateTimeStringFormat(t *testing.T) {
	ts := time.Date(2026, time.March, 4, 1, 2, 3, 456000000, time.UTC)
	require.Equal(t, "03/04/26-01:02:03.456000", CreateTimeString(ts))
}

func TestFastLogEmitIPv4Line(t *testing.T) {
	var buf bytes.Buffer
	f := NewFastLog(NewCtx(&buf))

	p := decode.AcquirePacket()
	p.IP4 = &decode.IPv4Hdr{}
	p.Proto = decode.ProtoTCP
	p.SrcAddr = netip.MustParseAddr("10.0.0.1")
	p.DstAddr = netip.MustParseAddr("93.184.216.34")
	p.SrcPort = 12345
	p.DstPort = 80
	p.Timestamp = time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	p.AddAlert(decode.PacketAlert{
		SID: 1000001, GID: 1, Rev: 3, Priority: 2,
		Msg: "fast-path alert", Class: "attempted-recon", ClassMsg: "Attempted Information Leak",
	})

	require.NoError(t, f.Emit(p))
	line := buf.String()
	require.Contains(t, line, "01/02/26-03:04:05.000000")
	require.Contains(t, line, "[**] [1:1000001:3] fast-path alert [**]")
	require.Contains(t, line, "[Classification: Attempted Information Leak] [Priority: 2]")
	require.Contains(t, line, "{6} 10.0.0.1:12345 -> 93.184.216.34:80")
	require.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
	require.Equal(t, uint64(1), f.Alerts())
}

func TestFastLogEmitWritesXrefTokens(t *testing.T) {
	var buf bytes.Buffer
	f := NewFastLog(NewCtx(&buf))

	p := decode.AcquirePacket()
	p.IP4 = &decode.IPv4Hdr{}
	p.SrcAddr = netip.MustParseAddr("1.2.3.4")
	p.DstAddr = netip.MustParseAddr("5.6.7.8")
	p.AddAlert(decode.PacketAlert{
		SID: 1, GID: 1, Rev: 1, Msg: "m", References: []string{"url,www.example.com/info"},
	})

	require.NoError(t, f.Emit(p))
	require.Contains(t, buf.String(), "[Xref => urlwww.example.com/info]")
}

func TestFastLogEmitNoAlertsWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	f := NewFastLog(NewCtx(&buf))
	p := decode.AcquirePacket()
	require.NoError(t, f.Emit(p))
	require.Equal(t, 0, buf.Len())
}

func TestFastLogEmitDecoderEventLine(t *testing.T) {
	var buf bytes.Buffer
	f := NewFastLog(NewCtx(&buf))

	p := decode.AcquirePacket()
	p.Raw = []byte{0xde, 0xad, 0xbe, 0xef}
	p.Events.Set(decode.EventIPv4HlenTooSmall)
	p.AddAlert(decode.PacketAlert{SID: 2, GID: 1, Rev: 1, Msg: "decode anomaly", ClassMsg: "Generic Protocol Command Decode"})

	require.NoError(t, f.Emit(p))
	line := buf.String()
	require.Contains(t, line, "[**] [Raw pkt: DE AD BE EF")
	require.NotContains(t, line, "pcap file packet")
}

func TestFastLogEmitMultipleAlertsOrderedAsStored(t *testing.T) {
	var buf bytes.Buffer
	f := NewFastLog(NewCtx(&buf))

	p := decode.AcquirePacket()
	p.IP4 = &decode.IPv4Hdr{}
	p.SrcAddr = netip.MustParseAddr("10.0.0.1")
	p.DstAddr = netip.MustParseAddr("10.0.0.2")
	p.AddAlert(decode.PacketAlert{SID: 5, GID: 1, Rev: 1, Msg: "first"})
	p.AddAlert(decode.PacketAlert{SID: 6, GID: 1, Rev: 1, Msg: "second"})

	require.NoError(t, f.Emit(p))
	out := buf.String()
	require.Less(t, indexOf(out, "first"), indexOf(out, "second"))
	require.Equal(t, uint64(2), f.Alerts())
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
