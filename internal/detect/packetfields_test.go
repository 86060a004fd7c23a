// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detect

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"grimm.is/sentryd/internal/decode"
	"grimm.is/sentryd/internal/sigparse"
)

func TestInspectTtlGatesOnActualValue(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> any any (msg:"ttl"; ttl:<100; sid:300;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	low := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, "")
	low.IP4.TTL = 50
	e.Inspect(low)
	require.Equal(t, 1, low.AlertCount)

	high := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, "")
	high.IP4.TTL = 200
	e.Inspect(high)
	require.Equal(t, 0, high.AlertCount, "ttl:<100 must not fire on a packet with ttl 200")
}

func TestInspectAckGatesOnActualValue(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> any any (msg:"ack"; ack:42; sid:301;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	hit := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, "")
	hit.TCP.Ack = 42
	e.Inspect(hit)
	require.Equal(t, 1, hit.AlertCount)

	miss := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, "")
	miss.TCP.Ack = 43
	e.Inspect(miss)
	require.Equal(t, 0, miss.AlertCount)
}

func TestInspectSameipGatesOnAddresses(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip any any -> any any (msg:"same"; sameip; sid:302;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	same := tcpPacket(t, "10.0.0.1", "10.0.0.1", 1, 2, "")
	e.Inspect(same)
	require.Equal(t, 1, same.AlertCount)

	diff := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, "")
	e.Inspect(diff)
	require.Equal(t, 0, diff.AlertCount)
}

func TestInspectFlagsExactSetGates(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> any any (msg:"syn"; flags:S; sid:303;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	synOnly := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, "")
	synOnly.TCP.Flags = decode.TCPFlagSYN
	e.Inspect(synOnly)
	require.Equal(t, 1, synOnly.AlertCount)

	synAck := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, "")
	synAck.TCP.Flags = decode.TCPFlagSYN | decode.TCPFlagACK
	e.Inspect(synAck)
	require.Equal(t, 0, synAck.AlertCount)
}

// sum16 and fold16 mirror decode's unexported checksum algorithm
// (checksumAdd/checksumFold) so this test can build a segment with a
// wire checksum that is actually correct, the same way a real stack
// would produce one.
func sum16(sum uint32, b []byte) uint32 {
	i := 0
	for ; i+1 < len(b); i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if i < len(b) {
		sum += uint32(b[i]) << 8
	}
	return sum
}

func fold16(sum uint32) uint16 {
	for sum>>16 != 0 {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return ^uint16(sum)
}

// buildTCPv4Segment returns a 20-byte, option-free TCP header plus
// payload with a correct checksum for the given IPv4 src/dst.
func buildTCPv4Segment(t *testing.T, src, dst [4]byte, srcPort, dstPort uint16, flags byte, payload []byte) []byte {
	t.Helper()
	seg := make([]byte, 20+len(payload))
	binary.BigEndian.PutUint16(seg[0:2], srcPort)
	binary.BigEndian.PutUint16(seg[2:4], dstPort)
	seg[12] = 5 << 4
	seg[13] = flags
	copy(seg[20:], payload)

	sum := sum16(0, src[:])
	sum = sum16(sum, dst[:])
	sum += uint32(decode.ProtoTCP)
	sum += uint32(len(seg))
	sum = sum16(sum, seg)
	wire := fold16(sum)
	binary.BigEndian.PutUint16(seg[16:18], wire)
	return seg
}

func TestInspectTCPv4CsumGatesOnActualValidity(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert tcp any any -> any any (msg:"badcsum"; tcpv4-csum:invalid; sid:304;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	src := [4]byte{10, 0, 0, 1}
	dst := [4]byte{10, 0, 0, 2}

	good := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1111, 2222, "")
	seg := buildTCPv4Segment(t, src, dst, 1111, 2222, decode.TCPFlagSYN, nil)
	good.TCP = &decode.TCPHdr{
		SrcPort: 1111, DstPort: 2222, DataOffset: 20, Flags: decode.TCPFlagSYN,
		Checksum: binary.BigEndian.Uint16(seg[16:18]), Raw: seg,
	}
	e.Inspect(good)
	require.Equal(t, 0, good.AlertCount, "tcpv4-csum:invalid must not fire on a packet with a correct checksum")

	bad := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1111, 2222, "")
	badSeg := append([]byte(nil), seg...)
	badSeg[16] ^= 0xff // corrupt the wire checksum
	bad.TCP = &decode.TCPHdr{
		SrcPort: 1111, DstPort: 2222, DataOffset: 20, Flags: decode.TCPFlagSYN,
		Checksum: binary.BigEndian.Uint16(badSeg[16:18]), Raw: badSeg,
	}
	e.Inspect(bad)
	require.Equal(t, 1, bad.AlertCount, "tcpv4-csum:invalid must fire on a packet with a corrupted checksum")
}

func TestInspectIpprotoGatesOnProtocol(t *testing.T) {
	sigs := []*sigparse.Signature{
		mustParse(t, `alert ip any any -> any any (msg:"udp-only"; ipproto:udp; sid:305;)`),
	}
	e, err := Build(sigs)
	require.NoError(t, err)

	tcpPkt := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, "")
	e.Inspect(tcpPkt)
	require.Equal(t, 0, tcpPkt.AlertCount)

	udpPkt := tcpPacket(t, "10.0.0.1", "10.0.0.2", 1, 2, "")
	udpPkt.Proto = decode.ProtoUDP
	e.Inspect(udpPkt)
	require.Equal(t, 1, udpPkt.AlertCount)
}
