// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package decode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTunnelConstructionSetsLinkage(t *testing.T) {
	tctx := NewThreadCtx(&DecodeStats{})
	parent := NewPacket()
	inner := minimalIPv4(5, nil, 0, 20)
	pq := &PendingQueue{}

	DecodeTunnel(tctx, parent, inner, pq, LinkTypeRaw)

	require.True(t, parent.IsTunnelRoot)
	require.True(t, parent.SuppressPayloadInspection)
	require.NotNil(t, parent.Tunnel)
	require.Equal(t, 1, parent.Tunnel.TPRCount)
	require.Equal(t, 1, pq.Len())

	children := pq.Drain()
	require.Len(t, children, 1)
	require.Equal(t, parent, children[0].TunnelParent)
	require.Equal(t, 1, children[0].RecursionLevel)
	require.NotNil(t, children[0].IP4)
}

func TestTunnelRecursionBounded(t *testing.T) {
	tctx := NewThreadCtx(&DecodeStats{})
	tctx.MaxRecursion = 1
	parent := NewPacket()
	parent.RecursionLevel = 1
	pq := &PendingQueue{}

	DecodeTunnel(tctx, parent, minimalIPv4(5, nil, 0, 20), pq, LinkTypeRaw)

	require.Equal(t, 0, pq.Len())
}

func TestEventSetOverflow(t *testing.T) {
	var s EventSet
	for i := 0; i < MaxEvents+5; i++ {
		s.Set(EventIPv4PktTooSmall)
	}
	require.Len(t, s.Events(), MaxEvents)
	require.Equal(t, 5, s.Overflow())
}

func TestPacketAlertOverflow(t *testing.T) {
	p := NewPacket()
	for i := 0; i < MaxAlerts+3; i++ {
		p.AddAlert(PacketAlert{Num: uint32(i)})
	}
	require.Equal(t, MaxAlerts, p.AlertCount)
	require.Equal(t, 3, p.AlertOverflow)
}

func TestPacketResetMatchesFresh(t *testing.T) {
	p := NewPacket()
	p.AddAlert(PacketAlert{SID: 1})
	p.Events.Set(EventIPv4PktTooSmall)
	p.Reset()

	fresh := NewPacket()
	require.Equal(t, 0, p.AlertCount)
	require.Equal(t, fresh.Events.Events(), p.Events.Events())
}
