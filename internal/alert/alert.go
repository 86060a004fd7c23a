// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package alert implements the output-module surface of C8: one queued
// PacketAlert per match, formatted and written through a thread-local
// handle that serializes concurrent writers with its own mutex.
//
// Grounded on spec.md §4.6 and original_source/src/alert-fastlog.c
// (AlertFastLogIPv4, AlertFastLogIPv6, AlertFastLogDecoderEvent,
// CreateTimeString): the wire format below reproduces that file's
// fprintf grammar field for field, including the decoder-event variant's
// raw-packet hex dump and the pcap-count suffix.
package alert

import (
	"bytes"
	"fmt"
	"io"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimm.is/sentryd/internal/decode"
)

// Module is the output-module contract: one registered sink that consumes
// a fully decoded and sorted packet's alert set (spec.md §4.6
// "OutputRegisterModule(name, tag, init)").
type Module interface {
	Name() string
	Emit(p *decode.Packet) error
	Close() error
}

// Ctx wraps a writer with the mutex every thread sharing it serializes
// through, matching LogFileCtx's fp_mutex: one handle, one file, any
// number of detection threads.
type Ctx struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
}

// NewCtx wraps w for serialized writes. If w also implements io.Closer,
// Close closes it; otherwise Close is a no-op.
func NewCtx(w io.Writer) *Ctx {
	c, _ := w.(io.Closer)
	return &Ctx{w: w, c: c}
}

func (o *Ctx) writeLine(line string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, err := io.WriteString(o.w, line)
	return err
}

// Close releases the underlying writer, if closeable.
func (o *Ctx) Close() error {
	if o.c == nil {
		return nil
	}
	return o.c.Close()
}

// FastLog is the "fast" output module: one line per alert, Snort
// alert_fast-compatible (spec.md §4.6, original_source/alert-fastlog.c).
type FastLog struct {
	ctx *Ctx

	// BatchID tags every line written by this instance with a run
	// identifier, so lines from successive engine reloads of the same
	// log file can be told apart without reparsing timestamps.
	BatchID uuid.UUID

	alerts uint64
}

// NewFastLog builds a FastLog module writing through ctx.
func NewFastLog(ctx *Ctx) *FastLog {
	return &FastLog{ctx: ctx, BatchID: uuid.New()}
}

func (f *FastLog) Name() string { return "fast" }

func (f *FastLog) Close() error { return f.ctx.Close() }

// Emit formats and writes every queued alert on p, in whatever order
// p.Alerts currently holds: callers are expected to have called
// p.SortAlerts first if detection order matters (spec.md §5).
func (f *FastLog) Emit(p *decode.Packet) error {
	if p.AlertCount == 0 {
		return nil
	}
	ts := CreateTimeString(p.Timestamp)
	var buf bytes.Buffer
	for i := 0; i < p.AlertCount; i++ {
		writeLine(&buf, ts, p, &p.Alerts[i])
	}
	f.alerts += uint64(p.AlertCount)
	return f.ctx.writeLine(buf.String())
}

// Alerts reports the running count of lines this module has written,
// the fast-log thread's exit-time stats line (spec.md §4.6).
func (f *FastLog) Alerts() uint64 { return f.alerts }

// CreateTimeString renders ts the way CreateTimeString in
// alert-fastlog.c does: UTC, zero-padded, microsecond resolution, with
// the two-digit year taken mod 100 rather than from a full year field.
func CreateTimeString(ts time.Time) string {
	t := ts.UTC()
	return fmt.Sprintf("%02d/%02d/%02d-%02d:%02d:%02d.%06d",
		int(t.Month()), t.Day(), t.Year()%100,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/1000)
}

func writeLine(buf *bytes.Buffer, ts string, p *decode.Packet, pa *decode.PacketAlert) {
	switch {
	case p.IP4 != nil:
		writeIPLine(buf, ts, pa, uint8(p.Proto), p.SrcAddr, p.SrcPort, p.DstAddr, p.DstPort)
	case p.IP6 != nil:
		writeIPLine(buf, ts, pa, uint8(p.Proto), p.SrcAddr, p.SrcPort, p.DstAddr, p.DstPort)
	case p.Events.Overflow() > 0 || len(p.Events.Events()) > 0:
		writeDecoderEventLine(buf, ts, pa, p.Raw, 0)
	default:
		return
	}
	writeXref(buf, pa.References)
	buf.WriteByte('\n')
}

func writeIPLine(buf *bytes.Buffer, ts string, pa *decode.PacketAlert, proto uint8, src netip.Addr, sp uint16, dst netip.Addr, dp uint16) {
	fmt.Fprintf(buf, "%s  [**] [%d:%d:%d] %s [**] [Classification: %s] [Priority: %d] {%d} %s:%d -> %s:%d",
		ts, pa.GID, pa.SID, pa.Rev, pa.Msg, pa.ClassMsg, pa.Priority, proto, src, sp, dst, dp)
}

// writeDecoderEventLine reproduces AlertFastLogDecoderEvent: up to the
// first 32 raw bytes as hex, then the pcap-count suffix only when
// pcapCount is nonzero. The original never closes the "[Raw pkt: "
// bracket when pcapCount is zero; that quirk is preserved here.
func writeDecoderEventLine(buf *bytes.Buffer, ts string, pa *decode.PacketAlert, raw []byte, pcapCount uint64) {
	fmt.Fprintf(buf, "%s  [**] [%d:%d:%d] %s [**] [Classification: %s] [Priority: %d] [**] [Raw pkt: ",
		ts, pa.GID, pa.SID, pa.Rev, pa.Msg, pa.ClassMsg, pa.Priority)
	n := len(raw)
	if n > 32 {
		n = 32
	}
	writeHex(buf, raw[:n])
	if pcapCount != 0 {
		fmt.Fprintf(buf, "] [pcap file packet: %d]", pcapCount)
	}
}

func writeHex(buf *bytes.Buffer, b []byte) {
	for i, c := range b {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(buf, "%02X", c)
	}
}

// writeXref reproduces the "[Xref => %s%s]" loop: each reference string
// carries its key and value joined by a comma, e.g. "url,example.com/x";
// the two halves are concatenated with no separator to match the
// original's ref->key, ref->reference pair.
func writeXref(buf *bytes.Buffer, refs []string) {
	if len(refs) == 0 {
		return
	}
	buf.WriteByte(' ')
	for _, r := range refs {
		key, val := r, ""
		if i := strings.IndexByte(r, ','); i >= 0 {
			key, val = r[:i], r[i+1:]
		}
		fmt.Fprintf(buf, "[Xref => %s%s]", key, val)
	}
}
