// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package detect

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"grimm.is/sentryd/internal/sigparse"
)

// contentWindow computes (start, end) for one content predicate against
// payload given the current cursor: offset/depth are absolute, distance/
// within are relative to cursor (spec.md §4.5 "Content matcher inner
// loop"). The returned bounds are clamped to payload's length.
func contentWindow(payload []byte, cursor int, c *sigparse.Content) (start, end int) {
	if c.Flags&(sigparse.ContentDistance|sigparse.ContentWithin) != 0 {
		start = cursor + c.Distance
		if c.Flags&sigparse.ContentWithin != 0 {
			end = start + c.Within
		} else {
			end = len(payload)
		}
	} else {
		start = c.Offset
		if c.Depth != 0 {
			end = start + c.Depth
		} else {
			end = len(payload)
		}
	}
	if start < 0 {
		start = 0
	}
	if start > len(payload) {
		start = len(payload)
	}
	if end > len(payload) {
		end = len(payload)
	}
	if end < start {
		end = start
	}
	return start, end
}

// matchContent runs one content predicate against payload at cursor,
// returning the new cursor and whether the predicate passed. A negated
// predicate passes when the pattern is absent from the window and never
// moves the cursor (spec.md §4.5).
func matchContent(payload []byte, cursor int, c *sigparse.Content) (newCursor int, ok bool) {
	start, end := contentWindow(payload, cursor, c)
	window := payload[start:end]
	idx := indexContent(window, c.Raw, c.Flags&sigparse.ContentNocase != 0)

	negated := c.Flags&sigparse.ContentNegated != 0
	if negated {
		return cursor, idx < 0
	}
	if idx < 0 {
		return cursor, false
	}
	return start + idx + len(c.Raw), true
}

func indexContent(window, pat []byte, nocase bool) int {
	if len(pat) == 0 {
		return 0
	}
	if !nocase {
		return bytes.Index(window, pat)
	}
	return bytes.Index(bytes.ToLower(window), bytes.ToLower(pat))
}

// extractInt reads nbytes at pos from data, in the requested base/endian,
// matching the byte_test/byte_jump "Byte-test inner loop" (spec.md §4.5):
// on any out-of-range or malformed read it returns an error, which the
// caller treats as an abort of the signature rather than a hard failure.
func extractInt(data []byte, pos, nbytes int, isString bool, base, endian string) (uint64, error) {
	if nbytes <= 0 || pos < 0 || pos+nbytes > len(data) {
		return 0, fmt.Errorf("detect: byte extraction out of range (pos=%d, nbytes=%d, len=%d)", pos, nbytes, len(data))
	}
	window := data[pos : pos+nbytes]
	if isString {
		s := strings.TrimSpace(string(window))
		switch base {
		case "hex":
			return strconv.ParseUint(s, 16, 64)
		case "oct":
			return sigparse.DecodeOctalU64(s)
		default:
			return strconv.ParseUint(s, 10, 64)
		}
	}
	var v uint64
	if endian == "little" {
		for i := nbytes - 1; i >= 0; i-- {
			v = v<<8 | uint64(window[i])
		}
	} else {
		for i := 0; i < nbytes; i++ {
			v = v<<8 | uint64(window[i])
		}
	}
	return v, nil
}

// evalByteTest evaluates one byte_test predicate at the resolved cursor
// position, returning (pass, error). An extraction error aborts the
// signature (spec.md §4.5, §7 "runtime errors").
func evalByteTest(payload []byte, cursor int, bt *sigparse.ByteTest) (bool, error) {
	pos := bt.Offset
	if bt.Relative {
		pos = cursor + bt.Offset
	}
	v, err := extractInt(payload, pos, bt.Bytes, bt.String, bt.Base, bt.Endian)
	if err != nil {
		return false, err
	}
	var r bool
	switch bt.Op {
	case sigparse.OpEqual:
		r = v == bt.Value
	case sigparse.OpLess:
		r = v < bt.Value
	case sigparse.OpGreater:
		r = v > bt.Value
	case sigparse.OpAnd:
		r = v&bt.Value != 0
	case sigparse.OpXor:
		r = v^bt.Value != 0
	}
	if bt.Negated {
		r = !r
	}
	return r, nil
}

// evalByteJump evaluates a byte_jump predicate, returning the new cursor.
func evalByteJump(payload []byte, cursor int, bj *sigparse.ByteJump) (int, error) {
	pos := bj.Offset
	if bj.Relative {
		pos = cursor + bj.Offset
	}
	v, err := extractInt(payload, pos, bj.Bytes, bj.String, bj.Base, bj.Endian)
	if err != nil {
		return cursor, err
	}
	nc := pos + bj.Bytes + int(v)
	if nc < 0 {
		nc = 0
	}
	if nc > len(payload) {
		nc = len(payload)
	}
	return nc, nil
}

// evalIsDataAt parses "N[,relative]" and reports whether byte N is within
// the payload, counted from the cursor when relative.
func evalIsDataAt(payload []byte, cursor int, arg string) bool {
	fields := strings.Split(arg, ",")
	n, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return false
	}
	relative := false
	for _, f := range fields[1:] {
		if strings.TrimSpace(f) == "relative" {
			relative = true
		}
	}
	pos := n
	if relative {
		pos = cursor + n
	}
	return pos >= 0 && pos < len(payload)
}

// evalDsize parses a dsize argument ("N", "<N", ">N", "N<>M") and
// compares it against the payload length (spec.md §3's `match`-list
// dsize keyword).
func evalDsize(payloadLen int, arg string) bool {
	arg = strings.TrimSpace(arg)
	switch {
	case strings.Contains(arg, "<>"):
		parts := strings.SplitN(arg, "<>", 2)
		lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		return err1 == nil && err2 == nil && payloadLen >= lo && payloadLen <= hi
	case strings.HasPrefix(arg, "<"):
		n, err := strconv.Atoi(strings.TrimSpace(arg[1:]))
		return err == nil && payloadLen < n
	case strings.HasPrefix(arg, ">"):
		n, err := strconv.Atoi(strings.TrimSpace(arg[1:]))
		return err == nil && payloadLen > n
	default:
		n, err := strconv.Atoi(arg)
		return err == nil && payloadLen == n
	}
}

// pcreSpec is a parsed `pcre` argument: `"/pattern/flags"`, where flags
// may include i/s/m (folded into Go regexp's inline flag syntax) and R
// (match relative to the current cursor rather than the payload base).
type pcreSpec struct {
	re       *regexp.Regexp
	relative bool
}

var pcreCache sync.Map // string -> *pcreSpec (compile once per distinct pattern)

func compilePCRE(arg string) (*pcreSpec, error) {
	if cached, ok := pcreCache.Load(arg); ok {
		return cached.(*pcreSpec), nil
	}
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "\"") && strings.HasSuffix(arg, "\"") && len(arg) >= 2 {
		arg = arg[1 : len(arg)-1]
	}
	if !strings.HasPrefix(arg, "/") {
		return nil, fmt.Errorf("detect: pcre argument missing leading '/'")
	}
	end := strings.LastIndexByte(arg, '/')
	if end <= 0 {
		return nil, fmt.Errorf("detect: pcre argument missing closing '/'")
	}
	pattern, flags := arg[1:end], arg[end+1:]

	var inline strings.Builder
	relative := false
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			inline.WriteRune(f)
		case 'R':
			relative = true
		}
	}
	full := pattern
	if inline.Len() > 0 {
		full = "(?" + inline.String() + ")" + pattern
	}
	re, err := regexp.Compile(full)
	if err != nil {
		return nil, fmt.Errorf("detect: pcre compile: %w", err)
	}
	spec := &pcreSpec{re: re, relative: relative}
	pcreCache.Store(arg, spec)
	return spec, nil
}

// matchPCRE evaluates a pcre predicate, returning the new cursor (set to
// the end of the match) and whether it matched.
func matchPCRE(payload []byte, cursor int, arg string) (newCursor int, ok bool, err error) {
	spec, err := compilePCRE(arg)
	if err != nil {
		return cursor, false, err
	}
	base := 0
	search := payload
	if spec.relative {
		base = cursor
		search = payload[cursor:]
	}
	loc := spec.re.FindIndex(search)
	if loc == nil {
		return cursor, false, nil
	}
	return base + loc[1], true, nil
}
