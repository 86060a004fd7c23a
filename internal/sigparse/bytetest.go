// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteTestOp is the comparison operator of a byte_test keyword.
type ByteTestOp byte

const (
	OpEqual  ByteTestOp = '='
	OpLess   ByteTestOp = '<'
	OpGreater ByteTestOp = '>'
	OpAnd    ByteTestOp = '&'
	OpXor    ByteTestOp = '^'
)

// ByteTest is a parsed `byte_test` keyword (spec.md §4.2 grammar).
type ByteTest struct {
	Bytes    int
	Negated  bool
	Op       ByteTestOp
	Value    uint64
	Offset   int
	Relative bool
	String   bool
	Base     string // "dec", "hex", "oct", or "" (binary)
	Endian   string // "big", "little", or "" (default big)
	DCE      bool
}

// ByteJump is a parsed `byte_jump` keyword: the same bytes/offset/relative/
// string/base/endian/dce grammar as byte_test, without a comparison.
type ByteJump struct {
	Bytes    int
	Offset   int
	Relative bool
	String   bool
	Base     string
	Endian   string
	DCE      bool
}

// ParseByteTest parses "bytes, [!]op, value, offset [, relative] [, string]
// [, dec|hex|oct] [, big|little] [, dce]" (spec.md §4.2).
func ParseByteTest(arg string) (*ByteTest, error) {
	fields := splitCommaArgs(arg)
	if len(fields) < 4 {
		return nil, fmt.Errorf("sigparse: byte_test requires at least 4 fields")
	}

	bt := &ByteTest{}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("sigparse: byte_test bytes not numeric: %w", err)
	}
	bt.Bytes = n

	opTok := fields[1]
	if strings.HasPrefix(opTok, "!") {
		bt.Negated = true
		opTok = opTok[1:]
	}
	if len(opTok) != 1 {
		return nil, fmt.Errorf("sigparse: byte_test operator must be one character")
	}
	switch ByteTestOp(opTok[0]) {
	case OpEqual, OpLess, OpGreater, OpAnd, OpXor:
		bt.Op = ByteTestOp(opTok[0])
	default:
		return nil, fmt.Errorf("sigparse: unknown byte_test operator %q", opTok)
	}

	val, err := strconv.ParseUint(fields[2], 0, 64)
	if err != nil {
		return nil, fmt.Errorf("sigparse: byte_test value not numeric: %w", err)
	}
	bt.Value = val

	off, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("sigparse: byte_test offset not numeric: %w", err)
	}
	bt.Offset = off

	for _, m := range fields[4:] {
		m = strings.TrimSpace(m)
		switch m {
		case "relative":
			bt.Relative = true
		case "string":
			bt.String = true
		case "dec", "hex", "oct":
			bt.Base = m
		case "big", "little":
			bt.Endian = m
		case "dce":
			bt.DCE = true
		default:
			return nil, fmt.Errorf("sigparse: unknown byte_test modifier %q", m)
		}
	}

	if bt.String {
		if bt.Bytes > 23 {
			return nil, fmt.Errorf("sigparse: byte_test string bytes must be <= 23")
		}
	} else {
		if bt.Bytes > 8 {
			return nil, fmt.Errorf("sigparse: byte_test binary bytes must be <= 8")
		}
		if bt.Base != "" {
			return nil, fmt.Errorf("sigparse: byte_test base modifier requires string")
		}
	}
	if bt.DCE && (bt.String || bt.Base != "" || bt.Endian != "") {
		return nil, fmt.Errorf("sigparse: byte_test dce excludes string/base/endian modifiers")
	}
	return bt, nil
}

// ParseByteJump parses the byte_jump grammar, sharing byte_test's
// bytes/offset/modifier shape minus the comparison operator/value.
func ParseByteJump(arg string) (*ByteJump, error) {
	fields := splitCommaArgs(arg)
	if len(fields) < 2 {
		return nil, fmt.Errorf("sigparse: byte_jump requires at least 2 fields")
	}
	bj := &ByteJump{}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("sigparse: byte_jump bytes not numeric: %w", err)
	}
	bj.Bytes = n
	off, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("sigparse: byte_jump offset not numeric: %w", err)
	}
	bj.Offset = off

	for _, m := range fields[2:] {
		m = strings.TrimSpace(m)
		switch m {
		case "relative":
			bj.Relative = true
		case "string":
			bj.String = true
		case "dec", "hex", "oct":
			bj.Base = m
		case "big", "little":
			bj.Endian = m
		case "dce":
			bj.DCE = true
		default:
			return nil, fmt.Errorf("sigparse: unknown byte_jump modifier %q", m)
		}
	}
	return bj, nil
}

func splitCommaArgs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

// DecodeOctalU64 parses a zero-prefixed octal literal of the kind
// byte_test's "oct" base modifier extracts from a payload, matching
// spec.md §8's worked example ("01777777777777777777777" -> u64::MAX).
func DecodeOctalU64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 8, 64)
}
