// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ContentFlags mirrors spec.md §3's content flag set.
type ContentFlags uint8

const (
	ContentNocase ContentFlags = 1 << iota
	ContentRawbytes
	ContentNegated
	ContentRelativeNext
	ContentDistance
	ContentWithin
	ContentFastPattern
)

// Content is a parsed `content` keyword literal (spec.md §3 "Content literal").
type Content struct {
	Raw      []byte
	ID       uint32
	Flags    ContentFlags
	Offset   int
	Depth    int
	Distance int
	Within   int
}

// patternStore assigns a shared ID to identical content byte strings, so
// duplicate literals across signatures can share one multi-pattern-matcher
// slot (spec.md §3: "identity id (assigned by a global pattern-ID store so
// duplicates share one ID)"). Keyed by an xxhash digest of the raw bytes,
// matching the hashing approach the rest of the corpus uses for
// content-addressed dedup (C5's leaf dedup uses the same hash family).
type patternStore struct {
	mu   sync.Mutex
	ids  map[uint64]uint32
	next uint32
}

var globalPatternStore = &patternStore{ids: make(map[uint64]uint32)}

func (s *patternStore) idFor(raw []byte) uint32 {
	h := xxhash.Sum64(raw)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[h]; ok {
		return id
	}
	id := s.next
	s.next++
	s.ids[h] = id
	return id
}

// ParseContentLiteral parses a `content` argument string: quoted or
// unquoted, leading `!` negation, `|HEXHEX HEXHEX|` hex segments, and the
// four recognized backslash escapes (spec.md §4.2).
func ParseContentLiteral(arg string) (*Content, error) {
	arg = strings.TrimSpace(arg)
	negated := false
	if strings.HasPrefix(arg, "!") {
		negated = true
		arg = arg[1:]
	}
	if strings.HasPrefix(arg, "\"") && strings.HasSuffix(arg, "\"") && len(arg) >= 2 {
		arg = arg[1 : len(arg)-1]
	}

	raw, err := unescapeContent(arg)
	if err != nil {
		return nil, err
	}

	c := &Content{Raw: raw}
	c.ID = globalPatternStore.idFor(raw)
	if negated {
		c.Flags |= ContentNegated
	}
	return c, nil
}

func unescapeContent(s string) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '|':
			end := strings.IndexByte(s[i+1:], '|')
			if end < 0 {
				return nil, fmt.Errorf("sigparse: unterminated hex segment in content")
			}
			hexSeg := s[i+1 : i+1+end]
			bytes, err := parseHexSegment(hexSeg)
			if err != nil {
				return nil, err
			}
			out = append(out, bytes...)
			i += end + 2
		case s[i] == '\\':
			if i+1 >= len(s) {
				return nil, fmt.Errorf("sigparse: trailing backslash in content")
			}
			switch s[i+1] {
			case ':', ';', '\\', '"':
				out = append(out, s[i+1])
			default:
				return nil, fmt.Errorf("sigparse: invalid escape \\%c in content", s[i+1])
			}
			i += 2
		default:
			out = append(out, s[i])
			i++
		}
	}
	return out, nil
}

func parseHexSegment(seg string) ([]byte, error) {
	fields := strings.Fields(seg)
	var out []byte
	for _, f := range fields {
		if len(f)%2 != 0 {
			return nil, fmt.Errorf("sigparse: odd-length hex byte group %q", f)
		}
		for i := 0; i < len(f); i += 2 {
			var b byte
			if _, err := fmt.Sscanf(f[i:i+2], "%02x", &b); err != nil {
				return nil, fmt.Errorf("sigparse: invalid hex byte %q: %w", f[i:i+2], err)
			}
			out = append(out, b)
		}
	}
	return out, nil
}

// Serialize renders a Content back to rule-text form, the inverse of
// ParseContentLiteral for non-ambiguous (printable, non-hex-requiring)
// byte strings (spec.md §8 round-trip property).
func (c *Content) Serialize() string {
	var b strings.Builder
	if c.Flags&ContentNegated != 0 {
		b.WriteByte('!')
	}
	b.WriteByte('"')
	for _, ch := range c.Raw {
		switch ch {
		case ':', ';', '\\', '"':
			b.WriteByte('\\')
			b.WriteByte(ch)
		default:
			b.WriteByte(ch)
		}
	}
	b.WriteByte('"')
	return b.String()
}
