// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package addr

import (
	"fmt"
	"strconv"
	"strings"
)

// Port is a single 16-bit port number.
type Port uint16

// PortRange is one port-group element: a single port or an inclusive span,
// optionally negated. "any" is represented as [0, 65535].
type PortRange struct {
	Lo, Hi  Port
	Negated bool
}

// AnyPortRange spans the entire port space.
func AnyPortRange() PortRange { return PortRange{Lo: 0, Hi: 65535} }

// ParsePortRange parses "80", "1024:65535", "1024:" (open-ended high),
// ":1024" (open-ended low), or "any", with an optional leading "!".
func ParsePortRange(tok string) (PortRange, error) {
	negated := false
	if len(tok) > 0 && tok[0] == '!' {
		negated = true
		tok = tok[1:]
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return PortRange{}, fmt.Errorf("addr: empty port token")
	}
	if strings.EqualFold(tok, "any") {
		r := AnyPortRange()
		r.Negated = negated
		return r, nil
	}

	if i := strings.IndexByte(tok, ':'); i >= 0 {
		loStr, hiStr := tok[:i], tok[i+1:]
		lo := Port(0)
		hi := Port(65535)
		var err error
		if loStr != "" {
			lo, err = parsePort(loStr)
			if err != nil {
				return PortRange{}, err
			}
		}
		if hiStr != "" {
			hi, err = parsePort(hiStr)
			if err != nil {
				return PortRange{}, err
			}
		}
		if lo > hi {
			return PortRange{}, fmt.Errorf("addr: port range %q has lo > hi", tok)
		}
		return PortRange{Lo: lo, Hi: hi, Negated: negated}, nil
	}

	p, err := parsePort(tok)
	if err != nil {
		return PortRange{}, err
	}
	return PortRange{Lo: p, Hi: p, Negated: negated}, nil
}

func parsePort(s string) (Port, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("addr: invalid port %q: %w", s, err)
	}
	return Port(n), nil
}

// Contains reports whether p lies within the range, ignoring negation.
func (r PortRange) Contains(p Port) bool {
	return p >= r.Lo && p <= r.Hi
}

// Matches applies negation on top of Contains.
func (r PortRange) Matches(p Port) bool {
	hit := r.Contains(p)
	if r.Negated {
		return !hit
	}
	return hit
}

// Overlaps reports whether two port ranges share any port.
func (r PortRange) Overlaps(o PortRange) bool {
	return r.Lo <= o.Hi && o.Lo <= r.Hi
}

// IsAny reports whether r spans the full port space.
func (r PortRange) IsAny() bool {
	return r.Lo == 0 && r.Hi == 65535
}

func (r PortRange) String() string {
	neg := ""
	if r.Negated {
		neg = "!"
	}
	if r.Lo == r.Hi {
		return fmt.Sprintf("%s%d", neg, r.Lo)
	}
	return fmt.Sprintf("%s%d:%d", neg, r.Lo, r.Hi)
}
