// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

// ListID names one of the six ordered match lists a Signature owns
// (spec.md §3).
type ListID int

const (
	ListMatch ListID = iota
	ListPMatch
	ListUMatch
	ListAMatch
	ListDMatch
	ListTMatch
)

func (l ListID) String() string {
	switch l {
	case ListMatch:
		return "match"
	case ListPMatch:
		return "pmatch"
	case ListUMatch:
		return "umatch"
	case ListAMatch:
		return "amatch"
	case ListDMatch:
		return "dmatch"
	case ListTMatch:
		return "tmatch"
	default:
		return "unknown"
	}
}

// SigMatch is one keyword occurrence on a match list (spec.md §3).
type SigMatch struct {
	Idx          int
	Type         string
	Ctx          any
	RelativeNext bool
	List         ListID
}

// isAnchor reports whether a keyword type can anchor a later relative
// keyword (spec.md §4.2 "relative keywords need a prior anchor").
func isAnchorType(t string) bool {
	switch t {
	case "content", "pcre", "byte_jump", "uricontent", "dce_stub_data":
		return true
	default:
		return false
	}
}

// isRelativeType reports whether a keyword type is itself relative and so
// requires a preceding anchor on the same (or DCE-spliced) list.
func isRelativeType(t string, relativeArg bool) bool {
	switch t {
	case "within", "distance":
		return true
	case "byte_test", "byte_jump", "isdataat":
		return relativeArg
	default:
		return false
	}
}

// lists holds the six ordered sequences, plus the bookkeeping (idx
// counter, last anchor per list) the DCE splicing rule and relative-next
// propagation need.
type lists struct {
	Match, PMatch, UMatch, AMatch, DMatch, TMatch []*SigMatch

	nextIdx     int
	lastAnchor  map[ListID]*SigMatch
}

func newLists() *lists {
	return &lists{lastAnchor: make(map[ListID]*SigMatch)}
}

func (l *lists) append(list ListID, sm *SigMatch) {
	sm.Idx = l.nextIdx
	l.nextIdx++
	sm.List = list
	switch list {
	case ListMatch:
		l.Match = append(l.Match, sm)
	case ListPMatch:
		l.PMatch = append(l.PMatch, sm)
	case ListUMatch:
		l.UMatch = append(l.UMatch, sm)
	case ListAMatch:
		l.AMatch = append(l.AMatch, sm)
	case ListDMatch:
		l.DMatch = append(l.DMatch, sm)
	case ListTMatch:
		l.TMatch = append(l.TMatch, sm)
	}
	if isAnchorType(sm.Type) {
		l.lastAnchor[list] = sm
	}
}

// linkRelative raises relative_next on the chosen anchor (spec.md §4.2
// "Relative-next propagation"), returning an error if no anchor exists.
func (l *lists) linkRelative(list ListID) *SigMatch {
	a := l.lastAnchor[list]
	if a != nil {
		a.RelativeNext = true
	}
	return a
}

// count returns the total SigMatch count across all six lists, the
// sm_cnt invariant spec.md §8 checks.
func (l *lists) count() int {
	return len(l.Match) + len(l.PMatch) + len(l.UMatch) + len(l.AMatch) + len(l.DMatch) + len(l.TMatch)
}
