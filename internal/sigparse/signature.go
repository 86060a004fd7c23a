// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import "grimm.is/sentryd/internal/addr"

// SigFlags is the single-bit mask of sentinel flags spec.md §3 names.
type SigFlags uint32

const (
	FlagAnySrc SigFlags = 1 << iota
	FlagAnyDst
	FlagAnySp
	FlagAnyDp
	FlagIPOnly
	FlagDecoderEventOnly
	FlagHasPayload
	FlagHasDsize
	FlagHasFlow
	FlagAppLayer
	FlagBidirectional
	FlagPacketLevel
	FlagUMatchPresent
	FlagAMatchPresent
	FlagDMatchPresent
	FlagMPMContentPositive
	FlagMPMContentNegative
	FlagMPMURIPositive
	FlagMPMURINegative
	FlagNoAlert
)

// IPOnlyCIDRItem is one flattened netblock feeding the IP-only fast path
// (spec.md §3, §4.4).
type IPOnlyCIDRItem struct {
	Range addr.Range
}

// Signature is a parsed rule (spec.md §3 "Signature AST").
type Signature struct {
	SID, GID, Rev uint32
	Priority      int
	Msg           string
	ClassType     string
	ClassMsg      string
	References    []string
	Metadata      map[string]string
	Action        string

	Proto    DetectProto
	AppProto string

	SrcAddrs, DstAddrs []addr.Range
	SrcPorts, DstPorts []addr.PortRange

	CidrSrc, CidrDst []IPOnlyCIDRItem

	Flags SigFlags

	lists *lists

	threshold        *Threshold
	detectionFilter  *Threshold
}

// SMCount returns the total SigMatch count across all six lists — the
// sm_cnt invariant spec.md §8 checks.
func (s *Signature) SMCount() int { return s.lists.count() }

// Match, PMatch, UMatch, AMatch, DMatch, TMatch expose the six ordered
// lists read-only to downstream components (C5/C7).
func (s *Signature) Match() []*SigMatch  { return s.lists.Match }
func (s *Signature) PMatch() []*SigMatch { return s.lists.PMatch }
func (s *Signature) UMatch() []*SigMatch { return s.lists.UMatch }
func (s *Signature) AMatch() []*SigMatch { return s.lists.AMatch }
func (s *Signature) DMatch() []*SigMatch { return s.lists.DMatch }
func (s *Signature) TMatch() []*SigMatch { return s.lists.TMatch }

// Threshold returns the signature's threshold clause, if any.
func (s *Signature) ThresholdClause() *Threshold { return s.threshold }

// DetectionFilter returns the signature's detection_filter clause, if any.
func (s *Signature) DetectionFilterClause() *Threshold { return s.detectionFilter }

func (s SigFlags) Has(f SigFlags) bool { return s&f != 0 }
