// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import (
	"fmt"
	"strconv"
	"strings"

	"grimm.is/sentryd/internal/addr"
)

// builder accumulates state across one Parse call: the Signature under
// construction, its lists, and the bookkeeping modifier keywords
// (nocase, within, distance, ...) need to reach back to the preceding
// anchor keyword.
type builder struct {
	sig          *Signature
	lists        *lists
	lastAnchorSM *SigMatch
	// prevAnchorSM is the anchor that preceded lastAnchorSM at the point
	// lastAnchorSM itself was appended — the keyword that `within`/
	// `distance` actually measure from, since the current content is
	// itself anchor-typed and would otherwise shadow its own anchor
	// (spec.md §4.2's relative-next propagation).
	prevAnchorSM *SigMatch
}

// payloadList returns pmatch normally, or dmatch once the signature has
// been forced into DCERPC app-layer mode by a dce_* keyword — plain
// content/pcre keywords on a DCERPC rule still land on pmatch; only
// byte_test/byte_jump consult the splicing rule, since those are the only
// keywords spec.md §4.2 describes as spliceable.
func (b *builder) payloadList() ListID { return ListPMatch }

// setAppProto records the app-layer protocol a keyword forces (e.g.
// dce_iface forces "dcerpc"), rejecting a conflicting second forcing.
func (b *builder) setAppProto(proto string) error {
	if b.sig.AppProto != "" && b.sig.AppProto != proto {
		return fmt.Errorf("sigparse: signature cannot mix app-layer protocols %q and %q", b.sig.AppProto, proto)
	}
	b.sig.AppProto = proto
	b.sig.Flags |= FlagAppLayer
	return nil
}

// Parse parses one textual rule line into a Signature (spec.md §3, §4.2):
//
//	action proto src_addrs src_ports direction dst_addrs dst_ports ( option:value; ... )
//
// Decoder-event-only rules (msg matching on a decode.Event rather than a
// wire 5-tuple) are represented the same way, flagged via
// FlagDecoderEventOnly once the options loop sees a `decode-event`-typed
// generic match; Parse itself only builds the AST, it never evaluates it.
func Parse(line string) (*Signature, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("sigparse: empty rule line")
	}

	openParen := strings.IndexByte(line, '(')
	if openParen < 0 {
		return nil, fmt.Errorf("sigparse: rule has no option block")
	}
	closeParen := strings.LastIndexByte(line, ')')
	if closeParen < 0 || closeParen < openParen {
		return nil, fmt.Errorf("sigparse: rule option block is not closed")
	}

	header := strings.TrimSpace(line[:openParen])
	body := line[openParen+1 : closeParen]

	sig := &Signature{
		Rev:      0,
		GID:      1, // default gid when the rule has no explicit `gid:` (spec.md §8 scenario 1)
		Metadata: make(map[string]string),
		lists:    newLists(),
	}
	b := &builder{sig: sig, lists: sig.lists}

	if err := parseHeader(b, header); err != nil {
		return nil, err
	}
	if err := parseOptions(b, body); err != nil {
		return nil, err
	}
	if err := validateSignature(b); err != nil {
		return nil, err
	}
	classifyIPOnly(b)
	return sig, nil
}

var actionTokens = map[string]bool{
	"alert": true, "log": true, "pass": true, "drop": true,
	"reject": true, "rejectsrc": true, "rejectdst": true, "rejectboth": true,
}

// parseHeader tokenizes the fixed 7-field header: action, proto, src
// addrs, src ports, direction, dst addrs, dst ports. Bracketed address/
// port groups ("[1.2.3.0/24,!1.2.3.4]") are split on top-level commas only
// (spec.md §4.2's grammar line), same approach a shell-style field
// splitter would take for quoted/bracketed tokens.
func parseHeader(b *builder, header string) error {
	fields := splitHeaderFields(header)
	if len(fields) != 7 {
		return fmt.Errorf("sigparse: rule header has %d fields, want 7", len(fields))
	}

	action, proto, srcA, srcP, dir, dstA, dstP := fields[0], fields[1], fields[2], fields[3], fields[4], fields[5], fields[6]

	if !actionTokens[action] {
		return fmt.Errorf("sigparse: unknown action %q", action)
	}
	b.sig.Action = action

	if err := parseProtoField(b, proto); err != nil {
		return err
	}

	srcRanges, anySrc, err := parseAddrGroup(srcA)
	if err != nil {
		return err
	}
	b.sig.SrcAddrs = srcRanges
	if anySrc {
		b.sig.Flags |= FlagAnySrc
	}

	srcPorts, anySp, err := parsePortGroup(srcP)
	if err != nil {
		return err
	}
	b.sig.SrcPorts = srcPorts
	if anySp {
		b.sig.Flags |= FlagAnySp
	}

	switch dir {
	case "->":
	case "<>":
		b.sig.Flags |= FlagBidirectional
	default:
		return fmt.Errorf("sigparse: unknown direction operator %q", dir)
	}

	dstRanges, anyDst, err := parseAddrGroup(dstA)
	if err != nil {
		return err
	}
	b.sig.DstAddrs = dstRanges
	if anyDst {
		b.sig.Flags |= FlagAnyDst
	}

	dstPorts, anyDp, err := parsePortGroup(dstP)
	if err != nil {
		return err
	}
	b.sig.DstPorts = dstPorts
	if anyDp {
		b.sig.Flags |= FlagAnyDp
	}

	return nil
}

func parseProtoField(b *builder, tok string) error {
	switch tok {
	case "ip", "any":
		b.sig.Proto = AnyProto()
		return nil
	}
	if n, ok := ProtoFromToken(tok); ok {
		var p DetectProto
		p.Set(n)
		b.sig.Proto = p
		return nil
	}
	// Unrecognized wire tokens are treated as an app-layer protocol name
	// (e.g. "dcerpc", "http", "ftp") matching on any IP protocol carrying it.
	b.sig.Proto = AnyProto()
	b.sig.AppProto = tok
	b.sig.Flags |= FlagAppLayer
	return nil
}

func parseAddrGroup(tok string) ([]addr.Range, bool, error) {
	tok = strings.TrimSpace(tok)
	if tok == "any" {
		return nil, true, nil
	}
	items := splitGroup(tok)
	ranges := make([]addr.Range, 0, len(items))
	for _, it := range items {
		r, err := addr.ParseRange(it)
		if err != nil {
			return nil, false, err
		}
		ranges = append(ranges, r)
	}
	return ranges, false, nil
}

func parsePortGroup(tok string) ([]addr.PortRange, bool, error) {
	tok = strings.TrimSpace(tok)
	if tok == "any" {
		return nil, true, nil
	}
	items := splitGroup(tok)
	ranges := make([]addr.PortRange, 0, len(items))
	for _, it := range items {
		r, err := addr.ParsePortRange(it)
		if err != nil {
			return nil, false, err
		}
		ranges = append(ranges, r)
	}
	return ranges, false, nil
}

// splitGroup strips an optional "[...]" bracket and splits on top-level
// commas (no nested brackets in this grammar).
func splitGroup(tok string) []string {
	if strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
		tok = tok[1 : len(tok)-1]
	}
	parts := strings.Split(tok, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitHeaderFields splits the 7 fixed header fields on whitespace,
// treating a "[...]" bracketed group as one field even if it contains
// internal commas (it never contains whitespace in valid rule text).
func splitHeaderFields(header string) []string {
	return strings.Fields(header)
}

// parseOptions splits the option body on unescaped semicolons and routes
// each `keyword:args` or bare `keyword` clause to the header-field
// handlers or keywordTable (spec.md §4.2 "options loop").
func parseOptions(b *builder, body string) error {
	clauses := splitOptionClauses(body)
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}
		name, arg := splitKeyword(clause)
		if err := dispatchOption(b, name, arg); err != nil {
			return fmt.Errorf("sigparse: option %q: %w", clause, err)
		}
	}
	return nil
}

// splitOptionClauses splits on `;` that is not preceded by an odd number
// of backslashes and not inside a double-quoted string.
func splitOptionClauses(body string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '\\' && i+1 < len(body):
			cur.WriteByte(c)
			cur.WriteByte(body[i+1])
			i++
		case c == '"':
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ';' && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if strings.TrimSpace(cur.String()) != "" {
		out = append(out, cur.String())
	}
	return out
}

func splitKeyword(clause string) (name, arg string) {
	i := strings.IndexByte(clause, ':')
	if i < 0 {
		return strings.TrimSpace(clause), ""
	}
	return strings.TrimSpace(clause[:i]), strings.TrimSpace(clause[i+1:])
}

func dispatchOption(b *builder, name, arg string) error {
	switch name {
	case "sid":
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid sid: %w", err)
		}
		b.sig.SID = uint32(n)
		return nil
	case "gid":
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid gid: %w", err)
		}
		b.sig.GID = uint32(n)
		return nil
	case "rev":
		n, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid rev: %w", err)
		}
		b.sig.Rev = uint32(n)
		return nil
	case "msg":
		b.sig.Msg = trimQuotes(arg)
		return nil
	case "priority":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid priority: %w", err)
		}
		b.sig.Priority = n
		return nil
	case "classtype":
		b.sig.ClassType = arg
		return nil
	case "class_msg":
		b.sig.ClassMsg = trimQuotes(arg)
		return nil
	case "reference":
		b.sig.References = append(b.sig.References, arg)
		return nil
	case "metadata":
		for _, kv := range strings.Split(arg, ",") {
			kv = strings.TrimSpace(kv)
			if kv == "" {
				continue
			}
			parts := strings.SplitN(kv, " ", 2)
			if len(parts) == 2 {
				b.sig.Metadata[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			} else {
				b.sig.Metadata[kv] = ""
			}
		}
		return nil
	case "noalert":
		b.sig.Flags |= FlagNoAlert
		return nil
	}

	fn, ok := keywordTable[name]
	if !ok {
		return fmt.Errorf("unknown keyword %q", name)
	}
	return fn(b, arg)
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// validateSignature enforces the rule-level invariants spec.md §3/§7
// name beyond what individual keyword Setup functions already check.
func validateSignature(b *builder) error {
	if b.sig.SID == 0 {
		return fmt.Errorf("sigparse: signature missing sid")
	}
	if b.sig.threshold != nil && b.sig.detectionFilter != nil {
		return fmt.Errorf("sigparse: signature may not declare both threshold and detection_filter")
	}
	return nil
}

// classifyIPOnly flattens a signature's match-list address predicates
// into IP-only CIDR items and sets FlagIPOnly when the whole signature
// can be evaluated without entering the per-packet detection loop
// (spec.md §4.4): no payload/app-layer/flow keywords at all, so only the
// 5-tuple matters.
func classifyIPOnly(b *builder) {
	s := b.sig
	if len(s.lists.PMatch) > 0 || len(s.lists.UMatch) > 0 || len(s.lists.AMatch) > 0 ||
		len(s.lists.DMatch) > 0 || s.Flags.Has(FlagHasFlow) || s.Flags.Has(FlagAppLayer) ||
		s.Flags.Has(FlagDecoderEventOnly) {
		return
	}
	for _, m := range s.lists.Match {
		if m.Type != "dsize" {
			return
		}
	}
	s.Flags |= FlagIPOnly
	for _, r := range s.SrcAddrs {
		s.CidrSrc = append(s.CidrSrc, IPOnlyCIDRItem{Range: r})
	}
	for _, r := range s.DstAddrs {
		s.CidrDst = append(s.CidrDst, IPOnlyCIDRItem{Range: r})
	}
}
