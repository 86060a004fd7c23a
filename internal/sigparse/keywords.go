// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package sigparse

import (
	"fmt"
	"strconv"
	"strings"
)

// setupFn parses one keyword's argument string, mutating the signature
// being built. It is the Go analogue of spec.md §4.2's keyword dispatch
// table's Setup entry — this package has no runtime Match/AppLayerMatch
// phase of its own (that is C7's job against the AST this produces), so
// only Setup/flags are modeled here.
type setupFn func(b *builder, arg string) error

// keywordTable is the fixed dispatch table, keyed by keyword name
// (spec.md §4.2 "Keyword dispatch table"). Every row of the routing table
// is represented by at least one concrete keyword.
var keywordTable map[string]setupFn

func init() {
	keywordTable = map[string]setupFn{
		// pmatch / dmatch (payload, spliced for dce-relative byte_test/byte_jump)
		"content":   setupContent,
		"pcre":      setupPcre,
		"byte_test": setupByteTest,
		"byte_jump": setupByteJump,
		"isdataat":  setupIsdataat,
		"depth":     setupDepth,
		"offset":    setupOffset,
		"nocase":    setupNocase,
		"rawbytes":  setupRawbytes,
		"within":    setupWithin,
		"distance":  setupDistance,
		"fast_pattern": setupFastPattern,

		// umatch
		"uricontent": setupURIContent,
		"urilen":     setupURILen,

		// amatch
		"ftpbounce": setupFtpBounce,

		// dmatch
		"dce_iface":     setupDCEIface,
		"dce_opnum":     setupDCEOpnum,
		"dce_stub_data": setupDCEStubData,

		// tmatch
		"tag": setupTag,

		// match (packet-level, non-payload)
		"flow":             setupFlow,
		"flowbits":         setupFlowbits,
		"dsize":            setupDsize,
		"ttl":              setupTtl,
		"itype":            setupItype,
		"icode":            setupIcode,
		"ack":              setupAck,
		"seq":              setupSeq,
		"flags":            setupFlags,
		"ipopts":           setupIpopts,
		"fragbits":         setupFragbits,
		"fragoffset":       setupFragoffset,
		"id":               setupId,
		"ipproto":          setupIpproto,
		"sameip":           setupSameip,
		"stream_size":      setupStreamSize,
		"threshold":        setupThreshold,
		"detection_filter": setupDetectionFilter,
		"decode-event":     setupDecodeEvent,
		"geoip":            setupGeoIP,

		// amatch supplemental keywords (spec.md dependency-table extension):
		// neither needs an application-layer parser of its own, since both
		// read a field C3's decoders already populate on the packet.
		"dns_query": setupDNSQuery,
		"ja3":       setupJA3,

		// signature header (handled separately in parseHeaderOption, kept
		// out of this table so Parse's main loop can route them before
		// falling through to keywordTable).
	}
	for _, suffix := range []string{"ipv4-csum", "tcpv4-csum", "tcpv6-csum", "udpv4-csum", "udpv6-csum", "icmpv4-csum", "icmpv6-csum"} {
		keywordTable[suffix] = setupCsum(suffix)
	}
}

func setupContent(b *builder, arg string) error {
	c, err := ParseContentLiteral(arg)
	if err != nil {
		return err
	}
	list := b.payloadList()
	prev := b.lists.lastAnchor[list]
	sm := &SigMatch{Type: "content", Ctx: c}
	b.lists.append(list, sm)
	b.prevAnchorSM = prev
	b.lastAnchorSM = sm
	b.sig.Flags |= FlagHasPayload
	if c.Flags&ContentNegated != 0 {
		b.sig.Flags |= FlagMPMContentNegative
	} else {
		b.sig.Flags |= FlagMPMContentPositive
	}
	return nil
}

func setupPcre(b *builder, arg string) error {
	sm := &SigMatch{Type: "pcre", Ctx: arg}
	b.lists.append(b.payloadList(), sm)
	b.lastAnchorSM = sm
	b.sig.Flags |= FlagHasPayload
	return nil
}

// dceSplicedList implements spec.md §4.2's "DCE splicing rule": a
// relative byte_test/byte_jump on a DCERPC signature binds to whichever
// of pmatch/dmatch holds the later anchor (ties favor dmatch).
func (b *builder) dceSplicedList(relative bool) ListID {
	if !relative || b.sig.AppProto != "dcerpc" {
		return b.payloadList()
	}
	pAnchor := b.lists.lastAnchor[ListPMatch]
	dAnchor := b.lists.lastAnchor[ListDMatch]
	switch {
	case dAnchor == nil:
		return ListPMatch
	case pAnchor == nil:
		return ListDMatch
	case pAnchor.Idx > dAnchor.Idx:
		return ListPMatch
	default:
		return ListDMatch
	}
}

func setupByteTest(b *builder, arg string) error {
	bt, err := ParseByteTest(arg)
	if err != nil {
		return err
	}
	if bt.DCE && b.sig.AppProto != "dcerpc" {
		return fmt.Errorf("sigparse: byte_test dce modifier requires alproto dcerpc")
	}
	list := b.dceSplicedList(bt.Relative)
	if bt.Relative {
		if anchor := b.lists.linkRelative(list); anchor == nil {
			return fmt.Errorf("sigparse: relative byte_test with no preceding anchor")
		}
	}
	sm := &SigMatch{Type: "byte_test", Ctx: bt}
	b.lists.append(list, sm)
	return nil
}

func setupByteJump(b *builder, arg string) error {
	bj, err := ParseByteJump(arg)
	if err != nil {
		return err
	}
	if bj.DCE && b.sig.AppProto != "dcerpc" {
		return fmt.Errorf("sigparse: byte_jump dce modifier requires alproto dcerpc")
	}
	list := b.dceSplicedList(bj.Relative)
	if bj.Relative {
		if anchor := b.lists.linkRelative(list); anchor == nil {
			return fmt.Errorf("sigparse: relative byte_jump with no preceding anchor")
		}
	}
	sm := &SigMatch{Type: "byte_jump", Ctx: bj}
	b.lists.append(list, sm)
	b.lastAnchorSM = sm
	return nil
}

func setupIsdataat(b *builder, arg string) error {
	relative := strings.Contains(arg, "relative")
	list := b.payloadList()
	if relative {
		if anchor := b.lists.linkRelative(list); anchor == nil {
			return fmt.Errorf("sigparse: relative isdataat with no preceding anchor")
		}
	}
	b.lists.append(list, &SigMatch{Type: "isdataat", Ctx: arg})
	return nil
}

func lastContent(b *builder) (*Content, error) {
	if b.lastAnchorSM == nil || b.lastAnchorSM.Type != "content" {
		return nil, fmt.Errorf("sigparse: modifier keyword with no preceding content")
	}
	return b.lastAnchorSM.Ctx.(*Content), nil
}

func setupDepth(b *builder, arg string) error {
	c, err := lastContent(b)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("sigparse: depth not numeric: %w", err)
	}
	c.Depth = n
	return nil
}

func setupOffset(b *builder, arg string) error {
	c, err := lastContent(b)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("sigparse: offset not numeric: %w", err)
	}
	c.Offset = n
	return nil
}

func setupNocase(b *builder, _ string) error {
	c, err := lastContent(b)
	if err != nil {
		return err
	}
	c.Flags |= ContentNocase
	return nil
}

func setupRawbytes(b *builder, _ string) error {
	c, err := lastContent(b)
	if err != nil {
		return err
	}
	c.Flags |= ContentRawbytes
	return nil
}

func setupWithin(b *builder, arg string) error {
	c, err := lastContent(b)
	if err != nil {
		return err
	}
	anchor := b.prevAnchorSM
	if anchor == nil {
		return fmt.Errorf("sigparse: within with no preceding anchor")
	}
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("sigparse: within not numeric: %w", err)
	}
	if anchorContent, ok := anchor.Ctx.(*Content); ok && n < len(anchorContent.Raw) {
		return fmt.Errorf("sigparse: within:%d shorter than anchor pattern (%d bytes)", n, len(anchorContent.Raw))
	}
	c.Within = n
	c.Flags |= ContentWithin
	anchor.RelativeNext = true
	return nil
}

func setupDistance(b *builder, arg string) error {
	c, err := lastContent(b)
	if err != nil {
		return err
	}
	anchor := b.prevAnchorSM
	if anchor == nil {
		return fmt.Errorf("sigparse: distance with no preceding anchor")
	}
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return fmt.Errorf("sigparse: distance not numeric: %w", err)
	}
	c.Distance = n
	c.Flags |= ContentDistance
	anchor.RelativeNext = true
	return nil
}

func setupFastPattern(b *builder, _ string) error {
	c, err := lastContent(b)
	if err != nil {
		return err
	}
	c.Flags |= ContentFastPattern
	return nil
}

func setupURIContent(b *builder, arg string) error {
	c, err := ParseContentLiteral(arg)
	if err != nil {
		return err
	}
	prev := b.lists.lastAnchor[ListUMatch]
	sm := &SigMatch{Type: "content", Ctx: c}
	b.lists.append(ListUMatch, sm)
	b.prevAnchorSM = prev
	b.lastAnchorSM = sm
	b.sig.Flags |= FlagUMatchPresent
	if c.Flags&ContentNegated != 0 {
		b.sig.Flags |= FlagMPMURINegative
	} else {
		b.sig.Flags |= FlagMPMURIPositive
	}
	return nil
}

func setupURILen(b *builder, arg string) error {
	b.lists.append(ListUMatch, &SigMatch{Type: "urilen", Ctx: arg})
	b.sig.Flags |= FlagUMatchPresent
	return nil
}

func setupFtpBounce(b *builder, _ string) error {
	if err := b.setAppProto("ftp"); err != nil {
		return err
	}
	b.lists.append(ListAMatch, &SigMatch{Type: "ftpbounce"})
	b.sig.Flags |= FlagAMatchPresent
	return nil
}

func setupDCEIface(b *builder, arg string) error {
	if err := b.setAppProto("dcerpc"); err != nil {
		return err
	}
	b.lists.append(ListDMatch, &SigMatch{Type: "dce_iface", Ctx: arg})
	b.sig.Flags |= FlagDMatchPresent
	return nil
}

func setupDCEOpnum(b *builder, arg string) error {
	if err := b.setAppProto("dcerpc"); err != nil {
		return err
	}
	b.lists.append(ListDMatch, &SigMatch{Type: "dce_opnum", Ctx: arg})
	b.sig.Flags |= FlagDMatchPresent
	return nil
}

func setupDCEStubData(b *builder, _ string) error {
	if err := b.setAppProto("dcerpc"); err != nil {
		return err
	}
	sm := &SigMatch{Type: "dce_stub_data"}
	b.lists.append(ListDMatch, sm)
	b.lastAnchorSM = sm
	b.sig.Flags |= FlagDMatchPresent
	return nil
}

func setupTag(b *builder, arg string) error {
	b.lists.append(ListTMatch, &SigMatch{Type: "tag", Ctx: arg})
	return nil
}

func setupFlow(b *builder, arg string) error {
	b.lists.append(ListMatch, &SigMatch{Type: "flow", Ctx: arg})
	b.sig.Flags |= FlagHasFlow
	return nil
}

func setupFlowbits(b *builder, arg string) error {
	b.lists.append(ListMatch, &SigMatch{Type: "flowbits", Ctx: arg})
	return nil
}

func setupDsize(b *builder, arg string) error {
	b.lists.append(ListMatch, &SigMatch{Type: "dsize", Ctx: arg})
	b.sig.Flags |= FlagHasDsize
	return nil
}

func setupDecodeEvent(b *builder, arg string) error {
	b.lists.append(ListMatch, &SigMatch{Type: "decode-event", Ctx: arg})
	b.sig.Flags |= FlagDecoderEventOnly
	return nil
}

func setupThreshold(b *builder, arg string) error {
	if b.sig.detectionFilter != nil {
		return fmt.Errorf("sigparse: signature may not declare both threshold and detection_filter")
	}
	if b.sig.threshold != nil {
		return fmt.Errorf("sigparse: signature may not declare two threshold clauses")
	}
	th, err := ParseThreshold(arg)
	if err != nil {
		return err
	}
	b.sig.threshold = th
	b.lists.append(ListMatch, &SigMatch{Type: "threshold", Ctx: th})
	return nil
}

func setupDetectionFilter(b *builder, arg string) error {
	if b.sig.threshold != nil {
		return fmt.Errorf("sigparse: signature may not declare both threshold and detection_filter")
	}
	if b.sig.detectionFilter != nil {
		return fmt.Errorf("sigparse: signature may not declare two detection_filters")
	}
	df, err := ParseDetectionFilter(arg)
	if err != nil {
		return err
	}
	b.sig.detectionFilter = df
	b.lists.append(ListMatch, &SigMatch{Type: "detection_filter", Ctx: df})
	return nil
}

// GeoIP is the parsed form of `geoip:<track>,<CC>[,<CC>...];`, e.g.
// `geoip:src,US,CA;` or `geoip:both,!RU;`. Track is one of src/dst/both;
// a leading `!` on the country list negates the whole match (fires when
// the resolved country is NOT among Countries).
type GeoIP struct {
	Track     string
	Negated   bool
	Countries []string
}

func setupGeoIP(b *builder, arg string) error {
	parts := strings.Split(arg, ",")
	if len(parts) < 2 {
		return fmt.Errorf("sigparse: geoip requires track and at least one country code")
	}
	track := strings.TrimSpace(parts[0])
	switch track {
	case "src", "dst", "both":
	default:
		return fmt.Errorf("sigparse: geoip track must be src, dst, or both, got %q", track)
	}
	g := &GeoIP{Track: track}
	for _, cc := range parts[1:] {
		cc = strings.TrimSpace(cc)
		if strings.HasPrefix(cc, "!") {
			g.Negated = true
			cc = cc[1:]
		}
		if cc == "" {
			continue
		}
		g.Countries = append(g.Countries, strings.ToUpper(cc))
	}
	if len(g.Countries) == 0 {
		return fmt.Errorf("sigparse: geoip requires at least one country code")
	}
	b.lists.append(ListMatch, &SigMatch{Type: "geoip", Ctx: g})
	return nil
}

// unquoteSimple strips a single layer of surrounding double quotes, for
// keyword arguments that (unlike content) carry no hex-escape grammar.
func unquoteSimple(arg string) string {
	arg = strings.TrimSpace(arg)
	if len(arg) >= 2 && strings.HasPrefix(arg, "\"") && strings.HasSuffix(arg, "\"") {
		return arg[1 : len(arg)-1]
	}
	return arg
}

func setupDNSQuery(b *builder, arg string) error {
	q := unquoteSimple(arg)
	if q == "" {
		return fmt.Errorf("sigparse: dns_query requires a non-empty argument")
	}
	b.lists.append(ListAMatch, &SigMatch{Type: "dns_query", Ctx: strings.ToLower(q)})
	b.sig.Flags |= FlagAMatchPresent
	return nil
}

func setupJA3(b *builder, arg string) error {
	hash := strings.ToLower(unquoteSimple(arg))
	if hash == "" {
		return fmt.Errorf("sigparse: ja3 requires a non-empty argument")
	}
	b.lists.append(ListAMatch, &SigMatch{Type: "ja3", Ctx: hash})
	b.sig.Flags |= FlagAMatchPresent
	return nil
}
