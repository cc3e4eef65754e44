package mapper

import "github.com/grailbio/lrmap/dpalign"

// extendChain turns chain into a base-level alignment against ref,
// anchored by alignQuery — which must already be in the chain's own
// coordinate frame (the reverse complement of the original read, for a
// Strand==1 chain; see the Seed doc comment in seed.go). origQueryLen is
// the length of the original (forward) read, used to translate the
// reported QStart/QEnd back to that frame so every MappedAlign's query
// coordinates are comparable regardless of strand.
//
// This drives the §4.7 Extender Adapter contract the way §4.5 describes:
// downward fill from the chain's last (tail) seed, locate the fill's max
// cell, then a reverse fill from that max back toward the chain's root
// over the reversed prefix, and trace the reverse fill into the final
// alignment. Reusing one forward-fill engine for both directions by
// reversing the byte slices mirrors how minialign's mm_extend_core reuses
// a single DP routine for the downward and upward passes instead of
// implementing a second, mirrored one.
func extendChain(engine dpalign.Engine, alignQuery, ref []byte, origQueryLen int, chain Chain, params dpalign.Params) (MappedAlign, bool) {
	tail := chain.Seeds[len(chain.Seeds)-1]
	rootA := int32(tail.RPos) // reference anchor; dpalign's "a" side
	rootB := int32(tail.QPos) // query anchor; dpalign's "b" side
	if rootA < 0 || rootB < 0 || int(rootA) > len(ref) || int(rootB) > len(alignQuery) {
		return MappedAlign{}, false
	}

	down := runToTerminal(engine, ref, alignQuery, nil, nil, rootA, rootB, params)
	if down.Max <= 0 {
		return MappedAlign{}, false
	}
	maxA, maxB := engine.SearchMax(down)
	if maxA <= rootA && maxB <= rootB {
		return MappedAlign{}, false
	}

	revRef := reverseBytes(ref[:maxA])
	revQuery := reverseBytes(alignQuery[:maxB])
	up := runToTerminal(engine, revRef, revQuery, nil, nil, 0, 0, params)
	if up.Max < params.MatchScore {
		return MappedAlign{}, false
	}
	upMaxA, upMaxB := engine.SearchMax(up)
	aln, ok := engine.Trace(up)
	if !ok {
		return MappedAlign{}, false
	}

	rStart := maxA - upMaxA
	qStart := maxB - upMaxB

	qStartOut, qEndOut := uint32(qStart), uint32(maxB)
	if chain.Strand == 1 {
		qStartOut, qEndOut = uint32(origQueryLen)-uint32(maxB), uint32(origQueryLen)-uint32(qStart)
	}
	cigar := reverseCigarOrder(aln.Cigar)
	identity := alignmentIdentity(cigar)
	return MappedAlign{
		RID:      chain.RID,
		Strand:   chain.Strand,
		QStart:   qStartOut,
		QEnd:     qEndOut,
		RStart:   uint32(rStart),
		REnd:     uint32(maxA),
		Score:    aln.Score,
		Identity: identity,
		Cigar:    cigar,
	}, true
}

// runToTerminal drives engine.FillRoot/Fill until the fill's Status
// stops indicating a section boundary the caller can still extend past
// (§4.7: "when either end is reached, the adapter swaps in the tail
// section; if neither, it loops"). tailA/tailB, when non-nil, are
// appended once if the fill reports it exhausted that section; when nil
// (the common case here, since callers already pass the whole available
// window) a boundary status simply ends the fill.
func runToTerminal(engine dpalign.Engine, a, b, tailA, tailB []byte, aPos, bPos int32, params dpalign.Params) *dpalign.Fill {
	fill := engine.FillRoot(a, b, aPos, bPos, params)
	for {
		switch fill.Status {
		case dpalign.StatusEndOfA:
			if tailA == nil {
				return fill
			}
			a, tailA = append(append([]byte(nil), a...), tailA...), nil
			fill = engine.Fill(fill, a, b, params)
		case dpalign.StatusEndOfB:
			if tailB == nil {
				return fill
			}
			b, tailB = append(append([]byte(nil), b...), tailB...), nil
			fill = engine.Fill(fill, a, b, params)
		default:
			return fill
		}
	}
}

func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// reverseCigarOrder reverses a packed CIGAR's op order without altering
// any op's length; Trace's reverse-direction walk emits ops in the
// reversed coordinate frame's left-to-right order, which is the real
// alignment's right-to-left order.
func reverseCigarOrder(cigar []uint32) []uint32 {
	out := make([]uint32, len(cigar))
	for i, v := range cigar {
		out[len(cigar)-1-i] = v
	}
	return out
}

// alignmentIdentity estimates identity from a CIGAR's match/mismatch
// (M) run lengths against its indel run lengths, since this package's M
// op covers both matches and mismatches and the DP engine doesn't
// surface a separate per-base match count.
func alignmentIdentity(cigar []uint32) float64 {
	var matched, total uint32
	for _, v := range cigar {
		op, length := dpalign.UnpackCigar(v)
		total += length
		if op == dpalign.CigarMatch {
			matched += length
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

// dedupKey identifies alignments extended from essentially the same
// chain (same reference, strand, and reference start rounded down to the
// nearest extendPad), so overlapping chains from different seed subsets
// don't produce duplicate reported alignments (§4.5).
const extendPad = 32

type dedupKey struct {
	rid    int32
	strand uint8
	rStart uint32
}

func dedupChains(chains []Chain) []Chain {
	seen := map[dedupKey]int{}
	var out []Chain
	for _, c := range chains {
		rStart, _ := c.RSpan()
		key := dedupKey{c.RID, c.Strand, rStart / extendPad}
		if prev, ok := seen[key]; ok {
			if c.PLen < out[prev].PLen {
				out[prev] = c
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, c)
	}
	return out
}
