package mapper

import (
	"math"
	"sort"

	"github.com/grailbio/lrmap/dpalign"
)

// MappedAlign is one reported alignment of a query against a reference
// (§4.8).
type MappedAlign struct {
	RID           int32
	Strand        uint8
	QStart, QEnd  uint32
	RStart, REnd  uint32
	Score         int32
	Identity      float64 // fraction of aligned columns that are M (match or mismatch) rather than indels, in [0,1]
	Cigar         []uint32
	Primary       bool
	Supplementary bool
	MapQ          uint8
}

// Reg is the full result of mapping one query (§4.8's n_all/n_uniq/aln
// triple), plus the diagnostic counters in Stats.
type Reg struct {
	NAll  int
	NUniq int
	Aln   []MappedAlign
	Stats Stats
}

// Stats tracks how much work one Map call did, for callers that log or
// sample mapping diagnostics. It has no bearing on the returned
// alignments themselves.
type Stats struct {
	SeedsFound  int // seeds retained after the outer tier loop settled
	RescueTier  int // index into Index.Occ() the outer loop stopped at; -1 if it fell through to the unlimited tier
	ChainsTried int // chains passed to extendChain, including ones that failed to extend
	ChainsFused int // chains removed by circular-origin fusion (pairs merged into one)
}

// minRatio is the adaptive-threshold fraction of §4.8's pruning step: any
// alignment scoring below minRatio*best is dropped before classification.
const minRatio = 0.7

// classify assigns primary/supplementary/secondary status and a mapping
// quality to a set of candidate alignments for one query (§4.8). It
// prunes low-scoring alignments, walks the rest in descending score
// order picking supplementary alignments by how much unique query
// coverage each adds over what higher-scoring bins already cover, and
// scores mapping quality from the identity-weighted score gap to the
// next-best competing alignment.
func classify(alns []MappedAlign, align dpalign.Params) Reg {
	reg := Reg{NAll: len(alns)}
	if len(alns) == 0 {
		return reg
	}

	order := make([]int, len(alns))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return alns[order[i]].Score > alns[order[j]].Score })

	best := alns[order[0]].Score
	cut := 0
	for cut < len(order) && float64(alns[order[cut]].Score) >= minRatio*float64(best) {
		cut++
	}
	order = order[:cut]
	if len(order) == 0 {
		return reg
	}

	result := make([]MappedAlign, len(alns))
	copy(result, alns)

	p := selectSupplementary(result, order)
	result[order[0]].Primary = true
	for _, i := range order[1:p] {
		result[i].Supplementary = true
	}
	reg.NUniq = p

	assignMapQ(result, order, p, align)

	out := make([]MappedAlign, 0, len(order))
	for _, i := range order {
		out = append(out, result[i])
	}
	reg.Aln = out
	return reg
}

// selectSupplementary implements §4.8's supplementary-selection walk:
// order is sorted descending by score with order[0] already the
// primary. For each position p in turn, every not-yet-classified
// candidate in order[p:] whose residual query span (its span after
// subtracting what order[:p] already covers), times 1.2, falls short of
// its full span is demoted to the tail (secondary). Among survivors, the
// one that maximizes the newly covered span is promoted into position p
// as the next supplementary alignment. Returns the
// count of primary+supplementary alignments (order[:count]); the rest of
// order is secondary.
func selectSupplementary(result []MappedAlign, order []int) int {
	n := len(order)
	q := n
	for p := 1; p < q; p++ {
		winner, maxGain := -1, int64(math.MinInt64)
		for i := p; i < q; {
			s := &result[order[i]]
			lb, ub := int64(s.QStart), int64(s.QEnd)
			span := ub - lb
			demoted := false
			for j := 0; j < p; j++ {
				t := &result[order[j]]
				if int64(t.QEnd) < ub {
					if int64(t.QEnd) > lb {
						lb = int64(t.QEnd)
					}
				} else if int64(t.QStart) < ub {
					ub = int64(t.QStart)
				}
				if 1.2*float64(ub-lb) < float64(span) {
					q--
					order[i], order[q] = order[q], order[i]
					demoted = true
					break
				}
			}
			if demoted {
				continue
			}
			gain := 2*(ub-lb) - span
			if gain > maxGain {
				maxGain, winner = gain, i
			}
			i++
		}
		if winner != -1 {
			order[p], order[winner] = order[winner], order[p]
		}
	}
	if q < 1 {
		q = 1
	}
	return q
}

// assignMapQ implements §4.8's mapping-quality formulas. mcoef/xcoef
// approximate the "average match/mismatch score" minialign derives from
// its scoring matrix, using this mapper's scalar match/mismatch params
// directly since there is no per-base-pair matrix here.
func assignMapQ(result []MappedAlign, order []int, p int, align dpalign.Params) {
	mcoef := float64(align.MatchScore)
	xcoef := float64(-align.MismatchPenalty)
	mx := mcoef + xcoef

	var usc float64
	lsc := math.MaxFloat64
	var tsc float64
	for _, i := range order[p:] {
		s := float64(result[i].Score)
		if s > usc {
			usc = s
		}
		if s < lsc {
			lsc = s
		}
		tsc += s
	}
	if lsc == math.MaxFloat64 {
		lsc = 0
	}

	tpc := 1.0
	for _, i := range order[:p] {
		a := &result[i]
		denom := a.Identity*mx - xcoef
		if denom < 1e-6 {
			denom = 1e-6
		}
		ec := 2.0 / denom
		ulen := ec * math.Max(float64(a.Score)-usc, 0)
		pe := 1.0 / (ulen*ulen + 1)
		a.MapQ = clipMapQ(-10 * math.Log10(pe))
		tpc *= 1.0 - pe
	}

	tpe := math.Min(1.0-tpc, 1.0)
	for _, i := range order[p:] {
		a := &result[i]
		if tsc <= 0 {
			a.MapQ = 0
			continue
		}
		frac := tpe * (float64(a.Score) - lsc + 1) / tsc
		a.MapQ = clipMapQ(-10 * math.Log10(math.Max(1-frac, 1e-9)))
	}
}

func clipMapQ(q float64) uint8 {
	if q < 0 {
		return 0
	}
	if q > 60 {
		return 60
	}
	return uint8(q)
}
