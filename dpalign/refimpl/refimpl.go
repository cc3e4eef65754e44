// Package refimpl is a small, deterministic gap-affine dynamic
// programming engine satisfying dpalign.Engine. It favors clarity over
// speed (no banding, no SIMD): each FillRoot/Fill call fills the whole
// window it is given in one shot rather than truly streaming, but it
// still exposes the fill_root/fill/search_max/trace staging the
// Extender Adapter contract requires (spec.md §4.7 names the DP engine
// as an external, swappable component; this package exists so package
// mapper's chaining and post-processing logic can be exercised end to
// end without depending on a production alignment kernel).
package refimpl

import (
	"math"

	"github.com/grailbio/lrmap/dpalign"
)

const negInf = math.MinInt32 / 2
const maxCells = 64 << 20
const defaultXDrop = 50

// Engine is a textbook three-matrix Gotoh affine-gap aligner.
type Engine struct{}

var _ dpalign.Engine = Engine{}

type cell struct{ m, x, y int32 } // match/mismatch, deletion-in-progress, insertion-in-progress

// matrixState is the engine-private continuation a Fill's Data() carries
// between FillRoot/Fill and Trace: the filled matrix and the a/b bytes
// it was built from, anchored at (aPos,bPos) in the caller's coordinate
// frame.
type matrixState struct {
	rows       [][]cell
	a, b       []byte
	aPos, bPos int32
	params     dpalign.Params
}

// FillRoot fills a[aPos:] against b[bPos:] in one shot and reports the
// best-scoring cell found, with Status indicating whether X-drop fired
// before either section was exhausted.
func (Engine) FillRoot(a, b []byte, aPos, bPos int32, params dpalign.Params) *dpalign.Fill {
	if int(aPos) > len(a) || int(bPos) > len(b) || aPos < 0 || bPos < 0 {
		return dpalign.NewFill(0, dpalign.StatusXDrop, aPos, bPos, nil)
	}
	return fillFrom(a[aPos:], b[bPos:], aPos, bPos, params)
}

// Fill re-fills the replacement sections a/b in one shot from prev's
// root position (the tail-section swap of §4.7: a/b here are the new,
// possibly longer, sections — e.g. with a circular wrap or a sentinel-N
// pad appended past the original sequence end).
func (Engine) Fill(prev *dpalign.Fill, a, b []byte, params dpalign.Params) *dpalign.Fill {
	st, _ := prev.Data().(*matrixState)
	var aPos, bPos int32
	if st != nil {
		aPos, bPos = st.aPos, st.bPos
	}
	if int(aPos) > len(a) || int(bPos) > len(b) || aPos < 0 || bPos < 0 {
		return dpalign.NewFill(prev.Max, dpalign.StatusXDrop, prev.APos, prev.BPos, st)
	}
	return fillFrom(a[aPos:], b[bPos:], aPos, bPos, params)
}

func fillFrom(a, b []byte, aPos, bPos int32, params dpalign.Params) *dpalign.Fill {
	n, m := len(a), len(b)
	if int64(n+1)*int64(m+1) > maxCells {
		return dpalign.NewFill(0, dpalign.StatusXDrop, aPos, bPos, nil)
	}

	rows := make([][]cell, n+1)
	for i := range rows {
		rows[i] = make([]cell, m+1)
	}
	rows[0][0] = cell{0, negInf, negInf}
	for j := 1; j <= m; j++ {
		rows[0][j] = cell{-params.GapOpen - params.GapExtend*int32(j), negInf, negInf}
	}
	for i := 1; i <= n; i++ {
		rows[i][0] = cell{-params.GapOpen - params.GapExtend*int32(i), negInf, negInf}
	}

	maxScore, maxI, maxJ := int32(0), 0, 0
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			sub := params.MismatchPenalty
			if a[i-1] == b[j-1] {
				sub = params.MatchScore
			}
			prev := rows[i-1][j-1]
			matchScore := max3(prev.m, prev.x, prev.y) + sub

			up := rows[i-1][j]
			delScore := max32(up.m-params.GapOpen-params.GapExtend, up.x-params.GapExtend)

			left := rows[i][j-1]
			insScore := max32(left.m-params.GapOpen-params.GapExtend, left.y-params.GapExtend)

			rows[i][j] = cell{matchScore, delScore, insScore}
			if best := max3(matchScore, delScore, insScore); best > maxScore {
				maxScore, maxI, maxJ = best, i, j
			}
		}
	}

	xdrop := params.XDrop
	if xdrop <= 0 {
		xdrop = defaultXDrop
	}
	status := dpalign.StatusXDrop
	endScore := max3(rows[n][m].m, rows[n][m].x, rows[n][m].y)
	if n > 0 && m > 0 && maxScore-endScore < xdrop {
		// The fill ran to the edge of the supplied window without
		// falling more than xdrop below its peak: report whichever
		// section ran out first so the caller can extend it.
		if n <= m {
			status = dpalign.StatusEndOfA
		} else {
			status = dpalign.StatusEndOfB
		}
	}

	data := &matrixState{rows: rows, a: a, b: b, aPos: aPos, bPos: bPos, params: params}
	return dpalign.NewFill(maxScore, status, aPos+int32(maxI), bPos+int32(maxJ), data)
}

// SearchMax returns fill's best-scoring cell, already known from the
// single-shot fill that produced it.
func (Engine) SearchMax(fill *dpalign.Fill) (int32, int32) { return fill.APos, fill.BPos }

// Trace reconstructs the alignment from fill's root to its current
// frontier (fill.APos, fill.BPos).
func (Engine) Trace(fill *dpalign.Fill) (dpalign.Alignment, bool) {
	st, ok := fill.Data().(*matrixState)
	if !ok || st == nil {
		return dpalign.Alignment{}, false
	}
	i := int(fill.APos - st.aPos)
	j := int(fill.BPos - st.bPos)
	if i < 0 || j < 0 || i >= len(st.rows) || j >= len(st.rows[0]) {
		return dpalign.Alignment{}, false
	}
	cigar, aConsumed, bConsumed := traceback(st.rows, st.a, st.b, st.params, i, j)
	return dpalign.Alignment{
		Score:      fill.Max,
		QueryStart: fill.BPos - int32(bConsumed),
		QueryEnd:   fill.BPos,
		RefStart:   fill.APos - int32(aConsumed),
		RefEnd:     fill.APos,
		Cigar:      cigar,
	}, true
}

// traceback walks the three matrices from (i,j) back to the origin,
// emitting a CIGAR in a-then-b order. It reports how many a and b bases
// the walk consumed.
func traceback(rows [][]cell, a, b []byte, params dpalign.Params, i, j int) ([]uint32, int, int) {
	var ops []dpalign.CigarOp
	n, m := i, j
	state := pickState(rows[i][j])
	for i > 0 || j > 0 {
		switch state {
		case 0:
			sub := params.MismatchPenalty
			if a[i-1] == b[j-1] {
				sub = params.MatchScore
			}
			prev := rows[i-1][j-1]
			ops = append(ops, dpalign.CigarMatch)
			state = pickState(prev)
			if rows[i][j].m == prev.m+sub {
				state = 0
			}
			i, j = i-1, j-1
		case 1:
			ops = append(ops, dpalign.CigarDel)
			up := rows[i-1][j]
			if rows[i][j].x == up.x-params.GapExtend {
				state = 1
			} else {
				state = 0
			}
			i--
		case 2:
			ops = append(ops, dpalign.CigarIns)
			left := rows[i][j-1]
			if rows[i][j].y == left.y-params.GapExtend {
				state = 2
			} else {
				state = 0
			}
			j--
		}
	}
	reverseOps(ops)
	return runLengthEncode(ops), n, m
}

func pickState(c cell) int {
	if c.m >= c.x && c.m >= c.y {
		return 0
	}
	if c.x >= c.y {
		return 1
	}
	return 2
}

func reverseOps(ops []dpalign.CigarOp) {
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
}

func runLengthEncode(ops []dpalign.CigarOp) []uint32 {
	if len(ops) == 0 {
		return nil
	}
	var out []uint32
	run := ops[0]
	count := uint32(1)
	for _, op := range ops[1:] {
		if op == run {
			count++
			continue
		}
		out = append(out, dpalign.PackCigar(run, count))
		run, count = op, 1
	}
	out = append(out, dpalign.PackCigar(run, count))
	return out
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func max3(a, b, c int32) int32 { return max32(a, max32(b, c)) }
