// Package dpalign defines the gap-affine DP extension contract used by
// package mapper to turn a chain of seed anchors into a base-level
// alignment (spec.md §4.7). The package itself ships no production DP
// engine — callers plug in their own (a banded SIMD kernel, a third-party
// aligner binding, or, for tests, dpalign/refimpl's reference
// implementation) by satisfying the Engine interface.
package dpalign

// Alignment is the result of tracing a fill back to its root.
type Alignment struct {
	Score      int32
	QueryStart int32 // inclusive, query coordinates
	QueryEnd   int32 // exclusive
	RefStart   int32 // inclusive, reference coordinates
	RefEnd     int32 // exclusive
	// Cigar is a run-length-encoded edit script: Cigar[i] packs an
	// operation in its low 4 bits and a run length in the remaining bits,
	// matching the SAM CIGAR op encoding (MIDSH...).
	Cigar []uint32
}

// CigarOp is a single SAM-style CIGAR operation code.
type CigarOp uint8

const (
	CigarMatch CigarOp = 0 // M: match or mismatch
	CigarIns   CigarOp = 1 // I: insertion to the reference
	CigarDel   CigarOp = 2 // D: deletion from the reference
	CigarSoft  CigarOp = 4 // S: soft clip
)

// PackCigar combines an op and run length into one Alignment.Cigar entry.
func PackCigar(op CigarOp, length uint32) uint32 { return uint32(op) | length<<4 }

// UnpackCigar splits a packed entry back into its op and length.
func UnpackCigar(v uint32) (CigarOp, uint32) { return CigarOp(v & 0xf), v >> 4 }

// Params bundles the gap-affine scoring scheme and the extension budgets
// mapper applies per chain (§4.5, §4.7). XDrop is the score-drop
// threshold past the running max that terminates a fill (spec.md's CLI
// `-Y` option, default 50, valid range [10,128]).
type Params struct {
	MatchScore      int32
	MismatchPenalty int32
	GapOpen         int32
	GapExtend       int32
	XDrop           int32
	// MaxRefExtend/MaxQueryExtend bound how far the engine may extend
	// beyond the chain's own span before giving up (MM_CREM/MM_SREM in
	// spec.md §4.5).
	MaxRefExtend   int32
	MaxQueryExtend int32
}

// Status reports why a fill step stopped, so the Extender Adapter (the
// caller driving Engine) knows whether to swap in a tail section and
// keep going or to treat the fill as finished (§4.7).
type Status uint8

const (
	// StatusXDrop means the running max score fell more than
	// Params.XDrop below its peak: this direction is done.
	StatusXDrop Status = iota
	// StatusEndOfA means the fill consumed every base of the supplied a
	// section without X-drop firing; the caller may extend a (circular
	// wrap, or a sentinel-N tail) and call Fill again.
	StatusEndOfA
	// StatusEndOfB is the same, for the b section.
	StatusEndOfB
)

// Fill is one dp_fill_root/dp_fill result (§4.7's fill*): the engine's
// running max score and the absolute position it was found at, plus the
// status driving the adapter's tail-section-swap loop. data carries
// engine-private continuation state (e.g. the DP matrix) opaque to
// callers outside the engine that produced it.
type Fill struct {
	Max        int32
	Status     Status
	APos, BPos int32
	data       interface{}
}

// NewFill constructs a Fill. Engines call this to return a fill from
// FillRoot/Fill; data is whatever continuation state the same engine's
// Trace/Fill implementation needs back.
func NewFill(max int32, status Status, aPos, bPos int32, data interface{}) *Fill {
	return &Fill{Max: max, Status: status, APos: aPos, BPos: bPos, data: data}
}

// Data returns the engine-private payload stashed in NewFill.
func (f *Fill) Data() interface{} { return f.data }

// Engine is the §4.7 Extender Adapter's DP contract: dp_fill_root fills
// downward from an anchor until X-drop or a section boundary; dp_fill
// continues a stopped fill into a caller-supplied replacement section;
// dp_search_max locates the fill's best-scoring cell; dp_trace recovers
// the alignment ending there. mapper.extendChain drives these steps
// directly (downward extend, search-max, reverse extend, trace) rather
// than delegating a whole chain extension to one opaque call, so the
// structure of §4.5's extension procedure is visible at the adapter
// boundary instead of being hidden inside the engine.
type Engine interface {
	// FillRoot starts a new fill from (aPos,bPos) in a/b.
	FillRoot(a, b []byte, aPos, bPos int32, params Params) *Fill
	// Fill continues prev with replacement sections a/b, used when prev
	// reported StatusEndOfA/StatusEndOfB and the caller swapped in a's
	// or b's tail section.
	Fill(prev *Fill, a, b []byte, params Params) *Fill
	// SearchMax returns the (aPos,bPos) of fill's best-scoring cell.
	SearchMax(fill *Fill) (aPos, bPos int32)
	// Trace reconstructs the alignment ending at fill's current
	// frontier, back to the root FillRoot was called with.
	Trace(fill *Fill) (Alignment, bool)
}
