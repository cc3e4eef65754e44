// Package sketch computes (w,k)-minimizer sketches of 2-bit encoded
// nucleotide sequences. A sketch can be resumed across a chunk boundary,
// so that a circular reference's tail can be extended with its own head
// without re-scanning the whole sequence.
package sketch

import (
	"encoding/binary"

	farm "github.com/dgryski/go-farm"
	"github.com/pkg/errors"
)

// Base codes. Sequences passed to Sketch/SketchResume must already be
// encoded this way; see package seqio for ASCII conversion.
const (
	BaseA = 0
	BaseC = 1
	BaseG = 2
	BaseT = 3
	BaseN = 4
)

var complementOf = [4]byte{BaseT, BaseG, BaseC, BaseA}

// Minimizer is one emitted (w,k)-minimizer: the canonical k-mer that is the
// minimum-hash k-mer in some window, together with the forward-strand
// position at which it occurs and the strand that was canonical.
type Minimizer struct {
	Hash   uint64 // mixed hash of the canonical k-mer
	Pos    uint32 // forward-strand start position of the k-mer
	Strand uint8  // 0: forward k-mer was canonical, 1: reverse complement was

	// ForwardKmer/ReverseKmer are the raw 2-bit-packed forward and
	// reverse-complement encodings of the k-mer at Pos, before the
	// canonical choice was made. A DP extender doing tail-section
	// substitution at a chain boundary can recover either strand's
	// literal bases from these without re-reading the reference.
	ForwardKmer uint64
	ReverseKmer uint64
}

// candidate is a live entry in the sliding-window minimum deque.
type candidate struct {
	hash        uint64
	pos         uint32
	strand      uint8
	forwardKmer uint64
	reverseKmer uint64
}

// Cap is the resumable state of a sketch at the point scanning stopped. It
// carries the rolling forward/reverse k-mer accumulators and the last
// emitted minimizer (for dedup continuity across the boundary), plus the
// still-live window of trailing candidates, so that Sketcher.SketchResume
// reproduces exactly what an uninterrupted Sketch call over the
// concatenated input would have produced.
type Cap struct {
	forwardKmer uint64
	reverseKmer uint64
	filled      int // bases accumulated into forwardKmer/reverseKmer; < k means no complete k-mer yet
	baseOffset  uint32
	kmerCount   uint64
	haveLast    bool
	lastHash    uint64
	lastPos     uint32
	window      []candidate
}

// Sketcher computes (w,k)-minimizers for one or more sequence chunks.
type Sketcher struct {
	w, k uint32
	mask uint64
}

// New creates a Sketcher for window size w and k-mer size k.
func New(w, k int) (*Sketcher, error) {
	if w == 0 || k == 0 || w > 31 || k > 31 {
		return nil, errors.Errorf("sketch: invalid param w=%d k=%d", w, k)
	}
	return &Sketcher{
		w:    uint32(w),
		k:    uint32(k),
		mask: (uint64(1) << uint(2*k)) - 1,
	}, nil
}

// W returns the window size the Sketcher was constructed with.
func (s *Sketcher) W() int { return int(s.w) }

// K returns the k-mer size the Sketcher was constructed with.
func (s *Sketcher) K() int { return int(s.k) }

// Sketch computes the minimizer sketch of seq, starting fresh.
func (s *Sketcher) Sketch(seq []byte) ([]Minimizer, Cap) {
	return s.run(seq, Cap{})
}

// SketchResume continues a sketch from cap (as returned by a previous
// Sketch or SketchResume call) over the next chunk of the same logical
// sequence. Concatenating the minimizers from Sketch(A) and
// SketchResume(capFromA, B) reproduces Sketch(A+B).
func (s *Sketcher) SketchResume(cap Cap, seq []byte) ([]Minimizer, Cap) {
	return s.run(seq, cap)
}

func mixHash(canon, other uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], canon)
	return farm.Hash64WithSeed(buf[:], other)
}

func (s *Sketcher) run(seq []byte, cap Cap) ([]Minimizer, Cap) {
	fwd, rev, filled := cap.forwardKmer, cap.reverseKmer, cap.filled
	win := append([]candidate(nil), cap.window...)
	haveLast, lastHash, lastPos := cap.haveLast, cap.lastHash, cap.lastPos
	kmerCount := cap.kmerCount
	pos := cap.baseOffset

	var out []Minimizer
	shift := 2 * (s.k - 1)

	for _, b := range seq {
		if b > BaseT {
			// Ambiguous base: the k-mer under construction is invalid;
			// restart accumulation and drop the window (no valid minimizer
			// spans an N).
			fwd, rev, filled = 0, 0, 0
			win = win[:0]
			pos++
			continue
		}
		fwd = ((fwd << 2) | uint64(b)) & s.mask
		rev = (rev >> 2) | (uint64(complementOf[b]) << shift)
		if filled < int(s.k) {
			filled++
		}
		if filled == int(s.k) {
			kmerStart := pos - s.k + 1
			var canon, other uint64
			var strand uint8
			if fwd <= rev {
				canon, other, strand = fwd, rev, 0
			} else {
				canon, other, strand = rev, fwd, 1
			}
			c := candidate{
				hash: mixHash(canon, other), pos: kmerStart, strand: strand,
				forwardKmer: fwd, reverseKmer: rev,
			}

			for len(win) > 0 && win[len(win)-1].hash >= c.hash {
				win = win[:len(win)-1]
			}
			win = append(win, c)
			for len(win) > 0 && win[0].pos+s.w <= kmerStart {
				win = win[1:]
			}
			kmerCount++

			if kmerCount >= uint64(s.w) {
				m := win[0]
				if !haveLast || m.hash != lastHash || m.pos != lastPos {
					out = append(out, Minimizer{
						Hash: m.hash, Pos: m.pos, Strand: m.strand,
						ForwardKmer: m.forwardKmer, ReverseKmer: m.reverseKmer,
					})
					haveLast, lastHash, lastPos = true, m.hash, m.pos
				}
			}
		}
		pos++
	}

	return out, Cap{
		forwardKmer: fwd,
		reverseKmer: rev,
		filled:      filled,
		baseOffset:  pos,
		kmerCount:   kmerCount,
		haveLast:    haveLast,
		lastHash:    lastHash,
		lastPos:     lastPos,
		window:      win,
	}
}

// CanonicalHash returns the mixed hash of the canonical form of the k-mer
// given as 2-bit-encoded bytes (len(kmer) must equal k). It is exposed so
// callers (and tests) can compute the same hash the sketcher would have
// produced for a literal k-mer, without re-running a full sketch.
func CanonicalHash(k int, kmer []byte) (hash uint64, strand uint8) {
	var fwd, rev uint64
	shift := uint(2 * (k - 1))
	for _, b := range kmer {
		fwd = (fwd << 2) | uint64(b)
		rev = (rev >> 2) | (uint64(complementOf[b]) << shift)
	}
	mask := (uint64(1) << uint(2*k)) - 1
	fwd &= mask
	rev &= mask
	if fwd <= rev {
		return mixHash(fwd, rev), 0
	}
	return mixHash(rev, fwd), 1
}
