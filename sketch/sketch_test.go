package sketch

import (
	"testing"

	"github.com/grailbio/lrmap/seqio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enc(s string) []byte { return seqio.EncodeASCII(s) }

// P1: sketch(A+B) == sketch(A) + sketch_resume(cap_A, B).
func TestSketchResumeMatchesWholeSketch(t *testing.T) {
	a := "ACGTACGGTTCAGGTCATTACGGTCAATGC"
	b := "TTGACCGTAAGCCGTACGATCGATCGGGTA"

	sk, err := New(5, 7)
	require.NoError(t, err)

	whole, _ := sk.Sketch(enc(a + b))

	sk2, err := New(5, 7)
	require.NoError(t, err)
	first, cap := sk2.Sketch(enc(a))
	rest, _ := sk2.SketchResume(cap, enc(b))

	split := append(append([]Minimizer{}, first...), rest...)
	assert.Equal(t, whole, split)
}

// P1, swept across many split points.
func TestSketchResumeAllSplitPoints(t *testing.T) {
	s := "ACGTACGGTTCAGGTCATTACGGTCAATGCTTGACCGTAAGCCGTACGATCGATCGGGTA"
	w, k := 4, 6
	sk, err := New(w, k)
	require.NoError(t, err)
	whole, _ := sk.Sketch(enc(s))

	for split := k; split < len(s)-k; split++ {
		skA, _ := New(w, k)
		first, cap := skA.Sketch(enc(s[:split]))
		rest, _ := skA.SketchResume(cap, enc(s[split:]))
		got := append(append([]Minimizer{}, first...), rest...)
		assert.Equalf(t, whole, got, "split at %d", split)
	}
}

// P2: sketch(S) == sketch(revcomp(S)) as a multiset of (hash, strand),
// with genomic position re-derived from the other strand and the strand
// bit flipped.
func TestSketchCanonicalEquivalence(t *testing.T) {
	s := "ACGTACGGTTCAGGTCATTACGGTCAATGC"
	rc := revcompASCII(s)

	sk, err := New(3, 5)
	require.NoError(t, err)
	fwd, _ := sk.Sketch(enc(s))
	rev, _ := sk.Sketch(enc(rc))

	const k = 5
	L := uint32(len(s))
	type key struct {
		hash   uint64
		pos    uint32
		strand uint8
	}
	fwdSet := map[key]int{}
	for _, m := range fwd {
		fwdSet[key{m.Hash, m.Pos, m.Strand}]++
	}
	revSet := map[key]int{}
	for _, m := range rev {
		// A k-mer starting at p on the reverse complement starts at
		// L-k-p on the forward strand, with strand flipped.
		origPos := L - k - m.Pos
		revSet[key{m.Hash, origPos, 1 - m.Strand}]++
	}
	assert.Equal(t, fwdSet, revSet)
}

func TestInvalidParams(t *testing.T) {
	for _, tc := range []struct{ w, k int }{{0, 4}, {4, 0}, {32, 4}, {4, 32}} {
		_, err := New(tc.w, tc.k)
		assert.Error(t, err, "w=%d k=%d", tc.w, tc.k)
	}
}

func TestCanonicalHashMatchesSketch(t *testing.T) {
	sk, err := New(2, 4)
	require.NoError(t, err)
	mins, _ := sk.Sketch(enc("ACGTACGTACGTACGT"))
	require.NotEmpty(t, mins)

	wantHash, wantStrand := CanonicalHash(4, enc("ACGT"))
	found := false
	for _, m := range mins {
		if m.Hash == wantHash {
			assert.Equal(t, wantStrand, m.Strand)
			found = true
		}
	}
	assert.True(t, found, "expected the ACGT minimizer to appear in the sketch")
}

func revcompASCII(s string) string {
	b := []byte(s)
	out := make([]byte, len(b))
	comp := map[byte]byte{'A': 'T', 'C': 'G', 'G': 'C', 'T': 'A'}
	for i, c := range b {
		out[len(b)-1-i] = comp[c]
	}
	return string(out)
}
