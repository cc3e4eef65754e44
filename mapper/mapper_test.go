package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/lrmap/dpalign/refimpl"
	"github.com/grailbio/lrmap/mmindex"
	"github.com/grailbio/lrmap/seqio"
)

func buildTestIndex(t *testing.T, refs []mmindex.Ref) *mmindex.Index {
	t.Helper()
	idx, err := mmindex.Build(mmindex.Options{W: 5, K: 9, B: 6}, refs)
	require.NoError(t, err)
	return idx
}

// testOptions relaxes the chaining thresholds from DefaultOptions for the
// small, low-seed-count sequences these tests use, so the assertions
// below aren't sensitive to exactly how many minimizers a given toy
// sequence happens to produce.
func testOptions() Options {
	opts := DefaultOptions()
	opts.Chain.MinScore = 1
	opts.Chain.MinSeeds = 1
	return opts
}

// P6/P7: a query drawn verbatim from a reference maps back to the right
// reference, strand, and approximate position with a high mapping
// quality.
func TestMapExactSubstringFindsOrigin(t *testing.T) {
	refSeq := "ACGTACGGTTCAGGTCATTACGGTCAATGCTTGACCGTAAGCCGTACGATCGATCGGGTAGGCATCAGTCAGTCAGTACGATCGATCGATGCATCGATG"
	refBytes := seqio.EncodeASCII(refSeq)
	idx := buildTestIndex(t, []mmindex.Ref{{Name: "ref1", Seq: refBytes}})

	const start, length = 20, 50
	query := refBytes[start : start+length]

	m, err := New(idx, [][]byte{refBytes}, refimpl.Engine{}, testOptions())
	require.NoError(t, err)

	reg := m.Map(query)
	require.NotEmpty(t, reg.Aln)

	var primary *MappedAlign
	for i := range reg.Aln {
		if reg.Aln[i].Primary {
			primary = &reg.Aln[i]
		}
	}
	require.NotNil(t, primary)
	assert.Equal(t, int32(0), primary.RID)
	assert.Equal(t, uint8(0), primary.Strand)
	assert.InDelta(t, start, int(primary.RStart), 5)
	assert.Greater(t, primary.MapQ, uint8(0))
}

// The reverse complement of a reference substring maps back to the same
// origin with the strand bit flipped.
func TestMapReverseComplementSubstring(t *testing.T) {
	refSeq := "ACGTACGGTTCAGGTCATTACGGTCAATGCTTGACCGTAAGCCGTACGATCGATCGGGTAGGCATCAGTCAGTCAGTACGATCGATCGATGCATCGATG"
	refBytes := seqio.EncodeASCII(refSeq)
	idx := buildTestIndex(t, []mmindex.Ref{{Name: "ref1", Seq: refBytes}})

	const start, length = 30, 50
	fragment := refBytes[start : start+length]
	query := seqio.RevComp(fragment)

	m, err := New(idx, [][]byte{refBytes}, refimpl.Engine{}, testOptions())
	require.NoError(t, err)

	reg := m.Map(query)
	require.NotEmpty(t, reg.Aln)

	found := false
	for _, a := range reg.Aln {
		if a.Primary {
			assert.Equal(t, uint8(1), a.Strand)
			assert.InDelta(t, start, int(a.RStart), 5)
			found = true
		}
	}
	assert.True(t, found)
}

// A query with no genuine similarity to the reference maps nowhere.
func TestMapUnrelatedQueryReturnsEmpty(t *testing.T) {
	refSeq := "ACGTACGGTTCAGGTCATTACGGTCAATGCTTGACCGTAAGCCGTACGATCGATCGGGTA"
	refBytes := seqio.EncodeASCII(refSeq)
	idx := buildTestIndex(t, []mmindex.Ref{{Name: "ref1", Seq: refBytes}})

	query := seqio.EncodeASCII("TTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTT")
	m, err := New(idx, [][]byte{refBytes}, refimpl.Engine{}, testOptions())
	require.NoError(t, err)

	reg := m.Map(query)
	assert.Empty(t, reg.Aln)
}

// A query spanning a circular reference's origin still produces one
// fused alignment rather than two truncated ones.
func TestMapAcrossCircularOrigin(t *testing.T) {
	refSeq := "ACGTACGGTTCAGGTCATTACGGTCAATGCTTGACCGTAAGCCGTACGATCGATCGGGTAGGCATCAGTCAGTCAGTACGATCGATCGATGCATCGATG"
	refBytes := seqio.EncodeASCII(refSeq)
	idx := buildTestIndex(t, []mmindex.Ref{{Name: "plasmid", Seq: refBytes, Circular: true}})

	n := len(refBytes)
	wrapSlack := 15
	query := append(append([]byte{}, refBytes[n-40:]...), refBytes[:wrapSlack]...)

	m, err := New(idx, [][]byte{refBytes}, refimpl.Engine{}, testOptions())
	require.NoError(t, err)

	reg := m.Map(query)
	require.NotEmpty(t, reg.Aln)
}
