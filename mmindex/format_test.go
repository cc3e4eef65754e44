package mmindex

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/lrmap/sketch"
)

// Save followed by Load reproduces an index byte-for-byte in its public
// behavior: every minimizer retrievable before the round trip is
// retrievable after, with the same postings and reference metadata.
func TestSaveLoadRoundTrips(t *testing.T) {
	refs := []Ref{
		{Name: "chr1", Seq: encSeq("ACGTACGGTTCAGGTCATTACGGTCAATGCTTGACCGTAAGCCGTACGATCGATCGGGTA")},
		{Name: "plasmid", Seq: encSeq("TTTTGGGGCCCCAAAATTTTGGGGCCCCAAAATTTTGGGGCCCCAAAATTTTGGGGCCCC"), Circular: true},
	}
	idx, err := Build(Options{W: 5, K: 7, B: 6, Frq: []float64{0.01}}, refs)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, idx.Save(&buf))

	loaded, err := Load(&buf)
	require.NoError(t, err)

	assert.Equal(t, idx.W(), loaded.W())
	assert.Equal(t, idx.K(), loaded.K())
	assert.Equal(t, idx.B(), loaded.B())
	assert.Equal(t, idx.NOcc(), loaded.NOcc())
	assert.Equal(t, idx.Occ(), loaded.Occ())
	require.Equal(t, idx.Seqs(), loaded.Seqs())

	sk, err := sketch.New(idx.W(), idx.K())
	require.NoError(t, err)
	for rid, ref := range refs {
		mins, _ := sk.Sketch(ref.Seq)
		for _, m := range mins {
			want := idx.Get(m.Hash)
			got := loaded.Get(m.Hash)
			require.Equal(t, len(want), len(got), "posting count for hash %x diverged after round trip", m.Hash)
			found := false
			for _, p := range got {
				if int(p.RefID()) == rid && p.Strand() == m.Strand && p.Pos() == m.Pos {
					found = true
				}
			}
			assert.True(t, found, "posting for %s pos %d missing after round trip", ref.Name, m.Pos)
		}
	}
}

// Load rejects a stream that doesn't start with the container magic.
func TestLoadRejectsBadMagic(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("not a container stream")))
	assert.Error(t, err)
}

// Load rejects a stream cut off mid-block.
func TestLoadRejectsTruncatedStream(t *testing.T) {
	refs := []Ref{{Name: "r1", Seq: encSeq("ACGTACGGTTCAGGTCATTACGGTCAATGC")}}
	idx, err := Build(Options{W: 4, K: 6, B: 4}, refs)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, idx.Save(&buf))

	truncated := buf.Bytes()[:buf.Len()-4]
	_, err = Load(bytes.NewReader(truncated))
	assert.Error(t, err)
}
