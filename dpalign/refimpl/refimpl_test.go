package refimpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/lrmap/dpalign"
)

var params = dpalign.Params{
	MatchScore:      2,
	MismatchPenalty: -4,
	GapOpen:         4,
	GapExtend:       2,
	XDrop:           50,
}

func TestFillExactMatchScoresMatchesTimesTwo(t *testing.T) {
	seq := []byte("ACGTACGTACGT")
	fill := Engine{}.FillRoot(seq, seq, 0, 0, params)
	assert.Equal(t, int32(len(seq))*params.MatchScore, fill.Max)

	aPos, bPos := Engine{}.SearchMax(fill)
	assert.Equal(t, int32(len(seq)), aPos)
	assert.Equal(t, int32(len(seq)), bPos)

	aln, ok := Engine{}.Trace(fill)
	require.True(t, ok)
	require.Len(t, aln.Cigar, 1)
	op, length := dpalign.UnpackCigar(aln.Cigar[0])
	assert.Equal(t, dpalign.CigarMatch, op)
	assert.Equal(t, uint32(len(seq)), length)
}

func TestFillSingleMismatchLowersScore(t *testing.T) {
	query := []byte("ACGTACGTACGT")
	ref := []byte("ACGTTCGTACGT")
	fill := Engine{}.FillRoot(query, ref, 0, 0, params)
	wantPerfect := int32(len(query)) * params.MatchScore
	assert.Less(t, fill.Max, wantPerfect)

	aln, ok := Engine{}.Trace(fill)
	require.True(t, ok)
	assert.Equal(t, fill.Max, aln.Score)
}

func TestFillEmptyWindow(t *testing.T) {
	fill := Engine{}.FillRoot(nil, nil, 0, 0, params)
	assert.Equal(t, int32(0), fill.Max)

	aln, ok := Engine{}.Trace(fill)
	require.True(t, ok)
	assert.Empty(t, aln.Cigar)
}

func TestFillRefusesOversizeWindow(t *testing.T) {
	big := make([]byte, 1<<14)
	huge := make([]byte, len(big)*8)
	fill := Engine{}.FillRoot(big, huge, 0, 0, params)
	assert.Equal(t, int32(0), fill.Max)

	_, ok := Engine{}.Trace(fill)
	assert.False(t, ok)
}

func TestFillContinuesPastSectionBoundary(t *testing.T) {
	a := []byte("ACGTACGTACGT")
	b := []byte("ACGTACGTACGT")
	fill := Engine{}.FillRoot(a, b, 0, 0, params)
	require.NotEqual(t, dpalign.StatusXDrop, fill.Status)

	extendedA := append(append([]byte{}, a...), "ACGTACGT"...)
	extendedB := append(append([]byte{}, b...), "ACGTACGT"...)
	fill2 := Engine{}.Fill(fill, extendedA, extendedB, params)
	assert.Greater(t, fill2.Max, fill.Max)
}
