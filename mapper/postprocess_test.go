package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/lrmap/dpalign"
)

var testAlignParams = dpalign.Params{MatchScore: 2, MismatchPenalty: -4}

// Two alignments covering disjoint halves of the query both survive as
// primary/supplementary; a third, fully contained in the first's span,
// is demoted to secondary.
func TestClassifySupplementaryVsSecondary(t *testing.T) {
	alns := []MappedAlign{
		{RID: 0, QStart: 0, QEnd: 100, Score: 100, Identity: 0.95},
		{RID: 0, QStart: 100, QEnd: 200, Score: 90, Identity: 0.9},
		{RID: 1, QStart: 10, QEnd: 40, Score: 75, Identity: 0.8},
	}
	reg := classify(alns, testAlignParams)
	require.Len(t, reg.Aln, 3)

	byScore := map[int32]*MappedAlign{}
	for i := range reg.Aln {
		byScore[reg.Aln[i].Score] = &reg.Aln[i]
	}
	assert.True(t, byScore[100].Primary)
	assert.True(t, byScore[90].Supplementary)
	assert.False(t, byScore[90].Primary)
	assert.False(t, byScore[75].Primary)
	assert.False(t, byScore[75].Supplementary)
}

// An alignment scoring far below the best is pruned entirely rather than
// classified.
func TestClassifyPrunesLowScoringAlignments(t *testing.T) {
	alns := []MappedAlign{
		{RID: 0, QStart: 0, QEnd: 100, Score: 100, Identity: 0.95},
		{RID: 2, QStart: 0, QEnd: 20, Score: 5, Identity: 0.6},
	}
	reg := classify(alns, testAlignParams)
	require.Len(t, reg.Aln, 1)
	assert.Equal(t, int32(0), reg.Aln[0].RID)
}

// A lone alignment is always primary with a positive mapping quality,
// since there is no competing alignment to erode it.
func TestClassifySingleAlignmentIsPrimary(t *testing.T) {
	alns := []MappedAlign{{RID: 0, QStart: 0, QEnd: 50, Score: 80, Identity: 0.98}}
	reg := classify(alns, testAlignParams)
	require.Len(t, reg.Aln, 1)
	assert.True(t, reg.Aln[0].Primary)
	assert.Greater(t, reg.Aln[0].MapQ, uint8(0))
}

// Among two alignments of equal quality covering the same query span
// (true multi-mapping), each secondary's mapping quality stays low.
func TestClassifyAmbiguousMappingLowersMapQ(t *testing.T) {
	alns := []MappedAlign{
		{RID: 0, QStart: 0, QEnd: 100, Score: 100, Identity: 0.95},
		{RID: 1, QStart: 0, QEnd: 100, Score: 99, Identity: 0.95},
	}
	reg := classify(alns, testAlignParams)
	require.Len(t, reg.Aln, 2)
	for _, a := range reg.Aln {
		if !a.Primary {
			assert.Less(t, a.MapQ, uint8(20))
		}
	}
}
