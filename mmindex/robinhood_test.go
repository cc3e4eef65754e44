package mmindex

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

// P4: every occupied slot in a robinhood table is reachable from its home
// bucket by forward linear probing, even after many grows.
func TestRobinhoodInvariantUnderGrowth(t *testing.T) {
	tbl := newRobinhood(1)
	r := rand.New(rand.NewSource(1))
	want := map[uint64]uint64{}
	for i := 0; i < 20000; i++ {
		k := r.Uint64() &^ (uint64(3) << 62) // avoid emptyKey/movedKey collisions
		v := r.Uint64()
		tbl.Put(k, v)
		want[k] = v
		assert.True(t, tbl.checkInvariant(), "invariant broken after %d inserts", i+1)
	}
	for k, v := range want {
		got, ok := tbl.Get(k)
		assert.True(t, ok)
		assert.Equal(t, v, got)
	}
	assert.Equal(t, len(want), tbl.Len())
}

func TestRobinhoodOverwrite(t *testing.T) {
	tbl := newRobinhood(8)
	tbl.Put(42, 1)
	tbl.Put(42, 2)
	v, ok := tbl.Get(42)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), v)
	assert.Equal(t, 1, tbl.Len())
}

func TestRobinhoodMissingKey(t *testing.T) {
	tbl := newRobinhood(8)
	tbl.Put(1, 10)
	tbl.Put(2, 20)
	_, ok := tbl.Get(999)
	assert.False(t, ok)
}
