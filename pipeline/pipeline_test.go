package pipeline

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// P5: results drain in submission order regardless of which worker
// finishes first.
func TestPipelinePreservesOrder(t *testing.T) {
	p := New(4, 8, func(slot int, in interface{}) (interface{}, error) {
		n := in.(int)
		// Make later-submitted, lower-numbered items finish "faster" by
		// doing proportionally less work, to stress the reordering.
		busy := 0
		for i := 0; i < (n%5)*1000; i++ {
			busy++
		}
		return n * n, nil
	})

	const total = 200
	// Submit from a separate goroutine: the drain queue holds only 8
	// results, so submission can only progress while Drain consumes.
	go func() {
		for i := 0; i < total; i++ {
			p.Submit(i)
		}
		p.Close()
	}()

	got, err := p.Drain()
	require.NoError(t, err)
	require.Len(t, got, total)
	for i, v := range got {
		assert.Equal(t, i*i, v.(int))
	}
}

func TestPipelinePropagatesWorkerError(t *testing.T) {
	boom := fmt.Errorf("boom")
	p := New(2, 4, func(slot int, in interface{}) (interface{}, error) {
		n := in.(int)
		if n == 3 {
			return nil, boom
		}
		return n, nil
	})
	for i := 0; i < 10; i++ {
		p.Submit(i)
	}
	p.Close()
	_, err := p.Drain()
	assert.Error(t, err)
}

func TestRunSlotsCoversEverySlot(t *testing.T) {
	const nth = 6
	var seen [nth]int32
	RunSlots(nth, func(slot int) {
		atomic.AddInt32(&seen[slot], 1)
	})
	for slot, c := range seen {
		assert.Equal(t, int32(1), c, "slot %d", slot)
	}
}

func TestRunSlotsSingleThreaded(t *testing.T) {
	ran := false
	RunSlots(1, func(slot int) {
		assert.Equal(t, 0, slot)
		ran = true
	})
	assert.True(t, ran)
}
