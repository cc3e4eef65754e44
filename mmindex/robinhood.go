package mmindex

// robinhood is a 64-bit-key, 64-bit-value, open-addressed hash table using
// robinhood displacement: on collision, the entry with the shorter probe
// distance from its home slot is displaced and reinserted, bounding the
// worst-case probe length. It is the index's second-stage map (§4.2),
// keyed by the high bits of a minimizer hash.
//
// emptyKey marks a free slot; movedKey marks a slot vacated by a grow that
// has not yet been reclaimed by a later insert. Neither value can occur as
// a real hash-table key, since real keys are at most 64-b bits wide and b
// is always >= 1 (see Build).
const (
	emptyKey = ^uint64(0)
	movedKey = ^uint64(0) - 1

	robinhoodLoadFactor = 0.4
)

type robinhood struct {
	keys  []uint64
	vals  []uint64
	mask  uint64
	count int
}

// newRobinhood allocates a table sized so that n entries fit at
// robinhoodLoadFactor.
func newRobinhood(n int) *robinhood {
	size := 1
	for size == 0 || float64(n)/float64(size) > robinhoodLoadFactor {
		size <<= 1
	}
	if size < 2 {
		size = 2
	}
	t := &robinhood{
		keys: make([]uint64, size),
		vals: make([]uint64, size),
		mask: uint64(size - 1),
	}
	for i := range t.keys {
		t.keys[i] = emptyKey
	}
	return t
}

func (t *robinhood) home(key uint64) uint64 { return key & t.mask }

// probeDistance returns how far slot i is from key's home bucket.
func (t *robinhood) probeDistance(key uint64, i uint64) uint64 {
	return (i - t.home(key)) & t.mask
}

// Put inserts or overwrites key->val. Grows (doubling, rehashing every live
// entry) if the load factor would exceed robinhoodLoadFactor.
func (t *robinhood) Put(key, val uint64) {
	if float64(t.count+1)/float64(len(t.keys)) > robinhoodLoadFactor {
		t.grow()
	}
	t.insert(key, val)
}

func (t *robinhood) insert(key, val uint64) {
	i := t.home(key)
	dist := uint64(0)
	for {
		cur := t.keys[i]
		if cur == emptyKey || cur == movedKey {
			t.keys[i] = key
			t.vals[i] = val
			t.count++
			return
		}
		if cur == key {
			t.vals[i] = val
			return
		}
		curDist := t.probeDistance(cur, i)
		if curDist < dist {
			// Write the incoming entry into the richer slot, then carry the
			// displaced occupant forward as the new entry being inserted.
			evictedVal := t.vals[i]
			t.keys[i], t.vals[i] = key, val
			key, val, dist = cur, evictedVal, curDist
		}
		i = (i + 1) & t.mask
		dist++
	}
}

func (t *robinhood) grow() {
	old := t.keys
	oldVals := t.vals
	newSize := len(t.keys) * 2
	t.keys = make([]uint64, newSize)
	t.vals = make([]uint64, newSize)
	t.mask = uint64(newSize - 1)
	t.count = 0
	for i := range t.keys {
		t.keys[i] = emptyKey
	}
	for i, k := range old {
		if k != emptyKey && k != movedKey {
			old[i] = movedKey
			t.insert(k, oldVals[i])
		}
	}
}

// Get returns the value stored for key and whether it was present.
func (t *robinhood) Get(key uint64) (uint64, bool) {
	i := t.home(key)
	dist := uint64(0)
	for {
		cur := t.keys[i]
		if cur == emptyKey {
			return 0, false
		}
		if cur != movedKey {
			if cur == key {
				return t.vals[i], true
			}
			if t.probeDistance(cur, i) < dist {
				return 0, false
			}
		}
		i = (i + 1) & t.mask
		dist++
	}
}

// Len returns the number of live entries.
func (t *robinhood) Len() int { return t.count }

// liveEntries returns every (key, val) pair currently stored, for
// serialization. Order is slot order, not insertion order.
func (t *robinhood) liveEntries() (keys, vals []uint64) {
	keys = make([]uint64, 0, t.count)
	vals = make([]uint64, 0, t.count)
	for i, k := range t.keys {
		if k == emptyKey || k == movedKey {
			continue
		}
		keys = append(keys, k)
		vals = append(vals, t.vals[i])
	}
	return
}

// checkInvariant verifies P4: for every non-empty, non-moved slot i, the
// stored key's home bucket is <= i, measured as a cyclic probe distance.
// Exposed for tests.
func (t *robinhood) checkInvariant() bool {
	for i, k := range t.keys {
		if k == emptyKey || k == movedKey {
			continue
		}
		// Every key must be reachable by forward linear probing from its
		// home bucket: no empty slot may lie between home and i.
		for j := t.home(k); j != uint64(i); j = (j + 1) & t.mask {
			if t.keys[j] == emptyKey {
				return false
			}
		}
	}
	return true
}
