// Package mmindex implements the two-stage minimizer occurrence index
// (spec.md §4.2): a fixed-size bucket array keyed by the low bits of the
// minimizer hash, each bucket holding a robinhood second-stage map and a
// packed posting list.
package mmindex

import (
	"math"
	"sort"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/grailbio/lrmap/sketch"
)

// MaxFrqCnt is the maximum number of occurrence-tier cutoffs (§6).
const MaxFrqCnt = 7

// RefSeq is the reference-side metadata an Index keeps for each sequence it
// was built from. The encoded bases themselves are not retained by the
// index (callers needing sequence bytes at mapping time hold on to their
// own seqio.Record slice, indexed by RefSeq.ID).
type RefSeq struct {
	ID       int32
	Name     string
	Len      uint32
	Circular bool
}

// Options configures Index construction.
type Options struct {
	W, K, B int
	// Frq are the occurrence fractions used to derive occurrence cutoffs
	// (§4.2 step 4), in descending order. At most MaxFrqCnt are honored.
	Frq []float64
}

// Ref is one reference sequence handed to Build.
type Ref struct {
	Name     string
	Seq      []byte // sketch base codes, see seqio.EncodeASCII
	Circular bool
}

// Index is the immutable, built occurrence index. It is safe for
// concurrent read access from multiple mapper workers (§5).
type Index struct {
	w, k, b uint32
	mask    uint64
	occ     [MaxFrqCnt]uint32
	nOcc    int
	buckets []bucket
	seqs    []RefSeq
}

type bucket struct {
	table    *robinhood
	postings []Posting
}

// W, K, B, and Occ expose the build parameters and derived cutoffs, needed
// by the mapper's seed-collection tiers (§4.3) and the on-disk header
// (§6).
func (idx *Index) W() int          { return int(idx.w) }
func (idx *Index) K() int          { return int(idx.k) }
func (idx *Index) B() int          { return int(idx.b) }
func (idx *Index) Mask() uint64    { return idx.mask }
func (idx *Index) NOcc() int       { return idx.nOcc }
func (idx *Index) Occ() []uint32   { return idx.occ[:idx.nOcc] }
func (idx *Index) Seqs() []RefSeq  { return idx.seqs }

// Get returns the posting list for hash h, or nil if h is absent or was
// discarded at build time for exceeding every occurrence cutoff.
func (idx *Index) Get(h uint64) []Posting {
	bi := h & idx.mask
	bkt := &idx.buckets[bi]
	if bkt.table == nil {
		return nil
	}
	key := h >> idx.b
	raw, ok := bkt.table.Get(key)
	if !ok {
		return nil
	}
	v := cellValue(raw)
	if !v.isIndirect() {
		return []Posting{v.posting()}
	}
	base, count := v.baseAndCount()
	return bkt.postings[base : base+count]
}

type triple struct {
	hash   uint64
	pos    uint32
	rid    int32
	strand uint8
}

// Build constructs an Index over refs. Reference blocks are sketched
// independently (the caller may parallelize that step via package
// pipeline; Build itself sketches sequentially since the bucket partition
// that follows needs every triple in hand first).
func Build(opts Options, refs []Ref) (*Index, error) {
	if opts.W == 0 || opts.K == 0 || opts.W > 31 || opts.K > 31 {
		return nil, errors.Errorf("mmindex: invalid param w=%d k=%d", opts.W, opts.K)
	}
	if opts.B == 0 || opts.B > 30 {
		return nil, errors.Errorf("mmindex: invalid param b=%d", opts.B)
	}
	sk, err := sketch.New(opts.W, opts.K)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		w:    uint32(opts.W),
		k:    uint32(opts.K),
		b:    uint32(opts.B),
		mask: (uint64(1) << uint(opts.B)) - 1,
	}
	idx.nOcc = len(opts.Frq)
	if idx.nOcc > MaxFrqCnt {
		idx.nOcc = MaxFrqCnt
	}

	var triples []triple
	for rid, ref := range refs {
		idx.seqs = append(idx.seqs, RefSeq{ID: int32(rid), Name: ref.Name, Len: uint32(len(ref.Seq)), Circular: ref.Circular})
		mins, endCap := sk.Sketch(ref.Seq)
		for _, m := range mins {
			triples = append(triples, triple{hash: m.Hash, pos: m.Pos, rid: int32(rid), strand: m.Strand})
		}
		if ref.Circular {
			overlapLen := int(idx.w) + int(idx.k) - 1
			if overlapLen > len(ref.Seq) {
				overlapLen = len(ref.Seq)
			}
			// Resuming from the end-of-sequence state lets windows span the
			// origin; positions continue past len(ref.Seq).
			wrapMins, _ := sk.SketchResume(endCap, ref.Seq[:overlapLen])
			for _, m := range wrapMins {
				triples = append(triples, triple{hash: m.Hash, pos: m.Pos, rid: int32(rid), strand: m.Strand})
			}
		}
	}

	log.Printf("mmindex: sketched %d references into %d minimizer occurrences", len(refs), len(triples))

	buckets := make([][]triple, uint64(1)<<opts.B)
	for _, t := range triples {
		bi := t.hash & idx.mask
		buckets[bi] = append(buckets[bi], t)
	}

	// Per-bucket radix sort by (hash_high, pos) and occurrence counting,
	// folded into a global histogram of per-key occurrence counts (§4.2
	// step 3-4).
	type group struct {
		hashHigh uint64
		start    int
		count    int
	}
	bucketGroups := make([][]group, len(buckets))
	var globalCounts []uint32
	for bi, ts := range buckets {
		if len(ts) == 0 {
			continue
		}
		sort.Slice(ts, func(i, j int) bool {
			hi, hj := ts[i].hash>>opts.B, ts[j].hash>>opts.B
			if hi != hj {
				return hi < hj
			}
			return ts[i].pos < ts[j].pos
		})
		buckets[bi] = ts
		var groups []group
		start := 0
		for i := 1; i <= len(ts); i++ {
			if i == len(ts) || ts[i].hash>>opts.B != ts[start].hash>>opts.B {
				groups = append(groups, group{hashHigh: ts[start].hash >> opts.B, start: start, count: i - start})
				globalCounts = append(globalCounts, uint32(i-start))
				start = i
			}
		}
		bucketGroups[bi] = groups
	}

	idx.occ = computeOccThresholds(globalCounts, opts.Frq, idx.nOcc)

	var maxCutoff uint32 = math.MaxUint32
	if idx.nOcc > 0 {
		maxCutoff = idx.occ[idx.nOcc-1]
	}

	idx.buckets = make([]bucket, len(buckets))
	for bi, groups := range bucketGroups {
		if len(groups) == 0 {
			continue
		}
		ts := buckets[bi]
		tbl := newRobinhood(len(groups))
		var postings []Posting
		for _, g := range groups {
			if uint32(g.count) > maxCutoff {
				continue // discarded: too repetitive (§4.2 step 5)
			}
			if g.count == 1 {
				t := ts[g.start]
				tbl.Put(g.hashHigh, uint64(makeInlineCell(MakePosting(t.rid, t.strand, t.pos))))
				continue
			}
			base := len(postings)
			for i := g.start; i < g.start+g.count; i++ {
				t := ts[i]
				postings = append(postings, MakePosting(t.rid, t.strand, t.pos))
			}
			tbl.Put(g.hashHigh, uint64(makeIndirectCell(uint32(base), uint32(g.count))))
		}
		idx.buckets[bi] = bucket{table: tbl, postings: postings}
	}

	return idx, nil
}

// computeOccThresholds derives up to maxOcc ascending cutoffs from the
// distribution of per-key occurrence counts and the user-supplied
// fractions (§4.2 step 4): occ[i] is the
// ceil((1-f_i)*n_keys)-th order statistic of counts, plus one.
func computeOccThresholds(counts []uint32, frq []float64, maxOcc int) [MaxFrqCnt]uint32 {
	var occ [MaxFrqCnt]uint32
	if maxOcc == 0 || len(counts) == 0 {
		return occ
	}
	sorted := append([]uint32(nil), counts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	n := len(sorted)
	vals := make([]uint32, 0, maxOcc)
	for i := 0; i < maxOcc && i < len(frq); i++ {
		idx := int(math.Ceil((1 - frq[i]) * float64(n)))
		if idx < 1 {
			idx = 1
		}
		if idx > n {
			idx = n
		}
		vals = append(vals, sorted[idx-1]+1)
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	copy(occ[:], vals)
	return occ
}
