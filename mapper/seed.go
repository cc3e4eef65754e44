// Package mapper implements the seed-chain-extend long-read mapping
// algorithm (spec.md §4.3-§4.6, §4.8): collect minimizer seeds from an
// occurrence index, chain them into colinear anchor runs, extend chains
// into base-level alignments via an external dpalign.Engine, and classify
// the results as primary/supplementary/secondary.
package mapper

import (
	"sort"

	"github.com/grailbio/lrmap/mmindex"
	"github.com/grailbio/lrmap/sketch"
)

// Offset centers the diagonal (u) and anti-diagonal (v) transformed
// coordinates on a positive range so they sort and compare as ordinary
// signed integers regardless of strand (spec.md §4.3, OFFSET=2^30).
const Offset = int64(1) << 30

// UnchainedLink is the seed-array sentinel for "not yet claimed by any
// chain" (spec.md §4.3's INT32_MAX).
const UnchainedLink = int32(1<<31 - 1)

// Seed is one minimizer occurrence shared between the query and a
// reference, carrying the (u,v) diagonal coordinates chaining works in:
// u = 2r' - q' + Offset, v = 2q' - r' + Offset, where r' is the
// reference k-mer start shifted by k on the reverse strand and q' is the
// query position bit-twisted by the strand (q XOR -strand). RPos/QPos
// cache the concrete anchor positions recoverable from (U,V,Strand),
// kept alongside rather than re-derived, since extendChain needs them as
// plain reference/query offsets rather than the packed diagonal form.
type Seed struct {
	U, V   int64
	RID    int32
	Strand uint8 // 0: query and reference hit share strand; 1: opposite
	Link   int32 // UnchainedLink until a chain claims this seed
	RPos   uint32
	QPos   uint32 // in the frame alignment will run in: forward query when Strand==0, revcomp query when Strand==1
	Weight int32  // k-mer length contributed by this seed
}

// Tier bounds how repetitive a minimizer may be before collectSeeds skips
// it, implementing the frequency-tiered rescue loop described in §4.6:
// callers call collectSeeds multiple times with successively looser
// (larger, or zero for "unlimited") tiers until enough seeds are found.
type Tier struct {
	MaxOcc uint32 // 0 means unlimited
}

// collectSeeds converts every (query minimizer, reference posting) match
// within tier into a Seed using §4.3's exact coordinate transform.
func collectSeeds(idx *mmindex.Index, sk *sketch.Sketcher, query []byte, tier Tier) []Seed {
	mins, _ := sk.Sketch(query)
	var seeds []Seed
	k := int64(sk.K())
	qLen := int64(len(query))
	for _, m := range mins {
		postings := idx.Get(m.Hash)
		if len(postings) == 0 {
			continue
		}
		if tier.MaxOcc > 0 && uint32(len(postings)) > tier.MaxOcc {
			continue
		}
		for _, p := range postings {
			strand := m.Strand ^ p.Strand()
			r := int64(p.Pos())
			q := int64(m.Pos)

			rPrime := r
			if strand == 1 {
				rPrime = r + k
			}
			mask := -int64(strand) // 0, or all-ones when strand==1
			qPrime := q ^ mask

			u := 2*rPrime - qPrime + Offset
			v := 2*qPrime - rPrime + Offset

			// Anchor coordinates in the frame extension actually runs in:
			// mapper.Map aligns against the reverse complement of the
			// query for an opposite-strand hit, where the mirror of a
			// k-length match starting at q is qLen-k-q.
			qAnchor := q
			if strand == 1 {
				qAnchor = qLen - k - q
			}
			seeds = append(seeds, Seed{
				U: u, V: v, RID: p.RefID(), Strand: strand, Link: UnchainedLink,
				RPos: uint32(rPrime), QPos: uint32(qAnchor), Weight: int32(k),
			})
		}
	}
	sort.Slice(seeds, func(i, j int) bool {
		a, b := seeds[i], seeds[j]
		if a.RID != b.RID {
			return a.RID < b.RID
		}
		if a.Strand != b.Strand {
			return a.Strand < b.Strand
		}
		if a.U != b.U {
			return a.U < b.U
		}
		return a.V < b.V
	})
	return seeds
}
