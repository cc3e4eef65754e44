package mapper

import (
	"github.com/grailbio/lrmap/dpalign"
	"github.com/grailbio/lrmap/mmindex"
	"github.com/grailbio/lrmap/seqio"
	"github.com/grailbio/lrmap/sketch"
)

// Options configures a Mapper (§4.6).
type Options struct {
	Chain ChainParams
	Align dpalign.Params
	// FullLengthFraction is how much of the query a chain's extension
	// must cover for the outer tier loop to stop early (§4.6's "extend()
	// produced >=1 full-length alignment").
	FullLengthFraction float64
}

// DefaultOptions returns the scoring and chaining defaults used when a
// caller has no reason to deviate from them.
func DefaultOptions() Options {
	return Options{
		Chain: ChainParams{
			WLen:     500,
			GLen:     5000,
			MinScore: 40,
			MinSeeds: 2,
		},
		Align: dpalign.Params{
			MatchScore:      2,
			MismatchPenalty: -4,
			GapOpen:         4,
			GapExtend:       2,
			XDrop:           50,
		},
		FullLengthFraction: 0.9,
	}
}

// Mapper maps query sequences against a built mmindex.Index. It holds no
// mutable state and is safe for concurrent use by multiple pipeline
// worker goroutines (§5).
type Mapper struct {
	idx     *mmindex.Index
	refSeqs [][]byte // one entry per mmindex.RefSeq, in RefSeq.ID order
	sk      *sketch.Sketcher
	engine  dpalign.Engine
	opts    Options
}

// New builds a Mapper. refSeqs must align 1:1 with idx.Seqs() by index;
// the index itself retains only reference metadata, not bases (see
// mmindex.RefSeq), so the mapper needs its own handle on the sequence
// bytes to run DP extension.
func New(idx *mmindex.Index, refSeqs [][]byte, engine dpalign.Engine, opts Options) (*Mapper, error) {
	sk, err := sketch.New(idx.W(), idx.K())
	if err != nil {
		return nil, err
	}
	return &Mapper{idx: idx, refSeqs: refSeqs, sk: sk, engine: engine, opts: opts}, nil
}

// Map finds and classifies alignments of query against the index,
// driving the outer tier loop of §4.6: for each occurrence-cutoff tier,
// in increasingly permissive order, re-seed, re-chain, and re-extend
// unless a prior step already stalled (no new seeds, or no chains), and
// stop once some chain has produced a full-length alignment.
func (m *Mapper) Map(query []byte) Reg {
	tiers := append(append([]uint32{}, m.idx.Occ()...), 0) // final tier: unlimited occurrence
	stats := Stats{RescueTier: -1}

	var alns []MappedAlign
	prevSeedCount := -1
	for i, cutoff := range tiers {
		seeds := collectSeeds(m.idx, m.sk, query, Tier{MaxOcc: cutoff})
		if len(seeds) == prevSeedCount {
			continue // expand_tier(i) produced zero new seeds
		}
		prevSeedCount = len(seeds)
		stats.SeedsFound = len(seeds)
		stats.RescueTier = i
		if i == len(tiers)-1 {
			stats.RescueTier = -1 // fell through to the unlimited tier
		}

		chains := chainAll(seeds, m.opts.Chain)
		fused := fuseCircularChainsByRef(chains, m.idx)
		stats.ChainsFused = len(chains) - len(fused)
		chains = dedupChains(fused)
		stats.ChainsTried = len(chains)
		if len(chains) == 0 {
			continue // chain() produced zero chains
		}

		alns = m.extendChains(query, chains)
		if hasFullLengthAlignment(alns, len(query), m.opts.FullLengthFraction) {
			break
		}
	}

	reg := classify(alns, m.opts.Align)
	reg.Stats = stats
	return reg
}

// extendChains runs extendChain over every chain, translating the query
// into the reverse complement once, at the first reverse-strand chain,
// and reusing it for every later one.
func (m *Mapper) extendChains(query []byte, chains []Chain) []MappedAlign {
	var revQuery []byte
	var alns []MappedAlign
	for _, c := range chains {
		if int(c.RID) >= len(m.refSeqs) {
			continue
		}
		alignQuery := query
		if c.Strand == 1 {
			if revQuery == nil {
				revQuery = seqio.RevComp(query)
			}
			alignQuery = revQuery
		}
		aln, ok := extendChain(m.engine, alignQuery, m.refSeqs[c.RID], len(query), c, m.opts.Align)
		if !ok {
			continue
		}
		alns = append(alns, aln)
	}
	return alns
}

// hasFullLengthAlignment reports whether any alignment covers at least
// fraction of the original query length.
func hasFullLengthAlignment(alns []MappedAlign, queryLen int, fraction float64) bool {
	threshold := fraction * float64(queryLen)
	for _, a := range alns {
		if float64(a.QEnd-a.QStart) >= threshold {
			return true
		}
	}
	return false
}

// fuseCircularChainsByRef applies fuseCircular per reference, using each
// reference's true length from the index's metadata.
func fuseCircularChainsByRef(chains []Chain, idx *mmindex.Index) []Chain {
	seqs := idx.Seqs()
	byRef := map[int32][]Chain{}
	var order []int32
	for _, c := range chains {
		if _, ok := byRef[c.RID]; !ok {
			order = append(order, c.RID)
		}
		byRef[c.RID] = append(byRef[c.RID], c)
	}
	var out []Chain
	for _, rid := range order {
		group := byRef[rid]
		if int(rid) < len(seqs) && seqs[rid].Circular {
			group = fuseCircular(group, seqs[rid].Len, ChainParams{WLen: 500})
		}
		out = append(out, group...)
	}
	return out
}
