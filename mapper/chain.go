package mapper

import "sort"

// Chain is a colinear run of seeds sharing a reference and strand,
// linked by the greedy window-translation procedure of §4.4. Seeds are
// kept sorted ascending by (U, V), not in link order.
type Chain struct {
	RID    int32
	Strand uint8
	Seeds  []Seed
	// PLen is the chain's reach, inverted and offset so ascending sort
	// orders chains best-first: PLen = Offset - floor((1-1/scnt)*(ps(tail)-ps(root))),
	// ps(s) = u+v.
	PLen int64
	// TotalWeight is the sum of each seed's contributed k-mer length,
	// used only as a cheap filter threshold (ChainParams.MinScore); it
	// has no equivalent in §4.4's data model.
	TotalWeight int32
}

// QSpan and RSpan return the chain's [start,end) query/reference extent.
func (c Chain) QSpan() (start, end uint32) {
	start, end = c.Seeds[0].QPos, c.Seeds[0].QPos
	for _, s := range c.Seeds {
		if s.QPos < start {
			start = s.QPos
		}
		if e := s.QPos + uint32(s.Weight); e > end {
			end = e
		}
	}
	return
}

func (c Chain) RSpan() (start, end uint32) {
	start, end = c.Seeds[0].RPos, c.Seeds[0].RPos
	for _, s := range c.Seeds {
		if s.RPos < start {
			start = s.RPos
		}
		if e := s.RPos + uint32(s.Weight); e > end {
			end = e
		}
	}
	return
}

// ChainParams bounds the chaining walk (§4.4): WLen is the chainable
// window edge in base-pair units (used as twlen=2*WLen in u/v space),
// GLen is the looser link-through-gap length a seed may still reach a
// chain through as a "jump" (becoming a sibling root rather than a
// direct link). MinScore/MinSeeds are auxiliary acceptance filters with
// no equivalent in §4.4's own data model.
type ChainParams struct {
	WLen, GLen int64
	MinScore   int32
	MinSeeds   int
}

// ps is the spec's ps(s) = u+v, the chain-reach coordinate.
func ps(s Seed) int64 { return s.U + s.V }

// chainGroup implements §4.4's repeated greedy longest-path chaining
// over seeds already grouped by (RID, Strand) and sorted ascending by
// (U, V). Each unchained seed is tried in turn as a root: the walk scans
// forward for the Chebyshev-nearest seed inside the tight window
// W=(u<=u_head+twlen, v<=v_head+twlen), links it, re-centers the window
// on the new head, and remembers the tightest candidate reachable only
// via the looser GLen window as a sibling root to try once this branch
// is exhausted. A branch that scans into an already-chained seed merges
// into that chain instead of continuing independently.
func chainGroup(seeds []Seed, params ChainParams) []Chain {
	n := len(seeds)
	if n == 0 {
		return nil
	}
	twlen := 2 * params.WLen

	chainOf := make([]int, n)
	for i := range chainOf {
		chainOf[i] = -1
	}
	var chains []*Chain
	var pending []int
	for i := range seeds {
		pending = append(pending, i)
	}

	for len(pending) > 0 {
		root := pending[0]
		pending = pending[1:]
		if chainOf[root] != -1 {
			continue
		}
		cid := len(chains)
		c := &Chain{RID: seeds[root].RID, Strand: seeds[root].Strand}
		c.Seeds = append(c.Seeds, seeds[root])
		c.TotalWeight = seeds[root].Weight
		chains = append(chains, c)
		chainOf[root] = cid

		head := root
		jumpCand, jumpDist := -1, int64(0)
		merged := false
		for {
			bestIdx, bestDist, bestIsChained := -1, int64(0), false
			for i := head + 1; i < n; i++ {
				if seeds[i].RID != seeds[head].RID {
					break
				}
				du := seeds[i].U - seeds[head].U
				dv := seeds[i].V - seeds[head].V
				if du < 0 || dv < 0 {
					continue
				}
				cheb := du
				if dv > cheb {
					cheb = dv
				}
				switch {
				case du <= twlen && dv <= twlen:
					if bestIdx == -1 || cheb < bestDist {
						bestIdx, bestDist, bestIsChained = i, cheb, chainOf[i] != -1
					}
				case du <= params.GLen && dv <= params.GLen:
					if jumpCand == -1 || cheb < jumpDist {
						jumpCand, jumpDist = i, cheb
					}
				}
			}
			if bestIdx == -1 {
				break
			}
			if bestIsChained {
				mergeChains(chains, chainOf, cid, chainOf[bestIdx])
				merged = true
				break
			}
			chainOf[bestIdx] = cid
			chains[cid].Seeds = append(chains[cid].Seeds, seeds[bestIdx])
			chains[cid].TotalWeight += seeds[bestIdx].Weight
			head = bestIdx
		}
		if jumpCand != -1 && chainOf[jumpCand] == -1 {
			pending = append(pending, jumpCand)
		}
		_ = merged
	}

	var out []Chain
	for _, c := range chains {
		if c == nil || len(c.Seeds) == 0 {
			continue
		}
		sort.Slice(c.Seeds, func(i, j int) bool {
			if c.Seeds[i].U != c.Seeds[j].U {
				return c.Seeds[i].U < c.Seeds[j].U
			}
			return c.Seeds[i].V < c.Seeds[j].V
		})
		c.PLen = computePLen(c.Seeds)
		if c.TotalWeight < params.MinScore || len(c.Seeds) < params.MinSeeds {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PLen < out[j].PLen })
	return out
}

// mergeChains folds src's seeds into dst and retargets chainOf so later
// scans treat them as one chain. src is left empty.
func mergeChains(chains []*Chain, chainOf []int, src, dst int) {
	if src == dst {
		return
	}
	s, d := chains[src], chains[dst]
	d.Seeds = append(d.Seeds, s.Seeds...)
	d.TotalWeight += s.TotalWeight
	for i, c := range chainOf {
		if c == src {
			chainOf[i] = dst
		}
	}
	s.Seeds = nil
}

// computePLen implements §4.4's inverted-reach chain score: Offset minus
// the (1-1/scnt) fraction of the root-to-tail span in ps=u+v space, so
// ascending sort over PLen orders chains by decreasing actual reach.
func computePLen(seeds []Seed) int64 {
	scnt := int64(len(seeds))
	psRoot, psTail := ps(seeds[0]), ps(seeds[len(seeds)-1])
	span := psTail - psRoot
	reach := int64(0)
	if scnt > 0 {
		reach = (span * (scnt - 1)) / scnt // floor((1-1/scnt)*span)
	}
	return Offset - reach
}

// chainAll groups seeds by (RID, Strand) and chains each group
// independently. Input seeds are expected already sorted by
// (RID, Strand, U, V) ascending (collectSeeds's contract).
func chainAll(seeds []Seed, params ChainParams) []Chain {
	var chains []Chain
	start := 0
	for i := 1; i <= len(seeds); i++ {
		if i == len(seeds) || seeds[i].RID != seeds[start].RID || seeds[i].Strand != seeds[start].Strand {
			chains = append(chains, chainGroup(seeds[start:i], params)...)
			start = i
		}
	}
	return chains
}

// fuseCircular merges a trailing chain whose last seed is within wlen of
// a circular reference's end with a leading chain whose first seed is
// within wlen of position 0 on the same reference and strand (§4.4
// circularization). The wrapped chain's seeds have refLen added to their
// reference anchor and are translated in u/v space to match (u += 2L,
// v -= L, since u=2r'-q'+Offset and v=2q'-r'+Offset), keeping the fused
// seed list's (U,V) ordering and PLen calculation meaningful.
func fuseCircular(chains []Chain, refLen uint32, params ChainParams) []Chain {
	var fused []Chain
	consumed := make([]bool, len(chains))
	for i := range chains {
		if consumed[i] {
			continue
		}
		a := chains[i]
		_, aEnd := a.RSpan()
		if int64(refLen)-int64(aEnd) > params.WLen {
			fused = append(fused, a)
			consumed[i] = true
			continue
		}
		merged := a
		consumed[i] = true
		for j := range chains {
			if j == i || consumed[j] {
				continue
			}
			b := chains[j]
			if b.Strand != a.Strand || b.RID != a.RID {
				continue
			}
			bStart, _ := b.RSpan()
			if int64(bStart) > params.WLen {
				continue
			}
			shifted := make([]Seed, len(b.Seeds))
			L := int64(refLen)
			for k, s := range b.Seeds {
				s.RPos += refLen
				s.U += 2 * L
				s.V -= L
				shifted[k] = s
			}
			merged.Seeds = append(append([]Seed(nil), merged.Seeds...), shifted...)
			sort.Slice(merged.Seeds, func(x, y int) bool {
				if merged.Seeds[x].U != merged.Seeds[y].U {
					return merged.Seeds[x].U < merged.Seeds[y].U
				}
				return merged.Seeds[x].V < merged.Seeds[y].V
			})
			merged.TotalWeight += b.TotalWeight
			merged.PLen = computePLen(merged.Seeds)
			consumed[j] = true
		}
		fused = append(fused, merged)
	}
	return fused
}
