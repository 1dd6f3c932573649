package hnsw

import (
	"cmp"
	"slices"
)

// selectNeighbors picks at most m diverse neighbors for the node the
// candidate distances were measured against.
//
// Candidates are visited from nearest to farthest. A candidate is admitted
// only if it is closer to the target than to every neighbor admitted before
// it; otherwise an admitted neighbor already covers its direction. With
// keepPruned, free slots left after that pass are filled with the nearest
// rejected candidates.
//
// cands is sorted in place.
func (sr *searcher[K]) selectNeighbors(cands []searchCandidate[K], m int) []searchCandidate[K] {
	slices.SortFunc(cands, compareCandidates[K])

	selected := make([]searchCandidate[K], 0, min(m, len(cands)))
	var pruned []searchCandidate[K]
	for _, c := range cands {
		if len(selected) >= m {
			break
		}
		if sr.diverse(c, selected) {
			selected = append(selected, c)
		} else if sr.keepPruned {
			pruned = append(pruned, c)
		}
	}

	for _, c := range pruned {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

func (sr *searcher[K]) diverse(c searchCandidate[K], selected []searchCandidate[K]) bool {
	vec := sr.store.nodes[c.id].vec
	for _, s := range selected {
		if sr.dist(vec, sr.store.nodes[s.id].vec) <= c.dist {
			return false
		}
	}
	return true
}

// prune re-selects the neighbors of owner from ids when its list overflows.
func (sr *searcher[K]) prune(owner uint32, ids []uint32, limit int) []uint32 {
	vec := sr.store.nodes[owner].vec
	cands := make([]searchCandidate[K], len(ids))
	for i, id := range ids {
		cands[i] = sr.candidate(vec, id)
	}
	return candidateIDs(sr.selectNeighbors(cands, limit))
}

func candidateIDs[K cmp.Ordered](cands []searchCandidate[K]) []uint32 {
	ids := make([]uint32, len(cands))
	for i, c := range cands {
		ids[i] = c.id
	}
	return ids
}
