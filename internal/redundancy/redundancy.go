// Package redundancy implements the redundancy filter (C12, stage S4b): a
// deterministic greedy walk over nes_score-descending pathways that keeps a
// pathway only if its evidence-gene Jaccard similarity to every
// already-kept pathway is below a threshold. Grounded on
// pathway_redundancy.py's greedy-keep-if-dissimilar algorithm.
package redundancy

import "github.com/cardiopath/nets/pkg/models"

// DefaultThreshold is the similarity at or above which two pathways are
// considered redundant.
const DefaultThreshold = 0.7

// Jaccard returns |a∩b| / |a∪b| for two evidence-gene sets. Two empty sets
// are defined as having zero similarity (never redundant with anything).
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := toSet(a)
	setB := toSet(b)
	intersection := 0
	for g := range setA {
		if _, ok := setB[g]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}

// Filter walks pathways in the given order (callers pass them already
// sorted by nes_score descending) and keeps each one only if its
// Jaccard similarity to every previously-kept pathway is below threshold.
// Dropped pathways are reported by count, and ranks are re-assigned
// densely over the survivors.
func Filter(pathways []*models.ScoredPathway, threshold float64) (kept []*models.ScoredPathway, droppedCount int) {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	for _, candidate := range pathways {
		redundant := false
		for _, k := range kept {
			if Jaccard(candidate.EvidenceGenes(), k.EvidenceGenes()) >= threshold {
				redundant = true
				break
			}
		}
		if redundant {
			droppedCount++
			candidate.ScoreComponents.RedundancyKept = false
			continue
		}
		candidate.ScoreComponents.RedundancyKept = true
		kept = append(kept, candidate)
	}
	models.AssignDenseRanks(kept)
	return kept, droppedCount
}
