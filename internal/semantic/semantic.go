// Package semantic implements the semantic relevance filter (C11, stage
// S4a), the redundancy-adjacent tiered adaptive filter, and the mandatory
// strict name filter (S5c). Category weights, caps, fuzzy-pattern boost
// distribution, and the normalization formula are grounded line-for-line
// on semantic_filter.py's calculate_cardiac_relevance and
// apply_intelligent_filtering. Keyword sets themselves are supplied
// externally (Config) rather than hardcoded, so the curated keyword-list
// content can be refreshed without a code change.
package semantic

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/cardiopath/nets/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Keywords holds the externally-supplied curated term sets driving
// category scoring.
type Keywords struct {
	DirectCardiac     []string
	CardiacProcesses  []string
	Disease           []string
	NameLevelCardiac  []string
	NegativeTerms     []string
	FuzzyPatterns     []*regexp.Regexp
	CardiacNamePatterns []*regexp.Regexp // cardio*, myocardi*, coronar*, heart \w+, etc.
	ApprovedNameTerms []string          // explicit substrings accepted by the S5c mandatory filter
	DiseaseSynonyms   []string          // optional disease-context synonym boost terms
}

// Scores is the per-category breakdown plus the normalized overall
// relevance, mirroring calculate_cardiac_relevance's return dict.
type Scores struct {
	Overall           float64
	DirectCardiac     float64
	CardiacProcesses  float64
	Disease           float64
	NameLevelCardiac  float64
	NegativePenalty   float64
}

func countMatches(text string, terms []string) int {
	count := 0
	for _, term := range terms {
		if strings.Contains(text, strings.ToLower(term)) {
			count++
		}
	}
	return count
}

// CalculateRelevance scores a pathway's cardiac/disease relevance from its
// name alone, following the original's category caps, fuzzy pattern boost
// distribution, and power-1.2 normalization.
func CalculateRelevance(name string, kw Keywords) Scores {
	text := strings.ToLower(name)

	direct := min(float64(countMatches(text, kw.DirectCardiac))*0.02, 0.10)
	processes := min(float64(countMatches(text, kw.CardiacProcesses))*0.03, 0.15)
	disease := min(float64(countMatches(text, kw.Disease))*0.08, 0.40)
	nameCardiac := min(float64(countMatches(text, kw.NameLevelCardiac))*0.05, 0.15)
	penalty := -min(float64(countMatches(text, kw.NegativeTerms))*0.10, 0.50)

	fuzzyMatches := 0
	for _, p := range kw.FuzzyPatterns {
		if p.MatchString(text) {
			fuzzyMatches++
		}
	}
	if fuzzyMatches > 0 {
		fuzzyBoost := min(float64(fuzzyMatches)*0.01, 0.05)
		disease = min(disease+fuzzyBoost*0.65, 0.40)
		nameCardiac = min(nameCardiac+fuzzyBoost*0.15, 0.15)
		processes = min(processes+fuzzyBoost*0.12, 0.15)
		direct = min(direct+fuzzyBoost*0.08, 0.10)
	}

	if len(kw.DiseaseSynonyms) > 0 {
		synMatches := countMatches(text, kw.DiseaseSynonyms)
		if synMatches > 0 {
			diseaseBoost := min(float64(synMatches)*0.05, 0.15)
			disease = min(disease+diseaseBoost*0.75, 0.40)
			nameCardiac = min(nameCardiac+diseaseBoost*0.13, 0.15)
			processes = min(processes+diseaseBoost*0.08, 0.15)
			direct = min(direct+diseaseBoost*0.04, 0.10)
		}
	}

	raw := direct + processes + disease + nameCardiac + penalty
	shifted := raw + 0.5
	normalized := max(0.0, min(shifted/1.35, 1.0))
	overall := math.Pow(normalized, 1.2)

	return Scores{
		Overall:          overall,
		DirectCardiac:    direct,
		CardiacProcesses: processes,
		Disease:          disease,
		NameLevelCardiac: nameCardiac,
		NegativePenalty:  penalty,
	}
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// ApplyBoost multiplies each pathway's nes_score by (1 + relevance) and
// records SemanticRelevance in score_components, re-ranking densely
// afterward. Scoring is fanned out across pathways bounded by maxWorkers,
// matching apply_semantic_boost_parallel's per-hypothesis worker pool.
func ApplyBoost(ctx context.Context, pathways []*models.ScoredPathway, kw Keywords, maxWorkers int) error {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for _, p := range pathways {
		p := p
		g.Go(func() error {
			scores := CalculateRelevance(p.Aggregated.Pathway.Name, kw)
			p.ScoreComponents.SemanticRelevance = scores.Overall
			p.NESScore = p.NESScore * (1 + scores.Overall)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.WithStage(err, models.StageS4aSemanticFilter)
	}
	models.AssignDenseRanks(pathways)
	return nil
}

// TieredFilter applies the rank-dependent adaptive threshold:
// ranks 1-30 kept unconditionally, 31-100 kept if relevance>=0.30 or the
// name contains an explicit cardiac term, 101-150 kept if relevance>=0.50,
// beyond 150 dropped. Pathways must already be densely ranked by nes_score.
func TieredFilter(pathways []*models.ScoredPathway, kw Keywords) (kept []*models.ScoredPathway, droppedCount int) {
	for _, p := range pathways {
		switch {
		case p.Rank <= 30:
			kept = append(kept, p)
		case p.Rank <= 100:
			if p.ScoreComponents.SemanticRelevance >= 0.30 || containsExplicitCardiacTerm(p.Aggregated.Pathway.Name, kw) {
				kept = append(kept, p)
			} else {
				droppedCount++
			}
		case p.Rank <= 150:
			if p.ScoreComponents.SemanticRelevance >= 0.50 {
				kept = append(kept, p)
			} else {
				droppedCount++
			}
		default:
			droppedCount++
		}
	}
	models.AssignDenseRanks(kept)
	return kept, droppedCount
}

func containsExplicitCardiacTerm(name string, kw Keywords) bool {
	lower := strings.ToLower(name)
	for _, t := range kw.NameLevelCardiac {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return matchesAny(lower, kw.CardiacNamePatterns)
}

// StrictNameFilter implements the mandatory final name filter (S5c):
// a pathway survives only if its name contains an approved
// cardiac/cardiovascular substring or matches one of the cardiac name
// regex stems, regardless of how high it scored upstream.
func StrictNameFilter(pathways []*models.ScoredPathway, kw Keywords) (kept []*models.ScoredPathway, droppedCount int) {
	for _, p := range pathways {
		name := strings.ToLower(p.Aggregated.Pathway.Name)
		if containsAny(name, kw.ApprovedNameTerms) || matchesAny(name, kw.CardiacNamePatterns) {
			kept = append(kept, p)
		} else {
			droppedCount++
		}
	}
	models.AssignDenseRanks(kept)
	return kept, droppedCount
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
