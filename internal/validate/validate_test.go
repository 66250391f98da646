package validate

import (
	"context"
	"testing"

	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/stretchr/testify/require"
)

type stubTissue struct {
	ratios map[string]float64
}

func (s stubTissue) ExpressionRatio(ctx context.Context, symbol, tissue string) (float64, error) {
	if r, ok := s.ratios[symbol]; ok {
		return r, nil
	}
	return 0, errNotFound
}

var errNotFound = errNotFoundErr{}

type errNotFoundErr struct{}

func (errNotFoundErr) Error() string { return "not found" }

func newPathway(genes []string) *models.ScoredPathway {
	return &models.ScoredPathway{Aggregated: models.AggregatedPathway{
		Pathway: models.PathwayEntry{EvidenceGenes: genes},
	}}
}

func TestDruggability_TiersByRatioAndApprovedCount(t *testing.T) {
	v := &Validators{Cfg: Config{Druggability: DruggabilitySets{
		Approved:  map[string]struct{}{"A": {}, "B": {}},
		Druggable: map[string]struct{}{"A": {}, "B": {}, "C": {}},
	}}}
	p := newPathway([]string{"A", "B", "C", "D"})
	v.druggability(p)
	require.Equal(t, "high", p.ScoreComponents.DruggabilityTier)
	require.InDelta(t, 0.75, p.ScoreComponents.DruggableRatio, 1e-9)
}

func TestDruggability_LowTierWhenNoMatches(t *testing.T) {
	v := &Validators{Cfg: Config{}}
	p := newPathway([]string{"X", "Y"})
	v.druggability(p)
	require.Equal(t, "low", p.ScoreComponents.DruggabilityTier)
}

func TestTissueExpression_UsesFallbackWhenProviderHasNoData(t *testing.T) {
	v := &Validators{
		Tissue:  stubTissue{},
		Limiter: resilience.NewLimiter(resilience.Policy{MaxAttempts: 1}),
		Cfg: Config{
			MinExpressionRatio: 0.3,
			Tissue:             "heart",
			FallbackExpressed:  map[string]struct{}{"A": {}},
		},
	}
	p := newPathway([]string{"A", "B"})
	v.tissueExpression(context.Background(), p)
	require.InDelta(t, 0.5, p.ScoreComponents.TissueExpressionRatio, 1e-9)
}

func TestPermutationTest_HighOverlapYieldsLowPValue(t *testing.T) {
	nb := models.Neighborhood{
		Seeds:     []models.Gene{{Symbol: "S1"}},
		Neighbors: []models.Gene{{Symbol: "N1"}, {Symbol: "N2"}, {Symbol: "N3"}},
		Degree:    map[string]int{"S1": 3, "N1": 1, "N2": 1, "N3": 1},
	}
	v := &Validators{Cfg: Config{MinPermutations: 10, MaxPermutations: 20}}
	p := newPathway([]string{"S1", "N1", "N2", "N3"})
	v.permutationTest(p, nb)
	require.Greater(t, p.ScoreComponents.PermutationPValue, 0.0)
}
