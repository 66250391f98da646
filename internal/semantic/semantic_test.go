package semantic

import (
	"context"
	"regexp"
	"testing"

	"github.com/cardiopath/nets/pkg/models"
	"github.com/stretchr/testify/require"
)

func testKeywords() Keywords {
	return Keywords{
		DirectCardiac:     []string{"cardiac", "myocardial"},
		CardiacProcesses:  []string{"contraction", "conduction"},
		Disease:           []string{"heart failure", "cardiomyopathy"},
		NameLevelCardiac:  []string{"cardiac", "heart"},
		NegativeTerms:     []string{"unrelated"},
		CardiacNamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`cardio\w*`),
			regexp.MustCompile(`myocardi\w*`),
		},
		ApprovedNameTerms: []string{"cardiac", "heart", "cardiovascular"},
	}
}

func TestCalculateRelevance_NonCardiacNameScoresLow(t *testing.T) {
	s := CalculateRelevance("generic metabolic pathway", testKeywords())
	// No keyword matches leaves the normalization baseline, (0.5/1.35)^1.2 ≈ 0.304.
	require.Less(t, s.Overall, 0.31)
}

func TestCalculateRelevance_CardiacDiseaseNameScoresHigh(t *testing.T) {
	s := CalculateRelevance("cardiac myocardial heart failure cardiomyopathy signaling", testKeywords())
	require.Greater(t, s.Overall, 0.3)
}

func TestCalculateRelevance_NegativePenaltyLowersScore(t *testing.T) {
	withNeg := CalculateRelevance("cardiac unrelated pathway", testKeywords())
	without := CalculateRelevance("cardiac pathway", testKeywords())
	require.Less(t, withNeg.Overall, without.Overall)
}

func TestApplyBoost_MultipliesNESByOnePlusRelevance(t *testing.T) {
	pathways := []*models.ScoredPathway{
		{NESScore: 10, Aggregated: models.AggregatedPathway{Pathway: models.PathwayEntry{ID: "a", Name: "cardiac myocardial heart disease"}}},
		{NESScore: 10, Aggregated: models.AggregatedPathway{Pathway: models.PathwayEntry{ID: "b", Name: "generic metabolism"}}},
	}
	err := ApplyBoost(context.Background(), pathways, testKeywords(), 2)
	require.NoError(t, err)

	var cardiac, generic *models.ScoredPathway
	for _, p := range pathways {
		if p.Aggregated.Pathway.ID == "a" {
			cardiac = p
		} else {
			generic = p
		}
	}
	require.Greater(t, cardiac.NESScore, generic.NESScore)
	require.Equal(t, 1, cardiac.Rank)
}

func TestTieredFilter_KeepsTopThirtyUnconditionally(t *testing.T) {
	var pathways []*models.ScoredPathway
	for i := 1; i <= 35; i++ {
		pathways = append(pathways, &models.ScoredPathway{Rank: i, Aggregated: models.AggregatedPathway{Pathway: models.PathwayEntry{Name: "generic pathway"}}})
	}
	kept, dropped := TieredFilter(pathways, testKeywords())
	require.GreaterOrEqual(t, len(kept), 30)
	require.Equal(t, 5, dropped)
}

func TestStrictNameFilter_DropsNamesWithoutCardiacTerm(t *testing.T) {
	pathways := []*models.ScoredPathway{
		{Aggregated: models.AggregatedPathway{Pathway: models.PathwayEntry{Name: "cardiac conduction pathway"}}},
		{Aggregated: models.AggregatedPathway{Pathway: models.PathwayEntry{Name: "generic lipid metabolism"}}},
	}
	kept, dropped := StrictNameFilter(pathways, testKeywords())
	require.Len(t, kept, 1)
	require.Equal(t, 1, dropped)
}
