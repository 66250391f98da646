package scoring

import (
	"testing"

	"github.com/cardiopath/nets/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestScore_ComputesExpectedFormula(t *testing.T) {
	agg := models.AggregatedPathway{
		Pathway:         models.PathwayEntry{PAdj: 0.01, EvidenceCount: 4, SourceDB: models.SourceKEGG},
		SupportCount:    2,
		ConfidenceScore: 0.8,
	}
	sp := Score(agg, nil)
	require.InDelta(t, 0.5+0.5*0.8, sp.ScoreComponents.ConfidenceMultiplier, 1e-9)
	require.Greater(t, sp.NESScore, 0.0)
}

func TestScoreAll_AssignsDenseRanks(t *testing.T) {
	aggregated := []models.AggregatedPathway{
		{Pathway: models.PathwayEntry{ID: "low", PAdj: 0.5, EvidenceCount: 1}, SupportCount: 1, ConfidenceScore: 0.1},
		{Pathway: models.PathwayEntry{ID: "high", PAdj: 0.001, EvidenceCount: 10}, SupportCount: 3, ConfidenceScore: 0.9},
	}
	scored := ScoreAll(aggregated, nil)
	require.Len(t, scored, 2)
	require.Equal(t, 1, scored[0].Rank)
	require.Equal(t, "high", scored[0].Aggregated.Pathway.ID)
	require.Equal(t, 2, scored[1].Rank)
}
