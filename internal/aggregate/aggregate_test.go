package aggregate

import (
	"testing"

	"github.com/cardiopath/nets/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestFishersCombinedProbability_EmptyIsOne(t *testing.T) {
	require.Equal(t, 1.0, FishersCombinedProbability(nil))
}

func TestFishersCombinedProbability_StrongerEvidenceLowersP(t *testing.T) {
	weak := FishersCombinedProbability([]float64{0.04, 0.04})
	strong := FishersCombinedProbability([]float64{0.001, 0.001})
	require.Less(t, strong, weak)
}

func TestConsistencyScore_SingleValueIsPerfectlyConsistent(t *testing.T) {
	require.Equal(t, 1.0, ConsistencyScore([]float64{5.0}))
}

func TestConsistencyScore_HighVarianceLowersScore(t *testing.T) {
	tight := ConsistencyScore([]float64{10, 10.5, 9.5})
	loose := ConsistencyScore([]float64{1, 50, 100})
	require.Greater(t, tight, loose)
}

func TestConfidenceScore_WeightsSumToOne(t *testing.T) {
	// All factors maxed out should yield confidence 1.0.
	c := ConfidenceScore(1.0, 0.0, 100.0, 1.0)
	require.InDelta(t, 1.0, c, 1e-9)
}

func TestPreFilter_DropsWeakEvidence(t *testing.T) {
	in := []models.ScoredPathwayEntry{
		{PathwayEntry: models.PathwayEntry{ID: "keep", PAdj: 0.01}, PreliminaryNES: 5},
		{PathwayEntry: models.PathwayEntry{ID: "weak_p", PAdj: 0.5}, PreliminaryNES: 5},
		{PathwayEntry: models.PathwayEntry{ID: "weak_nes", PAdj: 0.01}, PreliminaryNES: 0.1},
	}
	out := PreFilter(in, DefaultConfig())
	require.Len(t, out, 1)
	require.Equal(t, "keep", out[0].ID)
}

func TestAggregate_FallsBackToPrimariesWhenNoSecondaries(t *testing.T) {
	primaries := []models.ScoredPathwayEntry{
		{PathwayEntry: models.PathwayEntry{ID: "P1", Name: "one"}, PreliminaryNES: 10, ContributingSeedGenes: []string{"TP53"}},
	}
	out := Aggregate(nil, 1, primaries, DefaultConfig())
	require.Len(t, out, 1)
	require.True(t, out[0].Fallback)
	require.Equal(t, "P1", out[0].Pathway.ID)
}

func TestAggregate_CombinesMultipleInstancesOfSamePathway(t *testing.T) {
	secondaries := []models.ScoredPathwayEntry{
		{PathwayEntry: models.PathwayEntry{ID: "R1", Name: "r1", PAdj: 0.01, EvidenceCount: 5, SourceDB: models.SourceReactome}, PreliminaryNES: 20, SourcePrimaryPathway: "P1"},
		{PathwayEntry: models.PathwayEntry{ID: "R1", Name: "r1", PAdj: 0.02, EvidenceCount: 4, SourceDB: models.SourceReactome}, PreliminaryNES: 18, SourcePrimaryPathway: "P2"},
	}
	cfg := DefaultConfig()
	cfg.MaxCombinedPValue = 1.0
	cfg.MinConfidence = 0
	out := Aggregate(secondaries, 2, nil, cfg)
	require.Len(t, out, 1)
	require.Equal(t, 2, out[0].SupportCount)
	require.Equal(t, 1.0, out[0].SupportFraction)
}
