// Package scoring implements the final scorer (C10, stage S3): a composite
// NES combining statistical significance, evidence count, database weight,
// a support-based aggregation weight, and the confidence score from
// aggregation, followed by dense rank assignment.
package scoring

import (
	"math"

	"github.com/cardiopath/nets/internal/enrichment"
	"github.com/cardiopath/nets/pkg/models"
)

// Score computes nes_score and its components for a single aggregated
// pathway:
//
//	base       = min(-log10(max(p_adj, 1e-50)), 50) * evidence_count * db_weight
//	agg_weight = 1 + log(support_count+1) * 0.25
//	nes_score  = base * agg_weight * (0.5 + 0.5*confidence_score)
func Score(agg models.AggregatedPathway, dbWeights map[models.SourceDB]float64) *models.ScoredPathway {
	if dbWeights == nil {
		dbWeights = enrichment.DefaultDBWeights
	}
	weight, ok := dbWeights[agg.Pathway.SourceDB]
	if !ok {
		weight = 1.0
	}

	logP := math.Min(-math.Log10(math.Max(agg.Pathway.PAdj, 1e-50)), 50.0)
	base := logP * float64(agg.Pathway.EvidenceCount) * weight
	aggWeight := 1 + math.Log(float64(agg.SupportCount)+1)*0.25
	nesScore := base * aggWeight * (0.5 + 0.5*agg.ConfidenceScore)

	return &models.ScoredPathway{
		Aggregated: agg,
		NESScore:   nesScore,
		ScoreComponents: models.ScoreComponents{
			BaseNES:              base,
			AggregationWeight:    aggWeight,
			ConfidenceMultiplier: 0.5 + 0.5*agg.ConfidenceScore,
		},
	}
}

// ScoreAll scores every aggregated pathway and assigns dense ranks by
// descending nes_score.
func ScoreAll(aggregated []models.AggregatedPathway, dbWeights map[models.SourceDB]float64) []*models.ScoredPathway {
	scored := make([]*models.ScoredPathway, 0, len(aggregated))
	for _, agg := range aggregated {
		scored = append(scored, Score(agg, dbWeights))
	}
	models.AssignDenseRanks(scored)
	return scored
}
