// Package aggregate implements the rigorous cross-primary aggregator (C9,
// stage S2c): grouping secondary-pathway instances by pathway ID,
// combining their p-values with Fisher's method, computing a weighted NES,
// a consistency score, and a confidence score, with pre-filtering and a
// fallback path when no secondaries survive. Line-for-line grounded on
// pathway_aggregator_rigorous.py, using gonum for the chi-squared CDF and
// the mean instead of a hand-rolled incomplete-gamma implementation; the
// population standard deviation is computed in this package.
package aggregate

import (
	"math"
	"sort"

	"github.com/cardiopath/nets/pkg/models"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config holds the aggregator's tunable thresholds.
type Config struct {
	MinPValueForPreFilter float64 // pre-filter: drop pathways with p_adj above this
	MinNESForPreFilter    float64 // pre-filter: drop pathways with |NES| below this
	MinConfidence         float64 // post-filter: drop aggregated pathways below this confidence
	MinSupportCount       int     // post-filter: minimum number of supporting primaries
	MaxCombinedPValue     float64 // post-filter: maximum combined p-value
	TopHypothesesCount    int     // fallback cap when using primaries directly
	DBWeights             map[models.SourceDB]float64
}

// DefaultConfig mirrors the original's hardcoded thresholds.
func DefaultConfig() Config {
	return Config{
		MinPValueForPreFilter: 0.05,
		MinNESForPreFilter:    1.0,
		MinConfidence:         0.1,
		MinSupportCount:       1,
		MaxCombinedPValue:     0.1,
		TopHypothesesCount:    10,
	}
}

// PreFilter drops pathways failing the statistical significance floor
// before the more expensive aggregation step, per
// pathway_aggregator_rigorous.py's _pre_filter_pathways.
func PreFilter(pathways []models.ScoredPathwayEntry, cfg Config) []models.ScoredPathwayEntry {
	out := make([]models.ScoredPathwayEntry, 0, len(pathways))
	for _, p := range pathways {
		pOK := p.PAdj <= cfg.MinPValueForPreFilter
		nesOK := math.Abs(p.PreliminaryNES) >= cfg.MinNESForPreFilter
		if pOK && nesOK {
			out = append(out, p)
		}
	}
	return out
}

// Aggregate groups secondary pathway instances by pathway ID and computes
// statistically rigorous aggregation metrics for each group. If
// secondaries is empty, it falls back to wrapping the given primaries
// directly (support_count=1, confidence 0.5), matching
// _use_primary_pathways_as_final.
func Aggregate(secondaries []models.ScoredPathwayEntry, totalPrimaries int, primaries []models.ScoredPathwayEntry, cfg Config) []models.AggregatedPathway {
	if len(secondaries) == 0 {
		return fallbackFromPrimaries(primaries, cfg)
	}

	groups := groupByID(secondaries)
	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]models.AggregatedPathway, 0, len(ids))
	for _, id := range ids {
		instances := groups[id]
		supportingPrimaries := supportingPrimaryIDs(instances)
		agg := aggregateInstances(id, instances, totalPrimaries, supportingPrimaries, cfg)
		if agg.ConfidenceScore < cfg.MinConfidence {
			continue
		}
		if agg.SupportCount < cfg.MinSupportCount {
			continue
		}
		if agg.CombinedPValue > cfg.MaxCombinedPValue {
			continue
		}
		out = append(out, agg)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ConfidenceScore > out[j].ConfidenceScore })
	return out
}

func groupByID(instances []models.ScoredPathwayEntry) map[string][]models.ScoredPathwayEntry {
	groups := make(map[string][]models.ScoredPathwayEntry)
	for _, inst := range instances {
		groups[inst.ID] = append(groups[inst.ID], inst)
	}
	return groups
}

func supportingPrimaryIDs(instances []models.ScoredPathwayEntry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, inst := range instances {
		if inst.SourcePrimaryPathway == "" {
			continue
		}
		if _, ok := seen[inst.SourcePrimaryPathway]; !ok {
			seen[inst.SourcePrimaryPathway] = struct{}{}
			out = append(out, inst.SourcePrimaryPathway)
		}
	}
	sort.Strings(out)
	return out
}

func aggregateInstances(id string, instances []models.ScoredPathwayEntry, totalPrimaries int, supportingPrimaryIDs []string, cfg Config) models.AggregatedPathway {
	template := instances[0]
	supportCount := len(instances)
	supportFraction := 1.0
	if totalPrimaries > 0 {
		supportFraction = float64(supportCount) / float64(totalPrimaries)
	}

	var pValues, nesValues []float64
	for _, inst := range instances {
		if inst.PAdj > 0 {
			pValues = append(pValues, inst.PAdj)
		}
		nesValues = append(nesValues, inst.PreliminaryNES)
	}

	combinedP := FishersCombinedProbability(pValues)
	weights := computeWeights(instances, cfg.DBWeights)
	aggregatedNES := weightedAverage(nesValues, weights)
	consistency := ConsistencyScore(nesValues)
	confidence := ConfidenceScore(supportFraction, combinedP, aggregatedNES, consistency)

	contributing := uniqueSortedContributing(instances)
	lineage := make([]models.SecondaryPathwayInstance, 0, len(instances))
	for _, inst := range instances {
		lineage = append(lineage, models.SecondaryPathwayInstance{
			PathwayID:             inst.ID,
			PathwayName:           inst.Name,
			SourceDB:              inst.SourceDB,
			PAdj:                  inst.PAdj,
			PreliminaryNES:        inst.PreliminaryNES,
			EvidenceCount:         inst.EvidenceCount,
			ContributingSeedGenes: inst.ContributingSeedGenes,
			SourcePrimaryPathway:  inst.SourcePrimaryPathway,
		})
	}

	return models.AggregatedPathway{
		Pathway: models.PathwayEntry{
			ID:            id,
			Name:          template.Name,
			SourceDB:      template.SourceDB,
			PValue:        template.PValue,
			PAdj:          combinedP,
			EvidenceCount: template.EvidenceCount,
			EvidenceGenes: template.EvidenceGenes,
		},
		SupportCount:            supportCount,
		SourcePrimaryPathways:   supportingPrimaryIDs,
		SourceSecondaryPathways: lineage,
		AggregationScore:        confidence,
		CombinedPValue:          combinedP,
		AggregatedNES:           aggregatedNES,
		ConsistencyScore:        consistency,
		ConfidenceScore:         confidence,
		SupportFraction:         supportFraction,
		ContributingSeedGenes:   contributing,
	}
}

func uniqueSortedContributing(instances []models.ScoredPathwayEntry) []string {
	set := make(map[string]struct{})
	for _, inst := range instances {
		for _, g := range inst.ContributingSeedGenes {
			set[g] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// FishersCombinedProbability combines independent p-values using Fisher's
// method: χ² = -2 Σ ln(p_i), df = 2k, combined_p = 1 - CDF_chi2(χ², df).
func FishersCombinedProbability(pValues []float64) float64 {
	if len(pValues) == 0 {
		return 1.0
	}
	chiSquared := 0.0
	for _, p := range pValues {
		clamped := math.Max(p, 1e-300)
		chiSquared += -2 * math.Log(clamped)
	}
	df := float64(2 * len(pValues))
	dist := distuv.ChiSquared{K: df}
	return 1 - dist.CDF(chiSquared)
}

func computeWeights(instances []models.ScoredPathwayEntry, dbWeights map[models.SourceDB]float64) []float64 {
	weights := make([]float64, len(instances))
	total := 0.0
	for i, inst := range instances {
		pWeight := 10.0
		if inst.PAdj > 0 {
			pWeight = -math.Log10(inst.PAdj)
		}
		evidenceWeight := math.Log(float64(inst.EvidenceCount) + 1)
		dbWeight := 1.0
		if w, ok := dbWeights[inst.SourceDB]; ok {
			dbWeight = w
		}
		w := pWeight * evidenceWeight * dbWeight
		weights[i] = w
		total += w
	}
	if total > 0 {
		for i := range weights {
			weights[i] /= total
		}
	} else {
		uniform := 1.0 / float64(len(weights))
		for i := range weights {
			weights[i] = uniform
		}
	}
	return weights
}

func weightedAverage(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for i, v := range values {
		sum += v * weights[i]
	}
	return sum
}

// ConsistencyScore returns 1 - coefficient_of_variation(values), clamped at
// 0, following _calculate_consistency. A single value is perfectly
// consistent by definition.
func ConsistencyScore(values []float64) float64 {
	if len(values) <= 1 {
		return 1.0
	}
	mean := stat.Mean(values, nil)
	if mean == 0 {
		return 0
	}
	stddev := populationStdDev(values, mean)
	cv := stddev / math.Abs(mean)
	return math.Max(0, 1-cv)
}

// populationStdDev computes the n-denominator (ddof=0) standard deviation,
// matching _calculate_consistency's use of np.std's default. gonum's
// stat.StdDev is the n-1 sample variant, which overstates dispersion for
// the small instance counts (often 2-3) typical here.
func populationStdDev(values []float64, mean float64) float64 {
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// ConfidenceScore combines replication, significance, effect size, and
// consistency with the 0.30/0.30/0.25/0.15 weighting from
// _calculate_confidence_score, normalizing aggregatedNES against an
// assumed ceiling of 100.
func ConfidenceScore(supportFraction, combinedP, aggregatedNES, consistency float64) float64 {
	normNES := math.Min(aggregatedNES/100.0, 1.0)
	return 0.30*supportFraction + 0.30*(1-combinedP) + 0.25*normNES + 0.15*consistency
}

func fallbackFromPrimaries(primaries []models.ScoredPathwayEntry, cfg Config) []models.AggregatedPathway {
	topN := cfg.TopHypothesesCount
	if topN <= 0 || topN > len(primaries) {
		topN = len(primaries)
	}
	out := make([]models.AggregatedPathway, 0, topN)
	for _, p := range primaries[:topN] {
		out = append(out, models.AggregatedPathway{
			Pathway: models.PathwayEntry{
				ID:            p.ID,
				Name:          p.Name,
				SourceDB:      p.SourceDB,
				PValue:        p.PValue,
				PAdj:          p.PAdj,
				EvidenceCount: p.EvidenceCount,
				EvidenceGenes: p.EvidenceGenes,
			},
			SupportCount:          1,
			AggregationScore:      p.PreliminaryNES,
			CombinedPValue:        p.PAdj,
			AggregatedNES:         p.PreliminaryNES,
			ConsistencyScore:      1.0,
			ConfidenceScore:       0.5,
			SupportFraction:       1.0,
			ContributingSeedGenes: p.ContributingSeedGenes,
			Fallback:              true,
		})
	}
	return out
}
