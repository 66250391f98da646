// Package enrichment implements the primary (C6, stage S2a) and secondary
// (C8, stage S2b) pathway enrichment analyzers. Primary enrichment is
// grounded on primary_pathway_analyzer.py: query enrichment over the full
// neighborhood, score preliminary NES, then set aside pathways the
// KnownPathwayProvider reports as known; that check is by pathway ID alone,
// and the seed genes are not part of it. Secondary enrichment is grounded on
// secondary_pathway_analyzer.py's per-primary-pathway reprocessing: for
// each of the top-N primary pathways, re-run enrichment (optionally
// literature-expanded) over that pathway's own member genes, bounded by an
// errgroup fan-out across primaries.
package enrichment

import (
	"context"
	"math"

	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/cardiopath/nets/pkg/providers"
	"golang.org/x/sync/errgroup"
)

// DefaultDBWeights mirrors db_weights from the original configuration: a
// per-source-database multiplier applied to preliminary NES.
var DefaultDBWeights = map[models.SourceDB]float64{
	models.SourceReactome:      1.2,
	models.SourceKEGG:          1.0,
	models.SourceWikiPathways:  0.9,
	models.SourceGOBiologicalP: 0.8,
	models.SourceGOMolecularF:  0.7,
	models.SourceGOCellularC:   0.6,
}

// PreliminaryNES computes NES = -log10(p_adj) * evidence_count * db_weight,
// clamping -log10(p_adj) at 50 to avoid extreme scores for p_adj reported
// as exactly zero.
func PreliminaryNES(p PathwayLike, dbWeights map[models.SourceDB]float64) float64 {
	logP := 50.0
	if p.PAdjValue() > 0 {
		logP = math.Min(-math.Log10(p.PAdjValue()), 50.0)
	}
	weight, ok := dbWeights[p.SourceDBValue()]
	if !ok {
		weight = 1.0
	}
	return logP * float64(p.EvidenceCountValue()) * weight
}

// PathwayLike is implemented by models.PathwayEntry; it exists only so
// PreliminaryNES can be exercised directly in tests without constructing a
// full entry.
type PathwayLike interface {
	PAdjValue() float64
	SourceDBValue() models.SourceDB
	EvidenceCountValue() int
}

type pathwayAdapter struct{ models.PathwayEntry }

func (p pathwayAdapter) PAdjValue() float64              { return p.PAdj }
func (p pathwayAdapter) SourceDBValue() models.SourceDB  { return p.SourceDB }
func (p pathwayAdapter) EvidenceCountValue() int         { return p.EvidenceCount }

// PrimaryAnalyzer implements C6: enrichment across the full functional
// neighborhood, scored and filtered against known pathways.
type PrimaryAnalyzer struct {
	Enrichment   providers.EnrichmentProvider
	KnownPathway providers.KnownPathwayProvider
	Limiter      *resilience.Limiter
	Sources      []models.SourceDB
	DBWeights    map[models.SourceDB]float64
}

// PrimaryResult is the S2a output.
type PrimaryResult struct {
	Primary []models.ScoredPathwayEntry
	Known   []models.ScoredPathwayEntry
}

// Analyze runs primary enrichment for the given neighborhood, scores
// preliminary NES, and partitions pathways into primary (novel) vs. known.
func (a *PrimaryAnalyzer) Analyze(ctx context.Context, nb models.Neighborhood) (PrimaryResult, error) {
	weights := a.DBWeights
	if weights == nil {
		weights = DefaultDBWeights
	}

	genes := nb.AllSymbols()
	entries, err := resilience.Call(ctx, a.Limiter, "enrichment_provider", func(ctx context.Context) ([]models.PathwayEntry, error) {
		return a.Enrichment.Enrich(ctx, genes, a.Sources)
	})
	if err != nil {
		return PrimaryResult{}, models.WithStage(models.WithProvider(err, "enrichment"), models.StageS2aPrimaryEnrichment)
	}

	seedSet := nb.SeedSymbols()
	seedSymbols := make([]string, 0, len(seedSet))
	for s := range seedSet {
		seedSymbols = append(seedSymbols, s)
	}

	scored := make([]models.ScoredPathwayEntry, 0, len(entries))
	for _, e := range entries {
		nes := PreliminaryNES(pathwayAdapter{e}, weights)
		contributing := overlappingOrAll(e.EvidenceGenes, seedSet, seedSymbols)
		scored = append(scored, models.ScoredPathwayEntry{
			PathwayEntry:          e,
			PreliminaryNES:        nes,
			ContributingSeedGenes: contributing,
		})
	}

	var primary, known []models.ScoredPathwayEntry
	for _, p := range scored {
		isKnown, err := resilience.Call(ctx, a.Limiter, "known_pathway_provider", func(ctx context.Context) (bool, error) {
			return a.KnownPathway.IsKnown(ctx, p.ID)
		})
		if err != nil {
			// provider degradation here should not fail the whole stage: treat as
			// not-known and let downstream confidence scoring reflect the gap.
			isKnown = false
		}
		if isKnown {
			known = append(known, p)
		} else {
			primary = append(primary, p)
		}
	}

	return PrimaryResult{Primary: primary, Known: known}, nil
}

func overlappingOrAll(evidenceGenes []string, seedSet map[string]struct{}, allSeeds []string) []string {
	var overlap []string
	for _, g := range evidenceGenes {
		if _, ok := seedSet[g]; ok {
			overlap = append(overlap, g)
		}
	}
	if len(overlap) > 0 {
		return overlap
	}
	return allSeeds
}

// SecondaryAnalyzer implements C8: per-primary-pathway reprocessing,
// optionally literature-expanded, bounded by errgroup across the top-N
// primary pathways.
type SecondaryAnalyzer struct {
	Enrichment   providers.EnrichmentProvider
	KnownPathway providers.KnownPathwayProvider
	Limiter      *resilience.Limiter
	Sources      []models.SourceDB
	DBWeights    map[models.SourceDB]float64
	MaxWorkers   int
	// Expand, if set, returns additional genes to merge into a primary
	// pathway's member-gene list before re-querying enrichment (the
	// literature-expansion hook from C7). Nil disables expansion.
	Expand func(ctx context.Context, primary models.ScoredPathwayEntry) ([]string, error)
}

// Analyze reprocesses each of the given top-N primary pathways
// independently and returns the secondary entries of all primaries as one
// flat list in primary order, each tagged with its SourcePrimaryPathway.
func (a *SecondaryAnalyzer) Analyze(ctx context.Context, primaries []models.ScoredPathwayEntry, knownIDs map[string]struct{}) ([]models.ScoredPathwayEntry, error) {
	weights := a.DBWeights
	if weights == nil {
		weights = DefaultDBWeights
	}
	maxWorkers := a.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	perPrimary := make([][]models.ScoredPathwayEntry, len(primaries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)

	for i, primary := range primaries {
		i, primary := i, primary
		g.Go(func() error {
			genes := append([]string(nil), primary.EvidenceGenes...)
			if a.Expand != nil {
				expanded, err := a.Expand(gctx, primary)
				if err == nil {
					genes = dedupStrings(append(genes, expanded...))
				}
			}

			entries, err := resilience.Call(gctx, a.Limiter, "enrichment_provider", func(ctx context.Context) ([]models.PathwayEntry, error) {
				return a.Enrichment.Enrich(ctx, genes, a.Sources)
			})
			if err != nil {
				return nil // per-primary enrichment failure is tolerated; S2c sees fewer secondaries
			}

			var secondaries []models.ScoredPathwayEntry
			for _, e := range entries {
				if _, known := knownIDs[e.ID]; known {
					continue
				}
				nes := PreliminaryNES(pathwayAdapter{e}, weights)
				secondaries = append(secondaries, models.ScoredPathwayEntry{
					PathwayEntry:          e,
					PreliminaryNES:        nes,
					ContributingSeedGenes: primary.ContributingSeedGenes,
					SourcePrimaryPathway:  primary.ID,
				})
			}
			perPrimary[i] = secondaries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, models.WithStage(err, models.StageS2bSecondaryTriage)
	}

	var out []models.ScoredPathwayEntry
	for _, s := range perPrimary {
		out = append(out, s...)
	}
	return out, nil
}

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}
