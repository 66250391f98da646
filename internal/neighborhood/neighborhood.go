// Package neighborhood implements the functional neighborhood builder
// (C5, stage S1): a bounded-parallel fan-out of per-seed interaction
// queries followed by a non-redundant union, grounded on
// functional_neighborhood.py's ThreadPoolExecutor fan-out and dedup-union
// logic, translated to an errgroup.Group-bounded fan-out per seed.
package neighborhood

import (
	"context"
	"errors"
	"sort"

	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/cardiopath/nets/pkg/providers"
	"golang.org/x/sync/errgroup"
)

// Builder assembles a Neighborhood from seed genes by querying an
// InteractionProvider in parallel, bounded by MaxWorkers.
type Builder struct {
	Provider      providers.InteractionProvider
	Limiter       *resilience.Limiter
	MaxWorkers    int
	MinConfidence float64
	ProviderTag   string
}

// New constructs a Builder. maxWorkers <= 0 defaults to 4, mirroring
// functional_neighborhood.py's default.
func New(provider providers.InteractionProvider, limiter *resilience.Limiter, maxWorkers int, minConfidence float64) *Builder {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Builder{Provider: provider, Limiter: limiter, MaxWorkers: maxWorkers, MinConfidence: minConfidence, ProviderTag: "interaction_provider"}
}

type seedResult struct {
	seed         models.Gene
	interactions []models.Interaction
	err          error
}

// Build queries interactions for every seed in seeds concurrently (bounded
// by b.MaxWorkers) and returns the deduplicated union as a Neighborhood. A
// per-seed query failure does not fail the whole build: it's recorded as a
// zero-neighbor result for that seed, matching the original's
// store-empty-result-on-error behavior, and the stage layer surfaces it as
// a warning.
func (b *Builder) Build(ctx context.Context, seeds []models.Gene) (models.Neighborhood, []string, error) {
	if len(seeds) == 0 {
		return models.Neighborhood{}, nil, models.NewError(models.KindInvalidInput, errTooFewSeeds)
	}

	results := make([]seedResult, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.MaxWorkers)

	for i, seed := range seeds {
		i, seed := i, seed
		g.Go(func() error {
			interactions, err := resilience.Call(gctx, b.Limiter, b.ProviderTag, func(ctx context.Context) ([]models.Interaction, error) {
				return b.Provider.Interactions(ctx, seed.Symbol, b.MinConfidence)
			})
			results[i] = seedResult{seed: seed, interactions: interactions, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Neighborhood{}, nil, models.WithStage(err, models.StageS1Neighborhood)
	}

	return unionResults(seeds, results)
}

var errTooFewSeeds = errors.New("at least one seed gene is required")

func unionResults(seeds []models.Gene, results []seedResult) (models.Neighborhood, []string, error) {
	seedSet := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		seedSet[s.Symbol] = struct{}{}
	}

	neighborSet := make(map[string]models.Gene)
	edgeSet := make(map[string]models.Interaction)
	contributions := make(map[string]int)
	sources := make(map[string]map[string]bool)
	var warnings []string

	for _, r := range results {
		if r.err != nil {
			warnings = append(warnings, "failed to query neighbors for "+r.seed.Symbol+": "+r.err.Error())
			continue
		}
		newForSeed := 0
		for _, edge := range r.interactions {
			other := edge.GeneB
			if other == r.seed.Symbol {
				other = edge.GeneA
			}
			if _, isSeed := seedSet[other]; isSeed {
				continue // seeds never appear in Neighbors per S1 invariant
			}
			if _, exists := neighborSet[other]; !exists {
				neighborSet[other] = models.Gene{Symbol: other, Species: r.seed.Species}
				newForSeed++
			}
			if srcSet, ok := sources[other]; ok {
				srcSet[r.seed.Symbol] = true
			} else {
				sources[other] = map[string]bool{r.seed.Symbol: true}
			}
			key := edge.EdgeKey()
			if existing, ok := edgeSet[key]; !ok || edge.CombinedScore > existing.CombinedScore {
				edgeSet[key] = edge
			}
		}
		contributions[r.seed.Symbol] = newForSeed
	}

	neighbors := make([]models.Gene, 0, len(neighborSet))
	for _, g := range neighborSet {
		neighbors = append(neighbors, g)
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Symbol < neighbors[j].Symbol })

	interactions := make([]models.Interaction, 0, len(edgeSet))
	for _, e := range edgeSet {
		interactions = append(interactions, e)
	}
	sort.Slice(interactions, func(i, j int) bool { return interactions[i].EdgeKey() < interactions[j].EdgeKey() })

	degree := make(map[string]int)
	for _, e := range interactions {
		degree[e.GeneA]++
		degree[e.GeneB]++
	}

	return models.Neighborhood{
		Seeds:         seeds,
		Neighbors:     neighbors,
		Interactions:  interactions,
		Contributions: contributions,
		Sources:       sources,
		Degree:        degree,
	}, warnings, nil
}
