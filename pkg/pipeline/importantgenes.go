package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/pkg/models"
	"golang.org/x/sync/errgroup"
)

type geneAggregate struct {
	symbol          string
	pathwayCount    int
	importanceScore float64
	tier            string // "", "medium", "high"
	druggable       bool
}

// generateImportantGenes implements the top-gene aggregation (S6): each
// evidence gene across the top-N pathways (by current nes_score rank)
// accumulates importance_score += (N-i)/N for its 0-indexed pathway
// position i, a druggability bonus from the highest tier any of its
// pathways reached, and a disease-association bonus queried directly per
// gene. final_score = importance_score * (1 + druggability_bonus +
// 0.75*disease_score). A failed per-gene disease lookup leaves that gene's
// score at 0; the returned error is always nil, and with no pathways or no
// evidence genes the gene list is empty.
func (p *Pipeline) generateImportantGenes(ctx context.Context, pathways []*models.ScoredPathway, cfg Config) ([]models.TopGene, error) {
	topN := cfg.TopNPathwaysForImportantGenes
	if topN <= 0 || topN > len(pathways) {
		topN = len(pathways)
	}
	if topN == 0 {
		return nil, nil
	}
	top := pathways[:topN]

	byGene := make(map[string]*geneAggregate)
	order := make([]string, 0, 64)
	for i, pw := range top {
		weight := float64(topN-i) / float64(topN)
		tier := pw.ScoreComponents.DruggabilityTier
		for _, gene := range pw.EvidenceGenes() {
			agg, ok := byGene[gene]
			if !ok {
				agg = &geneAggregate{symbol: gene}
				byGene[gene] = agg
				order = append(order, gene)
			}
			agg.pathwayCount++
			agg.importanceScore += weight
			switch tier {
			case "high":
				agg.tier = "high"
			case "medium":
				if agg.tier == "" {
					agg.tier = "medium"
				}
			}
			if _, drugg := cfg.Validate.Druggability.Druggable[gene]; drugg {
				agg.druggable = true
			}
		}
	}
	if len(order) == 0 {
		return nil, nil
	}

	diseaseScores := p.geneDiseaseScores(ctx, order, cfg.DiseaseContext)

	genes := make([]models.TopGene, 0, len(order))
	for _, symbol := range order {
		agg := byGene[symbol]
		druggabilityBonus := druggabilityBonus(agg)
		diseaseBonus := diseaseScores[symbol] * 0.75
		finalScore := agg.importanceScore * (1.0 + druggabilityBonus + diseaseBonus)
		genes = append(genes, models.TopGene{
			Symbol:            symbol,
			PathwayCount:      agg.pathwayCount,
			ImportanceScore:   agg.importanceScore,
			DruggabilityBonus: druggabilityBonus,
			DiseaseBonus:      diseaseBonus,
			FinalScore:        finalScore,
		})
	}

	sort.SliceStable(genes, func(i, j int) bool {
		if genes[i].FinalScore != genes[j].FinalScore {
			return genes[i].FinalScore > genes[j].FinalScore
		}
		return genes[i].Symbol < genes[j].Symbol
	})

	limit := cfg.TopNImportantGenes
	if limit <= 0 || limit > len(genes) {
		limit = len(genes)
	}
	return genes[:limit], nil
}

func druggabilityBonus(agg *geneAggregate) float64 {
	switch agg.tier {
	case "high":
		return 1.0
	case "medium":
		return 0.5
	default:
		if agg.druggable {
			return 0.25
		}
		return 0
	}
}

// geneDiseaseScores looks up each gene's disease-association score,
// bounded by an errgroup fan-out; a missing provider or a per-gene failure
// leaves that gene at 0.0 rather than failing the whole aggregation.
func (p *Pipeline) geneDiseaseScores(ctx context.Context, genes []string, disease string) map[string]float64 {
	scores := make(map[string]float64, len(genes))
	if p.providers.DiseaseAssociation == nil || disease == "" {
		return scores
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, gene := range genes {
		gene := gene
		g.Go(func() error {
			score, err := resilience.Call(gctx, p.limiter, "disease_association_provider", func(ctx context.Context) (float64, error) {
				return p.providers.DiseaseAssociation.AssociationScore(ctx, gene, disease)
			})
			if err != nil {
				return nil
			}
			mu.Lock()
			scores[gene] = score
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return scores
}
