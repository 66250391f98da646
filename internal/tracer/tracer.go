// Package tracer implements the seed tracer (C14, stage S5b): copying
// contributing seed genes onto each ScoredPathway, then, for the top-M
// specific (non-generic) pathways, searching literature for
// pathway/seed/cardiac co-mentions per seed gene. Grounded on
// seed_gene_tracer.py; per-seed search is fanned out with an
// errgroup-bounded worker pool.
package tracer

import (
	"context"
	"fmt"
	"strings"

	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/cardiopath/nets/pkg/providers"
	"golang.org/x/sync/errgroup"
)

// Config tunes the tracer.
type Config struct {
	TopM               int
	SearchLimit        int
	GenericNameTerms   []string // disallow list: pathway names equal to, or ending in " "+term of, these are "generic" and skipped
	MaxPMIDsPerSeed    int
}

// DefaultGenericNameTerms lists overly generic pathway names unlikely to
// have meaningful, specific literature co-mentions.
var DefaultGenericNameTerms = []string{
	"system process",
	"multicellular organismal process",
	"biological process",
	"cellular process",
	"metabolic process",
	"single-organism process",
	"biological regulation",
	"regulation of biological process",
	"cellular component organization",
	"localization",
	"response to stimulus",
	"developmental process",
	"multicellular organism development",
	"anatomical structure development",
	"cell differentiation",
	"tissue development",
	"organ development",
}

// DefaultConfig returns the standard tracing parameters.
func DefaultConfig() Config {
	return Config{
		TopM:             10,
		SearchLimit:      10,
		MaxPMIDsPerSeed:  3,
		GenericNameTerms: DefaultGenericNameTerms,
	}
}

// Tracer wraps the literature provider used for seed co-mention search.
type Tracer struct {
	Literature providers.LiteratureProvider
	Limiter    *resilience.Limiter
	Cfg        Config
}

// Trace copies contributing_seed_genes onto traced_seed_genes for every
// pathway, then runs literature co-mention search for the top M specific
// pathways (by current rank). Pathways beyond the top M, or whose name
// matches the generic disallow list, are marked Checked=false.
func (t *Tracer) Trace(ctx context.Context, pathways []*models.ScoredPathway) error {
	for _, p := range pathways {
		p.TracedSeedGenes = append([]string(nil), p.Aggregated.ContributingSeedGenes...)
	}

	topM := t.Cfg.TopM
	if topM <= 0 {
		topM = len(pathways)
	}

	var specific []*models.ScoredPathway
	for _, p := range pathways {
		if !isGeneric(p.Aggregated.Pathway.Name, t.Cfg.GenericNameTerms) {
			specific = append(specific, p)
		}
	}
	if len(specific) > topM {
		specific = specific[:topM]
	}
	candidates := specific

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, p := range candidates {
		p := p
		g.Go(func() error {
			t.traceOne(gctx, p)
			return nil
		})
	}
	return models.WithStage(g.Wait(), models.StageS5bSeedTracing)
}

func (t *Tracer) traceOne(ctx context.Context, p *models.ScoredPathway) {
	citationCount := make(map[string]int)
	pmidsBySeed := make(map[string][]string)
	anySupport := false

	for _, seed := range p.TracedSeedGenes {
		query := fmt.Sprintf(`"%s"[Title/Abstract] AND "%s"[Title/Abstract] AND (cardiac OR heart)`, p.Aggregated.Pathway.Name, seed)
		papers, err := resilience.Call(ctx, t.Limiter, "literature_provider", func(ctx context.Context) ([]models.LiteraturePaper, error) {
			return t.Literature.Search(ctx, query, t.Cfg.SearchLimit)
		})
		if err != nil || len(papers) == 0 {
			continue
		}
		pmids := make([]string, len(papers))
		for i, paper := range papers {
			pmids[i] = paper.PMID
		}
		anySupport = true
		citationCount[seed] = len(pmids)
		limit := t.Cfg.MaxPMIDsPerSeed
		if limit <= 0 || limit > len(pmids) {
			limit = len(pmids)
		}
		pmidsBySeed[seed] = pmids[:limit]
	}

	p.LiteratureAssociations = models.LiteratureAssociations{
		Checked:              true,
		HasLiteratureSupport: anySupport,
		CitationCountBySeed:  citationCount,
		PMIDsBySeed:          pmidsBySeed,
	}
}

func isGeneric(name string, disallow []string) bool {
	if name == "" {
		return true
	}
	lower := strings.ToLower(name)
	for _, term := range disallow {
		term = strings.ToLower(term)
		if lower == term || strings.HasSuffix(lower, " "+term) {
			return true
		}
	}
	return false
}
