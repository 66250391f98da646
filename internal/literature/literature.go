// Package literature implements the literature expander (C7): searching a
// LiteratureProvider for pathway-gene co-mentions, extracting candidate
// gene symbols from each hit's title/abstract text, and scoring them for
// relevance before admitting them into a pathway's expanded gene list.
// Grounded on literature_expansion.py's search -> extract -> score ->
// threshold pipeline; gene-symbol extraction uses the same uppercase-token
// regex, applied to the title+abstract of each returned paper exactly as
// the original's NER pass does.
package literature

import (
	"context"
	"regexp"
	"strings"

	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/cardiopath/nets/pkg/providers"
)

var geneTokenRe = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,9}\b`)

// ExtractGeneTokens pulls candidate gene-symbol-shaped tokens out of free
// text, following literature_expansion.py's simplified NER regex.
func ExtractGeneTokens(text string) []string {
	matches := geneTokenRe.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; !ok {
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// Expander expands a pathway's gene list using literature co-mention
// search, budget-limited per call.
type Expander struct {
	Provider          providers.LiteratureProvider
	Limiter           *resilience.Limiter
	SearchLimit       int     // max PMIDs requested per search
	MinRelevance      float64 // minimum co-mention fraction to admit a gene
	DiseaseKeywords   []string
}

// New constructs an Expander with the given budget and relevance floor.
func New(provider providers.LiteratureProvider, limiter *resilience.Limiter, searchLimit int, minRelevance float64, diseaseKeywords []string) *Expander {
	if searchLimit <= 0 {
		searchLimit = 50
	}
	return &Expander{Provider: provider, Limiter: limiter, SearchLimit: searchLimit, MinRelevance: minRelevance, DiseaseKeywords: diseaseKeywords}
}

// Expand searches literature for pathwayGenes in the context of
// pathwayName and the configured disease keywords, returning the expanded
// gene list and a per-gene PMID evidence map. Evidence relevance is scored
// as the fraction of the gene's own search hits relative to the total hits
// returned for the pathway, matching the original's co-occurrence ratio
// approach.
func (e *Expander) Expand(ctx context.Context, pathwayGenes []string, pathwayName string) (models.LiteratureSupport, error) {
	query := buildQuery(pathwayGenes, pathwayName, e.DiseaseKeywords)
	papers, err := resilience.Call(ctx, e.Limiter, "literature_provider", func(ctx context.Context) ([]models.LiteraturePaper, error) {
		return e.Provider.Search(ctx, query, e.SearchLimit)
	})
	if err != nil {
		return models.LiteratureSupport{}, models.WithProvider(err, "literature")
	}
	if len(papers) == 0 {
		return models.LiteratureSupport{}, nil
	}

	existing := toSet(pathwayGenes)
	evidence := make(map[string][]string)
	var expanded []string
	for _, gene := range ExtractGeneTokens(paperText(papers)) {
		if _, already := existing[gene]; already {
			continue
		}
		relevance, genePMIDs, err := e.geneRelevance(ctx, gene, pathwayName, len(papers))
		if err != nil || relevance < e.MinRelevance {
			continue
		}
		expanded = append(expanded, gene)
		evidence[gene] = genePMIDs
	}

	return models.LiteratureSupport{ExpandedGenes: expanded, EvidenceByGene: evidence}, nil
}

// paperText concatenates every paper's title and abstract, the same text
// literature_expansion.py's NER pass scans for candidate gene symbols.
func paperText(papers []models.LiteraturePaper) string {
	var b strings.Builder
	for _, p := range papers {
		b.WriteString(p.Title)
		b.WriteByte(' ')
		b.WriteString(p.Abstract)
		b.WriteByte(' ')
	}
	return b.String()
}

func pmidsOf(papers []models.LiteraturePaper) []string {
	out := make([]string, len(papers))
	for i, p := range papers {
		out[i] = p.PMID
	}
	return out
}

func (e *Expander) geneRelevance(ctx context.Context, gene, pathwayName string, totalHits int) (float64, []string, error) {
	query := gene + " " + pathwayName
	papers, err := resilience.Call(ctx, e.Limiter, "literature_provider", func(ctx context.Context) ([]models.LiteraturePaper, error) {
		return e.Provider.Search(ctx, query, e.SearchLimit)
	})
	if err != nil {
		return 0, nil, err
	}
	pmids := pmidsOf(papers)
	if totalHits == 0 {
		return 0, pmids, nil
	}
	return float64(len(pmids)) / float64(totalHits), pmids, nil
}

func buildQuery(genes []string, pathwayName string, keywords []string) string {
	parts := append([]string{pathwayName}, genes...)
	parts = append(parts, keywords...)
	return strings.Join(parts, " ")
}

func toSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		out[s] = struct{}{}
	}
	return out
}
