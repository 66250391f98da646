// Package providertest offers deterministic, canned-response stub
// implementations of every interface in pkg/providers, for use across
// package test suites. Responses and failures are keyed directly at the
// Go-interface boundary rather than over a mock HTTP transport, since these
// collaborators are narrow Go interfaces, not HTTP endpoints.
package providertest

import (
	"context"
	"fmt"

	"github.com/cardiopath/nets/pkg/models"
)

// Resolver is a stub IdResolver keyed by input ID, with an optional induced
// failure per input.
type Resolver struct {
	ByInput map[string]models.Gene
	Errors  map[string]error
}

func (r Resolver) Resolve(ctx context.Context, inputID, targetSpecies string) (models.Gene, error) {
	if err, ok := r.Errors[inputID]; ok {
		return models.Gene{}, err
	}
	if g, ok := r.ByInput[inputID]; ok {
		return g, nil
	}
	// An unmapped ID is an authoritative "not found", not a transient
	// failure, so it's classified to keep it out of the retry path.
	return models.Gene{}, models.NewError(models.KindInvalidInput, fmt.Errorf("providertest: no resolution for %q", inputID))
}

// Interactions is a stub InteractionProvider keyed by seed symbol.
type Interactions struct {
	BySeed map[string][]models.Interaction
	Errors map[string]error
}

func (p Interactions) Interactions(ctx context.Context, symbol string, minConfidence float64) ([]models.Interaction, error) {
	if err, ok := p.Errors[symbol]; ok {
		return nil, err
	}
	var out []models.Interaction
	for _, i := range p.BySeed[symbol] {
		if i.CombinedScore >= minConfidence {
			out = append(out, i)
		}
	}
	return out, nil
}

// Enrichment is a stub EnrichmentProvider returning a fixed result set
// regardless of the requested gene list, optionally returning Err for the
// first FailNCalls calls and succeeding after that, to exercise resilience
// retries.
type Enrichment struct {
	Results     []models.PathwayEntry
	Err         error
	FailNCalls  int
	calls       int
}

func (e *Enrichment) Enrich(ctx context.Context, genes []string, sources []models.SourceDB) ([]models.PathwayEntry, error) {
	e.calls++
	if e.calls <= e.FailNCalls {
		return nil, e.Err
	}
	return e.Results, nil
}

// KnownPathway is a stub KnownPathwayProvider backed by a set.
type KnownPathway struct {
	Known map[string]struct{}
}

func (k KnownPathway) IsKnown(ctx context.Context, pathwayID string) (bool, error) {
	_, ok := k.Known[pathwayID]
	return ok, nil
}

// Literature is a stub LiteratureProvider keyed by exact query string.
type Literature struct {
	ByQuery map[string][]models.LiteraturePaper
	Err     error
}

func (l Literature) Search(ctx context.Context, query string, limit int) ([]models.LiteraturePaper, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	papers := l.ByQuery[query]
	if limit > 0 && len(papers) > limit {
		papers = papers[:limit]
	}
	return papers, nil
}

// TissueExpression is a stub TissueExpressionProvider keyed by symbol.
type TissueExpression struct {
	RatioBySymbol map[string]float64
	Errors        map[string]error
}

func (t TissueExpression) ExpressionRatio(ctx context.Context, symbol, tissue string) (float64, error) {
	if err, ok := t.Errors[symbol]; ok {
		return 0, err
	}
	ratio, ok := t.RatioBySymbol[symbol]
	if !ok {
		return 0, fmt.Errorf("providertest: no expression data for %q", symbol)
	}
	return ratio, nil
}

// Epigenomic is a stub EpigenomicProvider keyed by symbol.
type Epigenomic struct {
	MarkedSymbols map[string]struct{}
}

func (e Epigenomic) HasRegulatoryMark(ctx context.Context, symbol, tissue string) (bool, error) {
	_, ok := e.MarkedSymbols[symbol]
	return ok, nil
}

// DiseaseAssociation is a stub DiseaseAssociationProvider keyed by symbol.
type DiseaseAssociation struct {
	ScoreBySymbol map[string]float64
}

func (d DiseaseAssociation) AssociationScore(ctx context.Context, symbol, disease string) (float64, error) {
	return d.ScoreBySymbol[symbol], nil
}
