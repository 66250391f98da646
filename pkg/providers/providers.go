// Package providers defines the narrow collaborator interfaces the pipeline
// depends on for every piece of external data. Each interface is small and
// context-first: one or two methods, a context argument, and a (result,
// error) return. No implementation lives here; concrete adapters are wired
// in by callers and handed to pkg/pipeline, which wraps every call with
// internal/resilience.
package providers

import (
	"context"

	"github.com/cardiopath/nets/pkg/models"
)

// IdResolver resolves an arbitrary input identifier (symbol, Entrez ID,
// HGNC ID, alias) to a canonical Gene for the given target species.
type IdResolver interface {
	Resolve(ctx context.Context, inputID, targetSpecies string) (models.Gene, error)
}

// InteractionProvider returns the interaction partners of a gene within a
// source network, each edge annotated with a combined confidence score.
type InteractionProvider interface {
	Interactions(ctx context.Context, symbol string, minConfidence float64) ([]models.Interaction, error)
}

// EnrichmentProvider runs a pathway/gene-set enrichment query against a
// gene list and returns raw (pre-NES) results.
type EnrichmentProvider interface {
	Enrich(ctx context.Context, genes []string, sources []models.SourceDB) ([]models.PathwayEntry, error)
}

// KnownPathwayProvider reports whether a pathway ID is a member of a
// well-known reference set (used by the novelty filter in C6).
type KnownPathwayProvider interface {
	IsKnown(ctx context.Context, pathwayID string) (bool, error)
}

// LiteratureProvider searches literature for gene/keyword co-mentions and
// returns matching papers (PMID plus title/abstract text), used by both the
// literature expander (C7, which mines the title/abstract text for
// candidate gene symbols) and the seed tracer (C14, which only needs the
// PMIDs as citation evidence).
type LiteratureProvider interface {
	Search(ctx context.Context, query string, limit int) ([]models.LiteraturePaper, error)
}

// TissueExpressionProvider returns a gene's expression ratio in a given
// tissue; the tissue validator compares the ratios against its own
// MinExpressionRatio.
type TissueExpressionProvider interface {
	ExpressionRatio(ctx context.Context, symbol, tissue string) (ratio float64, err error)
}

// EpigenomicProvider reports whether a gene carries a regulatory
// annotation (e.g. an open-chromatin or enhancer mark) in a given tissue,
// used as a secondary validation signal in C13.
type EpigenomicProvider interface {
	HasRegulatoryMark(ctx context.Context, symbol, tissue string) (bool, error)
}

// DiseaseAssociationProvider scores a gene's association strength with a
// named disease context, used for the cardiac-disease-context boost.
type DiseaseAssociationProvider interface {
	AssociationScore(ctx context.Context, symbol, disease string) (float64, error)
}
