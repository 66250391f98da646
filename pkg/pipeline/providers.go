package pipeline

import "github.com/cardiopath/nets/pkg/providers"

// Providers bundles every external collaborator a Pipeline needs. All eight
// are required except Epigenomic and DiseaseAssociation, whose absence just
// means the corresponding best-effort validator stays at its zero value.
type Providers struct {
	IdResolver         providers.IdResolver
	Interaction        providers.InteractionProvider
	Enrichment         providers.EnrichmentProvider
	KnownPathway       providers.KnownPathwayProvider
	Literature         providers.LiteratureProvider
	TissueExpression   providers.TissueExpressionProvider
	Epigenomic         providers.EpigenomicProvider
	DiseaseAssociation providers.DiseaseAssociationProvider
}
