package literature

import (
	"context"
	"testing"

	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestExtractGeneTokens_DedupesAndFiltersShape(t *testing.T) {
	tokens := ExtractGeneTokens("TP53 and MDM2 regulate TP53 signaling in a novel way")
	require.Contains(t, tokens, "TP53")
	require.Contains(t, tokens, "MDM2")
	require.Len(t, tokens, 2)
}

type stubLiterature struct {
	byQuery map[string][]models.LiteraturePaper
}

func (s stubLiterature) Search(ctx context.Context, query string, limit int) ([]models.LiteraturePaper, error) {
	return s.byQuery[query], nil
}

func TestExpand_ReturnsEmptyWhenNoPapersFound(t *testing.T) {
	e := New(stubLiterature{byQuery: map[string][]models.LiteraturePaper{}}, resilience.NewLimiter(resilience.DefaultPolicy()), 10, 0.1, nil)
	support, err := e.Expand(context.Background(), []string{"TP53"}, "apoptosis")
	require.NoError(t, err)
	require.Empty(t, support.ExpandedGenes)
}

func TestExpand_MinesGeneSymbolsFromTitleAndAbstract(t *testing.T) {
	// The broad pathway query returns two papers whose title/abstract
	// mention MDM2; the per-gene relevance re-query for MDM2 returns one of
	// those two papers, for a 1/2 relevance fraction that clears the floor.
	stub := stubLiterature{byQuery: map[string][]models.LiteraturePaper{
		"apoptosis TP53": {
			{PMID: "100", Title: "TP53 pathway regulation", Abstract: "MDM2 negatively regulates TP53 stability."},
			{PMID: "101", Title: "Apoptosis review", Abstract: "No gene mentioned here besides TP53."},
		},
		"MDM2 apoptosis": {
			{PMID: "100", Title: "TP53 pathway regulation", Abstract: "MDM2 negatively regulates TP53 stability."},
		},
	}}
	e := New(stub, resilience.NewLimiter(resilience.DefaultPolicy()), 10, 0.1, nil)
	support, err := e.Expand(context.Background(), []string{"TP53"}, "apoptosis")
	require.NoError(t, err)
	require.Contains(t, support.ExpandedGenes, "MDM2")
	require.Equal(t, []string{"100"}, support.EvidenceByGene["MDM2"])
	require.NotContains(t, support.ExpandedGenes, "TP53", "genes already in the pathway's own list are not re-expanded")
}

func TestExpand_DropsGeneBelowRelevanceFloor(t *testing.T) {
	stub := stubLiterature{byQuery: map[string][]models.LiteraturePaper{
		"apoptosis TP53": {
			{PMID: "100", Title: "TP53 pathway regulation", Abstract: "MDM2 is mentioned once in passing."},
			{PMID: "101", Title: "Unrelated paper one", Abstract: "No relevant genes."},
			{PMID: "102", Title: "Unrelated paper two", Abstract: "No relevant genes."},
			{PMID: "103", Title: "Unrelated paper three", Abstract: "No relevant genes."},
		},
		"MDM2 apoptosis": {
			{PMID: "100", Title: "TP53 pathway regulation", Abstract: "MDM2 is mentioned once in passing."},
		},
	}}
	e := New(stub, resilience.NewLimiter(resilience.DefaultPolicy()), 10, 0.5, nil)
	support, err := e.Expand(context.Background(), []string{"TP53"}, "apoptosis")
	require.NoError(t, err)
	require.NotContains(t, support.ExpandedGenes, "MDM2", "1/4 relevance fraction is below the 0.5 floor")
}
