package providertest

import (
	"context"
	"errors"
	"testing"

	"github.com/cardiopath/nets/pkg/models"
	"github.com/stretchr/testify/require"
)

func TestResolver_ReturnsCannedGeneOrInducedError(t *testing.T) {
	r := Resolver{
		ByInput: map[string]models.Gene{"TP53": {Symbol: "TP53"}},
		Errors:  map[string]error{"BAD": errors.New("boom")},
	}
	g, err := r.Resolve(context.Background(), "TP53", "human")
	require.NoError(t, err)
	require.Equal(t, "TP53", g.Symbol)

	_, err = r.Resolve(context.Background(), "BAD", "human")
	require.Error(t, err)

	_, err = r.Resolve(context.Background(), "MISSING", "human")
	require.Error(t, err)
}

func TestEnrichment_FailsThenSucceeds(t *testing.T) {
	e := &Enrichment{
		Results:    []models.PathwayEntry{{ID: "R-1"}},
		Err:        errors.New("transient"),
		FailNCalls: 2,
	}
	_, err := e.Enrich(context.Background(), nil, nil)
	require.Error(t, err)
	_, err = e.Enrich(context.Background(), nil, nil)
	require.Error(t, err)
	results, err := e.Enrich(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestLiterature_TruncatesToLimit(t *testing.T) {
	l := Literature{ByQuery: map[string][]models.LiteraturePaper{"q": {{PMID: "1"}, {PMID: "2"}, {PMID: "3"}}}}
	papers, err := l.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Equal(t, []models.LiteraturePaper{{PMID: "1"}, {PMID: "2"}}, papers)
}
