package tracer

import (
	"context"
	"testing"

	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/stretchr/testify/require"
)

type stubLiterature struct {
	byQuery map[string][]models.LiteraturePaper
}

func (s stubLiterature) Search(ctx context.Context, query string, limit int) ([]models.LiteraturePaper, error) {
	return s.byQuery[query], nil
}

func newPathway(rank int, name string, seedGenes []string) *models.ScoredPathway {
	return &models.ScoredPathway{
		Rank: rank,
		Aggregated: models.AggregatedPathway{
			Pathway:               models.PathwayEntry{Name: name},
			ContributingSeedGenes: seedGenes,
		},
	}
}

func TestTrace_CopiesSeedGenesOntoEveryPathway(t *testing.T) {
	tr := &Tracer{
		Literature: stubLiterature{byQuery: map[string][]models.LiteraturePaper{}},
		Limiter:    resilience.NewLimiter(resilience.DefaultPolicy()),
		Cfg:        Config{TopM: 1},
	}
	p1 := newPathway(1, "cardiac hypertrophy", []string{"NPPA"})
	p2 := newPathway(2, "generic metabolism", []string{"TP53"})
	err := tr.Trace(context.Background(), []*models.ScoredPathway{p1, p2})
	require.NoError(t, err)
	require.Equal(t, []string{"NPPA"}, p1.TracedSeedGenes)
	require.Equal(t, []string{"TP53"}, p2.TracedSeedGenes)
}

func TestTrace_OnlySearchesTopMNonGenericPathways(t *testing.T) {
	query := `"cardiac hypertrophy"[Title/Abstract] AND "NPPA"[Title/Abstract] AND (cardiac OR heart)`
	tr := &Tracer{
		Literature: stubLiterature{byQuery: map[string][]models.LiteraturePaper{
			query: {{PMID: "PMID1"}, {PMID: "PMID2"}},
		}},
		Limiter: resilience.NewLimiter(resilience.DefaultPolicy()),
		Cfg:     Config{TopM: 1, SearchLimit: 10, MaxPMIDsPerSeed: 1},
	}
	p1 := newPathway(1, "cardiac hypertrophy", []string{"NPPA"})
	p2 := newPathway(2, "cardiac remodeling", []string{"NPPA"})
	err := tr.Trace(context.Background(), []*models.ScoredPathway{p1, p2})
	require.NoError(t, err)

	require.True(t, p1.LiteratureAssociations.Checked)
	require.True(t, p1.LiteratureAssociations.HasLiteratureSupport)
	require.Equal(t, 2, p1.LiteratureAssociations.CitationCountBySeed["NPPA"])
	require.Len(t, p1.LiteratureAssociations.PMIDsBySeed["NPPA"], 1)

	require.False(t, p2.LiteratureAssociations.Checked)
}

func TestTrace_SkipsGenericNames(t *testing.T) {
	tr := &Tracer{
		Literature: stubLiterature{byQuery: map[string][]models.LiteraturePaper{}},
		Limiter:    resilience.NewLimiter(resilience.DefaultPolicy()),
		Cfg:        Config{TopM: 5, GenericNameTerms: []string{"metabolic process"}},
	}
	p := newPathway(1, "Generic Metabolic Process", []string{"TP53"})
	err := tr.Trace(context.Background(), []*models.ScoredPathway{p})
	require.NoError(t, err)
	require.False(t, p.LiteratureAssociations.Checked)
}

func TestTrace_NoLiteratureHitsDegradesToNoSupport(t *testing.T) {
	tr := &Tracer{
		Literature: stubLiterature{byQuery: map[string][]models.LiteraturePaper{}},
		Limiter:    resilience.NewLimiter(resilience.DefaultPolicy()),
		Cfg:        Config{TopM: 1},
	}
	p := newPathway(1, "cardiac fibrosis", []string{"COL1A1"})
	err := tr.Trace(context.Background(), []*models.ScoredPathway{p})
	require.NoError(t, err)
	require.True(t, p.LiteratureAssociations.Checked)
	require.False(t, p.LiteratureAssociations.HasLiteratureSupport)
}
