package pipeline

import (
	"context"
	"testing"

	"github.com/cardiopath/nets/internal/providertest"
	"github.com/cardiopath/nets/internal/telemetry/progress"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Validate.Druggability.Druggable = map[string]struct{}{"RYR2": {}}
	cfg.Validate.Druggability.Approved = map[string]struct{}{}
	cfg.Validate.Druggability.Clinical = map[string]struct{}{}
	cfg.Validate.FallbackExpressed = map[string]struct{}{"RYR2": {}, "SCN5A": {}}
	return cfg
}

func testProviders() Providers {
	resolver := providertest.Resolver{ByInput: map[string]models.Gene{
		"RYR2":  {InputID: "RYR2", CanonicalID: "HGNC:9961", Symbol: "RYR2", Species: "human"},
		"SCN5A": {InputID: "SCN5A", CanonicalID: "HGNC:10593", Symbol: "SCN5A", Species: "human"},
	}}
	interactions := providertest.Interactions{BySeed: map[string][]models.Interaction{
		"RYR2":  {{GeneA: "RYR2", GeneB: "SCN5A", CombinedScore: 0.9}, {GeneA: "RYR2", GeneB: "CASQ2", CombinedScore: 0.8}},
		"SCN5A": {{GeneA: "SCN5A", GeneB: "RYR2", CombinedScore: 0.9}, {GeneA: "SCN5A", GeneB: "CACNA1C", CombinedScore: 0.7}},
	}}
	enrich := &providertest.Enrichment{Results: []models.PathwayEntry{
		{
			ID: "REAC:R-HSA-1", Name: "Cardiac conduction", SourceDB: models.SourceReactome,
			PValue: 0.001, PAdj: 0.01, EvidenceCount: 3,
			EvidenceGenes: []string{"RYR2", "SCN5A", "CASQ2"},
		},
		{
			ID: "KEGG:hsa04260", Name: "Cardiac muscle contraction", SourceDB: models.SourceKEGG,
			PValue: 0.002, PAdj: 0.02, EvidenceCount: 2,
			EvidenceGenes: []string{"RYR2", "CACNA1C"},
		},
	}}
	known := providertest.KnownPathway{Known: map[string]struct{}{"REAC:R-HSA-1": {}}}
	literature := providertest.Literature{ByQuery: map[string][]models.LiteraturePaper{}}
	tissue := providertest.TissueExpression{RatioBySymbol: map[string]float64{
		"RYR2": 0.9, "SCN5A": 0.85, "CASQ2": 0.6, "CACNA1C": 0.7,
	}}
	epi := providertest.Epigenomic{MarkedSymbols: map[string]struct{}{"RYR2": {}}}
	disease := providertest.DiseaseAssociation{ScoreBySymbol: map[string]float64{
		"RYR2": 0.8, "SCN5A": 0.6, "CASQ2": 0.3, "CACNA1C": 0.4,
	}}

	return Providers{
		IdResolver:         resolver,
		Interaction:        interactions,
		Enrichment:         enrich,
		KnownPathway:       known,
		Literature:         literature,
		TissueExpression:   tissue,
		Epigenomic:         epi,
		DiseaseAssociation: disease,
	}
}

func TestRunHappyPath(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceFinalNameFilter = false // the strict name filter is exercised by TestRunStrictNameFilterCanEmptyResultWithoutAborting
	p := New(cfg, testProviders(), Telemetry{})

	res, err := p.Run(context.Background(), []string{"RYR2", "SCN5A"}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Incomplete)
	assert.NotEmpty(t, res.Pathways)

	for _, stage := range []models.StageName{
		models.StageS0IDNormalization, models.StageS1Neighborhood,
		models.StageS2aPrimaryEnrichment, models.StageS2cRigorousAggregate,
		models.StageS3FinalScoring, models.StageS4aSemanticFilter,
	} {
		rec := res.Stages[stage]
		require.NotNil(t, rec, "missing stage record for %s", stage)
		assert.Greater(t, rec.OutputCount, 0, "stage %s produced no output", stage)
	}
}

func TestRunFatalWhenNoSeedResolves(t *testing.T) {
	cfg := testConfig()
	providers := testProviders()
	// Symbol-shaped IDs would be accepted by the offline fallback after a
	// resolver failure; numeric IDs fail its shape check, so nothing resolves.
	providers.IdResolver = providertest.Resolver{Errors: map[string]error{
		"9000001": assertErr{}, "9000002": assertErr{},
	}}
	p := New(cfg, providers, Telemetry{})

	res, err := p.Run(context.Background(), []string{"9000001", "9000002"}, nil, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Incomplete)
	assert.Empty(t, res.Pathways)

	rec := res.Stages[models.StageS0IDNormalization]
	require.NotNil(t, rec)
	assert.NotEmpty(t, rec.Warning)
}

type assertErr struct{}

func (assertErr) Error() string { return "no resolution" }

func TestRunDegradesOnBestEffortLiteratureFailure(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceFinalNameFilter = false
	providers := testProviders()
	providers.Literature = providertest.Literature{Err: assertErr{}}
	p := New(cfg, providers, Telemetry{})

	res, err := p.Run(context.Background(), []string{"RYR2", "SCN5A"}, nil, nil)
	require.NoError(t, err)
	assert.False(t, res.Incomplete)
	assert.NotEmpty(t, res.Pathways)

	s5a := res.Stages[models.StageS5aLiteratureCite]
	require.NotNil(t, s5a)
	assert.True(t, s5a.Skipped)
	assert.NotEmpty(t, s5a.Warning)

	// The seed tracer degrades each failed search to "no support" inside the
	// stage, so S5b itself completes rather than being skipped.
	s5b := res.Stages[models.StageS5bSeedTracing]
	require.NotNil(t, s5b)
	assert.False(t, s5b.Skipped)
}

func TestRunDegradesOnS2aProviderExhaustion(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceFinalNameFilter = false
	providers := testProviders()
	providers.Enrichment = &providertest.Enrichment{Err: assertErr{}, FailNCalls: 999}
	p := New(cfg, providers, Telemetry{})

	res, err := p.Run(context.Background(), []string{"RYR2", "SCN5A"}, nil, nil)
	require.NoError(t, err, "provider exhaustion in S2a must degrade, not abort, the run")
	assert.False(t, res.Incomplete)
	assert.Empty(t, res.Pathways)

	s2a := res.Stages[models.StageS2aPrimaryEnrichment]
	require.NotNil(t, s2a)
	assert.NotEmpty(t, s2a.Warning)

	s2c := res.Stages[models.StageS2cRigorousAggregate]
	require.NotNil(t, s2c)
	assert.NotEmpty(t, res.Warnings)
}

func TestRunStrictNameFilterCanEmptyResultWithoutAborting(t *testing.T) {
	cfg := testConfig() // EnforceFinalNameFilter stays true
	providers := testProviders()
	providers.Enrichment = &providertest.Enrichment{Results: []models.PathwayEntry{
		{
			ID: "REAC:R-HSA-9", Name: "Glycolysis", SourceDB: models.SourceReactome,
			PValue: 0.001, PAdj: 0.01, EvidenceCount: 3,
			EvidenceGenes: []string{"RYR2", "SCN5A", "CASQ2"},
		},
		{
			ID: "KEGG:hsa00010", Name: "Amino acid metabolism", SourceDB: models.SourceKEGG,
			PValue: 0.002, PAdj: 0.02, EvidenceCount: 2,
			EvidenceGenes: []string{"RYR2", "CACNA1C"},
		},
	}}
	p := New(cfg, providers, Telemetry{})

	res, err := p.Run(context.Background(), []string{"RYR2", "SCN5A"}, nil, nil)
	require.NoError(t, err)
	assert.False(t, res.Incomplete)
	assert.Empty(t, res.Pathways)
	assert.Contains(t, res.Warnings, "mandatory cardiac name filter removed all pathways; final ranked output is empty")
}

func TestRunImportantGeneFinalScoreFormula(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceFinalNameFilter = false
	p := New(cfg, testProviders(), Telemetry{})

	res, err := p.Run(context.Background(), []string{"RYR2", "SCN5A"}, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res.TopGenes)

	for _, g := range res.TopGenes {
		require.Greater(t, g.ImportanceScore, 0.0)
		expected := g.ImportanceScore * (1.0 + g.DruggabilityBonus + g.DiseaseBonus)
		assert.InDelta(t, expected, g.FinalScore, 1e-9, "gene %s", g.Symbol)
	}
}

func TestOverridesDoNotLeakAcrossRuns(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceFinalNameFilter = false
	p := New(cfg, testProviders(), Telemetry{})

	altContext := "unrelated disease"
	res1, err := p.Run(context.Background(), []string{"RYR2", "SCN5A"}, &Overrides{DiseaseContext: &altContext}, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res1.Pathways)

	res2, err := p.Run(context.Background(), []string{"RYR2", "SCN5A"}, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, res2.Pathways)

	assert.Equal(t, cfg.DiseaseContext, p.base.DiseaseContext)
	assert.NotEqual(t, altContext, p.base.DiseaseContext)
}

func TestProgressCallbackFiresPerStage(t *testing.T) {
	cfg := testConfig()
	cfg.EnforceFinalNameFilter = false
	p := New(cfg, testProviders(), Telemetry{})

	var events []progress.Event
	onProgress := func(ev progress.Event) { events = append(events, ev) }

	_, err := p.Run(context.Background(), []string{"RYR2", "SCN5A"}, nil, onProgress)
	require.NoError(t, err)
	assert.NotEmpty(t, events)

	seen := make(map[models.StageName]bool)
	for _, ev := range events {
		seen[ev.Stage] = true
	}
	assert.True(t, seen[models.StageS0IDNormalization])
	assert.True(t, seen[models.StageS6TopGenes])
}
