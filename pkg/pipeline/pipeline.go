// Package pipeline implements the orchestrator (C15): the single entry
// point that sequences identifier normalization, neighborhood assembly,
// primary and secondary enrichment, rigorous aggregation, scoring, semantic
// and redundancy filtering, enhanced validation, literature citation and
// seed tracing, the mandatory final name filter, and important-gene
// aggregation into one persisted result. Grounded on engine.go's functional
// construction and Snapshot-returning facade, and on pipeline.py's exact
// stage sequence and its mandatory-vs-best-effort classification: stages
// wrapped in a try/except that degrades-and-continues there are run the
// same way here, while a failing mandatory stage aborts the run (Run lists
// which stages those are).
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cardiopath/nets/internal/aggregate"
	"github.com/cardiopath/nets/internal/cache"
	"github.com/cardiopath/nets/internal/enrichment"
	"github.com/cardiopath/nets/internal/literature"
	"github.com/cardiopath/nets/internal/neighborhood"
	"github.com/cardiopath/nets/internal/normalize"
	"github.com/cardiopath/nets/internal/redundancy"
	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/internal/scoring"
	"github.com/cardiopath/nets/internal/semantic"
	"github.com/cardiopath/nets/internal/telemetry/logging"
	"github.com/cardiopath/nets/internal/telemetry/metrics"
	"github.com/cardiopath/nets/internal/telemetry/progress"
	"github.com/cardiopath/nets/internal/telemetry/tracing"
	"github.com/cardiopath/nets/internal/tracer"
	"github.com/cardiopath/nets/internal/validate"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/google/uuid"
	oteltrace "go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// Telemetry bundles the optional observability collaborators. Any field
// left nil falls back to a no-op implementation.
type Telemetry struct {
	Metrics metrics.Provider
	Tracer  oteltrace.TracerProvider
	Logger  *slog.Logger
}

// Pipeline is a long-lived, concurrency-safe orchestrator bound to one
// Config and one Providers set. Run may be called repeatedly and
// concurrently; per-run state (seeds, overrides, results) never touches the
// Pipeline's own fields.
type Pipeline struct {
	base      Config
	providers Providers
	limiter   *resilience.Limiter
	cache     *cache.Cache
	tracing   *tracing.Tracer
	logger    logging.Logger
	metrics   metrics.Provider
	stages    metrics.Counter
}

// New constructs a Pipeline. telemetry fields left zero fall back to
// no-op/default-global implementations.
func New(cfg Config, p Providers, telemetry Telemetry) *Pipeline {
	metricsProvider := telemetry.Metrics
	if metricsProvider == nil {
		metricsProvider = metrics.NoopProvider{}
	}
	stages := metricsProvider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "cardiopath", Subsystem: "pipeline", Name: "stage_completions_total",
		Help: "Pipeline stage completions by stage and outcome.", Labels: []string{"stage", "outcome"},
	}})
	sharedCache := cache.New(cfg.CacheMaxBytes, cfg.CacheDefaultTTL)
	if p.IdResolver != nil {
		p.IdResolver = &cachingResolver{inner: p.IdResolver, cache: sharedCache}
	}

	return &Pipeline{
		base:      cfg,
		providers: p,
		limiter:   resilience.NewLimiter(cfg.Resilience),
		cache:     sharedCache,
		tracing:   tracing.New(telemetry.Tracer),
		logger:    logging.New(telemetry.Logger),
		metrics:   metricsProvider,
		stages:    stages,
	}
}

// stageScope starts a trace span for name and returns a closer that ends
// it, records the stage's StageRecord, increments the stage-completion
// counter, and emits a progress event.
type stageScope struct {
	ctx      context.Context
	name     models.StageName
	start    time.Time
	res      *models.PipelineResult
	reporter *progress.Reporter
	logger   logging.Logger
	end      func(err error)
}

func (p *Pipeline) beginStage(ctx context.Context, reporter *progress.Reporter, res *models.PipelineResult, name models.StageName, input int) *stageScope {
	spanCtx, end := p.tracing.StartStage(ctx, string(name))
	rec := res.Stage(name)
	rec.InputCount = input
	return &stageScope{ctx: spanCtx, name: name, start: time.Now(), res: res, reporter: reporter, logger: p.logger, end: end}
}

// finishOK records a stage that ran to completion.
func (s *stageScope) finishOK(output, dropped int) {
	rec := s.res.Stage(s.name)
	rec.OutputCount = output
	rec.DroppedCount = dropped
	rec.Duration = time.Since(s.start)
	s.end(nil)
	s.logger.InfoCtx(s.ctx, "stage complete", "stage", string(s.name), "output", output, "dropped", dropped)
	s.reporter.Emit(s.ctx, s.name, *rec)
}

// finishDegraded records a best-effort stage that failed: it's marked
// skipped, a warning is attached and appended to the run's warning list, and
// the run is NOT aborted.
func (s *stageScope) finishDegraded(err error) {
	rec := s.res.Stage(s.name)
	rec.Skipped = true
	rec.Warning = err.Error()
	rec.Duration = time.Since(s.start)
	s.end(err)
	s.logger.WarnCtx(s.ctx, "stage degraded", "stage", string(s.name), "error", err.Error())
	s.res.AddWarning(fmt.Sprintf("%s degraded: %v", s.name, err))
	s.reporter.Emit(s.ctx, s.name, *rec)
}

// finishFatal records a mandatory stage that failed; the caller aborts Run
// immediately after calling this.
func (s *stageScope) finishFatal(err error) {
	rec := s.res.Stage(s.name)
	rec.Warning = err.Error()
	rec.Duration = time.Since(s.start)
	s.end(err)
	s.logger.ErrorCtx(s.ctx, "stage failed", "stage", string(s.name), "error", err.Error())
	s.reporter.Emit(s.ctx, s.name, *rec)
}

// Run executes the full pipeline for seeds, applying overrides (if any) on
// top of the Pipeline's base Config, and returns the persisted result. Only
// S0 (identifier normalization), S1 (neighborhood), S2a (primary
// enrichment), S2c (aggregation), S3 (scoring), S4a (semantic filter), and
// S5c (the mandatory final name filter) can abort the run; every other
// stage degrades to a warning and continues.
func (p *Pipeline) Run(ctx context.Context, seeds []string, overrides *Overrides, progressFn progress.Func) (*models.PipelineResult, error) {
	cfg := overrides.Apply(p.base)
	reporter := progress.New(progressFn, p.stages)

	res := &models.PipelineResult{
		AnalysisID: uuid.NewString(),
		StartedAt:  time.Now(),
		Seeds:      append([]string(nil), seeds...),
	}

	// S0: identifier normalization.
	s0 := p.beginStage(ctx, reporter, res, models.StageS0IDNormalization, len(seeds))
	normalizer := normalize.New(p.providers.IdResolver, p.limiter, cfg.TargetSpecies)
	normResult := normalizer.Normalize(ctx, seeds)
	for _, w := range normResult.Warnings {
		res.AddWarning(w)
	}
	if len(normResult.Valid) == 0 {
		err := models.NewError(models.KindInvalidInput, fmt.Errorf("no seed gene resolved to a valid %s symbol out of %d input(s)", cfg.TargetSpecies, len(seeds)))
		s0.finishFatal(err)
		return p.finalize(res, err)
	}
	s0.finishOK(len(normResult.Valid), len(normResult.Invalid))

	// S1: functional neighborhood.
	s1 := p.beginStage(ctx, reporter, res, models.StageS1Neighborhood, len(normResult.Valid))
	builder := neighborhood.New(p.providers.Interaction, p.limiter, cfg.NeighborhoodWorkers, cfg.MinInteractionConfidence)
	nb, nbWarnings, err := builder.Build(ctx, normResult.Valid)
	for _, w := range nbWarnings {
		res.AddWarning(w)
	}
	if err != nil {
		s1.finishFatal(err)
		return p.finalize(res, err)
	}
	s1.finishOK(nb.Size(), 0)

	// S2a: primary enrichment.
	s2a := p.beginStage(ctx, reporter, res, models.StageS2aPrimaryEnrichment, nb.Size())
	primaryAnalyzer := &enrichment.PrimaryAnalyzer{
		Enrichment: p.providers.Enrichment, KnownPathway: p.providers.KnownPathway,
		Limiter: p.limiter, Sources: cfg.EnrichmentSources, DBWeights: cfg.DBWeights,
	}
	primaryResult, err := primaryAnalyzer.Analyze(ctx, nb)
	s2aDegraded := false
	if err != nil {
		// Provider exhaustion degrades to an empty hypothesis set rather than
		// aborting the run; only a non-provider failure (e.g. malformed input
		// reaching this stage) is fatal.
		var pe *models.PipelineError
		if errors.As(err, &pe) && pe.Kind == models.KindProviderUnavailable {
			s2a.finishDegraded(err)
			primaryResult = enrichment.PrimaryResult{}
			s2aDegraded = true
		} else {
			s2a.finishFatal(err)
			return p.finalize(res, err)
		}
	} else {
		s2a.finishOK(len(primaryResult.Primary), 0)
	}

	// S2b: secondary triage (best-effort: a total failure here just means
	// S2c aggregates from primaries alone via its fallback path).
	s2b := p.beginStage(ctx, reporter, res, models.StageS2bSecondaryTriage, len(primaryResult.Primary))
	topPrimaries := primaryResult.Primary
	if n := cfg.SecondaryTopNPrimaries; n > 0 && len(topPrimaries) > n {
		topPrimaries = topPrimaries[:n]
	}
	knownIDs := make(map[string]struct{}, len(primaryResult.Known))
	for _, k := range primaryResult.Known {
		knownIDs[k.ID] = struct{}{}
	}
	litExpander := literature.New(p.providers.Literature, p.limiter, cfg.LiteratureSearchLimit, cfg.LiteratureMinRelevance, cfg.DiseaseKeywords)
	secondaryAnalyzer := &enrichment.SecondaryAnalyzer{
		Enrichment: p.providers.Enrichment, KnownPathway: p.providers.KnownPathway,
		Limiter: p.limiter, Sources: cfg.EnrichmentSources, DBWeights: cfg.DBWeights,
		MaxWorkers: cfg.SecondaryWorkers,
		Expand: func(ctx context.Context, primary models.ScoredPathwayEntry) ([]string, error) {
			support, err := litExpander.Expand(ctx, primary.EvidenceGenes, primary.Name)
			if err != nil {
				return nil, err
			}
			return support.ExpandedGenes, nil
		},
	}
	secondaries, err := secondaryAnalyzer.Analyze(ctx, topPrimaries, knownIDs)
	if err != nil {
		s2b.finishDegraded(err)
		secondaries = nil
	} else {
		s2b.finishOK(len(secondaries), 0)
	}

	// S2c: rigorous cross-primary aggregation.
	s2c := p.beginStage(ctx, reporter, res, models.StageS2cRigorousAggregate, len(secondaries))
	aggCfg := cfg.Aggregate
	aggCfg.DBWeights = cfg.DBWeights
	filteredSecondaries := aggregate.PreFilter(secondaries, aggCfg)
	aggregated := aggregate.Aggregate(filteredSecondaries, len(primaryResult.Primary), primaryResult.Primary, aggCfg)
	if len(aggregated) == 0 {
		if s2aDegraded {
			// Primary enrichment itself already degraded to empty; completing
			// with an empty ranked hypothesis set is the expected outcome here,
			// not a fresh failure.
			s2c.finishOK(0, 0)
			res.AddWarning("no aggregated pathways: primary enrichment degraded; completing with an empty ranked hypothesis set")
		} else {
			err := models.NewError(models.KindValidationFailed, fmt.Errorf("aggregation produced zero pathways from %d primaries and %d secondaries", len(primaryResult.Primary), len(secondaries)))
			s2c.finishFatal(err)
			return p.finalize(res, err)
		}
	} else {
		s2c.finishOK(len(aggregated), len(secondaries)-len(filteredSecondaries))
	}

	// S3: final scoring.
	s3 := p.beginStage(ctx, reporter, res, models.StageS3FinalScoring, len(aggregated))
	pathways := scoring.ScoreAll(aggregated, cfg.DBWeights)
	s3.finishOK(len(pathways), 0)

	// S4a: semantic relevance boost + tiered adaptive filter.
	s4a := p.beginStage(ctx, reporter, res, models.StageS4aSemanticFilter, len(pathways))
	if err := semantic.ApplyBoost(ctx, pathways, cfg.Semantic, cfg.SemanticWorkers); err != nil {
		s4a.finishFatal(err)
		return p.finalize(res, err)
	}
	pathways, dropped := semantic.TieredFilter(pathways, cfg.Semantic)
	s4a.finishOK(len(pathways), dropped)

	// S4b: redundancy filter (best-effort in spirit but purely local/
	// deterministic, so failure isn't a modeled outcome; still timed and
	// reported like every other stage).
	s4b := p.beginStage(ctx, reporter, res, models.StageS4bRedundancyFilter, len(pathways))
	pathways, dropped = redundancy.Filter(pathways, cfg.RedundancyThreshold)
	s4b.finishOK(len(pathways), dropped)

	// S4c: enhanced validation (best-effort).
	s4c := p.beginStage(ctx, reporter, res, models.StageS4cEnhancedValidate, len(pathways))
	validators := &validate.Validators{
		Tissue: p.providers.TissueExpression, Epigenomic: p.providers.Epigenomic,
		Disease: p.providers.DiseaseAssociation, Limiter: p.limiter, Cfg: cfg.Validate,
	}
	validators.Cfg.DiseaseContext = cfg.DiseaseContext
	if err := validators.Run(ctx, pathways, nb); err != nil {
		s4c.finishDegraded(err)
	} else {
		s4c.finishOK(len(pathways), 0)
	}

	// S5a: literature citations (best-effort): expand the top-ranked
	// pathways' evidence once more via the same literature expander used in
	// S2b, this time recording the result as Citations rather than feeding
	// it back into enrichment.
	s5a := p.beginStage(ctx, reporter, res, models.StageS5aLiteratureCite, len(pathways))
	citedCount, citeErr := p.citeTopPathways(ctx, pathways, litExpander, cfg.LiteratureTopNPathways)
	if citeErr != nil {
		s5a.finishDegraded(citeErr)
	} else {
		s5a.finishOK(citedCount, 0)
	}

	// S5b: seed gene tracing (best-effort).
	s5b := p.beginStage(ctx, reporter, res, models.StageS5bSeedTracing, len(pathways))
	seedTracer := &tracer.Tracer{Literature: p.providers.Literature, Limiter: p.limiter, Cfg: cfg.Tracer}
	if err := seedTracer.Trace(ctx, pathways); err != nil {
		s5b.finishDegraded(err)
	} else {
		s5b.finishOK(len(pathways), 0)
	}

	// S5c: mandatory final cardiac name filter. This is the one filter
	// stage that aborts the run on failure to apply; note that actually
	// filtering everything out is not itself a failure to apply the
	// filter — that's recorded as a zero-pathway result plus a warning.
	s5c := p.beginStage(ctx, reporter, res, models.StageS5cStrictNameFilter, len(pathways))
	if cfg.EnforceFinalNameFilter {
		kept, droppedCount := semantic.StrictNameFilter(pathways, cfg.Semantic)
		pathways = kept
		s5c.finishOK(len(pathways), droppedCount)
		if len(pathways) == 0 {
			res.AddWarning("mandatory cardiac name filter removed all pathways; final ranked output is empty")
		}
	} else {
		s5c.finishOK(len(pathways), 0)
	}

	res.Pathways = pathways

	// S6: important-gene aggregation (best-effort, never aborts the run).
	s6 := p.beginStage(ctx, reporter, res, models.StageS6TopGenes, len(pathways))
	topGenes, err := p.generateImportantGenes(ctx, pathways, cfg)
	if err != nil {
		s6.finishDegraded(err)
		res.TopGenes = nil
	} else {
		s6.finishOK(len(topGenes), 0)
		res.TopGenes = topGenes
	}

	return p.finalize(res, nil)
}

// citeTopPathways runs the literature expander against the top N pathways
// by current rank, storing its output on Citations. A per-pathway failure
// is swallowed (Citations stays nil for that pathway); the stage itself
// only reports an error if every attempted pathway failed.
func (p *Pipeline) citeTopPathways(ctx context.Context, pathways []*models.ScoredPathway, expander *literature.Expander, topN int) (int, error) {
	if topN <= 0 || topN > len(pathways) {
		topN = len(pathways)
	}
	attempted, succeeded := 0, 0
	var lastErr error
	for _, pw := range pathways[:topN] {
		attempted++
		support, err := expander.Expand(ctx, pw.EvidenceGenes(), pw.Aggregated.Pathway.Name)
		if err != nil {
			lastErr = err
			continue
		}
		succeeded++
		pw.Citations = &support
	}
	if attempted > 0 && succeeded == 0 {
		return 0, lastErr
	}
	return succeeded, nil
}

// finalize stamps FinishedAt/Incomplete and persists the result. A
// persistence failure is recorded as a warning rather than returned, since
// the caller already has the in-memory result either way; runErr, if
// non-nil, is returned as-is after persistence is attempted.
func (p *Pipeline) finalize(res *models.PipelineResult, runErr error) (*models.PipelineResult, error) {
	res.FinishedAt = time.Now()
	res.Incomplete = runErr != nil
	if p.base.OutputDir != "" {
		if err := p.persist(res); err != nil {
			res.AddWarning(fmt.Sprintf("report persistence failed: %v", err))
		}
	}
	return res, runErr
}

func (p *Pipeline) persist(res *models.PipelineResult) error {
	dir := filepath.Join(p.base.OutputDir, res.AnalysisID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.NewError(models.KindReportFailed, err)
	}

	resultsBytes, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return models.NewError(models.KindReportFailed, err)
	}
	resultsPath := filepath.Join(dir, "results.json")
	if err := os.WriteFile(resultsPath, resultsBytes, 0o644); err != nil {
		return models.NewError(models.KindReportFailed, err)
	}
	res.Reports = append(res.Reports, models.ReportArtifact{Kind: "results_json", Path: resultsPath})

	snapshotBytes, err := yaml.Marshal(Snapshot(p.base))
	if err != nil {
		return models.NewError(models.KindReportFailed, err)
	}
	snapshotPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(snapshotPath, snapshotBytes, 0o644); err != nil {
		return models.NewError(models.KindReportFailed, err)
	}
	res.Reports = append(res.Reports, models.ReportArtifact{Kind: "config_snapshot", Path: snapshotPath})
	return nil
}
