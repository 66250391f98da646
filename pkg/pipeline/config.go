package pipeline

import (
	"regexp"
	"time"

	"github.com/cardiopath/nets/internal/aggregate"
	"github.com/cardiopath/nets/internal/enrichment"
	"github.com/cardiopath/nets/internal/redundancy"
	"github.com/cardiopath/nets/internal/resilience"
	"github.com/cardiopath/nets/internal/semantic"
	"github.com/cardiopath/nets/internal/tracer"
	"github.com/cardiopath/nets/internal/validate"
	"github.com/cardiopath/nets/pkg/models"
)

// Config bundles every tunable for a pipeline run. A Config is owned by a
// Pipeline at construction time and is never mutated in place; Run takes a
// snapshot (Clone) before applying per-run Overrides, so overrides from one
// run can never leak into another.
type Config struct {
	TargetSpecies string

	EnrichmentSources        []models.SourceDB
	DBWeights                map[models.SourceDB]float64
	MinInteractionConfidence float64
	NeighborhoodWorkers      int
	SecondaryWorkers         int
	SecondaryTopNPrimaries   int // how many S2a primaries get S2b reprocessing
	SemanticWorkers          int

	Aggregate           aggregate.Config
	RedundancyThreshold float64
	Validate            validate.Config
	Tracer              tracer.Config
	Semantic            semantic.Keywords

	LiteratureSearchLimit  int
	LiteratureMinRelevance float64
	LiteratureTopNPathways int // how many top-ranked pathways get S5a citation expansion

	DiseaseContext  string
	DiseaseKeywords []string

	EnforceFinalNameFilter bool // S5c: false only ever set for controlled testing, never in production config

	TopNPathwaysForImportantGenes int // S6: how many top pathways by nes_score feed gene aggregation
	TopNImportantGenes            int // S6: how many genes the final ranking keeps

	Resilience resilience.Policy

	CacheMaxBytes   int64
	CacheDefaultTTL time.Duration

	OutputDir string
}

// DefaultConfig returns the thresholds and worker counts used when a caller
// doesn't override them, mirroring the original settings module's defaults.
func DefaultConfig() Config {
	return Config{
		TargetSpecies:                 "human",
		EnrichmentSources:             []models.SourceDB{models.SourceReactome, models.SourceKEGG, models.SourceWikiPathways, models.SourceGOBiologicalP},
		DBWeights:                     cloneDBWeights(enrichment.DefaultDBWeights),
		MinInteractionConfidence:      0.4,
		NeighborhoodWorkers:           4,
		SecondaryWorkers:              4,
		SecondaryTopNPrimaries:        15,
		SemanticWorkers:               4,
		Aggregate:                     aggregate.DefaultConfig(),
		RedundancyThreshold:           redundancy.DefaultThreshold,
		Validate:                      validate.DefaultConfig(),
		Tracer:                        tracer.DefaultConfig(),
		Semantic:                      DefaultCardiacKeywords(),
		LiteratureSearchLimit:         50,
		LiteratureMinRelevance:        0.1,
		LiteratureTopNPathways:        10,
		DiseaseContext:                "cardiovascular disease",
		DiseaseKeywords:               []string{"cardiac", "heart", "cardiovascular", "myocardial"},
		EnforceFinalNameFilter:        true,
		TopNPathwaysForImportantGenes: 50,
		TopNImportantGenes:            20,
		Resilience:                    resilience.DefaultPolicy(),
		CacheMaxBytes:                 64 << 20,
		CacheDefaultTTL:               6 * time.Hour,
	}
}

// DefaultCardiacKeywords returns the curated keyword/pattern sets the
// semantic filters score pathway names against. Kept as a constructor
// rather than package-level state so a caller can swap in a refreshed
// curation without touching filter code.
func DefaultCardiacKeywords() semantic.Keywords {
	return semantic.Keywords{
		DirectCardiac: []string{
			"cardiac", "heart", "cardiomyocyte", "myocardial", "myocardium",
			"ventricular", "atrial", "coronary", "cardiovascular",
		},
		CardiacProcesses: []string{
			"contraction", "conduction", "action potential", "calcium handling",
			"excitation-contraction coupling", "cardiac muscle contraction",
		},
		Disease: []string{
			"heart failure", "arrhythmia", "cardiomyopathy", "myocardial infarction",
			"hypertension", "atherosclerosis", "coronary artery disease",
		},
		NameLevelCardiac: []string{"cardiac", "heart", "cardio", "myocardi", "coronary"},
		NegativeTerms:    []string{"unrelated", "non-cardiac"},
		FuzzyPatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)cardi\w*`),
			regexp.MustCompile(`(?i)myocardi\w*`),
		},
		CardiacNamePatterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)cardio\w*`),
			regexp.MustCompile(`(?i)myocardi\w*`),
			regexp.MustCompile(`(?i)coronar\w*`),
			regexp.MustCompile(`(?i)\bheart\w*`),
		},
		ApprovedNameTerms: []string{
			"cardiac", "heart", "cardio", "myocardi", "coronary", "cardiovascular",
			"ventricular", "atrial",
		},
	}
}

// Clone returns a deep copy of cfg: every map, slice, and nested
// struct-with-collections is copied so mutating the clone (via Overrides)
// can never affect cfg or any other run's snapshot.
func (c Config) Clone() Config {
	out := c
	out.EnrichmentSources = append([]models.SourceDB(nil), c.EnrichmentSources...)
	out.DBWeights = cloneDBWeights(c.DBWeights)
	out.DiseaseKeywords = append([]string(nil), c.DiseaseKeywords...)

	out.Validate.Druggability = validate.DruggabilitySets{
		Approved:  cloneStringSet(c.Validate.Druggability.Approved),
		Clinical:  cloneStringSet(c.Validate.Druggability.Clinical),
		Druggable: cloneStringSet(c.Validate.Druggability.Druggable),
	}
	out.Validate.FallbackExpressed = cloneStringSet(c.Validate.FallbackExpressed)

	out.Tracer.GenericNameTerms = append([]string(nil), c.Tracer.GenericNameTerms...)

	out.Semantic = cloneKeywords(c.Semantic)
	return out
}

func cloneDBWeights(in map[models.SourceDB]float64) map[models.SourceDB]float64 {
	out := make(map[models.SourceDB]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneStringSet(in map[string]struct{}) map[string]struct{} {
	if in == nil {
		return nil
	}
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}

func cloneKeywords(kw semantic.Keywords) semantic.Keywords {
	return semantic.Keywords{
		DirectCardiac:       append([]string(nil), kw.DirectCardiac...),
		CardiacProcesses:    append([]string(nil), kw.CardiacProcesses...),
		Disease:             append([]string(nil), kw.Disease...),
		NameLevelCardiac:    append([]string(nil), kw.NameLevelCardiac...),
		NegativeTerms:       append([]string(nil), kw.NegativeTerms...),
		FuzzyPatterns:       kw.FuzzyPatterns,       // compiled regexes are immutable, safe to share
		CardiacNamePatterns: kw.CardiacNamePatterns, // same
		ApprovedNameTerms:   append([]string(nil), kw.ApprovedNameTerms...),
		DiseaseSynonyms:     append([]string(nil), kw.DiseaseSynonyms...),
	}
}

// Overrides carries the subset of Config a single Run call may adjust,
// applied to a fresh Clone of the Pipeline's base Config. Only the knobs the
// original settings module exposed as per-request overrides are
// represented; everything else is fixed at Pipeline construction.
type Overrides struct {
	DiseaseContext            *string
	DiseaseKeywords           []string
	DiseaseSynonyms           []string
	EnforceFinalNameFilter    *bool
	MinInteractionConfidence  *float64
	TopNPathwaysForImportantGenes *int
	TopNImportantGenes        *int
	LiteratureTopNPathways    *int
}

// Apply returns base.Clone() with every non-nil override field applied.
func (o *Overrides) Apply(base Config) Config {
	cfg := base.Clone()
	if o == nil {
		return cfg
	}
	if o.DiseaseContext != nil {
		cfg.DiseaseContext = *o.DiseaseContext
		cfg.Validate.DiseaseContext = *o.DiseaseContext
	}
	if o.DiseaseKeywords != nil {
		cfg.DiseaseKeywords = append([]string(nil), o.DiseaseKeywords...)
	}
	if o.DiseaseSynonyms != nil {
		cfg.Semantic.DiseaseSynonyms = append([]string(nil), o.DiseaseSynonyms...)
	}
	if o.EnforceFinalNameFilter != nil {
		cfg.EnforceFinalNameFilter = *o.EnforceFinalNameFilter
	}
	if o.MinInteractionConfidence != nil {
		cfg.MinInteractionConfidence = *o.MinInteractionConfidence
	}
	if o.TopNPathwaysForImportantGenes != nil {
		cfg.TopNPathwaysForImportantGenes = *o.TopNPathwaysForImportantGenes
	}
	if o.TopNImportantGenes != nil {
		cfg.TopNImportantGenes = *o.TopNImportantGenes
	}
	if o.LiteratureTopNPathways != nil {
		cfg.LiteratureTopNPathways = *o.LiteratureTopNPathways
	}
	cfg.Validate.DiseaseContext = cfg.DiseaseContext
	return cfg
}

// ConfigSnapshot is the YAML-serializable projection of Config persisted
// alongside results.json, for audit and reproducibility: it captures every
// knob a run actually used, not just the ones an override touched.
type ConfigSnapshot struct {
	TargetSpecies                 string             `yaml:"target_species"`
	EnrichmentSources              []models.SourceDB  `yaml:"enrichment_sources"`
	MinInteractionConfidence       float64            `yaml:"min_interaction_confidence"`
	RedundancyThreshold            float64            `yaml:"redundancy_threshold"`
	DiseaseContext                 string             `yaml:"disease_context"`
	DiseaseKeywords                []string           `yaml:"disease_keywords"`
	EnforceFinalNameFilter         bool               `yaml:"enforce_final_name_filter"`
	TopNPathwaysForImportantGenes  int                `yaml:"top_n_pathways_for_important_genes"`
	TopNImportantGenes             int                `yaml:"top_n_important_genes"`
	LiteratureTopNPathways         int                `yaml:"literature_top_n_pathways"`
}

// Snapshot projects cfg into its persisted, human-auditable form.
func Snapshot(cfg Config) ConfigSnapshot {
	return ConfigSnapshot{
		TargetSpecies:                 cfg.TargetSpecies,
		EnrichmentSources:             cfg.EnrichmentSources,
		MinInteractionConfidence:      cfg.MinInteractionConfidence,
		RedundancyThreshold:           cfg.RedundancyThreshold,
		DiseaseContext:                cfg.DiseaseContext,
		DiseaseKeywords:               cfg.DiseaseKeywords,
		EnforceFinalNameFilter:        cfg.EnforceFinalNameFilter,
		TopNPathwaysForImportantGenes: cfg.TopNPathwaysForImportantGenes,
		TopNImportantGenes:            cfg.TopNImportantGenes,
		LiteratureTopNPathways:        cfg.LiteratureTopNPathways,
	}
}
