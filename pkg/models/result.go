package models

import "time"

// StageName identifies a pipeline stage for progress reporting and the
// persisted per-stage record.
type StageName string

const (
	StageS0IDNormalization    StageName = "s0_id_normalization"
	StageS1Neighborhood       StageName = "s1_neighborhood"
	StageS2aPrimaryEnrichment StageName = "s2a_primary_enrichment"
	StageS2bSecondaryTriage   StageName = "s2b_secondary_triage"
	StageS2cRigorousAggregate StageName = "s2c_rigorous_aggregation"
	StageS3FinalScoring       StageName = "s3_final_scoring"
	StageS4aSemanticFilter    StageName = "s4a_semantic_filter"
	StageS4bRedundancyFilter  StageName = "s4b_redundancy_filter"
	StageS4cEnhancedValidate  StageName = "s4c_enhanced_validation"
	StageS5aLiteratureCite    StageName = "s5a_literature_citations"
	StageS5bSeedTracing       StageName = "s5b_seed_tracing"
	StageS5cStrictNameFilter  StageName = "s5c_strict_name_filter"
	StageS6TopGenes           StageName = "s6_top_gene_aggregation"
)

// StageRecord is the persisted summary of one stage's execution: how many
// items it produced, how many it dropped, and how long it took. The
// orchestrator never silently drops data — any dropped pathway is reflected
// in DroppedCount.
type StageRecord struct {
	Stage        StageName     `json:"stage"`
	InputCount   int           `json:"input_count"`
	OutputCount  int           `json:"output_count"`
	DroppedCount int           `json:"dropped_count"`
	Duration     time.Duration `json:"duration_ns"`
	Skipped      bool          `json:"skipped,omitempty"`
	Warning      string        `json:"warning,omitempty"`
}

// TopGene is an S6 output entry: an evidence gene ranked by its aggregate
// importance across the top pathways.
type TopGene struct {
	Symbol            string  `json:"symbol"`
	PathwayCount      int     `json:"pathway_count"`
	ImportanceScore   float64 `json:"importance_score"`
	DruggabilityBonus float64 `json:"druggability_bonus"`
	DiseaseBonus      float64 `json:"disease_bonus"`
	FinalScore        float64 `json:"final_score"`
}

// ReportArtifact references a persisted rendering of the result. Report
// rendering itself is out of scope; only the reference shape is modeled so
// the orchestrator has somewhere to record what it wrote.
type ReportArtifact struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// PipelineResult is the top-level object returned by Run and persisted as
// results.json.
type PipelineResult struct {
	AnalysisID string                     `json:"analysis_id"`
	StartedAt  time.Time                  `json:"started_at"`
	FinishedAt time.Time                  `json:"finished_at"`
	Incomplete bool                       `json:"incomplete"`
	Seeds      []string                   `json:"seeds"`
	Stages     map[StageName]*StageRecord `json:"stages"`
	Warnings   []string                   `json:"warnings"`
	Pathways   []*ScoredPathway           `json:"pathways"`
	TopGenes   []TopGene                  `json:"top_genes"`
	Reports    []ReportArtifact           `json:"reports,omitempty"`
}

// AddWarning appends a warning to the result, never erroring the run.
func (r *PipelineResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Stage returns (creating if needed) the stage record for name.
func (r *PipelineResult) Stage(name StageName) *StageRecord {
	if r.Stages == nil {
		r.Stages = make(map[StageName]*StageRecord)
	}
	rec, ok := r.Stages[name]
	if !ok {
		rec = &StageRecord{Stage: name}
		r.Stages[name] = rec
	}
	return rec
}
