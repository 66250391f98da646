package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline error for callers that need to branch on
// cause without parsing messages.
type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindProviderMalformed   ErrorKind = "provider_malformed"
	KindCancelled           ErrorKind = "cancelled"
	KindValidationFailed    ErrorKind = "validation_failed"
	KindReportFailed        ErrorKind = "report_failed"
)

// PipelineError is the single wrapped-error type every stage and provider
// boundary returns. Stage and Provider are optional provenance fields set as
// the error crosses boundaries; Err is the underlying cause and is always
// preserved for errors.Is/errors.As.
type PipelineError struct {
	Kind     ErrorKind
	Stage    StageName
	Provider string
	Err      error
}

func (e *PipelineError) Error() string {
	switch {
	case e.Stage != "" && e.Provider != "":
		return fmt.Sprintf("%s: stage %s: provider %s: %v", e.Kind, e.Stage, e.Provider, e.Err)
	case e.Stage != "":
		return fmt.Sprintf("%s: stage %s: %v", e.Kind, e.Stage, e.Err)
	case e.Provider != "":
		return fmt.Sprintf("%s: provider %s: %v", e.Kind, e.Provider, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &PipelineError{Kind: KindX}) to match on kind
// alone, independent of Stage/Provider/Err.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	return true
}

// NewError wraps err with kind, returning nil if err is nil so call sites
// can write `return NewError(KindX, err)` unconditionally.
func NewError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{Kind: kind, Err: err}
}

// WithStage returns a copy of err's PipelineError annotated with stage, or
// wraps err fresh as KindValidationFailed if it isn't already a
// PipelineError (defensive: stage functions should always pass typed
// errors, but this keeps Stage() informative even if one doesn't).
func WithStage(err error, stage StageName) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		clone := *pe
		clone.Stage = stage
		return &clone
	}
	return &PipelineError{Kind: KindValidationFailed, Stage: stage, Err: err}
}

// WithProvider annotates err's PipelineError with the provider name that
// produced it.
func WithProvider(err error, provider string) error {
	if err == nil {
		return nil
	}
	var pe *PipelineError
	if errors.As(err, &pe) {
		clone := *pe
		clone.Provider = provider
		return &clone
	}
	return &PipelineError{Kind: KindProviderUnavailable, Provider: provider, Err: err}
}

// Sentinel kind-only errors for use with errors.Is at call sites that only
// care about kind, e.g. errors.Is(err, ErrCancelled).
var (
	ErrInvalidInput        = &PipelineError{Kind: KindInvalidInput, Err: errors.New("invalid input")}
	ErrProviderUnavailable = &PipelineError{Kind: KindProviderUnavailable, Err: errors.New("provider unavailable")}
	ErrProviderMalformed   = &PipelineError{Kind: KindProviderMalformed, Err: errors.New("provider returned malformed data")}
	ErrCancelled           = &PipelineError{Kind: KindCancelled, Err: errors.New("cancelled")}
	ErrValidationFailed    = &PipelineError{Kind: KindValidationFailed, Err: errors.New("validation failed")}
	ErrReportFailed        = &PipelineError{Kind: KindReportFailed, Err: errors.New("report assembly failed")}
)
