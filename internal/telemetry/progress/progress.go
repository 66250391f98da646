// Package progress defines the event shape delivered through a pipeline
// run's progress callback: a single-subscriber function, since Run takes
// one progress callback rather than exposing a broadcast bus.
package progress

import (
	"context"
	"time"

	"github.com/cardiopath/nets/pkg/models"
	"go.opentelemetry.io/otel/trace"
)

// Event reports the completion (or skip) of a single pipeline stage.
type Event struct {
	Time    time.Time        `json:"time"`
	Stage   models.StageName `json:"stage"`
	Record  models.StageRecord `json:"record"`
	TraceID string           `json:"trace_id,omitempty"`
	SpanID  string           `json:"span_id,omitempty"`
}

// Func is the callback signature accepted by pipeline.Run. A nil Func is
// valid and simply discards every event.
type Func func(Event)

// Reporter wraps a possibly-nil Func and a metrics provider, emitting one
// Event (and incrementing a counter) per stage completion.
type Reporter struct {
	fn      Func
	stages  counterLike
}

type counterLike interface {
	Inc(delta float64, labels ...string)
}

// New returns a Reporter. stagesCounter may be nil to skip metrics.
func New(fn Func, stagesCounter counterLike) *Reporter {
	return &Reporter{fn: fn, stages: stagesCounter}
}

// Emit reports that record just completed for stage, under ctx (used to
// attach trace/span correlation).
func (r *Reporter) Emit(ctx context.Context, stage models.StageName, record models.StageRecord) {
	if r.stages != nil {
		label := "ok"
		if record.Skipped {
			label = "skipped"
		}
		r.stages.Inc(1, string(stage), label)
	}
	if r.fn == nil {
		return
	}
	ev := Event{Time: time.Now(), Stage: stage, Record: record}
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		ev.TraceID = sc.TraceID().String()
		ev.SpanID = sc.SpanID().String()
	}
	r.fn(ev)
}
