package metrics

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelProviderOptions configures NewOTelProvider.
type OTelProviderOptions struct {
	CardinalityLimit int // 0 uses a default of 100 distinct label-value combos per metric
}

// NewOTelProvider returns a Provider backed by an OpenTelemetry
// MeterProvider, for deployments that ship metrics to an OTLP collector
// instead of exposing a Prometheus scrape endpoint. Exporters and readers
// can be layered onto the returned SDK provider by a caller that needs
// them; by default nothing is exported.
func NewOTelProvider(opts OTelProviderOptions) Provider {
	mp := sdkmetric.NewMeterProvider()
	meter := mp.Meter("cardiopath.nets")
	limit := opts.CardinalityLimit
	if limit <= 0 {
		limit = 100
	}
	warnCtr, _ := meter.Float64Counter("cardiopath.telemetry.cardinality_exceeded.total",
		metric.WithDescription("count of metrics whose label cardinality exceeded the configured limit"))
	return &otelProvider{
		mp: mp, meter: meter, cardLimit: limit,
		cardinality:  make(map[string]map[string]struct{}),
		exceededOnce: make(map[string]struct{}),
		warnCounter:  warnCtr,
	}
}

type otelProvider struct {
	mp    *sdkmetric.MeterProvider
	meter metric.Meter

	mu          sync.Mutex
	cardinality map[string]map[string]struct{}
	cardLimit   int

	exceededOnce map[string]struct{}
	warnCounter  metric.Float64Counter
}

func (p *otelProvider) NewCounter(opts CounterOpts) Counter {
	name := buildOTelName(opts.CommonOpts)
	inst, err := p.meter.Float64Counter(name, metric.WithDescription(opts.Help))
	if err != nil {
		return noopCounter{}
	}
	return &otelCounter{c: inst, labelKeys: opts.Labels, provider: p, id: name}
}

func (p *otelProvider) NewGauge(opts GaugeOpts) Gauge {
	name := buildOTelName(opts.CommonOpts)
	inst, err := p.meter.Float64UpDownCounter(name, metric.WithDescription(opts.Help))
	if err != nil {
		return noopGauge{}
	}
	return &otelGauge{g: inst, labelKeys: opts.Labels, provider: p, id: name}
}

func (p *otelProvider) NewHistogram(opts HistogramOpts) Histogram {
	name := buildOTelName(opts.CommonOpts)
	inst, err := p.meter.Float64Histogram(name, metric.WithDescription(opts.Help))
	if err != nil {
		return noopHistogram{}
	}
	return &otelHistogram{h: inst, labelKeys: opts.Labels, provider: p, id: name}
}

func (p *otelProvider) NewTimer(opts HistogramOpts) func() Timer {
	hist := p.NewHistogram(opts)
	return func() Timer { return &otelTimer{hist: hist, start: time.Now()} }
}

func (p *otelProvider) Health(ctx context.Context) error { return nil }

// buildOTelName composes namespace/subsystem/name with dot separators,
// OTel's naming convention (Prometheus uses underscores; see buildFQName).
func buildOTelName(c CommonOpts) string {
	switch {
	case c.Namespace != "" && c.Subsystem != "":
		return c.Namespace + "." + c.Subsystem + "." + c.Name
	case c.Namespace != "":
		return c.Namespace + "." + c.Name
	case c.Subsystem != "":
		return c.Subsystem + "." + c.Name
	default:
		return c.Name
	}
}

type otelCounter struct {
	c         metric.Float64Counter
	labelKeys []string
	provider  *otelProvider
	id        string
}

func (c *otelCounter) Inc(delta float64, labels ...string) {
	if delta <= 0 {
		return
	}
	c.provider.cardinalityTrack(c.id, labels)
	if len(c.labelKeys) == 0 || len(labels) == 0 {
		c.c.Add(context.Background(), delta)
		return
	}
	c.c.Add(context.Background(), delta, metric.WithAttributes(toAttributes(c.labelKeys, labels)...))
}

// otelGauge simulates Set semantics over an UpDownCounter, which only
// supports relative Add; Set tracks the last value locally and emits the
// delta.
type otelGauge struct {
	g         metric.Float64UpDownCounter
	value     atomic.Value
	mu        sync.Mutex
	labelKeys []string
	provider  *otelProvider
	id        string
}

func (g *otelGauge) Set(v float64, labels ...string) {
	g.mu.Lock()
	prev, _ := g.value.Load().(float64)
	diff := v - prev
	g.value.Store(v)
	g.mu.Unlock()
	if diff == 0 {
		return
	}
	g.provider.cardinalityTrack(g.id, labels)
	if len(g.labelKeys) == 0 || len(labels) == 0 {
		g.g.Add(context.Background(), diff)
		return
	}
	g.g.Add(context.Background(), diff, metric.WithAttributes(toAttributes(g.labelKeys, labels)...))
}

func (g *otelGauge) Add(delta float64, labels ...string) {
	if delta == 0 {
		return
	}
	g.mu.Lock()
	prev, _ := g.value.Load().(float64)
	g.value.Store(prev + delta)
	g.mu.Unlock()
	g.provider.cardinalityTrack(g.id, labels)
	if len(g.labelKeys) == 0 || len(labels) == 0 {
		g.g.Add(context.Background(), delta)
		return
	}
	g.g.Add(context.Background(), delta, metric.WithAttributes(toAttributes(g.labelKeys, labels)...))
}

type otelHistogram struct {
	h         metric.Float64Histogram
	labelKeys []string
	provider  *otelProvider
	id        string
}

func (h *otelHistogram) Observe(value float64, labels ...string) {
	h.provider.cardinalityTrack(h.id, labels)
	if len(h.labelKeys) == 0 || len(labels) == 0 {
		h.h.Record(context.Background(), value)
		return
	}
	h.h.Record(context.Background(), value, metric.WithAttributes(toAttributes(h.labelKeys, labels)...))
}

type otelTimer struct {
	hist  Histogram
	start time.Time
}

func (t *otelTimer) ObserveDuration(labels ...string) {
	t.hist.Observe(time.Since(t.start).Seconds(), labels...)
}

func toAttributes(keys, values []string) []attribute.KeyValue {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	if n == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, attribute.String(keys[i], values[i]))
	}
	return out
}

func (p *otelProvider) cardinalityTrack(id string, labelValues []string) {
	if p.cardLimit <= 0 || len(labelValues) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.cardinality[id]
	if set == nil {
		set = make(map[string]struct{})
		p.cardinality[id] = set
	}
	key := fmt.Sprint(labelValues)
	if _, ok := set[key]; ok {
		return
	}
	set[key] = struct{}{}
	if len(set) <= p.cardLimit {
		return
	}
	if _, warned := p.exceededOnce[id]; warned {
		return
	}
	p.exceededOnce[id] = struct{}{}
	p.warnCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("metric", id)))
}
