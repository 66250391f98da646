// Package metrics defines a small Provider abstraction over counters,
// gauges, and histograms, backed by github.com/prometheus/client_golang.
// Call sites depend only on the interfaces so a NoopProvider can stand in
// for tests without pulling in a registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

var metricNameRE = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

// Counter is a monotonically increasing value.
type Counter interface {
	Inc(delta float64, labels ...string)
}

// Gauge can move up or down.
type Gauge interface {
	Set(value float64, labels ...string)
	Add(delta float64, labels ...string)
}

// Histogram records observations into buckets.
type Histogram interface {
	Observe(value float64, labels ...string)
}

// Timer measures elapsed time since creation, observed into a histogram.
type Timer interface {
	ObserveDuration(labels ...string)
}

// CommonOpts are the fields shared by every metric kind.
type CommonOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

type CounterOpts struct{ CommonOpts }
type GaugeOpts struct{ CommonOpts }
type HistogramOpts struct {
	CommonOpts
	Buckets []float64
}

// Provider constructs named metric instruments.
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	NewHistogram(opts HistogramOpts) Histogram
	NewTimer(opts HistogramOpts) func() Timer
	Health(ctx context.Context) error
}

// PrometheusProvider implements Provider against a prometheus.Registry.
type PrometheusProvider struct {
	reg        *prom.Registry
	mu         sync.RWMutex
	counters   map[string]*prom.CounterVec
	gauges     map[string]*prom.GaugeVec
	histograms map[string]*prom.HistogramVec
	problems   []error
}

// NewPrometheusProvider returns a provider backed by reg, or a fresh
// registry if reg is nil.
func NewPrometheusProvider(reg *prom.Registry) *PrometheusProvider {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	return &PrometheusProvider{
		reg:        reg,
		counters:   make(map[string]*prom.CounterVec),
		gauges:     make(map[string]*prom.GaugeVec),
		histograms: make(map[string]*prom.HistogramVec),
	}
}

// Registry exposes the underlying registry for wiring a /metrics handler.
func (p *PrometheusProvider) Registry() *prom.Registry { return p.reg }

func (p *PrometheusProvider) buildFQName(c CommonOpts) (string, error) {
	if c.Name == "" {
		return "", errors.New("metric name required")
	}
	fq := c.Name
	if c.Subsystem != "" {
		fq = c.Subsystem + "_" + fq
	}
	if c.Namespace != "" {
		fq = c.Namespace + "_" + fq
	}
	if !metricNameRE.MatchString(fq) {
		return "", fmt.Errorf("invalid metric name: %s", fq)
	}
	return fq, nil
}

func (p *PrometheusProvider) NewCounter(opts CounterOpts) Counter {
	fq, err := p.buildFQName(opts.CommonOpts)
	if err != nil {
		p.recordProblem(err)
		return noopCounter{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cv, ok := p.counters[fq]; ok {
		return &promCounter{cv: cv}
	}
	vec := prom.NewCounterVec(prom.CounterOpts{Name: fq, Help: opts.Help}, opts.Labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.CounterVec)
		} else {
			p.recordProblem(err)
			return noopCounter{}
		}
	}
	p.counters[fq] = vec
	return &promCounter{cv: vec}
}

func (p *PrometheusProvider) NewGauge(opts GaugeOpts) Gauge {
	fq, err := p.buildFQName(opts.CommonOpts)
	if err != nil {
		p.recordProblem(err)
		return noopGauge{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if gv, ok := p.gauges[fq]; ok {
		return &promGauge{gv: gv}
	}
	vec := prom.NewGaugeVec(prom.GaugeOpts{Name: fq, Help: opts.Help}, opts.Labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.GaugeVec)
		} else {
			p.recordProblem(err)
			return noopGauge{}
		}
	}
	p.gauges[fq] = vec
	return &promGauge{gv: vec}
}

func (p *PrometheusProvider) NewHistogram(opts HistogramOpts) Histogram {
	fq, err := p.buildFQName(opts.CommonOpts)
	if err != nil {
		p.recordProblem(err)
		return noopHistogram{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if hv, ok := p.histograms[fq]; ok {
		return &promHistogram{hv: hv}
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	vec := prom.NewHistogramVec(prom.HistogramOpts{Name: fq, Help: opts.Help, Buckets: buckets}, opts.Labels)
	if err := p.reg.Register(vec); err != nil {
		if are, ok := err.(prom.AlreadyRegisteredError); ok {
			vec = are.ExistingCollector.(*prom.HistogramVec)
		} else {
			p.recordProblem(err)
			return noopHistogram{}
		}
	}
	p.histograms[fq] = vec
	return &promHistogram{hv: vec}
}

func (p *PrometheusProvider) NewTimer(opts HistogramOpts) func() Timer {
	hist := p.NewHistogram(opts)
	return func() Timer { return &promTimer{hist: hist, start: time.Now()} }
}

func (p *PrometheusProvider) Health(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.problems) == 0 {
		return nil
	}
	return fmt.Errorf("metrics provider encountered %d problems (first: %v)", len(p.problems), p.problems[0])
}

func (p *PrometheusProvider) recordProblem(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.problems = append(p.problems, err)
}

type promCounter struct{ cv *prom.CounterVec }

func (c *promCounter) Inc(delta float64, labels ...string) {
	if delta <= 0 {
		return
	}
	c.cv.WithLabelValues(labels...).Add(delta)
}

type promGauge struct{ gv *prom.GaugeVec }

func (g *promGauge) Set(value float64, labels ...string) { g.gv.WithLabelValues(labels...).Set(value) }
func (g *promGauge) Add(delta float64, labels ...string)  { g.gv.WithLabelValues(labels...).Add(delta) }

type promHistogram struct{ hv *prom.HistogramVec }

func (h *promHistogram) Observe(value float64, labels ...string) {
	h.hv.WithLabelValues(labels...).Observe(value)
}

type promTimer struct {
	hist  Histogram
	start time.Time
}

func (t *promTimer) ObserveDuration(labels ...string) {
	t.hist.Observe(time.Since(t.start).Seconds(), labels...)
}

// NoopProvider discards every metric. Used in tests and whenever no
// Prometheus registry is wired.
type NoopProvider struct{}

func (NoopProvider) NewCounter(CounterOpts) Counter           { return noopCounter{} }
func (NoopProvider) NewGauge(GaugeOpts) Gauge                 { return noopGauge{} }
func (NoopProvider) NewHistogram(HistogramOpts) Histogram     { return noopHistogram{} }
func (NoopProvider) NewTimer(HistogramOpts) func() Timer      { return func() Timer { return noopTimer{} } }
func (NoopProvider) Health(ctx context.Context) error         { return nil }

type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}
type noopTimer struct{}

func (noopCounter) Inc(float64, ...string)     {}
func (noopGauge) Set(float64, ...string)       {}
func (noopGauge) Add(float64, ...string)       {}
func (noopHistogram) Observe(float64, ...string) {}
func (noopTimer) ObserveDuration(...string)    {}
