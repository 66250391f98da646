package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOTelProviderInstrumentsDoNotPanic(t *testing.T) {
	p := NewOTelProvider(OTelProviderOptions{})

	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{Namespace: "cardiopath", Name: "otel_test_counter", Labels: []string{"stage"}}})
	c.Inc(1, "s0_id_normalization")

	g := p.NewGauge(GaugeOpts{CommonOpts: CommonOpts{Name: "otel_test_gauge"}})
	g.Set(10)
	g.Add(5)

	h := p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{Name: "otel_test_hist"}})
	h.Observe(1.5)

	newTimer := p.NewTimer(HistogramOpts{CommonOpts: CommonOpts{Name: "otel_test_timer"}})
	timer := newTimer()
	timer.ObserveDuration()

	assert.NoError(t, p.Health(context.Background()))
}

func TestOTelProviderWarnsOnCardinalityOverflow(t *testing.T) {
	p := NewOTelProvider(OTelProviderOptions{CardinalityLimit: 2})
	c := p.NewCounter(CounterOpts{CommonOpts: CommonOpts{Name: "otel_test_cardinality", Labels: []string{"gene"}}})
	for _, gene := range []string{"RYR2", "SCN5A", "CASQ2", "CACNA1C"} {
		c.Inc(1, gene)
	}
	// Exceeding the limit only logs a warning counter internally; the
	// provider must keep accepting writes rather than erroring.
	assert.NoError(t, p.Health(context.Background()))
}
