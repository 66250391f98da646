package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetGet_RoundTrips(t *testing.T) {
	c := New(1<<20, time.Minute)
	c.Set("enrichment", "k1", []byte("hello"))
	got, ok := c.Get("enrichment", "k1")
	require.True(t, ok)
	require.Equal(t, []byte("hello"), got)
}

func TestGet_MissIsFalse(t *testing.T) {
	c := New(1<<20, time.Minute)
	_, ok := c.Get("enrichment", "missing")
	require.False(t, ok)
}

func TestExpiry_PerNamespaceTTL(t *testing.T) {
	c := New(1<<20, time.Hour)
	frozen := time.Now()
	c.now = func() time.Time { return frozen }
	c.SetNamespaceTTL("fast", time.Second)
	c.Set("fast", "k", []byte("v"))

	c.now = func() time.Time { return frozen.Add(2 * time.Second) }
	_, ok := c.Get("fast", "k")
	require.False(t, ok, "entry should have expired under the namespace TTL")
}

func TestEviction_RespectsByteBudget(t *testing.T) {
	c := New(10, time.Hour)
	c.Set("ns", "a", []byte("12345"))
	c.Set("ns", "b", []byte("67890"))
	c.Set("ns", "c", []byte("abcde")) // forces eviction of "a"

	_, ok := c.Get("ns", "a")
	require.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("ns", "c")
	require.True(t, ok)

	stats := c.Stats()
	require.LessOrEqual(t, stats.Bytes, int64(10))
}

func TestStats_CountsSets(t *testing.T) {
	c := New(1<<20, time.Minute)
	c.Set("ns", "a", []byte("1"))
	c.Set("ns", "b", []byte("2"))
	c.Set("ns", "a", []byte("1-updated")) // overwrite, still counts as a set

	stats := c.Stats()
	require.Equal(t, int64(3), stats.Sets)
}

func TestClearNamespace_OnlyAffectsThatNamespace(t *testing.T) {
	c := New(1<<20, time.Minute)
	c.Set("a", "k", []byte("1"))
	c.Set("b", "k", []byte("2"))
	c.ClearNamespace("a")

	_, ok := c.Get("a", "k")
	require.False(t, ok)
	_, ok = c.Get("b", "k")
	require.True(t, ok)
}

func TestFingerprint_StableForEqualValues(t *testing.T) {
	type req struct {
		Genes []string
		Limit int
	}
	f1, err := Fingerprint(req{Genes: []string{"TP53", "BRCA1"}, Limit: 10})
	require.NoError(t, err)
	f2, err := Fingerprint(req{Genes: []string{"TP53", "BRCA1"}, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, f1, f2)
}
