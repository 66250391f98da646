package pipeline

import (
	"context"
	"encoding/json"

	"github.com/cardiopath/nets/internal/cache"
	"github.com/cardiopath/nets/pkg/models"
	"github.com/cardiopath/nets/pkg/providers"
)

const idResolverNamespace = "id_resolver"

// cachingResolver memoizes IdResolver.Resolve behind the Pipeline's shared
// cache, keyed by a fingerprint of (inputID, targetSpecies). Identifier
// resolution is pure given those two inputs, so a hit is always safe to
// reuse across runs sharing the same Pipeline.
type cachingResolver struct {
	inner providers.IdResolver
	cache *cache.Cache
}

func (c *cachingResolver) Resolve(ctx context.Context, inputID, targetSpecies string) (models.Gene, error) {
	key, keyErr := cache.Fingerprint([2]string{inputID, targetSpecies})
	if keyErr == nil {
		if data, ok := c.cache.Get(idResolverNamespace, key); ok {
			var g models.Gene
			if err := json.Unmarshal(data, &g); err == nil {
				return g, nil
			}
		}
	}

	gene, err := c.inner.Resolve(ctx, inputID, targetSpecies)
	if err != nil {
		return gene, err
	}
	if keyErr == nil {
		if data, err := json.Marshal(gene); err == nil {
			c.cache.Set(idResolverNamespace, key, data)
		}
	}
	return gene, nil
}
