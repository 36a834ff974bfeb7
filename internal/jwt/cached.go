package jwt

import (
	"context"
	"time"

	"github.com/maypok86/otter"
	"github.com/rs/zerolog/log"
)

// CachedKeys supplies a decorator that keeps a retrieved key set for ttl.
// Failures are not cached. The cache is non-locking: concurrent misses may
// fetch the key set more than once, and the last result written wins.
func CachedKeys(ttl time.Duration) (func(KeyResolver) KeyResolver, error) {
	cache, err := otter.
		MustBuilder[string, KeySet](16).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, err
	}

	return func(resolver KeyResolver) KeyResolver {
		return KeyResolverFunc(func(ctx context.Context) (KeySet, error) {
			// there is only ever a single issuer per resolver
			const key = "jwks"

			if keys, ok := cache.Get(key); ok {
				return keys, nil
			}

			keys, err := resolver.KeySet(ctx)
			if err != nil {
				return nil, err
			}

			log.Debug().Int("keys", len(keys)).Dur("ttl", ttl).Msg("miss: signing key set fetched")

			cache.Set(key, keys)

			return keys, nil
		})
	}, nil
}
