// File: internal/integration/resolver.go
package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type cacheEntry struct {
	integration *Integration
	expires     time.Time
}

// Resolver answers "which integration serves this purpose right now". Hits
// are cached per purpose for a TTL so the hot path of the task loop does not
// touch the store on every step.
type Resolver struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	clock  func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewResolver creates a resolver over the given store. A zero ttl disables
// caching.
func NewResolver(store Store, ttl time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:  store,
		ttl:    ttl,
		logger: logger.Named("integration_resolver"),
		clock:  time.Now,
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve returns the integration to use for the purpose. Candidates for the
// purpose are tried in rank order; a candidate without a credential is
// resolved through its fallback chain. When the purpose has no candidates at
// all, any active default integration serves as a last resort.
func (r *Resolver) Resolve(ctx context.Context, purpose string) (*Integration, error) {
	if in := r.cached(purpose); in != nil {
		return in, nil
	}

	candidates, err := r.store.ListActiveByPurpose(ctx, purpose)
	if err != nil {
		return nil, fmt.Errorf("failed to list integrations for purpose %q: %w", purpose, err)
	}
	if len(candidates) == 0 {
		r.logger.Debug("no integrations for purpose, trying defaults", zap.String("purpose", purpose))
		candidates, err = r.store.ListActiveDefaults(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list default integrations: %w", err)
		}
	}

	for i := range candidates {
		in, err := r.followChain(ctx, &candidates[i])
		if err != nil {
			r.logger.Warn("integration chain unusable",
				zap.String("integration", candidates[i].Name),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("resolved integration",
			zap.String("purpose", purpose),
			zap.String("integration", in.Name),
			zap.String("provider", in.Provider),
			zap.String("model", in.Model),
		)
		r.put(purpose, in)
		return in, nil
	}

	return nil, fmt.Errorf("purpose %q: %w", purpose, ErrNotFound)
}

// followChain walks fallback_integration_id links until it reaches a usable
// integration. A revisited id means the chain is cyclic.
func (r *Resolver) followChain(ctx context.Context, start *Integration) (*Integration, error) {
	visited := map[uuid.UUID]bool{}
	current := start

	for {
		if current.Usable() {
			return current, nil
		}
		visited[current.ID] = true

		if current.FallbackID == nil {
			return nil, fmt.Errorf("integration %q has no credential and no fallback: %w", current.Name, ErrNotFound)
		}
		if visited[*current.FallbackID] {
			return nil, fmt.Errorf("integration %q: %w", current.Name, ErrFallbackCycle)
		}

		next, err := r.store.Get(ctx, *current.FallbackID)
		if err != nil {
			return nil, fmt.Errorf("failed to follow fallback from %q: %w", current.Name, err)
		}
		r.logger.Debug("following fallback",
			zap.String("from", current.Name),
			zap.String("to", next.Name),
		)
		current = next
	}
}

// Invalidate drops every cached resolution. Call it after integrations are
// reconfigured.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]cacheEntry)
}

func (r *Resolver) cached(purpose string) *Integration {
	if r.ttl <= 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[purpose]
	if !ok || r.clock().After(entry.expires) {
		return nil
	}
	return entry.integration
}

func (r *Resolver) put(purpose string, in *Integration) {
	if r.ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[purpose] = cacheEntry{integration: in, expires: r.clock().Add(r.ttl)}
}
