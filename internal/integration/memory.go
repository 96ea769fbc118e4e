// File: internal/integration/memory.go
package integration

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/SerupAI/mobiledroid/internal/config"
)

// MemoryStore serves integrations from process memory. It backs tests and
// the config-file mode of the run command, where integrations are declared
// as seeds instead of database rows.
type MemoryStore struct {
	integrations []Integration
	byID         map[uuid.UUID]*Integration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a store from config seeds. Seed IDs may be omitted,
// in which case one is generated; fallback references must point at a seed
// that declares an explicit id.
func NewMemoryStore(seeds []config.IntegrationSeed) (*MemoryStore, error) {
	s := &MemoryStore{byID: make(map[uuid.UUID]*Integration, len(seeds))}
	base := time.Now().UTC()

	for i, seed := range seeds {
		id := uuid.New()
		if seed.ID != "" {
			parsed, err := uuid.Parse(seed.ID)
			if err != nil {
				return nil, fmt.Errorf("integrations[%d]: invalid id %q: %w", i, seed.ID, err)
			}
			id = parsed
		}

		var fallback *uuid.UUID
		if seed.FallbackID != "" {
			parsed, err := uuid.Parse(seed.FallbackID)
			if err != nil {
				return nil, fmt.Errorf("integrations[%d]: invalid fallback_id %q: %w", i, seed.FallbackID, err)
			}
			fallback = &parsed
		}

		s.integrations = append(s.integrations, Integration{
			ID:                 id,
			Name:               seed.Name,
			Purpose:            seed.Purpose,
			Provider:           seed.Provider,
			Model:              seed.Model,
			APIKey:             seed.APIKey,
			BaseURL:            seed.BaseURL,
			MaxTokens:          seed.MaxTokens,
			Temperature:        seed.Temperature,
			Priority:           seed.Priority,
			IsDefault:          seed.Default,
			Active:             true,
			FallbackID:         fallback,
			MaxRequestsPerHour: seed.MaxRequestsPerHour,
			// Seed order stands in for creation order.
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
	}

	for i := range s.integrations {
		s.byID[s.integrations[i].ID] = &s.integrations[i]
	}
	return s, nil
}

func rank(list []Integration) {
	sort.SliceStable(list, func(a, b int) bool {
		if list[a].Priority != list[b].Priority {
			return list[a].Priority > list[b].Priority
		}
		return list[a].CreatedAt.Before(list[b].CreatedAt)
	})
}

// ListActiveByPurpose implements Store.
func (s *MemoryStore) ListActiveByPurpose(_ context.Context, purpose string) ([]Integration, error) {
	var out []Integration
	for _, in := range s.integrations {
		if in.Active && in.Purpose == purpose {
			out = append(out, in)
		}
	}
	rank(out)
	return out, nil
}

// ListActiveDefaults implements Store.
func (s *MemoryStore) ListActiveDefaults(_ context.Context) ([]Integration, error) {
	var out []Integration
	for _, in := range s.integrations {
		if in.Active && in.IsDefault {
			out = append(out, in)
		}
	}
	rank(out)
	return out, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Integration, error) {
	in, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("integration %s: %w", id, ErrNotFound)
	}
	cp := *in
	return &cp, nil
}
