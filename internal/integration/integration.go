// File: internal/integration/integration.go
// Description: Integration records bind a purpose ("automation", "chat", ...)
// to a concrete LLM provider, model and credential. The resolver picks the
// best active record for a purpose, following fallback chains when a record
// has no usable credential.

package integration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no usable integration exists for a purpose.
// Fallback-chain cycles and dead ends surface as ErrNotFound too, so callers
// only ever branch on one sentinel.
var ErrNotFound = errors.New("no usable integration found")

// ErrFallbackCycle marks a fallback chain that revisits an integration. It is
// always wrapped into ErrNotFound at the resolver boundary.
var ErrFallbackCycle = errors.New("fallback chain contains a cycle")

// Integration is one provider binding, denormalized across the provider,
// model and integration tables.
type Integration struct {
	ID                 uuid.UUID
	Name               string
	Purpose            string
	Provider           string
	Model              string
	APIKey             string
	BaseURL            string
	MaxTokens          int
	Temperature        float64
	Priority           int
	IsDefault          bool
	Active             bool
	FallbackID         *uuid.UUID
	MaxRequestsPerHour int
	CreatedAt          time.Time
}

// Usable reports whether the integration can serve requests directly,
// without following its fallback chain.
func (i *Integration) Usable() bool {
	return i.Active && i.APIKey != ""
}

// Store is the persistence surface the resolver works against.
//
// Both list methods return active records ordered by priority descending,
// then created_at ascending; the resolver depends on that ordering.
type Store interface {
	// ListActiveByPurpose returns all active integrations for the purpose.
	ListActiveByPurpose(ctx context.Context, purpose string) ([]Integration, error)
	// ListActiveDefaults returns all active integrations marked is_default.
	ListActiveDefaults(ctx context.Context) ([]Integration, error)
	// Get fetches a single integration by id, active or not.
	Get(ctx context.Context, id uuid.UUID) (*Integration, error)
}
