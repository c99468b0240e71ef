// Package adapters maps payment-platform names to webhook adapters. A single
// platform (Stripe) ships today; the registry keeps room for others without
// touching the router.
package adapters

import (
	"context"
	"net/http"
	"strings"

	"github.com/checklanehq/checklane/internal/billing/domain"
)

// Adapter verifies a raw webhook delivery and parses it into the canonical
// event. Verify must run over the exact bytes received, before any decoding.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*domain.Event, error)
}

type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[strings.ToLower(a.Provider())] = a
	}
	return r
}

func (r *Registry) Get(provider string) (Adapter, bool) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	return a, ok
}
