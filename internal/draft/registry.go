package draft

import (
	"context"
	"log"
	"sync"

	"github.com/zsleinadg/WebCarros/internal/session"
	"github.com/zsleinadg/WebCarros/internal/storage"
	"github.com/zsleinadg/WebCarros/internal/validation"
)

// entry ties one user's draft to the session plumbing that feeds it.
type entry struct {
	manager     *Manager
	broadcaster *session.Broadcaster
	provider    *session.Provider
}

// Registry hands out one draft manager per signed-in user. Each manager
// gets its own session provider, fed from the authenticated request
// identity; releasing a user signals sign-out and abandons the draft.
type Registry struct {
	store     storage.IS3Storage
	inserter  ICarInserter
	validator validation.ICarFormValidator
	enqueuer  IImageEnqueuer
	maxBytes  int64

	mu      sync.Mutex
	entries map[string]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry(store storage.IS3Storage, inserter ICarInserter, v validation.ICarFormValidator, enqueuer IImageEnqueuer, maxBytes int64) *Registry {
	return &Registry{
		store:     store,
		inserter:  inserter,
		validator: v,
		enqueuer:  enqueuer,
		maxBytes:  maxBytes,
		entries:   make(map[string]*entry),
	}
}

// For returns the draft manager for the given user, creating it on first
// use. The caller passes the identity established by the auth layer.
func (r *Registry) For(ctx context.Context, user session.UserInfo) (*Manager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[user.ID]; ok {
		// Keep the display identity current.
		e.broadcaster.Signal(&user)
		return e.manager, nil
	}

	b := session.NewBroadcaster()
	b.Signal(&user)
	p := session.NewProvider(b)
	if err := p.Start(ctx); err != nil {
		return nil, err
	}

	m := NewManager(p, r.store, r.inserter, r.validator, r.enqueuer, r.maxBytes)
	r.entries[user.ID] = &entry{manager: m, broadcaster: b, provider: p}
	return m, nil
}

// Release tears down a user's draft: the session transitions to
// signed-out, the provider subscription is closed, and the abandoned
// draft is discarded (previews released, uploads removed best-effort).
func (r *Registry) Release(ctx context.Context, userID string) {
	r.mu.Lock()
	e, ok := r.entries[userID]
	if ok {
		delete(r.entries, userID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	e.manager.Discard(ctx)
	e.broadcaster.Signal(nil)
	e.provider.Close()
	log.Printf("Released draft state for user %s", userID)
}
