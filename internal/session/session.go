package session

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// UserInfo identifies the signed-in user.
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Snapshot is a consistent view of the session at one point in time.
// While Loading is true neither SignedIn nor User may be trusted.
type Snapshot struct {
	Loading  bool
	SignedIn bool
	User     *UserInfo
}

// IAuthSource is the external auth collaborator the provider watches.
// CheckSession resolves the current user (nil when nobody is signed in);
// OnAuthStateChange registers a listener for pushed sign-in/sign-out events
// and returns a handle that releases the registration.
type IAuthSource interface {
	CheckSession(ctx context.Context) (*UserInfo, error)
	OnAuthStateChange(listener func(*UserInfo)) (unsubscribe func())
}

// ISession exposes the session state machine to readers.
type ISession interface {
	Snapshot() Snapshot
	Subscribe(listener func(Snapshot)) (unsubscribe func())
	Start(ctx context.Context) error
	Close()
}

// Provider owns the session state. It is constructor-injected into every
// component that needs the session; there is no package-level instance.
//
// States: loading until Start's initial session check resolves, then
// signed-out or signed-in, flipping on every event pushed by the source.
// It never goes back to loading.
type Provider struct {
	source IAuthSource

	mu        sync.RWMutex
	loading   bool
	user      *UserInfo
	listeners map[int]func(Snapshot)
	nextID    int

	unsubOnce   sync.Once
	unsubSource func()
}

// NewProvider creates a Provider watching the given source. The session
// stays in the loading state until Start is called.
func NewProvider(source IAuthSource) *Provider {
	return &Provider{
		source:    source,
		loading:   true,
		listeners: make(map[int]func(Snapshot)),
	}
}

// Start performs the initial session check and registers the single
// subscription to the source's change stream. It must be called once;
// Close releases the subscription.
func (p *Provider) Start(ctx context.Context) error {
	user, err := p.source.CheckSession(ctx)
	if err != nil {
		// The first resolution still happens: an unreachable auth source
		// means nobody is signed in, not a stuck loading screen.
		log.Printf("WARN: initial session check failed: %v", err)
		user = nil
	}

	p.mu.Lock()
	p.loading = false
	p.user = user
	p.mu.Unlock()
	p.notify()

	p.unsubSource = p.source.OnAuthStateChange(p.apply)

	if err != nil {
		return fmt.Errorf("initial session check: %w", err)
	}
	return nil
}

// Close releases the source subscription. Safe to call more than once.
func (p *Provider) Close() {
	p.unsubOnce.Do(func() {
		if p.unsubSource != nil {
			p.unsubSource()
		}
	})
}

// apply handles one pushed auth event.
func (p *Provider) apply(user *UserInfo) {
	p.mu.Lock()
	if p.loading {
		// Events cannot precede the initial resolution.
		p.mu.Unlock()
		return
	}
	p.user = user
	p.mu.Unlock()
	p.notify()
}

// Snapshot returns the current session view.
func (p *Provider) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		Loading:  p.loading,
		SignedIn: p.user != nil,
		User:     p.user,
	}
}

// Subscribe registers a listener called after every state change. The
// returned handle removes the registration; calling it twice is a no-op.
func (p *Provider) Subscribe(listener func(Snapshot)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) notify() {
	snap := p.Snapshot()
	p.mu.RLock()
	listeners := make([]func(Snapshot), 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.RUnlock()
	for _, l := range listeners {
		l(snap)
	}
}
