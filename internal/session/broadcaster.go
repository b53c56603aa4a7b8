package session

import (
	"context"
	"sync"
)

// Broadcaster is an in-process IAuthSource. The auth surface pushes events
// into it with Signal and the Provider consumes them.
type Broadcaster struct {
	mu        sync.RWMutex
	current   *UserInfo
	listeners map[int]func(*UserInfo)
	nextID    int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[int]func(*UserInfo)),
	}
}

// CheckSession reports the last signalled user.
func (b *Broadcaster) CheckSession(ctx context.Context) (*UserInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current, nil
}

// OnAuthStateChange registers a listener for future Signal calls.
func (b *Broadcaster) OnAuthStateChange(listener func(*UserInfo)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
		})
	}
}

// Signal records a sign-in (non-nil user) or sign-out (nil) and notifies
// all registered listeners.
func (b *Broadcaster) Signal(user *UserInfo) {
	b.mu.Lock()
	b.current = user
	listeners := make([]func(*UserInfo), 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.Unlock()

	for _, l := range listeners {
		l(user)
	}
}
