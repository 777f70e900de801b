// Package distlock guards keys against concurrent holders, either within one
// process or across replicas through Redis.
package distlock

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrHeld is returned when the key is already held by another caller.
var ErrHeld = eris.New("distlock: lock held")

// Guard hands out exclusive, non-blocking holds on string keys.
type Guard interface {
	// Acquire takes the key or fails with ErrHeld. The returned release
	// function is safe to call more than once.
	Acquire(ctx context.Context, key string) (func(), error)
}

// Local is an in-process Guard backed by a mutex-protected set.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal creates an in-process guard.
func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

// Acquire implements Guard.
func (l *Local) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, eris.Wrapf(ErrHeld, "distlock: key %s", key)
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

// Held reports whether key is currently held.
func (l *Local) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// releaseTimeout bounds the release round trip, which runs after the
// caller's context may already be done.
const releaseTimeout = 5 * time.Second
