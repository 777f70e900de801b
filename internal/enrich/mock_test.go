package enrich

import (
	"context"
	"sync"

	"github.com/sells-group/leadgen/pkg/enrichment"
)

// fakeLimiter counts waits and optionally cancels after a number of them.
type fakeLimiter struct {
	mu          sync.Mutex
	waits       int
	cancelAfter int
	cancel      context.CancelFunc
}

func (f *fakeLimiter) Wait(ctx context.Context) error {
	f.mu.Lock()
	f.waits++
	n := f.waits
	f.mu.Unlock()

	if f.cancel != nil && n == f.cancelAfter {
		f.cancel()
	}
	return ctx.Err()
}

func (f *fakeLimiter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waits
}

// mockClient implements enrichment.Client with a function field.
type mockClient struct {
	mu     sync.Mutex
	calls  []string
	enrich func(ctx context.Context, placeID string) (*enrichment.Response, error)
}

func (m *mockClient) Enrich(ctx context.Context, placeID string) (*enrichment.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, placeID)
	m.mu.Unlock()
	return m.enrich(ctx, placeID)
}
