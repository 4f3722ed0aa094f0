package distance

import (
	"context"
	"fmt"
	"sync"

	"drive-time-scheduler/internal/ports"
)

type MockPair struct {
	From, To string
	Meters   int
	Seconds  int
}

// MockDistanceProvider serves fixed legs. Lookups of unknown pairs fail, and
// any location listed in Down fails every lookup it originates.
type MockDistanceProvider struct {
	mu    sync.Mutex
	m     map[string]ports.DistanceResult
	Down  map[string]bool
	calls int
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[p.From+"|"+p.To] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockDistanceProvider{m: m, Down: map[string]bool{}}
}

func (p *MockDistanceProvider) GetDistance(ctx context.Context, origin, destination string) (ports.DistanceResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++

	if p.Down[origin] {
		return ports.DistanceResult{}, fmt.Errorf("origin %q unreachable", origin)
	}
	r, ok := p.m[origin+"|"+destination]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("missing pair %q -> %q", origin, destination)
	}

	return r, nil
}

// Calls returns how many leg lookups were made.
func (p *MockDistanceProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
