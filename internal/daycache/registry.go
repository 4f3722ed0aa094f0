package daycache

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("calendar session not found")

// Registry hands out one Cache per calendar session.
type Registry struct {
	newCache func() *Cache

	mu       sync.RWMutex
	sessions map[string]*Cache
}

func NewRegistry(newCache func() *Cache) *Registry {
	return &Registry{newCache: newCache, sessions: make(map[string]*Cache)}
}

// Create starts a session and returns its id.
func (r *Registry) Create() (string, *Cache) {
	id := uuid.NewString()
	c := r.newCache()

	r.mu.Lock()
	r.sessions[id] = c
	r.mu.Unlock()
	return id, c
}

func (r *Registry) Get(id string) (*Cache, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Close ends a session and tears its cache down.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	c, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	c.Close()
	return nil
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Cache)
	r.mu.Unlock()

	for _, c := range sessions {
		c.Close()
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
