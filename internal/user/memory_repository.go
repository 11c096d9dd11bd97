package user

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byEmail map[string]User
	byID    map[string]User
}

// NewMemoryRepository builds an in-memory user store for testing. It
// enforces the same email uniqueness the Postgres index does.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		byEmail: make(map[string]User),
		byID:    make(map[string]User),
	}
}

func (r *memoryRepository) Create(_ context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[u.Email]; exists {
		return ErrEmailTaken
	}
	r.byEmail[u.Email] = u
	r.byID[u.ID] = u
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}
