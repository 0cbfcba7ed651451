package subscription

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryRepository keeps users in process memory. It backs development runs without a
// database and tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
	now   func() time.Time
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*User), now: time.Now}
}

func clone(u *User) *User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	return &c
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return clone(u), nil
}

func (r *MemoryRepository) GetOrCreate(_ context.Context, id, email string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		now := r.now().UTC()
		u = &User{ID: id, Email: email, Subscription: Free(), CreatedAt: now, UpdatedAt: now}
		r.users[id] = u
	} else if u.Email == "" && email != "" {
		u.Email = email
	}
	return clone(u), nil
}

func (r *MemoryRepository) UpdateSubscription(_ context.Context, id string, sub Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	u, ok := r.users[id]
	if !ok {
		u = &User{ID: id, CreatedAt: now}
		r.users[id] = u
	}
	u.Subscription = sub
	u.UpdatedAt = now
	return nil
}

func (r *MemoryRepository) ClearToFree(ctx context.Context, id string) error {
	return r.UpdateSubscription(ctx, id, Free())
}

func (r *MemoryRepository) FindUserIDByCustomerID(_ context.Context, customerID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, u := range r.users {
		if u.Subscription.CustomerID != nil && *u.Subscription.CustomerID == customerID {
			return id, nil
		}
	}
	return "", ErrUserNotFound
}

func (r *MemoryRepository) FindUserIDByEmail(_ context.Context, email string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, u := range r.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return id, nil
		}
	}
	return "", ErrUserNotFound
}

// SetRoles replaces a user's roles.
func (r *MemoryRepository) SetRoles(id string, roles ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[id]; ok {
		u.Roles = roles
	}
}
