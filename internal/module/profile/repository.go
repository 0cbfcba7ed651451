package profile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines the interface for profile storage.
type Repository interface {
	// Upsert creates the profile or replaces its data, keeping the original creation time.
	Upsert(ctx context.Context, p *UserProfile) error
	Get(ctx context.Context, uid string) (*UserProfile, error)
	// List returns up to limit profiles, most recently updated first.
	List(ctx context.Context, limit int) ([]*UserProfile, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new profile repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, p *UserProfile) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoUpdates: clause.AssignmentColumns([]string{"profile_data", "version", "updated_at"}),
		}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *repository) Get(ctx context.Context, uid string) (*UserProfile, error) {
	var p UserProfile
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, limit int) ([]*UserProfile, error) {
	var profiles []*UserProfile
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// MemoryRepository keeps profiles in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*UserProfile
}

var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{profiles: make(map[string]*UserProfile)}
}

func cloneProfile(p *UserProfile) *UserProfile {
	c := *p
	c.ProfileData = slices.Clone(p.ProfileData)
	return &c
}

func (r *MemoryRepository) Upsert(_ context.Context, p *UserProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := cloneProfile(p)
	if existing, ok := r.profiles[p.UID]; ok {
		next.CreatedAt = existing.CreatedAt
	}
	if next.CreatedAt.IsZero() {
		next.CreatedAt = time.Now().UTC()
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = next.CreatedAt
	}
	r.profiles[p.UID] = next
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, uid string) (*UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[uid]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return cloneProfile(p), nil
}

func (r *MemoryRepository) List(_ context.Context, limit int) ([]*UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*UserProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, cloneProfile(p))
	}
	slices.SortFunc(out, func(a, b *UserProfile) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.UID, b.UID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
