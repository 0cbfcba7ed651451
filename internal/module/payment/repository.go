package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository remembers which webhook events were already received.
type EventRepository interface {
	// Record stores ev and reports whether it was new. A false result means the provider
	// delivered the same event before.
	Record(ctx context.Context, ev *WebhookEvent) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID string, processErr error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed event repository.
func NewRepository(db *gorm.DB) EventRepository {
	return &repository{db: db}
}

func (r *repository) Record(ctx context.Context, ev *WebhookEvent) (bool, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(ev)
	if res.Error != nil {
		return false, fmt.Errorf("record webhook event: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) MarkProcessed(ctx context.Context, provider, eventID string, processErr error) error {
	updates := map[string]any{
		"processed":    true,
		"processed_at": gorm.Expr("NOW()"),
	}
	if processErr != nil {
		updates["error"] = processErr.Error()
	}
	err := r.db.WithContext(ctx).
		Model(&WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

// MemoryRepository is an in-process EventRepository for development and tests.
type MemoryRepository struct {
	mu     sync.Mutex
	events map[string]*WebhookEvent
	now    func() time.Time
}

var _ EventRepository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory event repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{events: make(map[string]*WebhookEvent), now: time.Now}
}

func memoryKey(provider, eventID string) string {
	return provider + "\x00" + eventID
}

func (r *MemoryRepository) Record(_ context.Context, ev *WebhookEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey(ev.Provider, ev.EventID)
	if _, ok := r.events[key]; ok {
		return false, nil
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	stored := *ev
	stored.CreatedAt = r.now().UTC()
	r.events[key] = &stored
	return true, nil
}

func (r *MemoryRepository) MarkProcessed(_ context.Context, provider, eventID string, processErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.events[memoryKey(provider, eventID)]
	if !ok {
		return nil
	}
	now := r.now().UTC()
	ev.Processed = true
	ev.ProcessedAt = &now
	if processErr != nil {
		msg := processErr.Error()
		ev.Error = &msg
	}
	return nil
}

// Get returns a copy of a stored event, for tests and diagnostics.
func (r *MemoryRepository) Get(provider, eventID string) (WebhookEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok := r.events[memoryKey(provider, eventID)]
	if !ok {
		return WebhookEvent{}, false
	}
	return *ev, true
}
