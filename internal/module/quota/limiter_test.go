package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type steppingClock struct {
	now time.Time
}

func (c *steppingClock) Now() time.Time { return c.now }

func TestLimiter_FreeTierExhausts(t *testing.T) {
	rec := newCountingRecorder()
	l := NewLimiter(NewLocalStore(1), DefaultTierPolicy(), nil, nil, rec)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d := l.Check(ctx, "u1", "free")
		assert.False(t, d.LimitReached)
		assert.Equal(t, 5-i, d.Remaining)
		assert.Equal(t, i+1, l.Consume(ctx, "u1", "free"))
	}

	d := l.Check(ctx, "u1", "free")
	assert.True(t, d.LimitReached)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 5, d.Limit)

	assert.Equal(t, 5, rec.decisions["free:admitted"])
	assert.Equal(t, 1, rec.decisions["free:denied"])
}

func TestLimiter_PremiumAllowance(t *testing.T) {
	l := NewLimiter(NewLocalStore(1), DefaultTierPolicy(), nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Consume(ctx, "u1", "premium_monthly")
	}

	d := l.Check(ctx, "u1", "premium_monthly")
	assert.False(t, d.LimitReached)
	assert.Equal(t, 45, d.Remaining)
	assert.Equal(t, 50, d.Limit)
}

func TestLimiter_CheckDoesNotConsume(t *testing.T) {
	l := NewLimiter(NewLocalStore(1), DefaultTierPolicy(), nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		d := l.Check(ctx, "u1", "free")
		assert.Equal(t, 5, d.Remaining)
	}
}

func TestLimiter_ResetsAtDayBoundary(t *testing.T) {
	clock := &steppingClock{now: time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)}
	l := NewLimiter(NewLocalStore(1), DefaultTierPolicy(), clock.Now, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		l.Consume(ctx, "u1", "free")
	}
	assert.True(t, l.Check(ctx, "u1", "free").LimitReached)

	clock.now = clock.now.Add(2 * time.Minute)
	d := l.Check(ctx, "u1", "free")
	assert.False(t, d.LimitReached)
	assert.Equal(t, 5, d.Remaining)
}

func TestLimiter_StoreFailureDegrades(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, "u1", mock.Anything).Return(0, errors.New("down"))
	store.On("Increment", mock.Anything, "u1", mock.Anything).Return(0, errors.New("down"))

	l := NewLimiter(store, DefaultTierPolicy(), nil, nil, nil)
	ctx := context.Background()

	d := l.Check(ctx, "u1", "free")
	assert.False(t, d.LimitReached)
	assert.Equal(t, 5, d.Remaining)
	assert.Equal(t, 0, l.Consume(ctx, "u1", "free"))
}

func TestLimiter_OverCountClampsRemaining(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, "u1", mock.Anything).Return(7, nil)

	l := NewLimiter(store, DefaultTierPolicy(), nil, nil, nil)
	d := l.Check(context.Background(), "u1", "")
	assert.True(t, d.LimitReached)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 7, d.Used)
}
