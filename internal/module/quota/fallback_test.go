package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, userID string, day int64) (int, error) {
	args := m.Called(ctx, userID, day)
	return args.Int(0), args.Error(1)
}

func (m *MockStore) Increment(ctx context.Context, userID string, day int64) (int, error) {
	args := m.Called(ctx, userID, day)
	return args.Int(0), args.Error(1)
}

type countingRecorder struct {
	fallbacks map[string]int
	decisions map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{fallbacks: map[string]int{}, decisions: map[string]int{}}
}

func (r *countingRecorder) RecordQuotaFallback(op string) { r.fallbacks[op]++ }

func (r *countingRecorder) RecordQuotaDecision(tier string, admitted bool) {
	key := tier + ":denied"
	if admitted {
		key = tier + ":admitted"
	}
	r.decisions[key]++
}

func TestFallbackStore_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := new(MockStore)
	primary.On("Increment", mock.Anything, "u1", int64(3)).Return(4, nil).Once()
	primary.On("Get", mock.Anything, "u1", int64(3)).Return(4, nil).Once()
	local := NewLocalStore(1)
	rec := newCountingRecorder()

	s := NewFallbackStore(primary, local, DefaultFallbackConfig(), nil, rec)

	n, err := s.Increment(context.Background(), "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = s.Get(context.Background(), "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, 0, local.Len())
	assert.Empty(t, rec.fallbacks)
	primary.AssertExpectations(t)
}

func TestFallbackStore_FallsBackOnPrimaryError(t *testing.T) {
	primary := new(MockStore)
	primary.On("Increment", mock.Anything, "u1", int64(3)).Return(0, errors.New("connection refused"))
	primary.On("Get", mock.Anything, "u1", int64(3)).Return(0, errors.New("connection refused"))
	rec := newCountingRecorder()

	s := NewFallbackStore(primary, NewLocalStore(1), DefaultFallbackConfig(), nil, rec)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		n, err := s.Increment(ctx, "u1", 3)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	n, err := s.Get(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, 2, rec.fallbacks["increment"])
	assert.Equal(t, 1, rec.fallbacks["get"])
}

func TestFallbackStore_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := new(MockStore)
	primary.On("Increment", mock.Anything, "u1", int64(3)).Return(0, errors.New("timeout"))

	cfg := FallbackConfig{Timeout: 10 * time.Millisecond, BreakerFailures: 2, BreakerTimeout: time.Minute}
	s := NewFallbackStore(primary, NewLocalStore(1), cfg, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := s.Increment(ctx, "u1", 3)
		require.NoError(t, err)
	}

	primary.AssertNumberOfCalls(t, "Increment", 2)
}

func TestFallbackStore_CallerCancellationKeepsBreakerClosed(t *testing.T) {
	primary := new(MockStore)
	primary.On("Get", mock.Anything, "u1", int64(3)).Return(0, context.Canceled).Times(5)
	primary.On("Get", mock.Anything, "u1", int64(3)).Return(7, nil).Once()
	rec := newCountingRecorder()

	cfg := FallbackConfig{Timeout: time.Second, BreakerFailures: 2, BreakerTimeout: time.Minute}
	s := NewFallbackStore(primary, NewLocalStore(1), cfg, nil, rec)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := s.Get(cancelled, "u1", 3)
		require.NoError(t, err)
	}

	n, err := s.Get(context.Background(), "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Empty(t, rec.fallbacks)
	primary.AssertNumberOfCalls(t, "Get", 6)
}

func TestFallbackStore_BoundsPrimaryLatency(t *testing.T) {
	primary := new(MockStore)
	primary.On("Get", mock.Anything, "u1", int64(3)).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(0, context.DeadlineExceeded)

	cfg := FallbackConfig{Timeout: 20 * time.Millisecond, BreakerFailures: 3, BreakerTimeout: time.Minute}
	s := NewFallbackStore(primary, NewLocalStore(1), cfg, nil, nil)

	start := time.Now()
	n, err := s.Get(context.Background(), "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFallbackStore_UnreachableRedis(t *testing.T) {
	cfg := FallbackConfig{Timeout: 200 * time.Millisecond, BreakerFailures: 3, BreakerTimeout: time.Minute}
	s := NewFallbackStore(NewRedisStore(unreachableRedis(t), "", 0), NewLocalStore(1), cfg, nil, nil)

	n, err := s.Increment(context.Background(), "u1", 9)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
