package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jobhunter/server/internal/module/subscription"
)

type MockUserLookup struct {
	mock.Mock
}

func (m *MockUserLookup) ResolveCustomer(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func (m *MockUserLookup) ResolveEmail(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func TestUserIDFromReference(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"jh_u1_monthly_1710417600", "u1"},
		{"jh_abc_def_yearly_1710417600", "abc_def"},
		{"jh_u1", "u1"},
		{"jh_u1_monthly", "u1"},
		{"jh_", ""},
		{"T123456", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			assert.Equal(t, tt.want, UserIDFromReference(tt.ref))
		})
	}
}

func TestResolver_Order(t *testing.T) {
	ctx := context.Background()

	t.Run("metadata wins", func(t *testing.T) {
		users := new(MockUserLookup)
		uid, err := NewResolver(users, nil).Resolve(ctx, Identity{UserID: "meta", Reference: "jh_ref_m_1", CustomerID: "CUS_1"})
		require.NoError(t, err)
		assert.Equal(t, "meta", uid)
		users.AssertNotCalled(t, "ResolveCustomer", mock.Anything, mock.Anything)
	})

	t.Run("reference before lookups", func(t *testing.T) {
		users := new(MockUserLookup)
		uid, err := NewResolver(users, nil).Resolve(ctx, Identity{Reference: "jh_ref_m_1", CustomerID: "CUS_1"})
		require.NoError(t, err)
		assert.Equal(t, "ref", uid)
		users.AssertNotCalled(t, "ResolveCustomer", mock.Anything, mock.Anything)
	})

	t.Run("customer code", func(t *testing.T) {
		users := new(MockUserLookup)
		users.On("ResolveCustomer", ctx, "CUS_1").Return("by-customer", nil)
		uid, err := NewResolver(users, nil).Resolve(ctx, Identity{Reference: "T1", CustomerID: "CUS_1", Email: "a@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "by-customer", uid)
		users.AssertNotCalled(t, "ResolveEmail", mock.Anything, mock.Anything)
	})

	t.Run("email after customer miss", func(t *testing.T) {
		users := new(MockUserLookup)
		users.On("ResolveCustomer", ctx, "CUS_1").Return("", subscription.ErrUserNotFound)
		users.On("ResolveEmail", ctx, "a@example.com").Return("by-email", nil)
		uid, err := NewResolver(users, nil).Resolve(ctx, Identity{CustomerID: "CUS_1", Email: "a@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "by-email", uid)
	})

	t.Run("lookup errors fall through", func(t *testing.T) {
		users := new(MockUserLookup)
		users.On("ResolveCustomer", ctx, "CUS_1").Return("", errors.New("db down"))
		users.On("ResolveEmail", ctx, "a@example.com").Return("", errors.New("db down"))
		_, err := NewResolver(users, nil).Resolve(ctx, Identity{CustomerID: "CUS_1", Email: "a@example.com"})
		assert.ErrorIs(t, err, ErrUnattributedEvent)
		users.AssertExpectations(t)
	})

	t.Run("nothing to go on", func(t *testing.T) {
		_, err := NewResolver(new(MockUserLookup), nil).Resolve(ctx, Identity{})
		assert.ErrorIs(t, err, ErrUnattributedEvent)
	})
}
