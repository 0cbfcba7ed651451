package payment

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jobhunter/server/internal/module/subscription"
)

// ReferencePrefix starts every transaction reference the front end creates:
// jh_<uid>_<plan>_<unix seconds>.
const ReferencePrefix = "jh_"

// UserLookup finds users by the billing attributes stored on their subscription.
type UserLookup interface {
	ResolveCustomer(ctx context.Context, customerID string) (string, error)
	ResolveEmail(ctx context.Context, email string) (string, error)
}

// Resolver attributes a webhook to a user.
type Resolver struct {
	users  UserLookup
	logger *zap.Logger
}

// NewResolver creates an identity resolver.
func NewResolver(users UserLookup, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{users: users, logger: logger}
}

// Resolve tries, in order, the metadata user id, the transaction reference, the provider
// customer id and the customer email.
func (r *Resolver) Resolve(ctx context.Context, id Identity) (string, error) {
	if uid := strings.TrimSpace(id.UserID); uid != "" {
		return uid, nil
	}
	if uid := UserIDFromReference(id.Reference); uid != "" {
		return uid, nil
	}
	if id.CustomerID != "" {
		if uid := r.lookup(ctx, "customer", id.CustomerID, r.users.ResolveCustomer); uid != "" {
			return uid, nil
		}
	}
	if id.Email != "" {
		if uid := r.lookup(ctx, "email", id.Email, r.users.ResolveEmail); uid != "" {
			return uid, nil
		}
	}
	return "", ErrUnattributedEvent
}

func (r *Resolver) lookup(ctx context.Context, by, value string, find func(context.Context, string) (string, error)) string {
	uid, err := find(ctx, value)
	if err != nil {
		if !errors.Is(err, subscription.ErrUserNotFound) {
			r.logger.Warn("webhook identity lookup failed", zap.String("by", by), zap.Error(err))
		}
		return ""
	}
	return uid
}

// UserIDFromReference extracts the uid from a jh_<uid>_<plan>_<ts> reference. The uid itself may
// contain underscores; the plan and timestamp never do.
func UserIDFromReference(ref string) string {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), ReferencePrefix)
	if !ok || rest == "" {
		return ""
	}
	parts := strings.Split(rest, "_")
	if len(parts) >= 3 {
		return strings.Join(parts[:len(parts)-2], "_")
	}
	return parts[0]
}
