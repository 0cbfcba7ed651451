package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AccessPolicy lists privileged accounts from configuration.
type AccessPolicy struct {
	AdminEmails  []string
	AdminUserIDs []string
}

// Service provides user and subscription operations.
type Service struct {
	repo      Repository
	projector *Projector
	access    AccessPolicy
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a new subscription service.
func NewService(repo Repository, projector *Projector, access AccessPolicy, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		projector: projector,
		access:    access,
		now:       time.Now,
		logger:    logger,
	}
}

// GetSubscription returns the user's subscription, or nil when the user is unknown.
func (s *Service) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	sub := user.Subscription
	return &sub, nil
}

// Me returns the caller's account, creating it with the free subscription on first sight.
func (s *Service) Me(ctx context.Context, userID, email string) (*User, error) {
	user, err := s.repo.GetOrCreate(ctx, userID, email)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	return user, nil
}

// IsAdmin reports whether the caller is listed in access control or carries the admin role.
func (s *Service) IsAdmin(ctx context.Context, userID, email string) bool {
	for _, id := range s.access.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	for _, e := range s.access.AdminEmails {
		if email != "" && strings.EqualFold(e, email) {
			return true
		}
	}

	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("admin role lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return false
	}
	return user.HasRole(RoleAdmin)
}

// ApplyEvent folds a lifecycle event into the user's stored subscription.
func (s *Service) ApplyEvent(ctx context.Context, ev LifecycleEvent) error {
	if ev.UserID == "" {
		return ErrNoUserID
	}

	if RevertsToFree(ev) {
		if err := s.repo.ClearToFree(ctx, ev.UserID); err != nil {
			return fmt.Errorf("revert to free: %w", err)
		}
		s.logger.Info("subscription reverted to free",
			zap.String("user_id", ev.UserID),
			zap.String("event", string(ev.Kind)),
			zap.String("gateway", ev.Gateway),
		)
		return nil
	}

	current := Free()
	user, err := s.repo.Get(ctx, ev.UserID)
	switch {
	case err == nil:
		current = user.Subscription
	case errors.Is(err, ErrUserNotFound):
	default:
		return fmt.Errorf("load subscription: %w", err)
	}

	next, err := s.projector.Apply(current, ev)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateSubscription(ctx, ev.UserID, next); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}

	s.logger.Info("subscription updated",
		zap.String("user_id", ev.UserID),
		zap.String("event", string(ev.Kind)),
		zap.String("gateway", ev.Gateway),
		zap.String("tier", next.Tier),
		zap.String("status", string(next.Status)),
	)
	return nil
}

// ResolveCustomer finds the user owning a provider customer id.
func (s *Service) ResolveCustomer(ctx context.Context, customerID string) (string, error) {
	return s.repo.FindUserIDByCustomerID(ctx, customerID)
}

// ResolveEmail finds the user with an email address.
func (s *Service) ResolveEmail(ctx context.Context, email string) (string, error) {
	return s.repo.FindUserIDByEmail(ctx, email)
}
