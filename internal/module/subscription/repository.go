package subscription

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository defines user and subscription data access.
type Repository interface {
	Get(ctx context.Context, id string) (*User, error)
	GetOrCreate(ctx context.Context, id, email string) (*User, error)
	// UpdateSubscription overwrites every subscription field of the user, creating the user
	// when it does not exist yet.
	UpdateSubscription(ctx context.Context, id string, sub Subscription) error
	// ClearToFree resets the user to the free subscription and clears all billing fields.
	ClearToFree(ctx context.Context, id string) error
	FindUserIDByCustomerID(ctx context.Context, customerID string) (string, error)
	FindUserIDByEmail(ctx context.Context, email string) (string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a gorm-backed repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, id string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *repository) GetOrCreate(ctx context.Context, id, email string) (*User, error) {
	user := &User{ID: id, Email: email, Subscription: Free()}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(user).Error
	if err != nil {
		return nil, err
	}

	got, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if got.Email == "" && email != "" {
		if err := r.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("email", email).Error; err != nil {
			return nil, err
		}
		got.Email = email
	}
	return got, nil
}

func (r *repository) UpdateSubscription(ctx context.Context, id string, sub Subscription) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&User{}).Where("id = ?", id).Updates(sub.columns())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(&User{ID: id, Subscription: sub}).Error
	})
}

func (r *repository) ClearToFree(ctx context.Context, id string) error {
	return r.UpdateSubscription(ctx, id, Free())
}

func (r *repository) FindUserIDByCustomerID(ctx context.Context, customerID string) (string, error) {
	var user User
	err := r.db.WithContext(ctx).
		Select("id").
		Where("subscription_customer_id = ?", customerID).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return user.ID, nil
}

func (r *repository) FindUserIDByEmail(ctx context.Context, email string) (string, error) {
	var user User
	err := r.db.WithContext(ctx).
		Select("id").
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrUserNotFound
		}
		return "", err
	}
	return user.ID, nil
}
