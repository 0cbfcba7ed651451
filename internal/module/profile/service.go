package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Service provides profile operations.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a new profile service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, now: time.Now, logger: logger}
}

// SaveProfile stores data as the user's profile, replacing any previous one. data may be any
// JSON-marshalable value, including raw JSON.
func (s *Service) SaveProfile(ctx context.Context, uid string, data any) error {
	raw, err := toJSON(data)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	p := &UserProfile{
		UID:         uid,
		ProfileData: raw,
		Version:     CurrentVersion,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Upsert(ctx, p); err != nil {
		return err
	}

	s.logger.Info("profile saved", zap.String("user_id", uid), zap.Int("bytes", len(raw)))
	return nil
}

func toJSON(data any) (datatypes.JSON, error) {
	var raw []byte
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case datatypes.JSON:
		raw = v
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode profile: %w", err)
		}
		raw = b
	}

	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "{}", `""`, "[]":
		return nil, ErrEmptyProfile
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("encode profile: invalid JSON")
	}
	return datatypes.JSON(raw), nil
}

// GetProfile returns the user's saved profile.
func (s *Service) GetProfile(ctx context.Context, uid string) (*UserProfile, error) {
	return s.repo.Get(ctx, uid)
}

// ListProfiles returns the most recently updated profiles. limit is clamped to [1, MaxListLimit]
// and defaults to DefaultListLimit.
func (s *Service) ListProfiles(ctx context.Context, limit int) ([]*UserProfile, int, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	profiles, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, limit, err
	}
	return profiles, limit, nil
}
