// Package profile stores generated professional profiles.
package profile

import (
	"time"

	"gorm.io/datatypes"
)

// CurrentVersion is written with every saved profile.
const CurrentVersion = "1.0.0"

// UserProfile is a user's latest professional profile.
type UserProfile struct {
	UID         string         `json:"uid" gorm:"column:uid;primaryKey"`
	ProfileData datatypes.JSON `json:"profile_data" gorm:"column:profile_data;type:jsonb;not null"`
	Version     string         `json:"version" gorm:"column:version;not null;default:1.0.0"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"index"`
}

// TableName returns the database table name.
func (UserProfile) TableName() string {
	return "user_profiles"
}
