package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rundezvous/backend/internal/geo"
)

// User represents a registered user and their live rundezvous state.
type User struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	// DisplayName identifies the user to their partner by a single letter.
	DisplayName string `gorm:"size:1" json:"display_name"`

	Status Status `gorm:"type:text;not null;default:'NONE';index" json:"status"`

	// Last reported location. Both fields are nil until the first location
	// update arrives.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	// LocationUpdatedAt feeds the matchmaker's freshness filter.
	LocationUpdatedAt *time.Time `gorm:"index" json:"location_updated_at,omitempty"`

	// RegionID is the supported region containing the user's last location,
	// nil when the user is outside every region. Independent of location:
	// a user can have a location but no region.
	RegionID *string `gorm:"index" json:"region_id,omitempty"`

	Reputation int `gorm:"not null;default:0" json:"reputation"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate generates a UUID for the user if the ID isn't set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Location returns the user's last reported coordinate, false when none has
// been reported yet.
func (u *User) Location() (geo.Point, bool) {
	if u.Latitude == nil || u.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *u.Latitude, Lon: *u.Longitude}, true
}

// SetLocation updates the coordinate and the freshness timestamp.
func (u *User) SetLocation(p geo.Point, now time.Time) {
	u.Latitude = &p.Lat
	u.Longitude = &p.Lon
	u.LocationUpdatedAt = &now
}

// MetUser records that a user has previously been matched with another. The
// relation is symmetric: both directions are always written in one
// transaction, so excluding by user_id alone is sufficient.
type MetUser struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	MetUserID string    `gorm:"primaryKey" json:"met_user_id"`
	CreatedAt time.Time `json:"created_at"`
}
