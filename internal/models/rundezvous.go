package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rundezvous/backend/internal/config"
)

// Rundezvous is a paired meetup session progressing through chat, travel and
// review phases.
type Rundezvous struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is stamped when the landmark is assigned and the travel
	// phase begins. Nil while the pair is still chatting.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// EndedAt is stamped by the first detected arrival or by the expiry
	// sweep. First write wins; later arrivals never overwrite it.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// LandmarkID is the meetup destination, nil until the meetup starts.
	LandmarkID *string  `gorm:"index" json:"landmark_id,omitempty"`
	Landmark   *Landmark `gorm:"foreignKey:LandmarkID" json:"landmark,omitempty"`

	// ExpirationSeconds is how long participants get to reach the landmark
	// once the meetup starts.
	ExpirationSeconds int `gorm:"not null" json:"expiration_seconds"`

	Participants []RundezvousUser `gorm:"foreignKey:RundezvousID" json:"participants"`
}

func (r *Rundezvous) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// RundezvousUser attaches a user to a rundezvous.
type RundezvousUser struct {
	RundezvousID string `gorm:"primaryKey" json:"rundezvous_id"`
	UserID       string `gorm:"primaryKey;index" json:"user_id"`

	// IsActive is true while the user is still participating.
	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	// DidMeet is the user's meetup decision; nil until recorded. An
	// unrecorded decision counts as "did not meet".
	DidMeet *bool `json:"did_meet,omitempty"`
}

// ParticipantIDs returns the IDs of all attached users.
func (r *Rundezvous) ParticipantIDs() []string {
	ids := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// Participant returns the join row for the given user, nil when the user is
// not attached.
func (r *Rundezvous) Participant(userID string) *RundezvousUser {
	for i := range r.Participants {
		if r.Participants[i].UserID == userID {
			return &r.Participants[i]
		}
	}
	return nil
}

// ExpiresAt returns when the travel phase times out. Fails with
// ErrNotStarted before the landmark is assigned.
func (r *Rundezvous) ExpiresAt() (time.Time, error) {
	if r.StartedAt == nil {
		return time.Time{}, ErrNotStarted
	}
	return r.StartedAt.Add(time.Duration(r.ExpirationSeconds) * time.Second), nil
}

// SecondsLeft returns the remaining travel time at now. Negative once the
// rundezvous has expired.
func (r *Rundezvous) SecondsLeft(now time.Time) (float64, error) {
	expiresAt, err := r.ExpiresAt()
	if err != nil {
		return 0, err
	}
	return expiresAt.Sub(now).Seconds(), nil
}

// IsExpired reports whether the travel window has elapsed. A rundezvous that
// hasn't started can't be expired.
func (r *Rundezvous) IsExpired(now time.Time) bool {
	left, err := r.SecondsLeft(now)
	if err != nil {
		return false
	}
	return left < 0
}

// ChatEndsAt returns when the chat phase closes.
func (r *Rundezvous) ChatEndsAt() time.Time {
	return r.CreatedAt.Add(config.ChatTimeLimit)
}

// MeetDecisionEndsAt returns the deadline for recording the "did we meet"
// decision.
func (r *Rundezvous) MeetDecisionEndsAt() time.Time {
	return r.CreatedAt.Add(config.ChatTimeLimit + config.MeetDecisionTimeLimit)
}

// RundezvousLog is the archival record written when a rundezvous closes.
type RundezvousLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RundezvousID string    `gorm:"index;not null" json:"rundezvous_id"`
	LandmarkID   *string   `json:"landmark_id,omitempty"`
	// Met is true when every participant recorded a positive decision.
	Met       bool      `gorm:"not null" json:"met"`
	CreatedAt time.Time `json:"created_at"`
}
