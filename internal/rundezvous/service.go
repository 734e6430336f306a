// Package rundezvous owns the paired-session state machine: created ->
// chatting -> en-route -> arrived/review -> closed.
package rundezvous

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"rundezvous/backend/internal/config"
	"rundezvous/backend/internal/directory"
	"rundezvous/backend/internal/geo"
	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/regions"
	"rundezvous/backend/internal/storage"
)

// Service drives a rundezvous through its lifecycle.
type Service struct {
	Storage   storage.Storage
	Regions   *regions.Index
	Directory *directory.Directory

	// ArrivalThresholdMeters is the distance from the landmark under which a
	// user counts as arrived.
	ArrivalThresholdMeters float64
	// ExpirationSeconds is the travel window assigned at meetup start.
	ExpirationSeconds int

	Now func() time.Time
}

func NewService(s storage.Storage, index *regions.Index, dir *directory.Directory, cfg *config.Config) *Service {
	return &Service{
		Storage:                s,
		Regions:                index,
		Directory:              dir,
		ArrivalThresholdMeters: cfg.ArrivalThresholdMeters,
		ExpirationSeconds:      cfg.ExpirationSeconds,
		Now:                    time.Now,
	}
}

// CreateForUsers creates a rundezvous the instant the matchmaker pairs the
// users: session row, participants attached active, everyone CHATTING.
func (s *Service) CreateForUsers(users []*models.User) (*models.Rundezvous, error) {
	if len(users) == 0 {
		return nil, models.ErrNoParticipants
	}

	rdv := &models.Rundezvous{
		ID:                uuid.New().String(),
		CreatedAt:         s.Now(),
		ExpirationSeconds: s.ExpirationSeconds,
	}
	for _, user := range users {
		rdv.Participants = append(rdv.Participants, models.RundezvousUser{
			RundezvousID: rdv.ID,
			UserID:       user.ID,
			IsActive:     true,
		})
	}

	if err := s.Storage.SaveRundezvous(rdv); err != nil {
		log.Printf("ERROR: Failed to create rundezvous for users %s: %v",
			strings.Join(rdv.ParticipantIDs(), ", "), err)
		return nil, err
	}

	for _, user := range users {
		if user.Status == models.StatusChatting {
			continue // already flipped by the matchmaker's claim
		}
		if err := s.Storage.SetUserStatus(user.ID, models.StatusChatting); err != nil {
			return nil, err
		}
		user.Status = models.StatusChatting
	}

	s.publish(models.ChatEvent{
		RundezvousID: rdv.ID,
		SenderID:     "system",
		Type:         "system_match_found",
		Text:         "Partner found! Start the conversation.",
	})
	return rdv, nil
}

// StartMeetup begins the travel phase: computes the midpoint of the
// participants' locations, assigns the closest landmark in the region
// containing it, stamps started_at and the expiration window, and flips
// everyone to RUNNING.
func (s *Service) StartMeetup(rdv *models.Rundezvous) error {
	if len(rdv.Participants) == 0 {
		// Starting with nobody attached is a bug in the calling code.
		log.Printf("ERROR: StartMeetup called on rundezvous %s with no participants", rdv.ID)
		return models.ErrNoParticipants
	}

	users := make([]*models.User, 0, len(rdv.Participants))
	points := make([]geo.Point, 0, len(rdv.Participants))
	for _, p := range rdv.Participants {
		user, err := s.Storage.GetUserByID(p.UserID)
		if err != nil {
			return err
		}
		users = append(users, user)
		if location, ok := user.Location(); ok {
			points = append(points, location)
		}
	}
	if len(points) == 0 {
		return models.ErrNoRegion
	}

	midpoint := geo.Centroid(points)

	region, err := s.Regions.AssignRegion(midpoint)
	if err != nil {
		return err
	}
	if region == nil {
		return models.ErrNoRegion
	}

	landmark, err := s.Regions.ClosestLandmark(region, midpoint)
	if err != nil {
		return err
	}

	now := s.Now()
	rdv.LandmarkID = &landmark.ID
	rdv.Landmark = landmark
	rdv.StartedAt = &now
	rdv.ExpirationSeconds = s.ExpirationSeconds
	if err := s.Storage.SaveRundezvous(rdv); err != nil {
		return err
	}

	for _, user := range users {
		if err := s.Storage.SetUserStatus(user.ID, models.StatusRunning); err != nil {
			return err
		}
		user.Status = models.StatusRunning
	}

	s.publish(models.ChatEvent{
		RundezvousID: rdv.ID,
		SenderID:     "system",
		Type:         "system_meetup_started",
		Text:         "Meetup started! Head to " + landmark.Name + ".",
	})
	return nil
}

// CheckArrived evaluates, on a location update, whether the user has reached
// the session's landmark. Returns false with no error when the user has no
// active started session. On arrival the user moves to REVIEW and the
// session's ended_at is finalized first-write-wins: a later arrival never
// overwrites the timestamp a faster partner set.
func (s *Service) CheckArrived(user *models.User) (bool, error) {
	if user.Status != models.StatusRunning {
		return false, nil
	}
	location, ok := user.Location()
	if !ok {
		return false, nil
	}

	rdv, err := s.Storage.GetActiveRundezvousForUser(user.ID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rdv.StartedAt == nil || rdv.LandmarkID == nil {
		return false, nil
	}

	landmark := rdv.Landmark
	if landmark == nil {
		landmark, err = s.Storage.GetLandmarkByID(*rdv.LandmarkID)
		if err != nil {
			return false, err
		}
	}

	// Reproject into the region's metric plane so the threshold compares
	// real meters, not raw degrees.
	projection := geo.Projection{Origin: landmark.Location()}
	if landmark.RegionID != nil {
		region, err := s.Storage.GetRegionByID(*landmark.RegionID)
		if err != nil {
			log.Printf("ERROR: Failed to load region %s for arrival check, falling back to landmark-anchored projection: %v",
				*landmark.RegionID, err)
		} else {
			projection = region.Projection()
		}
	}

	distance := projection.PlanarDistance(location, landmark.Location())
	if distance >= s.ArrivalThresholdMeters {
		return false, nil
	}

	if err := s.Storage.SetUserStatus(user.ID, models.StatusReview); err != nil {
		return false, err
	}
	user.Status = models.StatusReview

	first, err := s.Storage.FinalizeRundezvousEnd(rdv.ID, s.Now())
	if err != nil {
		return false, err
	}
	if first {
		log.Printf("Rundezvous %s ended: first arrival by user %s", rdv.ID, user.ID)
	}

	s.publish(models.ChatEvent{
		RundezvousID: rdv.ID,
		SenderID:     "system",
		Type:         "system_arrived",
		Text:         user.DisplayName + " has arrived.",
	})
	return true, nil
}

// MakeMeetupDecision records the user's "did we meet" answer. Fails with
// ErrDecisionTimeout once the decision window (chat limit + decision limit
// past creation) has closed; a dropped decision counts as a non-match.
func (s *Service) MakeMeetupDecision(user *models.User, didMeet bool) error {
	rdv, err := s.Storage.GetActiveRundezvousForUser(user.ID)
	if err != nil {
		return err
	}
	if rdv.Participant(user.ID) == nil {
		return models.ErrNotFound
	}
	if s.Now().After(rdv.MeetDecisionEndsAt()) {
		return models.ErrDecisionTimeout
	}
	return s.Storage.SetMeetupDecision(rdv.ID, user.ID, didMeet)
}

// Close archives a finished rundezvous: writes the log entry, records the
// met-users relation for every pair so they are never re-matched,
// deactivates the participants and releases the still-active ones back to
// NONE. Users who already reviewed and left are not touched.
func (s *Service) Close(rdv *models.Rundezvous) error {
	met := len(rdv.Participants) > 0
	for _, p := range rdv.Participants {
		if p.DidMeet == nil || !*p.DidMeet {
			met = false
			break
		}
	}

	if _, err := s.Storage.FinalizeRundezvousEnd(rdv.ID, s.Now()); err != nil {
		return err
	}

	entry := &models.RundezvousLog{
		RundezvousID: rdv.ID,
		LandmarkID:   rdv.LandmarkID,
		Met:          met,
	}
	if err := s.Storage.SaveRundezvousLog(entry); err != nil {
		return err
	}

	ids := rdv.ParticipantIDs()
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			if err := s.Directory.RecordMet(ids[i], ids[j]); err != nil {
				return err
			}
		}
	}

	if met {
		for _, id := range ids {
			if err := s.Storage.AdjustReputation(id, config.SuccessfulMeetupBonus); err != nil {
				return err
			}
		}
	}

	if err := s.Storage.DeactivateParticipants(rdv.ID); err != nil {
		return err
	}
	for _, p := range rdv.Participants {
		if !p.IsActive {
			continue // already released when they reviewed
		}
		if err := s.Storage.SetUserStatus(p.UserID, models.StatusNone); err != nil {
			return err
		}
	}

	s.publish(models.ChatEvent{
		RundezvousID: rdv.ID,
		SenderID:     "system",
		Type:         "system_closed",
	})
	return nil
}

// PostMessage appends a chat message to the user's active rundezvous and
// publishes it to connected clients. Text is bounded by
// config.MaxChatMessageLength.
func (s *Service) PostMessage(user *models.User, text string) (*models.ChatMessage, error) {
	if text == "" || len([]rune(text)) > config.MaxChatMessageLength {
		return nil, models.ErrInvalidMessage
	}

	rdv, err := s.Storage.GetActiveRundezvousForUser(user.ID)
	if err != nil {
		return nil, err
	}
	if rdv.Participant(user.ID) == nil {
		return nil, models.ErrNotFound
	}

	msg := &models.ChatMessage{
		RundezvousID: rdv.ID,
		SenderID:     user.ID,
		Text:         text,
		SentAt:       s.Now(),
	}
	if err := s.Storage.SaveMessage(msg); err != nil {
		return nil, err
	}

	s.publish(models.ChatEvent{
		RundezvousID: rdv.ID,
		SenderID:     user.ID,
		Type:         "text",
		Text:         text,
		MessageID:    msg.ID,
	})
	return msg, nil
}

func (s *Service) publish(event models.ChatEvent) {
	if err := s.Storage.PublishEvent(event); err != nil {
		log.Printf("ERROR: Failed to publish %s event for rundezvous %s: %v",
			event.Type, event.RundezvousID, err)
	}
}
