package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rundezvous/backend/internal/config"
	"rundezvous/backend/internal/models"
)

// Storage is the persistence boundary for the rundezvous core. The GORM +
// Redis implementation lives in Service; tests substitute mocks.
type Storage interface {
	// Users
	SaveUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	SetUserStatus(userID string, status models.Status) error
	AdjustReputation(userID string, delta int) error
	// ClaimLookingUser flips LOOKING -> CHATTING only if the user is still
	// LOOKING, reporting whether this caller won the row.
	ClaimLookingUser(userID string) (bool, error)

	// Regions and landmarks
	ListRegions() ([]models.Region, error)
	GetRegionByID(id string) (*models.Region, error)
	SaveRegion(region *models.Region) error
	ListLandmarksInRegion(regionID string) ([]models.Landmark, error)
	GetLandmarkByID(id string) (*models.Landmark, error)
	SaveLandmark(landmark *models.Landmark) error

	// Matchmaking
	FindLookingCandidates(regionID, excludeUserID string, activeSince time.Time) ([]models.User, error)
	RecordMetUsers(userA, userB string) error

	// Rundezvous
	SaveRundezvous(rdv *models.Rundezvous) error
	GetRundezvousByID(id string) (*models.Rundezvous, error)
	GetActiveRundezvousForUser(userID string) (*models.Rundezvous, error)
	// FinalizeRundezvousEnd stamps ended_at only if it is still unset,
	// reporting whether this call performed the write.
	FinalizeRundezvousEnd(id string, endedAt time.Time) (bool, error)
	SetMeetupDecision(rundezvousID, userID string, didMeet bool) error
	DeactivateParticipant(rundezvousID, userID string) error
	DeactivateParticipants(rundezvousID string) error
	ListSweepableRundezvous(now time.Time) ([]models.Rundezvous, error)
	SaveRundezvousLog(entry *models.RundezvousLog) error

	// Chat
	SaveMessage(msg *models.ChatMessage) error
	GetMessagesSince(rundezvousID string, afterID uint) ([]models.ChatMessage, error)

	// Redis-backed coordination
	ClaimForMatch(userID string, ttl time.Duration) (bool, error)
	ReleaseMatchClaim(userID string) error
	PublishEvent(event models.ChatEvent) error
}

// Service implements Storage on PostgreSQL (GORM) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewService constructor
func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// SaveUser persists a user in PostgreSQL.
func (s *Service) SaveUser(user *models.User) error {
	return s.DB.Save(user).Error
}

func (s *Service) GetUserByID(id string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) SetUserStatus(userID string, status models.Status) error {
	return s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("status", status).Error
}

// AdjustReputation applies a review delta to a user's reputation score.
func (s *Service) AdjustReputation(userID string, delta int) error {
	return s.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("reputation", gorm.Expr("reputation + ?", delta)).Error
}

// ClaimLookingUser is the compare-and-swap guarding concurrent matchmaking:
// a LOOKING user may be claimed by at most one transaction.
func (s *Service) ClaimLookingUser(userID string) (bool, error) {
	result := s.DB.Model(&models.User{}).
		Where("id = ? AND status = ?", userID, models.StatusLooking).
		Update("status", models.StatusChatting)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) ListRegions() ([]models.Region, error) {
	var regions []models.Region
	if err := s.DB.Order("id").Find(&regions).Error; err != nil {
		log.Printf("ERROR: Failed to list regions: %v", err)
		return nil, err
	}
	return regions, nil
}

func (s *Service) GetRegionByID(id string) (*models.Region, error) {
	var region models.Region
	err := s.DB.First(&region, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &region, nil
}

func (s *Service) SaveRegion(region *models.Region) error {
	return s.DB.Save(region).Error
}

func (s *Service) ListLandmarksInRegion(regionID string) ([]models.Landmark, error) {
	var landmarks []models.Landmark
	if err := s.DB.Where("region_id = ?", regionID).Order("id").Find(&landmarks).Error; err != nil {
		return nil, err
	}
	return landmarks, nil
}

func (s *Service) GetLandmarkByID(id string) (*models.Landmark, error) {
	var landmark models.Landmark
	err := s.DB.First(&landmark, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &landmark, nil
}

func (s *Service) SaveLandmark(landmark *models.Landmark) error {
	return s.DB.Save(landmark).Error
}

// FindLookingCandidates returns LOOKING users in the region with a fresh
// location, excluding the searching user and everyone they have already met.
// Ordered by id so the matchmaker's distance sort has a deterministic
// tie-break.
func (s *Service) FindLookingCandidates(regionID, excludeUserID string, activeSince time.Time) ([]models.User, error) {
	metSubquery := s.DB.Model(&models.MetUser{}).
		Select("met_user_id").
		Where("user_id = ?", excludeUserID)

	var candidates []models.User
	err := s.DB.
		Where("region_id = ?", regionID).
		Where("status = ?", models.StatusLooking).
		Where("id <> ?", excludeUserID).
		Where("location_updated_at >= ?", activeSince).
		Where("id NOT IN (?)", metSubquery).
		Order("id").
		Find(&candidates).Error
	if err != nil {
		log.Printf("ERROR: Failed to find candidates in region %s: %v", regionID, err)
		return nil, err
	}
	return candidates, nil
}

// RecordMetUsers writes the symmetric met relation: both directions in one
// transaction so the pair can never end up half-recorded.
func (s *Service) RecordMetUsers(userA, userB string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		rows := []models.MetUser{
			{UserID: userA, MetUserID: userB},
			{UserID: userB, MetUserID: userA},
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
}

func (s *Service) SaveRundezvous(rdv *models.Rundezvous) error {
	return s.DB.Session(&gorm.Session{FullSaveAssociations: true}).Save(rdv).Error
}

func (s *Service) GetRundezvousByID(id string) (*models.Rundezvous, error) {
	var rdv models.Rundezvous
	err := s.DB.Preload("Participants").Preload("Landmark").
		First(&rdv, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rdv, nil
}

// GetActiveRundezvousForUser finds the rundezvous the user is an active
// participant of. Returns ErrNotFound when the user has none.
func (s *Service) GetActiveRundezvousForUser(userID string) (*models.Rundezvous, error) {
	var join models.RundezvousUser
	err := s.DB.Where("user_id = ? AND is_active = ?", userID, true).
		First(&join).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to find active rundezvous for user %s: %v", userID, err)
		return nil, err
	}
	return s.GetRundezvousByID(join.RundezvousID)
}

// FinalizeRundezvousEnd stamps ended_at under a first-write-wins discipline:
// the conditional update makes concurrent arrivals race safely, and later
// arrivals never move the timestamp.
func (s *Service) FinalizeRundezvousEnd(id string, endedAt time.Time) (bool, error) {
	result := s.DB.Model(&models.Rundezvous{}).
		Where("id = ? AND ended_at IS NULL", id).
		Update("ended_at", endedAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Service) SetMeetupDecision(rundezvousID, userID string, didMeet bool) error {
	return s.DB.Model(&models.RundezvousUser{}).
		Where("rundezvous_id = ? AND user_id = ?", rundezvousID, userID).
		Update("did_meet", didMeet).Error
}

// DeactivateParticipant releases a single user's join row, used when a
// reviewer leaves the session before it is archived.
func (s *Service) DeactivateParticipant(rundezvousID, userID string) error {
	return s.DB.Model(&models.RundezvousUser{}).
		Where("rundezvous_id = ? AND user_id = ?", rundezvousID, userID).
		Update("is_active", false).Error
}

func (s *Service) DeactivateParticipants(rundezvousID string) error {
	return s.DB.Model(&models.RundezvousUser{}).
		Where("rundezvous_id = ?", rundezvousID).
		Update("is_active", false).Error
}

// ListSweepableRundezvous returns every rundezvous the sweeper must close:
// started, unended ones whose travel window elapsed; ended ones that still
// carry active participants (finalized by an arrival but not yet archived);
// and unstarted ones older than MaxRundezvousExpiration.
func (s *Service) ListSweepableRundezvous(now time.Time) ([]models.Rundezvous, error) {
	activeRows := s.DB.Model(&models.RundezvousUser{}).
		Select("rundezvous_id").
		Where("is_active = ?", true)

	expired := s.DB.
		Where("ended_at IS NULL AND started_at IS NOT NULL").
		Where("started_at + expiration_seconds * interval '1 second' < ?", now)
	unarchived := s.DB.
		Where("ended_at IS NOT NULL").
		Where("id IN (?)", activeRows)
	stale := s.DB.
		Where("ended_at IS NULL AND started_at IS NULL").
		Where("created_at < ?", now.Add(-config.MaxRundezvousExpiration))

	var sweepable []models.Rundezvous
	err := s.DB.Preload("Participants").
		Where(expired).
		Or(unarchived).
		Or(stale).
		Find(&sweepable).Error
	if err != nil {
		log.Printf("ERROR: Failed to list sweepable rundezvouses: %v", err)
		return nil, err
	}
	return sweepable, nil
}

func (s *Service) SaveRundezvousLog(entry *models.RundezvousLog) error {
	return s.DB.Create(entry).Error
}

func (s *Service) SaveMessage(msg *models.ChatMessage) error {
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for rundezvous %s: %v", msg.RundezvousID, err)
		return err
	}
	return nil
}

// GetMessagesSince returns the room's messages after the given cursor ID,
// ordered by sent time ascending.
func (s *Service) GetMessagesSince(rundezvousID string, afterID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.DB.Where("rundezvous_id = ? AND id > ?", rundezvousID, afterID).
		Order("sent_at asc").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func matchClaimKey(userID string) string { return "matchclaim:" + userID }

// ClaimForMatch takes a short-lived exclusive claim on a user in Redis.
// Complements ClaimLookingUser by fencing off the window between candidate
// selection and the status flip.
func (s *Service) ClaimForMatch(userID string, ttl time.Duration) (bool, error) {
	return s.Redis.SetNX(s.Ctx, matchClaimKey(userID), "1", ttl).Result()
}

func (s *Service) ReleaseMatchClaim(userID string) error {
	return s.Redis.Del(s.Ctx, matchClaimKey(userID)).Err()
}

// PublishEvent publishes a chat/status event on the rundezvous channel.
func (s *Service) PublishEvent(event models.ChatEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, eventChannel(event.RundezvousID), payload).Err()
}

// SubscribeEvents subscribes to every rundezvous event channel. Used by the
// hub's fan-out listener; not part of the Storage interface.
func (s *Service) SubscribeEvents() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, "rundezvous:*")
}

func eventChannel(rundezvousID string) string {
	return fmt.Sprintf("rundezvous:%s", rundezvousID)
}
