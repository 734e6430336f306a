package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rundezvous/backend/internal/config"
	"rundezvous/backend/internal/models"
)

// Router tells the client which screen matches the user's current status.
func (h *Handler) Router(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var screen string
	switch user.Status {
	case models.StatusNone:
		screen = "start"
	case models.StatusLooking:
		screen = "waiting_room"
	case models.StatusChatting:
		screen = "chatroom"
	case models.StatusRunning:
		screen = "active_rundezvous"
	case models.StatusReview:
		screen = "review"
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": user.Status, "screen": screen})
}

// Start puts the user into the LOOKING pool.
func (h *Handler) Start(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if !user.Status.CanTransitionTo(models.StatusLooking) {
		c.JSON(http.StatusConflict, gin.H{"error": "cannot start looking from status " + string(user.Status)})
		return
	}
	if err := h.Storage.SetUserStatus(user.ID, models.StatusLooking); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": models.StatusLooking})
}

// WaitingRoom attempts a match for a LOOKING user. There are two cases: a
// match can be found instantly, or the user keeps waiting.
func (h *Handler) WaitingRoom(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if user.Status != models.StatusLooking {
		c.JSON(http.StatusConflict, gin.H{"error": "not looking for a partner"})
		return
	}

	partner, err := h.Matchmaker.FindPartner(user)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoPartnerAvailable), errors.Is(err, models.ErrNoRegion):
			c.JSON(http.StatusOK, gin.H{"waiting": true})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "matchmaking failed"})
		}
		return
	}

	if err := h.Matchmaker.Claim(user, partner); err != nil {
		// Lost the race; stay in the waiting room.
		c.JSON(http.StatusOK, gin.H{"waiting": true})
		return
	}

	rdv, err := h.Sessions.CreateForUsers([]*models.User{user, partner})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create rundezvous"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"waiting":       false,
		"rundezvous_id": rdv.ID,
		"partner":       partner.DisplayName,
		"chat_ends_at":  rdv.ChatEndsAt(),
	})
}

// StartMeetup begins the travel phase for the user's active rundezvous.
func (h *Handler) StartMeetup(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	rdv, err := h.Storage.GetActiveRundezvousForUser(user.ID)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active rundezvous"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rundezvous"})
		return
	}
	if rdv.StartedAt != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "meetup already started"})
		return
	}

	if err := h.Sessions.StartMeetup(rdv); err != nil {
		switch {
		case errors.Is(err, models.ErrNoLandmarkAvailable), errors.Is(err, models.ErrNoRegion):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start meetup"})
		}
		return
	}

	expiresAt, _ := rdv.ExpiresAt()
	c.JSON(http.StatusOK, gin.H{
		"landmark":   rdv.Landmark.Name,
		"expires_at": expiresAt,
	})
}

// ActiveRundezvous is the travel-phase screen: landmark, partners and time
// left.
func (h *Handler) ActiveRundezvous(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	rdv, err := h.Storage.GetActiveRundezvousForUser(user.ID)
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active rundezvous"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rundezvous"})
		return
	}

	partners := make([]gin.H, 0, len(rdv.Participants)-1)
	for _, p := range rdv.Participants {
		if p.UserID == user.ID {
			continue
		}
		partner, err := h.Storage.GetUserByID(p.UserID)
		if err != nil {
			continue
		}
		partners = append(partners, gin.H{
			"display_name": partner.DisplayName,
			"status":       partner.Status,
		})
	}

	resp := gin.H{
		"rundezvous_id":         rdv.ID,
		"partners":              partners,
		"chat_ends_at":          rdv.ChatEndsAt(),
		"meet_decision_ends_at": rdv.MeetDecisionEndsAt(),
	}
	if rdv.Landmark != nil {
		resp["landmark"] = gin.H{
			"name":      rdv.Landmark.Name,
			"latitude":  rdv.Landmark.Latitude,
			"longitude": rdv.Landmark.Longitude,
		}
	}
	if secondsLeft, err := rdv.SecondsLeft(h.Sessions.Now()); err == nil {
		resp["seconds_left"] = secondsLeft
		resp["is_expired"] = rdv.IsExpired(h.Sessions.Now())
	}
	c.JSON(http.StatusOK, resp)
}

type decisionRequest struct {
	DidMeet *bool `json:"did_meet" binding:"required"`
}

// MakeMeetupDecision records the user's "did we meet" answer.
func (h *Handler) MakeMeetupDecision(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.Sessions.MakeMeetupDecision(user, *req.DidMeet)
	switch {
	case errors.Is(err, models.ErrDecisionTimeout):
		// The decision is dropped; the rundezvous resolves as a non-match.
		c.JSON(http.StatusGone, gin.H{"error": "decision window has closed"})
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no active rundezvous"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record decision"})
	default:
		c.JSON(http.StatusOK, gin.H{"recorded": true})
	}
}

type reviewRequest struct {
	PartnerID string `json:"partner_id" binding:"required"`
	Positive  *bool  `json:"positive" binding:"required"`
}

// Review lets a user rate their partner after the meetup. The reviewer is
// released back to NONE; the session itself is archived by the sweeper.
func (h *Handler) Review(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	if user.Status != models.StatusReview {
		c.JSON(http.StatusConflict, gin.H{"error": "nothing to review"})
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rdv, err := h.Storage.GetActiveRundezvousForUser(user.ID)
	if errors.Is(err, models.ErrNotFound) || (err == nil && rdv.Participant(req.PartnerID) == nil) {
		c.JSON(http.StatusNotFound, gin.H{"error": "partner not in your rundezvous"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rundezvous"})
		return
	}

	delta := config.BadReviewPenalty
	if *req.Positive {
		delta = config.GoodReviewReward
	}
	if err := h.Storage.AdjustReputation(req.PartnerID, delta); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record review"})
		return
	}

	// Release the reviewer's join row so a later sweep of this session can
	// not touch their status again.
	if err := h.Storage.DeactivateParticipant(rdv.ID, user.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave rundezvous"})
		return
	}
	if err := h.Storage.SetUserStatus(user.ID, models.StatusNone); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviewed": true})
}
