package rundezvous_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"rundezvous/backend/internal/config"
	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/rundezvous"
)

func (m *mockStorage) ListSweepableRundezvous(now time.Time) ([]models.Rundezvous, error) {
	args := m.Called(now)
	return args.Get(0).([]models.Rundezvous), args.Error(1)
}

// TestSweepClosesExpiredSessions verifies the sweep archives every expired
// open rundezvous it finds.
func TestSweepClosesExpiredSessions(t *testing.T) {
	expired := *startedRundezvous()

	s := new(mockStorage)
	s.On("ListSweepableRundezvous", testNow).Return([]models.Rundezvous{expired}, nil).Once()
	s.On("FinalizeRundezvousEnd", "rdv-1", testNow).Return(true, nil)
	s.On("SaveRundezvousLog", mock.AnythingOfType("*models.RundezvousLog")).Return(nil)
	s.On("RecordMetUsers", "user-a", "user-b").Return(nil)
	s.On("DeactivateParticipants", "rdv-1").Return(nil)
	s.On("SetUserStatus", mock.Anything, models.StatusNone).Return(nil)
	s.On("PublishEvent", mock.AnythingOfType("models.ChatEvent")).Return(nil)

	sweeper := rundezvous.NewSweeper(newService(s))
	sweeper.Sweep()

	s.AssertExpectations(t)
}

// TestSweepArchivesArrivedSession covers the session a successful arrival
// already ended: ended_at is set but the participants are still attached
// active. The sweep must still archive it, recording the met-users relation
// and releasing the partner who never arrived.
func TestSweepArchivesArrivedSession(t *testing.T) {
	ended := *startedRundezvous()
	endedAt := testNow.Add(-time.Minute)
	ended.EndedAt = &endedAt
	yes := true
	ended.Participants[0].DidMeet = &yes
	ended.Participants[1].DidMeet = &yes

	s := new(mockStorage)
	s.On("ListSweepableRundezvous", testNow).Return([]models.Rundezvous{ended}, nil).Once()
	// ended_at is already stamped; the conditional finalize loses.
	s.On("FinalizeRundezvousEnd", "rdv-1", testNow).Return(false, nil)
	s.On("SaveRundezvousLog", mock.MatchedBy(func(entry *models.RundezvousLog) bool {
		return entry.RundezvousID == "rdv-1" && entry.Met
	})).Return(nil).Once()
	s.On("RecordMetUsers", "user-a", "user-b").Return(nil).Once()
	s.On("AdjustReputation", "user-a", config.SuccessfulMeetupBonus).Return(nil).Once()
	s.On("AdjustReputation", "user-b", config.SuccessfulMeetupBonus).Return(nil).Once()
	s.On("DeactivateParticipants", "rdv-1").Return(nil).Once()
	s.On("SetUserStatus", "user-a", models.StatusNone).Return(nil).Once()
	s.On("SetUserStatus", "user-b", models.StatusNone).Return(nil).Once()
	s.On("PublishEvent", mock.AnythingOfType("models.ChatEvent")).Return(nil)

	sweeper := rundezvous.NewSweeper(newService(s))
	sweeper.Sweep()

	s.AssertExpectations(t)
}

// TestSweepClosesStaleUnstartedSession covers a pair that chatted but never
// started the meetup: the session is archived as a non-match once it is
// older than the overall cap.
func TestSweepClosesStaleUnstartedSession(t *testing.T) {
	stale := *startedRundezvous()
	stale.StartedAt = nil
	stale.LandmarkID = nil
	stale.Landmark = nil
	stale.CreatedAt = testNow.Add(-config.MaxRundezvousExpiration - time.Minute)

	s := new(mockStorage)
	s.On("ListSweepableRundezvous", testNow).Return([]models.Rundezvous{stale}, nil).Once()
	s.On("FinalizeRundezvousEnd", "rdv-1", testNow).Return(true, nil)
	s.On("SaveRundezvousLog", mock.MatchedBy(func(entry *models.RundezvousLog) bool {
		return !entry.Met && entry.LandmarkID == nil
	})).Return(nil).Once()
	s.On("RecordMetUsers", "user-a", "user-b").Return(nil).Once()
	s.On("DeactivateParticipants", "rdv-1").Return(nil).Once()
	s.On("SetUserStatus", "user-a", models.StatusNone).Return(nil).Once()
	s.On("SetUserStatus", "user-b", models.StatusNone).Return(nil).Once()
	s.On("PublishEvent", mock.AnythingOfType("models.ChatEvent")).Return(nil)

	sweeper := rundezvous.NewSweeper(newService(s))
	sweeper.Sweep()

	s.AssertExpectations(t)
}

func TestSweepNothingExpired(t *testing.T) {
	s := new(mockStorage)
	s.On("ListSweepableRundezvous", testNow).Return([]models.Rundezvous{}, nil).Once()

	sweeper := rundezvous.NewSweeper(newService(s))
	sweeper.Sweep()

	s.AssertNotCalled(t, "SaveRundezvousLog", mock.Anything)
	s.AssertExpectations(t)
}
