package matchmaker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"rundezvous/backend/internal/geo"
	"rundezvous/backend/internal/matchmaker"
	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/storage"
)

type mockStorage struct {
	mock.Mock
	storage.Storage
}

func (m *mockStorage) FindLookingCandidates(regionID, excludeUserID string, activeSince time.Time) ([]models.User, error) {
	args := m.Called(regionID, excludeUserID, activeSince)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *mockStorage) ClaimLookingUser(userID string) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStorage) SetUserStatus(userID string, status models.Status) error {
	args := m.Called(userID, status)
	return args.Error(0)
}

func (m *mockStorage) ClaimForMatch(userID string, ttl time.Duration) (bool, error) {
	args := m.Called(userID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockStorage) ReleaseMatchClaim(userID string) error {
	args := m.Called(userID)
	return args.Error(0)
}

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

// lookingUser builds a LOOKING user offset north of the base point by the
// given number of meters.
func lookingUser(id string, metersNorth float64) models.User {
	base := geo.Point{Lat: 46.73, Lon: -117.17}
	lat := base.Lat + metersNorth/111195.0
	lon := base.Lon
	updated := testNow
	regionID := "campus"
	return models.User{
		ID:                id,
		Status:            models.StatusLooking,
		Latitude:          &lat,
		Longitude:         &lon,
		LocationUpdatedAt: &updated,
		RegionID:          &regionID,
	}
}

func newMatchmaker(s *mockStorage, pairingDistance float64) *matchmaker.Matchmaker {
	m := matchmaker.New(s, pairingDistance)
	m.Now = func() time.Time { return testNow }
	return m
}

// TestFindPartnerWithinThreshold covers the concrete scenario: two users 50m
// apart, threshold 100m, no shared history, both LOOKING.
func TestFindPartnerWithinThreshold(t *testing.T) {
	seeker := lookingUser("user-a", 0)
	partner := lookingUser("user-b", 50)

	s := new(mockStorage)
	s.On("FindLookingCandidates", "campus", "user-a", mock.AnythingOfType("time.Time")).
		Return([]models.User{partner}, nil)

	m := newMatchmaker(s, 100)
	found, err := m.FindPartner(&seeker)

	assert.NoError(t, err)
	assert.Equal(t, "user-b", found.ID)
}

// TestFindPartnerThresholdTooTight covers the counterpart scenario: same two
// users but a 10m threshold fails with no partner available.
func TestFindPartnerThresholdTooTight(t *testing.T) {
	seeker := lookingUser("user-a", 0)
	partner := lookingUser("user-b", 50)

	s := new(mockStorage)
	s.On("FindLookingCandidates", "campus", "user-a", mock.AnythingOfType("time.Time")).
		Return([]models.User{partner}, nil)

	m := newMatchmaker(s, 10)
	found, err := m.FindPartner(&seeker)

	assert.Nil(t, found)
	assert.ErrorIs(t, err, models.ErrNoPartnerAvailable)
}

func TestFindPartnerPicksClosest(t *testing.T) {
	seeker := lookingUser("user-a", 0)
	far := lookingUser("user-far", 400)
	near := lookingUser("user-near", 60)
	mid := lookingUser("user-mid", 200)

	s := new(mockStorage)
	s.On("FindLookingCandidates", "campus", "user-a", mock.AnythingOfType("time.Time")).
		Return([]models.User{far, near, mid}, nil)

	m := newMatchmaker(s, 800)
	found, err := m.FindPartner(&seeker)

	assert.NoError(t, err)
	assert.Equal(t, "user-near", found.ID)
}

// TestFindPartnerDistanceTieBreak pins the deterministic tie-break: exactly
// equal distances resolve by candidate id order.
func TestFindPartnerDistanceTieBreak(t *testing.T) {
	seeker := lookingUser("user-a", 0)
	// Same offset, so exactly the same distance. Storage returns them
	// ordered by id.
	tieB := lookingUser("user-b", 75)
	tieC := lookingUser("user-c", 75)

	s := new(mockStorage)
	s.On("FindLookingCandidates", "campus", "user-a", mock.AnythingOfType("time.Time")).
		Return([]models.User{tieB, tieC}, nil)

	m := newMatchmaker(s, 800)
	found, err := m.FindPartner(&seeker)

	assert.NoError(t, err)
	assert.Equal(t, "user-b", found.ID)
}

func TestFindPartnerNoLocation(t *testing.T) {
	seeker := models.User{ID: "user-a", Status: models.StatusLooking}

	m := newMatchmaker(new(mockStorage), 800)
	found, err := m.FindPartner(&seeker)

	assert.Nil(t, found)
	assert.ErrorIs(t, err, models.ErrNoRegion)
}

func TestFindPartnerNoRegion(t *testing.T) {
	seeker := lookingUser("user-a", 0)
	seeker.RegionID = nil

	m := newMatchmaker(new(mockStorage), 800)
	found, err := m.FindPartner(&seeker)

	assert.Nil(t, found)
	assert.ErrorIs(t, err, models.ErrNoRegion)
}

func TestFindPartnerEmptyCandidateSet(t *testing.T) {
	seeker := lookingUser("user-a", 0)

	s := new(mockStorage)
	s.On("FindLookingCandidates", "campus", "user-a", mock.AnythingOfType("time.Time")).
		Return([]models.User{}, nil)

	m := newMatchmaker(s, 800)
	found, err := m.FindPartner(&seeker)

	assert.Nil(t, found)
	assert.ErrorIs(t, err, models.ErrNoPartnerAvailable)
}

// TestFindPartnerFreshnessCutoff verifies the staleness window is passed to
// the candidate query.
func TestFindPartnerFreshnessCutoff(t *testing.T) {
	seeker := lookingUser("user-a", 0)

	s := new(mockStorage)
	s.On("FindLookingCandidates", "campus", "user-a", testNow.Add(-time.Hour)).
		Return([]models.User{}, nil).Once()

	m := newMatchmaker(s, 800)
	_, err := m.FindPartner(&seeker)

	assert.ErrorIs(t, err, models.ErrNoPartnerAvailable)
	s.AssertExpectations(t)
}

func TestClaimBothUsers(t *testing.T) {
	seeker := lookingUser("user-a", 0)
	partner := lookingUser("user-b", 50)

	s := new(mockStorage)
	s.On("ClaimForMatch", "user-a", mock.AnythingOfType("time.Duration")).Return(true, nil)
	s.On("ClaimForMatch", "user-b", mock.AnythingOfType("time.Duration")).Return(true, nil)
	s.On("ClaimLookingUser", "user-b").Return(true, nil)
	s.On("ClaimLookingUser", "user-a").Return(true, nil)
	s.On("ReleaseMatchClaim", "user-a").Return(nil)
	s.On("ReleaseMatchClaim", "user-b").Return(nil)

	m := newMatchmaker(s, 100)
	err := m.Claim(&seeker, &partner)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusChatting, seeker.Status)
	assert.Equal(t, models.StatusChatting, partner.Status)
	s.AssertExpectations(t)
}

// TestClaimLostRaceOnPartner verifies that losing the partner CAS surfaces
// as no-partner-available and flips nobody.
func TestClaimLostRaceOnPartner(t *testing.T) {
	seeker := lookingUser("user-a", 0)
	partner := lookingUser("user-b", 50)

	s := new(mockStorage)
	s.On("ClaimForMatch", "user-a", mock.AnythingOfType("time.Duration")).Return(true, nil)
	s.On("ClaimForMatch", "user-b", mock.AnythingOfType("time.Duration")).Return(true, nil)
	s.On("ClaimLookingUser", "user-b").Return(false, nil)
	s.On("ReleaseMatchClaim", "user-a").Return(nil)
	s.On("ReleaseMatchClaim", "user-b").Return(nil)

	m := newMatchmaker(s, 100)
	err := m.Claim(&seeker, &partner)

	assert.ErrorIs(t, err, models.ErrNoPartnerAvailable)
	assert.Equal(t, models.StatusLooking, seeker.Status, "caller stays LOOKING after a lost race")
	s.AssertNotCalled(t, "ClaimLookingUser", "user-a")
}

// TestClaimLostRaceOnSelf verifies the partner is rolled back into the pool
// when the caller's own CAS fails.
func TestClaimLostRaceOnSelf(t *testing.T) {
	seeker := lookingUser("user-a", 0)
	partner := lookingUser("user-b", 50)

	s := new(mockStorage)
	s.On("ClaimForMatch", "user-a", mock.AnythingOfType("time.Duration")).Return(true, nil)
	s.On("ClaimForMatch", "user-b", mock.AnythingOfType("time.Duration")).Return(true, nil)
	s.On("ClaimLookingUser", "user-b").Return(true, nil)
	s.On("ClaimLookingUser", "user-a").Return(false, nil)
	s.On("SetUserStatus", "user-b", models.StatusLooking).Return(nil).Once()
	s.On("ReleaseMatchClaim", "user-a").Return(nil)
	s.On("ReleaseMatchClaim", "user-b").Return(nil)

	m := newMatchmaker(s, 100)
	err := m.Claim(&seeker, &partner)

	assert.ErrorIs(t, err, models.ErrNoPartnerAvailable)
	s.AssertExpectations(t)
}

// TestClaimRedisFenceHeld verifies an existing Redis claim on the partner
// blocks the whole claim without touching user statuses.
func TestClaimRedisFenceHeld(t *testing.T) {
	seeker := lookingUser("user-a", 0)
	partner := lookingUser("user-b", 50)

	s := new(mockStorage)
	s.On("ClaimForMatch", "user-a", mock.AnythingOfType("time.Duration")).Return(true, nil)
	s.On("ClaimForMatch", "user-b", mock.AnythingOfType("time.Duration")).Return(false, nil)
	s.On("ReleaseMatchClaim", "user-a").Return(nil).Once()

	m := newMatchmaker(s, 100)
	err := m.Claim(&seeker, &partner)

	assert.ErrorIs(t, err, models.ErrNoPartnerAvailable)
	s.AssertNotCalled(t, "ClaimLookingUser", mock.Anything)
	s.AssertNotCalled(t, "ReleaseMatchClaim", "user-b")
	s.AssertExpectations(t)
}
