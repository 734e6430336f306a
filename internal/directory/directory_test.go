package directory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"rundezvous/backend/internal/directory"
	"rundezvous/backend/internal/geo"
	"rundezvous/backend/internal/models"
	"rundezvous/backend/internal/regions"
	"rundezvous/backend/internal/storage"
)

type mockStorage struct {
	mock.Mock
	storage.Storage
}

func (m *mockStorage) GetUserByID(id string) (*models.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockStorage) SaveUser(user *models.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *mockStorage) ListRegions() ([]models.Region, error) {
	args := m.Called()
	return args.Get(0).([]models.Region), args.Error(1)
}

func (m *mockStorage) RecordMetUsers(a, b string) error {
	args := m.Called(a, b)
	return args.Error(0)
}

func campusRegion() models.Region {
	r := models.Region{ID: "campus", Name: "Campus"}
	r.SetRing(geo.Polygon{
		{Lat: 46.70, Lon: -117.20},
		{Lat: 46.70, Lon: -117.14},
		{Lat: 46.76, Lon: -117.14},
		{Lat: 46.76, Lon: -117.20},
	})
	return r
}

func newDirectory(s *mockStorage, now time.Time) *directory.Directory {
	d := directory.New(s, regions.NewIndex(s))
	d.Now = func() time.Time { return now }
	return d
}

func TestUpdateLocationAssignsRegion(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	s := new(mockStorage)
	s.On("GetUserByID", "user-a").Return(&models.User{ID: "user-a"}, nil)
	s.On("ListRegions").Return([]models.Region{campusRegion()}, nil)
	s.On("SaveUser", mock.AnythingOfType("*models.User")).Return(nil)

	d := newDirectory(s, now)
	user, changed, err := d.UpdateLocation("user-a", geo.Point{Lat: 46.7316913, Lon: -117.1701676})

	assert.NoError(t, err)
	assert.True(t, changed, "first report is always a change")
	assert.NotNil(t, user.RegionID)
	assert.Equal(t, "campus", *user.RegionID)
	assert.NotNil(t, user.LocationUpdatedAt)
	assert.Equal(t, now, *user.LocationUpdatedAt)

	p, ok := user.Location()
	assert.True(t, ok)
	assert.Equal(t, 46.7316913, p.Lat)
	assert.Equal(t, -117.1701676, p.Lon)
	s.AssertExpectations(t)
}

func TestUpdateLocationOutsideRegionsClearsRegion(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	regionID := "campus"

	s := new(mockStorage)
	s.On("GetUserByID", "user-a").Return(&models.User{ID: "user-a", RegionID: &regionID}, nil)
	s.On("ListRegions").Return([]models.Region{campusRegion()}, nil)
	s.On("SaveUser", mock.AnythingOfType("*models.User")).Return(nil)

	d := newDirectory(s, now)
	user, _, err := d.UpdateLocation("user-a", geo.Point{Lat: 0, Lon: 0})

	assert.NoError(t, err)
	assert.Nil(t, user.RegionID, "leaving all supported regions clears the assignment")
}

func TestUpdateLocationSamePointNotChanged(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	lat, lon := 46.7316913, -117.1701676

	s := new(mockStorage)
	s.On("GetUserByID", "user-a").Return(&models.User{
		ID:       "user-a",
		Latitude: &lat, Longitude: &lon,
	}, nil)
	s.On("ListRegions").Return([]models.Region{campusRegion()}, nil)
	s.On("SaveUser", mock.AnythingOfType("*models.User")).Return(nil)

	d := newDirectory(s, now)
	user, changed, err := d.UpdateLocation("user-a", geo.Point{Lat: lat, Lon: lon})

	assert.NoError(t, err)
	assert.False(t, changed)
	// Freshness timestamp still advances: same spot, still active.
	assert.Equal(t, now, *user.LocationUpdatedAt)
}

func TestRecordMetIsDelegatedSymmetrically(t *testing.T) {
	s := new(mockStorage)
	s.On("RecordMetUsers", "user-a", "user-b").Return(nil).Once()

	d := newDirectory(s, time.Now())
	assert.NoError(t, d.RecordMet("user-a", "user-b"))
	s.AssertExpectations(t)
}
