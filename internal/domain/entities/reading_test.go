package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReading_Validate(t *testing.T) {
	now := time.Now().UTC()

	valid := func() *Reading {
		return &Reading{
			LocationID:           "downtown",
			ObservedAt:           now,
			FetchedAt:            now,
			Temperature:          4.5,
			FeelsLike:            1.2,
			Humidity:             78,
			Pressure:             1012.0,
			Visibility:           10000,
			WindSpeed:            6.7,
			WindDirection:        270,
			CloudCoverage:        90,
			ConditionCode:        804,
			ConditionMain:        "Clouds",
			ConditionDescription: "overcast clouds",
			Sunrise:              now.Add(-6 * time.Hour),
			Sunset:               now.Add(6 * time.Hour),
		}
	}

	t.Run("valid reading", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	testCases := []struct {
		name    string
		mutate  func(*Reading)
		wantErr error
	}{
		{"empty location", func(r *Reading) { r.LocationID = "" }, ErrInvalidLocationID},
		{"zero observed_at", func(r *Reading) { r.ObservedAt = time.Time{} }, ErrInvalidObservedAt},
		{"humidity too low", func(r *Reading) { r.Humidity = -1 }, ErrInvalidHumidity},
		{"humidity too high", func(r *Reading) { r.Humidity = 101 }, ErrInvalidHumidity},
		{"negative wind speed", func(r *Reading) { r.WindSpeed = -0.1 }, ErrInvalidWindSpeed},
		{"wind direction too high", func(r *Reading) { r.WindDirection = 360 }, ErrInvalidWindDirection},
		{"cloud coverage too high", func(r *Reading) { r.CloudCoverage = 101 }, ErrInvalidCloudCoverage},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := valid()
			tc.mutate(r)
			err := r.Validate()
			assert.Error(t, err)
			assert.Equal(t, tc.wantErr, err)
		})
	}
}

func TestReading_Key(t *testing.T) {
	observed := time.Date(2024, 11, 3, 14, 30, 0, 0, time.UTC)

	a := &Reading{LocationID: "downtown", ObservedAt: observed, FetchedAt: time.Now()}
	b := &Reading{LocationID: "downtown", ObservedAt: observed, FetchedAt: time.Now().Add(time.Hour)}
	c := &Reading{LocationID: "cayuga-lake", ObservedAt: observed}

	assert.Equal(t, a.Key(), b.Key(), "fetched_at must not affect identity")
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, "downtown@2024-11-03T14:30:00Z", a.Key())
}

func TestLocation_Validate(t *testing.T) {
	t.Run("valid location", func(t *testing.T) {
		loc := Location{ID: "cornell-campus", Name: "Cornell Campus", Latitude: 42.4534, Longitude: -76.4735}
		assert.NoError(t, loc.Validate())
	})

	t.Run("empty id", func(t *testing.T) {
		loc := Location{Latitude: 42.4, Longitude: -76.5}
		assert.Equal(t, ErrInvalidLocationID, loc.Validate())
	})

	t.Run("latitude out of range", func(t *testing.T) {
		loc := Location{ID: "x", Latitude: 91}
		assert.Equal(t, ErrInvalidLatitude, loc.Validate())
	})

	t.Run("longitude out of range", func(t *testing.T) {
		loc := Location{ID: "x", Latitude: 0, Longitude: -181}
		assert.Equal(t, ErrInvalidLongitude, loc.Validate())
	})
}
