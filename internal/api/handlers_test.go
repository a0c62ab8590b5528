package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/storage"
)

var apiTestLocations = []entities.Location{
	{ID: "downtown", Name: "Downtown Ithaca", Latitude: 42.4430, Longitude: -76.5019},
	{ID: "cornell-campus", Name: "Cornell Campus", Latitude: 42.4534, Longitude: -76.4735},
}

func newTestRouter(t *testing.T, store *storage.MemoryStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handler := NewAPIHandler(store, nil, apiTestLocations, logger.New("error", "test"))

	router := gin.New()
	api := router.Group("/api/v1")
	api.GET("/health", handler.HealthCheck)
	api.GET("/locations", handler.GetLocations)
	api.GET("/readings", handler.GetReadings)
	api.GET("/readings/latest/:location_id", handler.GetLatestReading)
	return router
}

func seedReadings(t *testing.T, store *storage.MemoryStore, locationID string, times ...time.Time) {
	t.Helper()
	readings := make([]entities.Reading, 0, len(times))
	for _, at := range times {
		readings = append(readings, entities.Reading{
			LocationID:  locationID,
			ObservedAt:  at,
			FetchedAt:   at,
			Temperature: 3.2,
			Humidity:    80,
			Pressure:    1015,
		})
	}
	_, err := store.Persist(context.Background(), readings)
	require.NoError(t, err)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t, storage.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestGetLocations(t *testing.T) {
	router := newTestRouter(t, storage.NewMemoryStore())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Count     int                 `json:"count"`
		Locations []entities.Location `json:"locations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "downtown", body.Locations[0].ID)
}

func TestGetReadings(t *testing.T) {
	store := storage.NewMemoryStore()
	base := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	seedReadings(t, store, "downtown",
		base.Add(1*time.Hour),
		base.Add(2*time.Hour),
		base.Add(3*time.Hour),
	)
	router := newTestRouter(t, store)

	t.Run("returns readings within range in order", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/readings?location_id=downtown&from=2024-11-03T00:30:00Z&to=2024-11-03T02:30:00Z", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var body ReadingsResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Equal(t, 2, body.Count)
		assert.True(t, body.Readings[0].ObservedAt.Before(body.Readings[1].ObservedAt))
	})

	t.Run("missing location_id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/readings", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown location", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/readings?location_id=rochester", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed from parameter", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/readings?location_id=downtown&from=yesterday", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("inverted range", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/readings?location_id=downtown&from=2024-11-03T05:00:00Z&to=2024-11-03T01:00:00Z", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetLatestReading(t *testing.T) {
	store := storage.NewMemoryStore()
	base := time.Date(2024, 11, 3, 0, 0, 0, 0, time.UTC)
	seedReadings(t, store, "downtown", base.Add(time.Hour), base.Add(2*time.Hour))
	router := newTestRouter(t, store)

	t.Run("returns most recent reading", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/readings/latest/downtown", nil)
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

		var body entities.Reading
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, base.Add(2*time.Hour), body.ObservedAt)
	})

	t.Run("no readings yet", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/readings/latest/cornell-campus", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown location", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/readings/latest/rochester", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
