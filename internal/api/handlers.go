package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/ports"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
)

type APIHandler struct {
	store     ports.Store
	cache     ports.Cache
	locations []entities.Location
	logger    logger.Logger
}

func NewAPIHandler(store ports.Store, cache ports.Cache, locations []entities.Location, log logger.Logger) *APIHandler {
	return &APIHandler{
		store:     store,
		cache:     cache,
		locations: locations,
		logger:    log.WithField("component", "api_handler"),
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type ReadingsResponse struct {
	LocationID string             `json:"location_id"`
	From       time.Time          `json:"from"`
	To         time.Time          `json:"to"`
	Count      int                `json:"count"`
	Readings   []entities.Reading `json:"readings"`
}

func (h *APIHandler) HealthCheck(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.store.HealthCheck(ctx); err != nil {
		h.logger.Errorf("Store health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandler) GetLocations(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":     len(h.locations),
		"locations": h.locations,
	})
}

func (h *APIHandler) GetReadings(c *gin.Context) {
	ctx := c.Request.Context()

	locationID := c.Query("location_id")
	if locationID == "" {
		h.respondError(c, http.StatusBadRequest, "location_id parameter is required")
		return
	}
	if !h.knownLocation(locationID) {
		h.respondError(c, http.StatusNotFound, fmt.Sprintf("Unknown location: %s", locationID))
		return
	}

	from, err := parseTimeParam(c.Query("from"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid from parameter, use RFC3339")
		return
	}
	to, err := parseTimeParam(c.Query("to"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid to parameter, use RFC3339")
		return
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		to = to.UTC()
		from = to.Add(-24 * time.Hour)
	}
	if !from.Before(to) {
		h.respondError(c, http.StatusBadRequest, "from must be earlier than to")
		return
	}

	readings, err := h.store.QueryRange(ctx, locationID, from, to)
	if err != nil {
		h.logger.Errorf("Range query failed for %s: %v", locationID, err)
		h.respondError(c, http.StatusInternalServerError, "Failed to query readings")
		return
	}

	c.JSON(http.StatusOK, ReadingsResponse{
		LocationID: locationID,
		From:       from,
		To:         to,
		Count:      len(readings),
		Readings:   readings,
	})
}

func (h *APIHandler) GetLatestReading(c *gin.Context) {
	ctx := c.Request.Context()

	locationID := c.Param("location_id")
	if !h.knownLocation(locationID) {
		h.respondError(c, http.StatusNotFound, fmt.Sprintf("Unknown location: %s", locationID))
		return
	}

	if h.cache != nil {
		cached, err := h.cache.GetLatest(ctx, locationID)
		if err != nil {
			h.logger.Warnf("Cache lookup failed for %s: %v", locationID, err)
		}
		if cached != nil {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	latest, err := h.store.LatestReading(ctx, locationID)
	if err != nil {
		h.logger.Errorf("Latest reading lookup failed for %s: %v", locationID, err)
		h.respondError(c, http.StatusInternalServerError, "Failed to query latest reading")
		return
	}
	if latest == nil {
		h.respondError(c, http.StatusNotFound, fmt.Sprintf("No readings recorded for %s yet", locationID))
		return
	}

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, latest)
}

func (h *APIHandler) respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

func (h *APIHandler) knownLocation(id string) bool {
	for _, loc := range h.locations {
		if loc.ID == id {
			return true
		}
	}
	return false
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
