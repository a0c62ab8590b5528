package entities

import (
	"time"
)

// Location is a configured observation point. Immutable after startup.
type Location struct {
	ID        string  `json:"id" mapstructure:"id"`
	Name      string  `json:"name" mapstructure:"name"`
	Latitude  float64 `json:"lat" mapstructure:"lat"`
	Longitude float64 `json:"lon" mapstructure:"lon"`
}

func (l Location) Validate() error {
	if l.ID == "" {
		return ErrInvalidLocationID
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// Reading is one normalized weather observation. It is identified by
// (LocationID, ObservedAt) and never mutated after creation.
type Reading struct {
	LocationID           string    `json:"location_id"`
	ObservedAt           time.Time `json:"observed_at"`
	FetchedAt            time.Time `json:"fetched_at"`
	Temperature          float64   `json:"temperature"`
	FeelsLike            float64   `json:"feels_like"`
	Humidity             int       `json:"humidity"`
	Pressure             float64   `json:"pressure"`
	Visibility           float64   `json:"visibility"`
	WindSpeed            float64   `json:"wind_speed"`
	WindDirection        int       `json:"wind_direction"`
	CloudCoverage        int       `json:"cloud_coverage"`
	ConditionCode        int       `json:"condition_code"`
	ConditionMain        string    `json:"condition_main"`
	ConditionDescription string    `json:"condition_description"`
	Sunrise              time.Time `json:"sunrise"`
	Sunset               time.Time `json:"sunset"`
	RawPayload           []byte    `json:"raw_payload,omitempty"`
}

// Key identifies the reading by its uniqueness invariant.
func (r *Reading) Key() string {
	return r.LocationID + "@" + r.ObservedAt.UTC().Format(time.RFC3339)
}

func (r *Reading) Validate() error {
	if r.LocationID == "" {
		return ErrInvalidLocationID
	}
	if r.ObservedAt.IsZero() {
		return ErrInvalidObservedAt
	}
	if r.Humidity < 0 || r.Humidity > 100 {
		return ErrInvalidHumidity
	}
	if r.WindSpeed < 0 {
		return ErrInvalidWindSpeed
	}
	if r.WindDirection < 0 || r.WindDirection > 359 {
		return ErrInvalidWindDirection
	}
	if r.CloudCoverage < 0 || r.CloudCoverage > 100 {
		return ErrInvalidCloudCoverage
	}
	return nil
}

var (
	ErrInvalidLocationID    = ValidationError{Field: "location_id", Reason: "must not be empty"}
	ErrInvalidLatitude      = ValidationError{Field: "lat", Reason: "must be between -90 and 90"}
	ErrInvalidLongitude     = ValidationError{Field: "lon", Reason: "must be between -180 and 180"}
	ErrInvalidObservedAt    = ValidationError{Field: "observed_at", Reason: "must not be zero"}
	ErrInvalidHumidity      = ValidationError{Field: "humidity", Reason: "must be between 0 and 100"}
	ErrInvalidWindSpeed     = ValidationError{Field: "wind_speed", Reason: "must not be negative"}
	ErrInvalidWindDirection = ValidationError{Field: "wind_direction", Reason: "must be between 0 and 359"}
	ErrInvalidCloudCoverage = ValidationError{Field: "cloud_coverage", Reason: "must be between 0 and 100"}
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}
