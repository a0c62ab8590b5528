package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/ports"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/quota"
)

var errServerError = errors.New("provider server error")

// rateLimitError carries the provider's Retry-After hint out of the circuit
// breaker closure.
type rateLimitError struct {
	retryAfter time.Duration
}

func (e *rateLimitError) Error() string {
	return "provider rate limited (429)"
}

// Client fetches current conditions from OpenWeatherMap and normalizes them
// into Readings. Every attempt that reaches the network is charged against
// the shared quota state; attempts rejected by the quota or by an open
// circuit breaker are not.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	units   string
	quota   *quota.State
	breaker *gobreaker.CircuitBreaker
	probe   entities.Location
	logger  logger.Logger
	now     func() time.Time
}

func NewClient(baseURL, apiKey, units string, q *quota.State, probe entities.Location, log logger.Logger) ports.Fetcher {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		units:   units,
		quota:   q,
		breaker: cb,
		probe:   probe,
		logger:  log.WithField("component", "openweather_client"),
		now:     time.Now,
	}
}

// currentConditionsResponse mirrors the provider schema. Required sections
// are pointers so a missing field is distinguishable from a zero value.
type currentConditionsResponse struct {
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  float64 `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Visibility float64 `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Dt  *int64 `json:"dt"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

func (c *Client) Fetch(ctx context.Context, loc entities.Location) (*entities.Reading, error) {
	res, err := c.quota.Reserve()
	if err != nil {
		return nil, err
	}

	c.logger.Debugf("Fetching conditions for location: %s", loc.ID)

	url := fmt.Sprintf("%s/weather?lat=%.4f&lon=%.4f&appid=%s&units=%s",
		c.baseURL, loc.Latitude, loc.Longitude, c.apiKey, c.units)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		res.Refund()
		return nil, entities.NewFetchError(entities.ClassTransient,
			fmt.Errorf("failed to create request: %w", err))
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// The attempt never reached the wire, so it costs nothing.
			res.Refund()
			return nil, entities.NewFetchError(entities.ClassTransient,
				fmt.Errorf("circuit breaker open: %w", err))
		}
		var rle *rateLimitError
		if errors.As(err, &rle) {
			return nil, &entities.FetchError{
				Class:      entities.ClassRateLimited,
				RetryAfter: rle.retryAfter,
				Err:        rle,
			}
		}
		return nil, entities.NewFetchError(entities.ClassTransient, err)
	}

	wire := result.(*wireResponse)
	if wire.status != http.StatusOK {
		return nil, entities.NewFetchError(entities.ClassClientError,
			fmt.Errorf("API returned status %d: %s", wire.status, string(wire.body)))
	}

	reading, err := c.normalize(loc, wire.body)
	if err != nil {
		return nil, err
	}

	c.logger.Debugf("Successfully fetched conditions for %s at %v", loc.ID, reading.ObservedAt)
	return reading, nil
}

type wireResponse struct {
	status int
	body   []byte
}

// doRequest runs inside the circuit breaker: only network failures, 5xx and
// 429 count as breaker failures. Other statuses are classified by the caller.
func (c *Client) doRequest(req *http.Request) (*wireResponse, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &rateLimitError{retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
	}

	return &wireResponse{status: resp.StatusCode, body: body}, nil
}

// normalize is the single chokepoint translating the provider schema into
// the stable Reading shape. The verbatim body travels along as RawPayload.
func (c *Client) normalize(loc entities.Location, body []byte) (*entities.Reading, error) {
	var resp currentConditionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, entities.NewFetchError(entities.ClassMalformed,
			fmt.Errorf("failed to decode response: %w", err))
	}

	if resp.Dt == nil {
		return nil, entities.NewFetchError(entities.ClassMalformed,
			errors.New("response missing required field: dt"))
	}
	if resp.Main == nil {
		return nil, entities.NewFetchError(entities.ClassMalformed,
			errors.New("response missing required field: main"))
	}

	// The provider reports due north as either 0 or 360.
	if resp.Wind.Deg == 360 {
		resp.Wind.Deg = 0
	}

	reading := &entities.Reading{
		LocationID:    loc.ID,
		ObservedAt:    time.Unix(*resp.Dt, 0).UTC(),
		FetchedAt:     c.now().UTC(),
		Temperature:   resp.Main.Temp,
		FeelsLike:     resp.Main.FeelsLike,
		Humidity:      resp.Main.Humidity,
		Pressure:      resp.Main.Pressure,
		Visibility:    resp.Visibility,
		WindSpeed:     resp.Wind.Speed,
		WindDirection: resp.Wind.Deg,
		CloudCoverage: resp.Clouds.All,
		RawPayload:    body,
	}

	if len(resp.Weather) > 0 {
		reading.ConditionCode = resp.Weather[0].ID
		reading.ConditionMain = resp.Weather[0].Main
		reading.ConditionDescription = resp.Weather[0].Description
	}
	if resp.Sys.Sunrise > 0 {
		reading.Sunrise = time.Unix(resp.Sys.Sunrise, 0).UTC()
	}
	if resp.Sys.Sunset > 0 {
		reading.Sunset = time.Unix(resp.Sys.Sunset, 0).UTC()
	}

	if err := reading.Validate(); err != nil {
		return nil, entities.NewFetchError(entities.ClassMalformed,
			fmt.Errorf("normalized reading failed validation: %w", err))
	}

	return reading, nil
}

// HealthCheck issues a real (quota-charged) probe against the configured
// probe location.
func (c *Client) HealthCheck(ctx context.Context) error {
	reading, err := c.Fetch(ctx, c.probe)
	if err != nil {
		return fmt.Errorf("API health check failed: %w", err)
	}

	c.logger.Debugf("OpenWeatherMap API health check passed (observed_at: %v)", reading.ObservedAt)
	return nil
}

// parseRetryAfter understands the delta-seconds form of the header.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
