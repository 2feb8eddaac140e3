// Package googleplaces calls the Google Places "Find Place From Text" API.
package googleplaces

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

// DefaultEndpoint is the production findplacefromtext URL.
const DefaultEndpoint = "https://maps.googleapis.com/maps/api/place/findplacefromtext/json"

// DefaultFields are requested on every lookup.
var DefaultFields = []string{"place_id", "formatted_address", "geometry", "types", "name"}

// API status values.
const (
	statusOK             = "OK"
	statusZeroResults    = "ZERO_RESULTS"
	statusOverQueryLimit = "OVER_QUERY_LIMIT"
	statusRequestDenied  = "REQUEST_DENIED"
)

// Config controls the client.
type Config struct {
	APIKey    string
	Endpoint  string
	Timeout   time.Duration
	Retries   int
	RetryWait time.Duration
	Fields    []string
}

// Client implements crawler.PlaceSearcher.
type Client struct {
	http     *resty.Client
	endpoint string
	apiKey   string
	fields   string
	logger   *zap.Logger
}

// StatusError reports a non-OK API status that is neither quota nor credential related.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("places api status %s", e.Status)
	}
	return fmt.Sprintf("places api status %s: %s", e.Status, e.Message)
}

type findPlaceResponse struct {
	Candidates []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Types            []string `json:"types"`
		Geometry         *struct {
			Location *struct {
				Lat *float64 `json:"lat"`
				Lng *float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"candidates"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
}

// New builds a client. An API key is required.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("places api key is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = time.Second
	}
	if len(cfg.Fields) == 0 {
		cfg.Fields = DefaultFields
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")
	client.SetRetryCount(cfg.Retries)
	client.SetRetryWaitTime(cfg.RetryWait)
	client.SetRetryMaxWaitTime(cfg.RetryWait * 4)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= http.StatusInternalServerError
	})

	return &Client{
		http:     client,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		fields:   strings.Join(cfg.Fields, ","),
		logger:   logger.Named("places"),
	}, nil
}

// FindPlace runs one text query and returns the candidates in API order.
func (c *Client) FindPlace(ctx context.Context, query string) ([]crawler.PlaceCandidate, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"input":     query,
			"inputtype": "textquery",
			"fields":    c.fields,
			"key":       c.apiKey,
		}).
		Get(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("places request: %w", err)
	}

	switch code := res.StatusCode(); {
	case code == http.StatusTooManyRequests:
		return nil, fmt.Errorf("places http %d: %w", code, crawler.ErrQuotaExhausted)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, fmt.Errorf("places http %d: %w", code, crawler.ErrCredentialRejected)
	case code != http.StatusOK:
		return nil, fmt.Errorf("places http status %d", code)
	}

	var payload findPlaceResponse
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}

	switch payload.Status {
	case statusOK, statusZeroResults:
	case statusOverQueryLimit:
		return nil, fmt.Errorf("%s: %w", payload.ErrorMessage, crawler.ErrQuotaExhausted)
	case statusRequestDenied:
		return nil, fmt.Errorf("%s: %w", payload.ErrorMessage, crawler.ErrCredentialRejected)
	default:
		return nil, &StatusError{Status: payload.Status, Message: payload.ErrorMessage}
	}

	out := make([]crawler.PlaceCandidate, 0, len(payload.Candidates))
	for _, cand := range payload.Candidates {
		pc := crawler.PlaceCandidate{
			PlaceID:          cand.PlaceID,
			Name:             cand.Name,
			FormattedAddress: cand.FormattedAddress,
			Types:            cand.Types,
		}
		if cand.Geometry != nil && cand.Geometry.Location != nil {
			pc.Latitude = cand.Geometry.Location.Lat
			pc.Longitude = cand.Geometry.Location.Lng
		}
		out = append(out, pc)
	}
	c.logger.Debug("places lookup",
		zap.String("query", query),
		zap.String("status", payload.Status),
		zap.Int("candidates", len(out)))
	return out, nil
}
