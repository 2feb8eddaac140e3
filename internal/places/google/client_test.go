package googleplaces

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/coffee-map-sync/internal/crawler"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		APIKey:    "test-key",
		Endpoint:  srv.URL + "/findplacefromtext/json",
		Timeout:   2 * time.Second,
		Retries:   2,
		RetryWait: 5 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestFindPlaceOK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Tim Wendelboe, Grüners gate 1, Norway", q.Get("input"))
		assert.Equal(t, "textquery", q.Get("inputtype"))
		assert.Equal(t, "place_id,formatted_address,geometry,types,name", q.Get("fields"))
		assert.Equal(t, "test-key", q.Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "candidates": [{
    "place_id": "ChIJ-tim",
    "name": "Tim Wendelboe",
    "formatted_address": "Grüners gate 1, 0552 Oslo, Norway",
    "types": ["cafe", "food", "point_of_interest"],
    "geometry": {"location": {"lat": 59.9233, "lng": 10.7555}}
  }],
  "status": "OK"
}`))
	})

	got, err := c.FindPlace(context.Background(), "Tim Wendelboe, Grüners gate 1, Norway")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ChIJ-tim", got[0].PlaceID)
	assert.Equal(t, "Grüners gate 1, 0552 Oslo, Norway", got[0].FormattedAddress)
	require.NotNil(t, got[0].Latitude)
	require.NotNil(t, got[0].Longitude)
	assert.InDelta(t, 59.9233, *got[0].Latitude, 1e-9)
	assert.Contains(t, got[0].Types, "cafe")
}

func TestFindPlaceZeroResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": [], "status": "ZERO_RESULTS"}`))
	})

	got, err := c.FindPlace(context.Background(), "nowhere")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindPlaceMissingGeometry(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": [{"place_id": "p"}], "status": "OK"}`))
	})

	got, err := c.FindPlace(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Latitude)
	assert.Nil(t, got[0].Longitude)
}

func TestFindPlaceStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		target error
	}{
		{name: "over query limit", body: `{"candidates":[],"status":"OVER_QUERY_LIMIT","error_message":"quota"}`, target: crawler.ErrQuotaExhausted},
		{name: "request denied", body: `{"candidates":[],"status":"REQUEST_DENIED","error_message":"bad key"}`, target: crawler.ErrCredentialRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.FindPlace(context.Background(), "q")
			require.ErrorIs(t, err, tc.target)
		})
	}
}

func TestFindPlaceInvalidRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"status":"INVALID_REQUEST"}`))
	})
	_, err := c.FindPlace(context.Background(), "")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "INVALID_REQUEST", statusErr.Status)
}

func TestFindPlaceHTTPStatusMapping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.FindPlace(context.Background(), "q")
	require.ErrorIs(t, err, crawler.ErrQuotaExhausted)

	c = newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	_, err = c.FindPlace(context.Background(), "q")
	require.ErrorIs(t, err, crawler.ErrCredentialRejected)
}

func TestFindPlaceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[],"status":"ZERO_RESULTS"}`))
	})

	_, err := c.FindPlace(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFindPlaceMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})
	_, err := c.FindPlace(context.Background(), "q")
	require.Error(t, err)
}
