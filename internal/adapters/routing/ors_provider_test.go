package routing

import (
	"context"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/ports"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
)

type memRouteCache struct {
	m    map[string][]domain.RouteSegment
	puts int
}

func (c *memRouteCache) Get(ctx context.Context, key string) ([]domain.RouteSegment, bool, error) {
	s, ok := c.m[key]
	return s, ok, nil
}

func (c *memRouteCache) Put(ctx context.Context, key string, segs []domain.RouteSegment) error {
	c.m[key] = segs
	c.puts++
	return nil
}

type memGeocodeCache struct {
	m map[string]domain.Coordinates
}

func (c *memGeocodeCache) GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error) {
	out := map[string]domain.Coordinates{}
	for _, a := range addresses {
		if v, ok := c.m[a]; ok {
			out[a] = v
		}
	}
	return out, nil
}

func (c *memGeocodeCache) PutMany(ctx context.Context, results map[string]domain.Coordinates) error {
	for k, v := range results {
		c.m[k] = v
	}
	return nil
}

func directionsBody(t *testing.T) []byte {
	t.Helper()
	geometry := polyline.EncodeCoords([][]float64{
		{33.44840, -112.07400},
		{33.45000, -112.00000},
		{33.50000, -111.90000},
	})

	body := map[string]any{
		"routes": []any{
			map[string]any{
				"geometry": string(geometry),
				"segments": []any{
					map[string]any{
						"steps": []any{
							map[string]any{"distance": 6900.0, "duration": 420.0, "instruction": "Head east", "way_points": []int{0, 1}},
							map[string]any{"distance": 11000.0, "duration": 600.0, "instruction": "Continue", "way_points": []int{1, 2}},
							map[string]any{"distance": 0.0, "duration": 0.0, "instruction": "Arrive", "way_points": []int{2, 2}},
						},
					},
				},
			},
		},
	}
	b, err := json.Marshal(body)
	require.NoError(t, err)
	return b
}

func newTestProvider(t *testing.T, url string, rc ports.RouteCache, gc ports.GeocodeCache) *ORSProvider {
	t.Helper()
	p, err := NewORSProvider(ORSOptions{
		APIKey:       "k",
		BaseURL:      url,
		Profile:      "driving-hgv",
		Backoff:      time.Millisecond,
		RouteCache:   rc,
		GeocodeCache: gc,
	})
	require.NoError(t, err)
	return p
}

var phoenixTrip = ports.RouteRequest{
	Origin:      domain.Coordinates{Lon: -112.074, Lat: 33.4484},
	Destination: domain.Coordinates{Lon: -111.9, Lat: 33.5},
}

func TestGetRouteDecodesStepsIntoSegments(t *testing.T) {
	body := directionsBody(t)
	var gotBody directionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/directions/driving-hgv", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write(body)
	}))
	defer srv.Close()

	cache := &memRouteCache{m: map[string][]domain.RouteSegment{}}
	p := newTestProvider(t, srv.URL, cache, nil)

	segs, err := p.GetRoute(context.Background(), phoenixTrip)
	require.NoError(t, err)
	require.Len(t, segs, 2)

	assert.Equal(t, [][]float64{{-112.074, 33.4484}, {-111.9, 33.5}}, gotBody.Coordinates)
	assert.True(t, gotBody.Instructions)

	assert.Equal(t, 0, segs[0].Index)
	assert.Equal(t, 1, segs[1].Index)
	assert.Len(t, segs[0].Path, 2)
	assert.InDelta(t, -112.074, segs[0].Start.Lon, 1e-5)
	assert.InDelta(t, 33.4484, segs[0].Start.Lat, 1e-5)
	assert.InDelta(t, -111.9, segs[1].End.Lon, 1e-5)
	assert.Equal(t, 600.0, segs[1].DurationSeconds)
	assert.Equal(t, "Continue", segs[1].Instruction)
	assert.Equal(t, 1, cache.puts)
}

func TestGetRouteServesFromCache(t *testing.T) {
	body := directionsBody(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write(body)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, &memRouteCache{m: map[string][]domain.RouteSegment{}}, nil)

	_, err := p.GetRoute(context.Background(), phoenixTrip)
	require.NoError(t, err)
	_, err = p.GetRoute(context.Background(), phoenixTrip)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetRouteRetriesTransientFailures(t *testing.T) {
	body := directionsBody(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, nil, nil)

	segs, err := p.GetRoute(context.Background(), phoenixTrip)
	require.NoError(t, err)
	assert.Len(t, segs, 2)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetRouteDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":2010,"message":"Could not find routable point within a radius of 350.0 meters"}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, nil, nil)

	_, err := p.GetRoute(context.Background(), phoenixTrip)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrUpstream))
	assert.Contains(t, err.Error(), "ors status 404 (code 2010): Could not find routable point")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetRouteDoesNotRetryUnsupportedProfile(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotImplemented)
		w.Write([]byte(`{"error":"profile not supported"}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(t, srv.URL, nil, nil).GetRoute(context.Background(), phoenixTrip)
	require.ErrorIs(t, err, ports.ErrUpstream)
	assert.Contains(t, err.Error(), "ors status 501: profile not supported")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetRouteStopsAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewORSProvider(ORSOptions{APIKey: "k", BaseURL: srv.URL, MaxAttempts: 2, Backoff: time.Millisecond})
	require.NoError(t, err)

	_, err = p.GetRoute(context.Background(), phoenixTrip)
	require.ErrorIs(t, err, ports.ErrUpstream)
	assert.Contains(t, err.Error(), "ors status 429: Too Many Requests")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestNewORSProviderRetryDefaults(t *testing.T) {
	p, err := NewORSProvider(ORSOptions{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxAttempts, p.maxAttempts)
	assert.Equal(t, defaultBackoff, p.backoff)
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"3", 3 * time.Second},
		{" 1 ", time.Second},
		{"0", 0},
		{"-5", 0},
		{"Wed, 21 Oct 2026 07:28:00 GMT", 0},
		{"3600", maxRetryAfter},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseRetryAfter(tt.in), "Retry-After %q", tt.in)
	}
}

func TestRetryWaitHonorsRetryAfter(t *testing.T) {
	var mu sync.Mutex
	var seen []time.Time
	body := directionsBody(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, time.Now())
		n := len(seen)
		mu.Unlock()
		if n == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	_, err := newTestProvider(t, srv.URL, nil, nil).GetRoute(context.Background(), phoenixTrip)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.GreaterOrEqual(t, seen[1].Sub(seen[0]), 900*time.Millisecond)
}

func TestGetRouteRejectsInvalidPoints(t *testing.T) {
	p := newTestProvider(t, "http://127.0.0.1:1", nil, nil)

	_, err := p.GetRoute(context.Background(), ports.RouteRequest{
		Origin:      domain.Coordinates{Lon: 0, Lat: 95},
		Destination: domain.Coordinates{Lon: 1, Lat: 1},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGeocodeUsesCache(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/geocode/search", r.URL.Path)
		assert.Equal(t, "1901 W Madison St, Phoenix", r.URL.Query().Get("text"))
		w.Write([]byte(`{"features":[{"geometry":{"coordinates":[-112.1,33.45]}}]}`))
	}))
	defer srv.Close()

	gc := &memGeocodeCache{m: map[string]domain.Coordinates{}}
	p := newTestProvider(t, srv.URL, nil, gc)

	c, err := p.Geocode(context.Background(), "  1901 W Madison St,   Phoenix ")
	require.NoError(t, err)
	assert.Equal(t, domain.Coordinates{Lon: -112.1, Lat: 33.45}, c)

	c, err = p.Geocode(context.Background(), "1901 W Madison St, Phoenix")
	require.NoError(t, err)
	assert.Equal(t, -112.1, c.Lon)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGeocodeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(t, srv.URL, nil, nil).Geocode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ports.ErrUpstream)
}

func TestNewORSProviderRequiresKey(t *testing.T) {
	_, err := NewORSProvider(ORSOptions{})
	assert.Error(t, err)
}
