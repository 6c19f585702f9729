package routing

import (
	"driver-schedule-service/internal/ports"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.openrouteservice.org"
	defaultProfile = "driving-hgv"
)

// ORSProvider implements RouteProvider and Geocoder using OpenRouteService.
//
// It coordinates:
//   - Address normalization
//   - Route and geocode caching
//   - External API calls with retry/backoff
//
// The provider is safe for concurrent use.
type ORSProvider struct {
	session      *http.Client
	apiKey       string
	baseURL      string
	profile      string
	routeCache   ports.RouteCache
	geocodeCache ports.GeocodeCache
	logger       *zap.Logger
	backoff      time.Duration
	maxAttempts  int
}

type ORSOptions struct {
	APIKey  string
	BaseURL string
	Profile string
	Timeout time.Duration
	// Attempts per request including the first, and the wait before the
	// first retry. Zero selects the defaults.
	MaxAttempts int
	Backoff     time.Duration
	// Either cache may be nil.
	RouteCache   ports.RouteCache
	GeocodeCache ports.GeocodeCache
	Logger       *zap.Logger
}

func NewORSProvider(opts ORSOptions) (*ORSProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	p := &ORSProvider{
		session:      &http.Client{Timeout: 10 * time.Second},
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		profile:      opts.Profile,
		routeCache:   opts.RouteCache,
		geocodeCache: opts.GeocodeCache,
		logger:       opts.Logger,
		backoff:      defaultBackoff,
		maxAttempts:  defaultMaxAttempts,
	}
	if opts.MaxAttempts > 0 {
		p.maxAttempts = opts.MaxAttempts
	}
	if opts.Backoff > 0 {
		p.backoff = opts.Backoff
	}
	if opts.Timeout > 0 {
		p.session.Timeout = opts.Timeout
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}
	if p.profile == "" {
		p.profile = defaultProfile
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}

	return p, nil
}

// normalize ensures consistent cache keys by collapsing whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// routeKey identifies a route request in the cache. Coordinates are rounded
// to about a meter.
func (o *ORSProvider) routeKey(req ports.RouteRequest) string {
	pts := req.Points()
	parts := make([]string, 0, len(pts)+1)
	parts = append(parts, o.profile)
	for _, c := range pts {
		parts = append(parts, fmt.Sprintf("%.5f,%.5f", c.Lon, c.Lat))
	}
	return strings.Join(parts, ";")
}
