package routing

import (
	"context"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/ports"
	"fmt"
	"math"
	"strings"
)

const earthRadiusMeters = 6371000.0

// MockRouteProvider routes in straight lines at a constant speed, cutting each
// leg into segments of at most SegmentMeters. It stands in for a routing
// service in local runs and tests.
type MockRouteProvider struct {
	SpeedKph      float64
	SegmentMeters float64
	// Fixed addresses known to Geocode.
	Places map[string]domain.Coordinates
}

func NewMockRouteProvider(speedKph, segmentMeters float64) *MockRouteProvider {
	return &MockRouteProvider{SpeedKph: speedKph, SegmentMeters: segmentMeters, Places: map[string]domain.Coordinates{}}
}

func (p *MockRouteProvider) GetRoute(ctx context.Context, req ports.RouteRequest) ([]domain.RouteSegment, error) {
	if p.SpeedKph <= 0 || p.SegmentMeters <= 0 {
		return nil, fmt.Errorf("mock route: speed %v and segment length %v must be positive", p.SpeedKph, p.SegmentMeters)
	}

	pts := req.Points()
	for i, c := range pts {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("mock route: point %d: %w", i, err)
		}
	}

	metersPerSecond := p.SpeedKph * 1000 / 3600
	out := []domain.RouteSegment{}
	for leg := 0; leg+1 < len(pts); leg++ {
		from, to := pts[leg], pts[leg+1]
		total := haversine(from, to)
		if total == 0 {
			continue
		}

		n := int(math.Ceil(total / p.SegmentMeters))
		for k := 0; k < n; k++ {
			a := interpolate(from, to, float64(k)/float64(n))
			b := interpolate(from, to, float64(k+1)/float64(n))
			d := total / float64(n)
			out = append(out, domain.RouteSegment{
				Index:           len(out),
				Start:           a,
				End:             b,
				DistanceMeters:  d,
				DurationSeconds: math.Round(d / metersPerSecond),
				Instruction:     fmt.Sprintf("Continue on leg %d", leg+1),
			})
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("mock route: all points coincide: %w", domain.ErrEmptyRoute)
	}
	return out, nil
}

func (p *MockRouteProvider) Geocode(ctx context.Context, address string) (domain.Coordinates, error) {
	c, ok := p.Places[strings.ToLower(normalize(address))]
	if !ok {
		return domain.Coordinates{}, fmt.Errorf("mock geocode %q: unknown place: %w", address, ports.ErrUpstream)
	}
	return c, nil
}

func haversine(a, b domain.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// interpolate is linear in degrees, close enough along a short segment.
func interpolate(a, b domain.Coordinates, f float64) domain.Coordinates {
	return domain.Coordinates{
		Lon: a.Lon + (b.Lon-a.Lon)*f,
		Lat: a.Lat + (b.Lat-a.Lat)*f,
	}
}
