package routing

import (
	"bytes"
	"context"
	"driver-schedule-service/internal/domain"
	"driver-schedule-service/internal/platform/obs"
	"driver-schedule-service/internal/ports"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/twpayne/go-polyline"
	"go.uber.org/zap"
)

type directionsRequest struct {
	Coordinates  [][]float64 `json:"coordinates"`
	Instructions bool        `json:"instructions"`
	Units        string      `json:"units"`
}

type directionsStep struct {
	Distance    float64 `json:"distance"`
	Duration    float64 `json:"duration"`
	Instruction string  `json:"instruction"`
	WayPoints   []int   `json:"way_points"`
}

type directionsResponse struct {
	Routes []struct {
		Geometry string `json:"geometry"`
		Segments []struct {
			Steps []directionsStep `json:"steps"`
		} `json:"segments"`
	} `json:"routes"`
}

// GetRoute returns one RouteSegment per ORS step, with the step's slice of the
// route geometry as its path. Zero-length steps (arrivals) are dropped.
func (o *ORSProvider) GetRoute(ctx context.Context, req ports.RouteRequest) (_ []domain.RouteSegment, err error) {
	defer obs.Time(ctx, o.logger, "ors.GetRoute")(&err)

	for i, c := range req.Points() {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("get route: point %d: %w", i, err)
		}
	}

	key := o.routeKey(req)
	// Check the route cache before issuing external API calls.
	if o.routeCache != nil {
		segs, ok, err := o.routeCache.Get(ctx, key)
		if err != nil {
			o.logger.Warn("route cache read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return segs, nil
		}
	}

	segs, err := o.fetchDirections(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("get route: %v: %w", err, ports.ErrUpstream)
	}

	if o.routeCache != nil {
		if err := o.routeCache.Put(ctx, key, segs); err != nil {
			o.logger.Warn("route cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return segs, nil
}

func (o *ORSProvider) fetchDirections(ctx context.Context, req ports.RouteRequest) ([]domain.RouteSegment, error) {
	endpoint := fmt.Sprintf("%s/v2/directions/%s", o.baseURL, o.profile)

	pts := req.Points()
	coords := make([][]float64, 0, len(pts))
	for _, c := range pts {
		coords = append(coords, c.CoordsToList())
	}

	payload, err := json.Marshal(directionsRequest{Coordinates: coords, Instructions: true, Units: "m"})
	if err != nil {
		return nil, fmt.Errorf("marshal directions request: %w", err)
	}

	resp, err := o.send(ctx, func() (*http.Request, error) {
		return o.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	var dr directionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode directions response: %w", err)
	}
	if len(dr.Routes) == 0 {
		return nil, errors.New("directions response has no routes")
	}

	route := dr.Routes[0]
	geometry, err := decodeGeometry(route.Geometry)
	if err != nil {
		return nil, err
	}

	out := []domain.RouteSegment{}
	for _, leg := range route.Segments {
		for _, st := range leg.Steps {
			if st.Distance == 0 && st.Duration == 0 {
				continue
			}
			if len(st.WayPoints) != 2 || st.WayPoints[0] < 0 || st.WayPoints[1] >= len(geometry) || st.WayPoints[0] > st.WayPoints[1] {
				return nil, fmt.Errorf("step %d way_points %v outside geometry of %d points", len(out), st.WayPoints, len(geometry))
			}

			path := geometry[st.WayPoints[0] : st.WayPoints[1]+1]
			out = append(out, domain.RouteSegment{
				Index:           len(out),
				Start:           path[0],
				End:             path[len(path)-1],
				Path:            path,
				DistanceMeters:  st.Distance,
				DurationSeconds: st.Duration,
				Instruction:     st.Instruction,
			})
		}
	}

	if len(out) == 0 {
		return nil, errors.New("directions response has no drivable steps")
	}
	return out, nil
}

// decodeGeometry decodes an encoded polyline (precision 5, lat/lng order).
func decodeGeometry(encoded string) ([]domain.Coordinates, error) {
	raw, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode route geometry: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode route geometry: %d trailing bytes", len(rest))
	}

	out := make([]domain.Coordinates, 0, len(raw))
	for _, p := range raw {
		out = append(out, domain.Coordinates{Lat: p[0], Lon: p[1]})
	}
	return out, nil
}
