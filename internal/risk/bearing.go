package risk

import (
	"driver-schedule-service/internal/domain"
	"math"
)

// Bearing returns the initial great-circle bearing from one point to another,
// in degrees clockwise from north (0..360).
func Bearing(from, to domain.Coordinates) float64 {
	lat1 := from.Lat * math.Pi / 180
	lat2 := to.Lat * math.Pi / 180
	dLon := (to.Lon - from.Lon) * math.Pi / 180

	x := math.Sin(dLon) * math.Cos(lat2)
	y := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	b := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(b+360, 360)
}

// AngleDifference returns the smallest angle between two directions (0..180).
func AngleDifference(a, b float64) float64 {
	d := math.Abs(a - b)
	d = math.Mod(d, 360)
	return math.Min(d, 360-d)
}

// SegmentBearing is the direction of travel over a whole segment.
func SegmentBearing(seg domain.RouteSegment) float64 {
	return Bearing(seg.From(), seg.To())
}

// SamplePoint is where the sun is observed for a segment.
func SamplePoint(seg domain.RouteSegment) domain.Coordinates {
	return domain.Midpoint(seg.From(), seg.To())
}
