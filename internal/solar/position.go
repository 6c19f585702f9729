// Package solar computes where the sun is in the sky for a point on the earth
// and an instant. It uses the low-precision solar coordinates from Meeus
// (Astronomical Algorithms, ch. 25), good to about 0.01 degree in declination
// and well under 0.5 degree in altitude/azimuth for 1900-2100.
package solar

import (
	"driver-schedule-service/internal/domain"
	"fmt"
	"math"
	"time"
)

const (
	unixEpochJulianDay = 2440587.5
	j2000JulianDay     = 2451545.0
	secondsPerDay      = 86400.0
	daysPerCentury     = 36525.0
)

// Position returns the sun's altitude and azimuth for loc at the given instant.
// It fails with ErrInvalidInput for non-finite or out-of-range coordinates and
// for the zero time.
func Position(loc domain.Coordinates, at time.Time) (domain.SunPosition, error) {
	if err := loc.Validate(); err != nil {
		return domain.SunPosition{}, fmt.Errorf("sun position: %w", err)
	}
	if at.IsZero() {
		return domain.SunPosition{}, fmt.Errorf("sun position: zero time: %w", domain.ErrInvalidInput)
	}

	jd := JulianDay(at)
	dec, ra := equatorial(jd)

	// Local hour angle from Greenwich mean sidereal time.
	t := (jd - j2000JulianDay) / daysPerCentury
	gmst := normalizeDegrees(280.46061837 + 360.98564736629*(jd-j2000JulianDay) +
		0.000387933*t*t - t*t*t/38710000.0)
	hourAngle := radians(normalizeDegrees(gmst + loc.Lon - degrees(ra)))

	lat := radians(loc.Lat)

	sinAlt := math.Sin(lat)*math.Sin(dec) + math.Cos(lat)*math.Cos(dec)*math.Cos(hourAngle)
	alt := math.Asin(clamp(sinAlt, -1, 1))

	azimuth := 0.0
	den := math.Cos(lat) * math.Cos(alt)
	if math.Abs(den) > 1e-12 {
		cosAz := (math.Sin(dec) - math.Sin(lat)*math.Sin(alt)) / den
		azimuth = degrees(math.Acos(clamp(cosAz, -1, 1)))
		// Afternoon: the sun is west of the meridian.
		if math.Sin(hourAngle) > 0 {
			azimuth = 360 - azimuth
		}
	}
	if azimuth >= 360 {
		azimuth -= 360
	}

	return domain.SunPosition{
		Altitude: degrees(alt),
		Azimuth:  azimuth,
	}, nil
}

// JulianDay converts an instant to a (fractional) Julian Day number.
func JulianDay(at time.Time) float64 {
	seconds := float64(at.Unix()) + float64(at.Nanosecond())/1e9
	return unixEpochJulianDay + seconds/secondsPerDay
}

// equatorial returns the sun's apparent declination and right ascension in radians.
func equatorial(jd float64) (dec, ra float64) {
	t := (jd - j2000JulianDay) / daysPerCentury

	meanLongitude := normalizeDegrees(280.46646 + 36000.76983*t + 0.0003032*t*t)
	meanAnomaly := radians(normalizeDegrees(357.52911 + 35999.05029*t - 0.0001537*t*t))

	center := (1.914602-0.004817*t-0.000014*t*t)*math.Sin(meanAnomaly) +
		(0.019993-0.000101*t)*math.Sin(2*meanAnomaly) +
		0.000289*math.Sin(3*meanAnomaly)

	trueLongitude := meanLongitude + center

	omega := radians(125.04 - 1934.136*t)
	apparentLongitude := radians(trueLongitude - 0.00569 - 0.00478*math.Sin(omega))

	meanObliquity := 23.439291 - 0.0130042*t - 0.00000164*t*t + 0.000000504*t*t*t
	obliquity := radians(meanObliquity + 0.00256*math.Cos(omega))

	dec = math.Asin(math.Sin(obliquity) * math.Sin(apparentLongitude))
	ra = math.Atan2(math.Cos(obliquity)*math.Sin(apparentLongitude), math.Cos(apparentLongitude))
	return dec, ra
}

func normalizeDegrees(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}

func radians(d float64) float64 { return d * math.Pi / 180 }

func degrees(r float64) float64 { return r * 180 / math.Pi }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
