package solar

import (
	"driver-schedule-service/internal/domain"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// DaylightAt returns sunrise and sunset (UTC) at loc on the UTC calendar date
// of day. During polar day or night both are nil.
func DaylightAt(loc domain.Coordinates, day time.Time) domain.DaylightWindow {
	d := day.UTC()
	rise, set := sunrise.SunriseSunset(loc.Lat, loc.Lon, d.Year(), d.Month(), d.Day())
	if rise.IsZero() || set.IsZero() {
		return domain.DaylightWindow{}
	}

	rise = rise.UTC()
	set = set.UTC()
	return domain.DaylightWindow{Sunrise: &rise, Sunset: &set}
}
