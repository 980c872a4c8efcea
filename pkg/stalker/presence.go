package stalker

import (
	"time"

	"github.com/unifitools/wifistalker/pkg/models"
)

// presenceSamples splits the connected interval [from, to) across the
// hour slots it covers, in UTC, proportionally at hour boundaries. Day
// 0 is Monday. With a normal poll interval the result is one sample, or
// two when the interval straddles an hour boundary.
func presenceSamples(from, to time.Time) []models.PresenceSample {
	from = from.UTC()
	to = to.UTC()

	if !from.Before(to) {
		return nil
	}

	var samples []models.PresenceSample

	cursor := from
	for cursor.Before(to) {
		hourEnd := cursor.Truncate(time.Hour).Add(time.Hour)

		segEnd := hourEnd
		if to.Before(hourEnd) {
			segEnd = to
		}

		samples = append(samples, models.PresenceSample{
			DayOfWeek: mondayIndexed(cursor),
			HourOfDay: cursor.Hour(),
			Minutes:   segEnd.Sub(cursor).Minutes(),
		})

		cursor = segEnd
	}

	return samples
}

// mondayIndexed maps time.Weekday (Sunday == 0) onto the Monday == 0
// convention the heat map stores.
func mondayIndexed(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
