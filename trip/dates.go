package trip

import (
	"math"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// NormalizeTripDates validates a date range and fills in the derived fields.
// Duration is always recomputed as the number of days between start and end,
// rounded up, with a minimum of 1. CheckIn and CheckOut default to the start
// and end dates and must fall inside the range.
func NormalizeTripDates(in TripDates) (TripDates, error) {
	if in.StartDate == "" {
		return TripDates{}, NewValidationError("tripDates.startDate", "is required")
	}
	if in.EndDate == "" {
		return TripDates{}, NewValidationError("tripDates.endDate", "is required")
	}

	start, err := ParseDate(in.StartDate)
	if err != nil {
		return TripDates{}, NewValidationError("tripDates.startDate", "must be a date (YYYY-MM-DD)")
	}
	end, err := ParseDate(in.EndDate)
	if err != nil {
		return TripDates{}, NewValidationError("tripDates.endDate", "must be a date (YYYY-MM-DD)")
	}
	if end.Before(start) {
		return TripDates{}, NewValidationError("tripDates.endDate", "must not be before startDate")
	}

	out := in
	out.Duration = durationDays(start, end)

	if out.CheckIn == "" {
		out.CheckIn = in.StartDate
	}
	if out.CheckOut == "" {
		out.CheckOut = in.EndDate
	}

	checkIn, err := ParseDate(out.CheckIn)
	if err != nil {
		return TripDates{}, NewValidationError("tripDates.checkIn", "must be a date (YYYY-MM-DD)")
	}
	checkOut, err := ParseDate(out.CheckOut)
	if err != nil {
		return TripDates{}, NewValidationError("tripDates.checkOut", "must be a date (YYYY-MM-DD)")
	}
	if checkIn.Before(start) || checkIn.After(end) {
		return TripDates{}, NewValidationError("tripDates.checkIn", "must fall within startDate and endDate")
	}
	if checkOut.Before(start) || checkOut.After(end) {
		return TripDates{}, NewValidationError("tripDates.checkOut", "must fall within startDate and endDate")
	}
	if checkOut.Before(checkIn) {
		return TripDates{}, NewValidationError("tripDates.checkOut", "must not be before checkIn")
	}

	return out, nil
}

func durationDays(start, end time.Time) int {
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days < 1 {
		return 1
	}
	return days
}
