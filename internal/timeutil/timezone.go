package timeutil

import "time"

// Exam windows are stored in UTC and presented in each user's IANA zone.
// Unknown zone names degrade to UTC rather than failing the request.

// ToLocal converts a UTC instant into the named zone.
func ToLocal(t time.Time, tzName string) time.Time {
	return t.In(location(tzName))
}

// LocalToUTC interprets a wall-clock time (as entered by an instructor) in
// the named zone and returns the UTC instant.
func LocalToUTC(t time.Time, tzName string) time.Time {
	loc := location(tzName)
	local := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
	return local.UTC()
}

// Format renders a timestamp for display, or empty for the zero value.
func Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

// Valid reports whether tzName resolves to a known IANA zone.
func Valid(tzName string) bool {
	if tzName == "" {
		return false
	}
	_, err := time.LoadLocation(tzName)
	return err == nil
}

func location(tzName string) *time.Location {
	if tzName == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return time.UTC
	}
	return loc
}
