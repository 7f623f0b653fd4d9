package utils

import (
	"time"
)

// ChicagoLocation is the timezone for CME Globex session boundaries.
var ChicagoLocation *time.Location

func init() {
	var err error
	ChicagoLocation, err = time.LoadLocation("America/Chicago")
	if err != nil {
		// Fallback to UTC-6
		ChicagoLocation = time.FixedZone("CT", -6*60*60)
	}
}

// IsSessionOpen reports whether the Globex equity index session is open.
// The session runs Sunday 17:00 to Friday 16:00 Central, with a daily
// maintenance break from 16:00 to 17:00.
func IsSessionOpen() bool {
	return isSessionOpenAt(time.Now().In(ChicagoLocation))
}

func isSessionOpenAt(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return now.Hour() >= 17
	case time.Friday:
		return now.Hour() < 16
	default:
		// Daily break 16:00-17:00
		return now.Hour() != 16
	}
}

// NextSessionOpen returns the next Globex session opening time.
func NextSessionOpen() time.Time {
	now := time.Now().In(ChicagoLocation)
	next := time.Date(now.Year(), now.Month(), now.Day(), 17, 0, 0, 0, ChicagoLocation)
	if now.After(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
