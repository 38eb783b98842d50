package models

import "time"

// WeekStart maps an instant to its week's Monday at 00:00:00 UTC. Inputs in
// a local offset are converted to UTC before bucketing, so the same instant
// always lands in the same bucket. Idempotent: WeekStart(WeekStart(t)) == WeekStart(t).
func WeekStart(t time.Time) time.Time {
	u := t.UTC()
	// Monday=0 ... Sunday=6
	offset := (int(u.Weekday()) + 6) % 7
	u = u.AddDate(0, 0, -offset)
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekKey formats a week-start instant as the calendar-date key used for
// grouping and for the external JSON representation.
func WeekKey(t time.Time) string {
	return WeekStart(t).Format("2006-01-02")
}
