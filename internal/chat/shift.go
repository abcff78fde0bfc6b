// Package chat implements the chat session lifecycle engine: mapping the
// raw message stream into logical per-counterpart chats with activity-based
// expiry, noise filtering, shift partitioning, and aggregate statistics.
package chat

import "time"

// Shift boundaries: the day shift covers local hours [9, 21), everything
// else is the night shift of the same calendar date.
const (
	dayShiftStartHour = 9
	dayShiftEndHour   = 21
)

// ShiftName maps a timestamp to its shift label, "day_YYYY-MM-DD" or
// "night_YYYY-MM-DD" in the timestamp's location. The date component only
// rolls over at midnight: a message at 21:00 falls into the night bucket
// of the same calendar date, not the next day.
func ShiftName(t time.Time) string {
	date := t.Format("2006-01-02")
	if hour := t.Hour(); hour >= dayShiftStartHour && hour < dayShiftEndHour {
		return "day_" + date
	}
	return "night_" + date
}
