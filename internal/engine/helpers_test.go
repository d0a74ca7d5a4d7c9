package engine_test

import "time"

// at builds a UTC timestamp in May 2024.
func at(day, hour, minute int) time.Time {
	return time.Date(2024, time.May, day, hour, minute, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }
