package core

import (
	"slices"
	"strings"
	"time"
)

// CreatedAtLayout is the display format of Message.CreatedAt, e.g. "10/14/2026 - 3:04:05 pm".
// It has a resolution of one second.
const CreatedAtLayout = "01/02/2006 - 3:04:05 pm"

// FormatCreatedAt formats t in the local time zone using CreatedAtLayout.
func FormatCreatedAt(t time.Time) string {
	return t.Local().Format(CreatedAtLayout)
}

// ParseCreatedAt parses a CreatedAt display string in the local time zone.
// The am/pm marker is matched case-insensitively.
func ParseCreatedAt(s string) (time.Time, error) {
	return time.ParseInLocation(CreatedAtLayout, strings.ToLower(strings.TrimSpace(s)), time.Local)
}

// CreatedInstant returns the instant a message is ordered by.
// CreatedAtUnix wins when set; otherwise CreatedAt is parsed.
// A message whose timestamp cannot be parsed gets the zero time so it sorts last.
func CreatedInstant(m Message) time.Time {
	if m.CreatedAtUnix != 0 {
		return time.UnixMilli(m.CreatedAtUnix)
	}
	t, err := ParseCreatedAt(m.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SortMessages returns a copy of messages ordered newest first.
// Messages with the same instant keep the order they were given in.
func SortMessages(messages []Message) []Message {
	type keyed struct {
		at      time.Time
		message Message
	}
	ks := make([]keyed, len(messages))
	for i, m := range messages {
		ks[i] = keyed{at: CreatedInstant(m), message: m}
	}

	slices.SortStableFunc(ks, func(a, b keyed) int {
		return b.at.Compare(a.at)
	})

	sorted := make([]Message, len(ks))
	for i, k := range ks {
		sorted[i] = k.message
	}
	return sorted
}
