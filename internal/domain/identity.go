package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var deviceSuffixRe = regexp.MustCompile(`:\d+@`)

// NormalizeJID strips the device suffix from a sender identity,
// e.g. "972541234567:12@s.whatsapp.net" -> "972541234567@s.whatsapp.net".
func NormalizeJID(jid string) string {
	return deviceSuffixRe.ReplaceAllString(jid, "@")
}

// IsFullName reports whether a display name has at least two tokens.
// Single-word names are never admitted to the roster.
func IsFullName(name string) bool {
	return len(strings.Fields(name)) >= 2
}

var clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseClock validates an "HH:MM" wall-clock string and returns it
// zero-padded, or "" if malformed.
func ParseClock(text string) string {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return ""
	}
	var h, min int
	fmt.Sscanf(m[1], "%d", &h)
	fmt.Sscanf(m[2], "%d", &min)
	if h < 0 || h > 23 || min < 0 || min > 59 {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, min)
}

// UpcomingSaturday returns the ISO date of the next Saturday after now
// (never today) in the given location.
func UpcomingSaturday(now time.Time, loc *time.Location) string {
	local := now.In(loc)
	days := (int(time.Saturday) - int(local.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return local.AddDate(0, 0, days).Format("2006-01-02")
}

// DefaultRoster builds the fresh roster used at the weekly reset boundary
// and when no roster document exists yet.
func DefaultRoster(now time.Time, loc *time.Location) Roster {
	return Roster{
		WeekOf:           UpcomingSaturday(now, loc),
		WarmupTime:       "20:30",
		StartTime:        "21:00",
		CommitmentTime:   "20:00",
		Slots:            make([]*Participant, SlotCount),
		WaitingList:      []Participant{},
		RegistrationOpen: false,
	}
}

// DefaultWeekly builds an empty weekly state.
func DefaultWeekly() WeeklyState {
	return WeeklyState{
		UserIDMap:         map[string]string{},
		MessagesCollected: []CollectedMessage{},
	}
}
