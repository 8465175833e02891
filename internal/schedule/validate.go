package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/carebook/internal/domainerr"
)

// MaxAbsenceReasonLength bounds Absence.Reason in runes.
const MaxAbsenceReasonLength = 200

// ParseClock parses HH:MM (24h) into minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' || !isDigits(s[:2]) || !isDigits(s[3:]) {
		return 0, fmt.Errorf("schedule: invalid time %q, want HH:MM", s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("schedule: invalid time %q, want HH:MM", s)
	}
	return h*60 + m, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Validate checks a time block in isolation.
func (b TimeBlock) Validate() error {
	start, err := ParseClock(b.StartTime)
	if err != nil {
		return err
	}
	end, err := ParseClock(b.EndTime)
	if err != nil {
		return err
	}
	if start >= end {
		return fmt.Errorf("schedule: block %s-%s must start before it ends", b.StartTime, b.EndTime)
	}
	return nil
}

// Validate enforces the weekly schedule invariants. Overlapping blocks on
// the same day are accepted; the server decides whether to reject them.
func (w WeeklySchedule) Validate() error {
	var problems []string
	if len(w.Days) != DaysPerWeek {
		problems = append(problems, fmt.Sprintf("expected %d days, got %d", DaysPerWeek, len(w.Days)))
	}
	if w.DefaultSlotDuration <= 0 {
		problems = append(problems, "default slot duration must be positive")
	}
	if w.BufferTime < 0 {
		problems = append(problems, "buffer time must not be negative")
	}
	seen := make(map[Weekday]bool, DaysPerWeek)
	for _, d := range w.Days {
		if !d.DayOfWeek.Valid() {
			problems = append(problems, fmt.Sprintf("invalid weekday %d", int(d.DayOfWeek)))
			continue
		}
		if seen[d.DayOfWeek] {
			problems = append(problems, fmt.Sprintf("duplicate %s", d.DayOfWeek))
		}
		seen[d.DayOfWeek] = true
		if !d.IsWorkingDay {
			continue
		}
		for _, b := range d.TimeBlocks {
			if err := b.Validate(); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %s", d.DayOfWeek, strings.TrimPrefix(err.Error(), "schedule: ")))
			}
		}
	}
	if len(problems) > 0 {
		return domainerr.New(domainerr.CodeValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks an absence before it is submitted.
func (a Absence) Validate() error {
	if !a.Type.Valid() {
		return domainerr.Newf(domainerr.CodeValidationFailed, "unknown absence type %q", a.Type)
	}
	start, err := ParseDate(a.StartDate)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeValidationFailed, err)
	}
	end, err := ParseDate(a.EndDate)
	if err != nil {
		return domainerr.Wrap(domainerr.CodeValidationFailed, err)
	}
	if end.Before(start) {
		return domainerr.Newf(domainerr.CodeValidationFailed, "absence ends (%s) before it starts (%s)", a.EndDate, a.StartDate)
	}
	if utf8.RuneCountInString(a.Reason) > MaxAbsenceReasonLength {
		return domainerr.Newf(domainerr.CodeValidationFailed, "reason exceeds %d characters", MaxAbsenceReasonLength)
	}
	return nil
}

// Normalize orders days by weekday and strips blocks from non-working
// days, which are never submitted.
func Normalize(days []DaySchedule) []DaySchedule {
	out := make([]DaySchedule, len(days))
	for i, d := range days {
		out[i] = d
		if d.IsWorkingDay {
			out[i].TimeBlocks = append([]TimeBlock{}, d.TimeBlocks...)
		} else {
			out[i].TimeBlocks = []TimeBlock{}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DayOfWeek < out[j].DayOfWeek })
	return out
}

// DefaultWeeklySchedule is the template offered when a professional has
// no schedule yet: weekdays 09:00-17:00, weekends off.
func DefaultWeeklySchedule() WeeklySchedule {
	days := make([]DaySchedule, 0, DaysPerWeek)
	for d := Monday; d <= Sunday; d++ {
		day := DaySchedule{DayOfWeek: d, TimeBlocks: []TimeBlock{}}
		if d <= Friday {
			day.IsWorkingDay = true
			day.TimeBlocks = []TimeBlock{{StartTime: "09:00", EndTime: "17:00"}}
		}
		days = append(days, day)
	}
	return WeeklySchedule{
		Days:                days,
		DefaultSlotDuration: 30,
		BufferTime:          0,
		TimeZone:            "UTC",
		IsActive:            true,
	}
}
