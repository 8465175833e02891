// Package schedule models a professional's recurring weekly availability
// and absences, and edits them against the directory API.
package schedule

import (
	"fmt"
	"strings"
	"time"
)

// Weekday enumerates days with Monday first.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// DaysPerWeek is the number of DaySchedule entries a WeeklySchedule holds.
const DaysPerWeek = 7

var weekdayNames = [DaysPerWeek]string{
	"MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY",
}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Valid reports whether d is one of the seven days.
func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

// ParseWeekday accepts the upper-case name in any casing.
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range weekdayNames {
		if n == name {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("schedule: unknown weekday %q", s)
}

// WeekdayOf converts a time.Weekday (Sunday first) to Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % DaysPerWeek)
}

func (d Weekday) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("schedule: invalid weekday %d", int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	parsed, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeBlock is a local wall-clock range in 24h HH:MM.
type TimeBlock struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// DaySchedule is one weekday of a WeeklySchedule.
type DaySchedule struct {
	DayOfWeek    Weekday     `json:"dayOfWeek"`
	IsWorkingDay bool        `json:"isWorkingDay"`
	TimeBlocks   []TimeBlock `json:"timeBlocks"`
}

// WeeklySchedule is a professional's recurring availability. BufferTime,
// TimeZone and IsActive belong to the server-side slot generator and are
// passed through untouched.
type WeeklySchedule struct {
	Days                []DaySchedule `json:"days"`
	DefaultSlotDuration int           `json:"defaultSlotDuration"`
	BufferTime          int           `json:"bufferTime"`
	TimeZone            string        `json:"timeZone,omitempty"`
	IsActive            bool          `json:"isActive"`
}

// Clone returns a deep copy.
func (w WeeklySchedule) Clone() WeeklySchedule {
	out := w
	out.Days = make([]DaySchedule, len(w.Days))
	for i, d := range w.Days {
		out.Days[i] = d
		if d.TimeBlocks != nil {
			out.Days[i].TimeBlocks = make([]TimeBlock, len(d.TimeBlocks))
			copy(out.Days[i].TimeBlocks, d.TimeBlocks)
		}
	}
	return out
}

// Day returns the schedule for weekday d.
func (w WeeklySchedule) Day(d Weekday) (DaySchedule, bool) {
	for _, day := range w.Days {
		if day.DayOfWeek == d {
			return day, true
		}
	}
	return DaySchedule{}, false
}

// AbsenceType is the closed set of absence reasons.
type AbsenceType string

const (
	AbsenceVacation   AbsenceType = "VACATION"
	AbsenceSickLeave  AbsenceType = "SICK_LEAVE"
	AbsenceConference AbsenceType = "CONFERENCE"
	AbsencePersonal   AbsenceType = "PERSONAL"
	AbsenceOther      AbsenceType = "OTHER"
)

// AbsenceTypes lists every valid type in display order.
var AbsenceTypes = []AbsenceType{AbsenceVacation, AbsenceSickLeave, AbsenceConference, AbsencePersonal, AbsenceOther}

func (t AbsenceType) Valid() bool {
	for _, v := range AbsenceTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Absence removes availability over an inclusive date range. Absences are
// created and deleted, never edited in place.
type Absence struct {
	ID        string      `json:"id,omitempty"`
	Type      AbsenceType `json:"type"`
	StartDate string      `json:"startDate"`
	EndDate   string      `json:"endDate"`
	Reason    string      `json:"reason,omitempty"`
}

// AbsenceFilter narrows an absence listing.
type AbsenceFilter struct {
	From string
	To   string
	Type AbsenceType
}

const dateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or an RFC 3339 date-time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: invalid date %q", s)
	}
	return t, nil
}
