package schedule

import (
	"fmt"
	"strconv"
	"time"
)

// CutDateTimeLayout is the layout of the anchor instant (fechaHoraCorte).
const CutDateTimeLayout = "2006-01-02 15:04"

const minutesPerDay = 24 * 60

// Status is the derived state of a cut window relative to now.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusActive          Status = "ACTIVE"
	StatusAlreadyOccurred Status = "ALREADY_OCCURRED"
)

// Label returns the user-facing Spanish label for the status.
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "¡Corte Activo!"
	case StatusAlreadyOccurred:
		return "¡Corte ya realizado!"
	default:
		return "¡Corte Pendiente!"
	}
}

// CutWindow is one scheduled outage segment.
type CutWindow struct {
	Account     string `json:"account"`
	CutDate     string `json:"cut_date"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	CutDateTime string `json:"cut_date_time"`
	Comment     string `json:"comment"`
}

// Key identifies a window within a session. Two windows with the same key
// are the same outage segment, even across refreshes.
func (w CutWindow) Key() string {
	return w.Account + "|" + w.CutDateTime + "|" + w.StartTime + "|" + w.EndTime
}

// ParseError reports a malformed time or date string in a single entry.
type ParseError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ClockTime is a time of day with minute resolution.
type ClockTime struct {
	Hour   int
	Minute int
}

// Minutes returns the minutes elapsed since midnight.
func (c ClockTime) Minutes() int {
	return c.Hour*60 + c.Minute
}

// IsMidnight reports whether c is 00:00.
func (c ClockTime) IsMidnight() bool {
	return c.Hour == 0 && c.Minute == 0
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Format renders c in 24h ("15:04") or 12h ("03:04 PM") form.
func (c ClockTime) Format(clock24h bool) string {
	t := time.Date(2000, time.January, 1, c.Hour, c.Minute, 0, 0, time.UTC)
	if clock24h {
		return t.Format("15:04")
	}
	return t.Format("03:04 PM")
}

// ParseClock parses a strict "HH:MM" string with hour in [0,24) and minute
// in [0,59].
func ParseClock(field, s string) (ClockTime, error) {
	if len(s) != 5 || s[2] != ':' {
		return ClockTime{}, &ParseError{Field: field, Value: s, Reason: "expected HH:MM"}
	}

	hour, err := parseDigits(s[:2])
	if err != nil {
		return ClockTime{}, &ParseError{Field: field, Value: s, Reason: "hour is not numeric"}
	}
	minute, err := parseDigits(s[3:])
	if err != nil {
		return ClockTime{}, &ParseError{Field: field, Value: s, Reason: "minute is not numeric"}
	}

	if hour > 23 {
		return ClockTime{}, &ParseError{Field: field, Value: s, Reason: "hour must be 00-23"}
	}
	if minute > 59 {
		return ClockTime{}, &ParseError{Field: field, Value: s, Reason: "minute must be 00-59"}
	}

	return ClockTime{Hour: hour, Minute: minute}, nil
}

func parseDigits(s string) (int, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("non-digit %q", r)
		}
	}
	return strconv.Atoi(s)
}

// ParseCutDateTime parses the anchor instant in the given location.
func ParseCutDateTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(CutDateTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, &ParseError{Field: "fechaHoraCorte", Value: s, Reason: "expected YYYY-MM-DD HH:mm"}
	}
	return t, nil
}

// Interval is the concrete [Start, End] of a window on its anchor date.
type Interval struct {
	Anchor time.Time
	Start  time.Time
	End    time.Time
}

// Bounds builds the start and end instants of a window on the anchor date.
// An end time of 00:00 is midnight at the end of the anchor date.
func Bounds(cutDateTime, startTime, endTime string, loc *time.Location) (Interval, error) {
	anchor, err := ParseCutDateTime(cutDateTime, loc)
	if err != nil {
		return Interval{}, err
	}
	start, err := ParseClock("horaDesde", startTime)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock("horaHasta", endTime)
	if err != nil {
		return Interval{}, err
	}

	endHour := end.Hour
	if end.IsMidnight() {
		endHour = 24
	}

	y, m, d := anchor.Date()
	return Interval{
		Anchor: anchor,
		Start:  time.Date(y, m, d, start.Hour, start.Minute, 0, 0, anchor.Location()),
		End:    time.Date(y, m, d, endHour, end.Minute, 0, 0, anchor.Location()),
	}, nil
}

// Bounds returns the concrete interval for w in loc.
func (w CutWindow) Bounds(loc *time.Location) (Interval, error) {
	return Bounds(w.CutDateTime, w.StartTime, w.EndTime, loc)
}
