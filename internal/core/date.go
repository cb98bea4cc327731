package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// DayLayout is the canonical calendar-day key format.
const DayLayout = "2006-01-02"

// Date is a calendar day in UTC. The zero value means "no date".
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DayOf returns the UTC calendar day a timestamp falls on.
func DayOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), int(u.Month()), u.Day())
}

// ParseDate accepts either a bare day (2024-03-01) or a full RFC 3339
// timestamp; timestamps are normalised to their UTC day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DayLayout, s); err == nil {
		return DayOf(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return DayOf(t), nil
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Key returns the YYYY-MM-DD form used for storage and comparisons.
func (d Date) Key() string {
	if d.IsZero() {
		return ""
	}
	return d.UTC().Format(DayLayout)
}

func (d Date) String() string {
	return d.Key()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Key())
}

// UnmarshalJSON accepts a day string, "" or null. Any other JSON value is
// ErrInvalidDate.
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	if strings.TrimSpace(s) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DayRange is an inclusive range of calendar days. An empty bound does not
// constrain that side.
type DayRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// NewDayRange parses optional start and end days. Blank strings leave the
// corresponding bound open.
func NewDayRange(start, end string) (DayRange, error) {
	var r DayRange
	if strings.TrimSpace(start) != "" {
		d, err := ParseDate(start)
		if err != nil {
			return DayRange{}, err
		}
		r.Start = d
	}
	if strings.TrimSpace(end) != "" {
		d, err := ParseDate(end)
		if err != nil {
			return DayRange{}, err
		}
		r.End = d
	}
	return r, nil
}

// Contains reports whether t falls on a day inside the range.
func (r DayRange) Contains(t time.Time) bool {
	return InRange(t, r.Start, r.End)
}

// IsOpen reports whether neither bound is set.
func (r DayRange) IsOpen() bool {
	return r.Start.IsEmpty() && r.End.IsEmpty()
}

// InRange compares the UTC day of t against optional inclusive bounds.
// Day keys are fixed-width, so string order is chronological order.
func InRange(t time.Time, start, end Date) bool {
	day := DayOf(t).Key()
	if !start.IsEmpty() && day < start.Key() {
		return false
	}
	if !end.IsEmpty() && day > end.Key() {
		return false
	}
	return true
}
