package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateFormat is the ISO calendar-date layout used on the wire and on disk.
const DateFormat = "2006-01-02"

// readDateFormat also accepts single-digit months and days ("2024-1-2").
const readDateFormat = "2006-1-2"

// Date is a calendar date with day granularity. The zero value is not a valid date.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date, so NewDate(2024, 1, 32) is 2024-02-01.
func NewDate(year int, month time.Month, day int) Date {
	y, m, d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Date()
	return Date{y, m, d}
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date { return NewDate(t.Date()) }

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(readDateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", s, DateFormat, err)
	}
	return DateOf(t), nil
}

// MustParseDate is like ParseDate but panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) Year() int { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int { return d.d }
func (d Date) IsZero() bool { return d == Date{} }
func (d Date) Before(x Date) bool { return d.Time().Before(x.Time()) }
func (d Date) After(x Date) bool { return d.Time().After(x.Time()) }
func (d Date) AddDays(n int) Date { return NewDate(d.y, d.m, d.d+n) }
func (d Date) String() string { return d.Time().Format(DateFormat) }

// MarshalJSON renders the date as a "YYYY-MM-DD" string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var (
	_ json.Marshaler   = Date{}
	_ json.Unmarshaler = (*Date)(nil)
)
