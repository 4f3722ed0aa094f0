package domain

import (
	"fmt"
	"time"
)

const dayKeyLayout = "2006-01-02"

// DayKey identifies a UTC calendar day as YYYY-MM-DD.
// Two jobs share a DayKey iff they start on the same UTC date.
type DayKey string

func DayKeyOf(t time.Time) DayKey {
	return DayKey(t.UTC().Format(dayKeyLayout))
}

func ParseDayKey(s string) (DayKey, error) {
	t, err := time.Parse(dayKeyLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse day key %q: %w", s, err)
	}
	return DayKeyOf(t), nil
}

// Date returns midnight UTC of the day.
func (k DayKey) Date() (time.Time, error) {
	t, err := time.Parse(dayKeyLayout, string(k))
	if err != nil {
		return time.Time{}, fmt.Errorf("day key %q: %w", string(k), err)
	}
	return t, nil
}

// Interval spans the whole day, midnight to the last millisecond.
func (k DayKey) Interval() (DateInterval, error) {
	start, err := k.Date()
	if err != nil {
		return DateInterval{}, err
	}
	return DateInterval{Start: start, End: EndOfDay(start)}, nil
}

func (k DayKey) String() string { return string(k) }

// StartOfDay returns midnight UTC of the day containing t.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last millisecond of the UTC day containing t.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}
