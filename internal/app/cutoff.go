package app

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"review_harvester/internal/domain"
)

// 24-hour layouts; 12-hour inputs are normalized before parsing.
var timestampLayouts = []string{
	"January 2, 2006 15:04",
	"Jan 2, 2006 15:04",
	"January 2, 2006 15:04:05",
	"Jan 2, 2006 15:04:05",
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])?$`)

// NormalizeTime converts "HH:MM AM/PM" to 24-hour "HH:MM". A clock without a
// suffix is already 24-hour and only gets its hour zero-padded.
func NormalizeTime(clock string) (string, error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(clock))
	if m == nil {
		return "", fmt.Errorf("%w: time %q", domain.ErrExtraction, clock)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if minute > 59 {
		return "", fmt.Errorf("%w: time %q out of range", domain.ErrExtraction, clock)
	}
	if m[3] == "" {
		if hour > 23 {
			return "", fmt.Errorf("%w: time %q out of range", domain.ErrExtraction, clock)
		}
		return fmt.Sprintf("%02d:%s", hour, m[2]), nil
	}
	if hour < 1 || hour > 12 {
		return "", fmt.Errorf("%w: time %q out of range", domain.ErrExtraction, clock)
	}
	switch strings.ToUpper(m[3]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	}
	return fmt.Sprintf("%02d:%s", hour, m[2]), nil
}

// CutoffEvaluator compares record timestamps against a cutoff. Both sides are
// read in Location; nil means UTC.
type CutoffEvaluator struct {
	Location *time.Location
}

func (e CutoffEvaluator) loc() *time.Location {
	if e.Location == nil {
		return time.UTC
	}
	return e.Location
}

// ParseCutoff accepts "<Month> <Day>,<Year> <Hour>:<Minute>" in 24-hour form
// or with an AM/PM suffix.
func (e CutoffEvaluator) ParseCutoff(text string) (time.Time, error) {
	fields := strings.Fields(normalizeDate(text))
	if n := len(fields); n >= 2 && isMeridiem(fields[n-1]) {
		clock, err := NormalizeTime(fields[n-2] + " " + fields[n-1])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidCutoff, text)
		}
		fields = append(fields[:n-2], clock)
	}
	t, err := e.parse(strings.Join(fields, " "))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", domain.ErrInvalidCutoff, text)
	}
	return t, nil
}

// Timestamp combines the record's rendered date with its normalized time.
func (e CutoffEvaluator) Timestamp(r domain.Record) (time.Time, error) {
	clock, err := NormalizeTime(r.Time)
	if err != nil {
		return time.Time{}, err
	}
	t, err := e.parse(normalizeDate(r.Date) + " " + clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", domain.ErrExtraction, r.Date)
	}
	return t, nil
}

// IsOlderThan reports whether the record is strictly earlier than cutoff.
func (e CutoffEvaluator) IsOlderThan(r domain.Record, cutoff time.Time) (bool, error) {
	t, err := e.Timestamp(r)
	if err != nil {
		return false, err
	}
	return t.Before(cutoff), nil
}

func (e CutoffEvaluator) parse(s string) (time.Time, error) {
	var last error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, s, e.loc())
		if err == nil {
			return t, nil
		}
		last = err
	}
	return time.Time{}, last
}

// normalizeDate turns "Jan 1,2020" and "Jan  1, 2020" into "Jan 1, 2020".
func normalizeDate(s string) string {
	return squash(strings.ReplaceAll(s, ",", ", "))
}

func isMeridiem(s string) bool {
	s = strings.ToUpper(s)
	return s == "AM" || s == "PM"
}
