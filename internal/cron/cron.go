// Package cron implements the 5-field Unix-style cron expression parser and
// next-fire-time computation the Scheduler drives itself by (spec §4.H).
package cron

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// field bounds, in field order: minute, hour, day-of-month, month, day-of-week.
var bounds = [5][2]int{
	{0, 59},
	{0, 23},
	{1, 31},
	{1, 12},
	{0, 7},
}

// fieldSet is the set of allowed values for one field, represented as a
// map keyed by value.
type fieldSet struct {
	allowed map[int]bool
	star    bool // true if the field was "*" (unconstrained)
}

func (s fieldSet) has(v int) bool { return s.allowed[v] }

// Expression is a parsed 5-field cron expression.
type Expression struct {
	minute, hour, dom, month, dow fieldSet
	raw                           string
}

// Parse parses a 5-field cron expression: minute hour day-of-month month
// day-of-week, each a "*", integer, range, comma list, or step expression.
func Parse(expr string) (*Expression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d in %q", len(fields), expr)
	}

	parsed := make([]fieldSet, 5)
	for i, f := range fields {
		fs, err := parseField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return nil, fmt.Errorf("cron: field %d (%q): %w", i, f, err)
		}
		parsed[i] = fs
	}

	// Normalize day-of-week: both 0 and 7 mean Sunday.
	dow := parsed[4]
	if dow.allowed[7] {
		dow.allowed[0] = true
		delete(dow.allowed, 7)
	}

	return &Expression{
		minute: parsed[0],
		hour:   parsed[1],
		dom:    parsed[2],
		month:  parsed[3],
		dow:    dow,
		raw:    expr,
	}, nil
}

func (e *Expression) String() string { return e.raw }

// parseField parses one comma-separated list of "*", "N", "A-B", or
// "<form>/step" entries within [lo, hi].
func parseField(f string, lo, hi int) (fieldSet, error) {
	fs := fieldSet{allowed: make(map[int]bool)}

	for _, part := range strings.Split(f, ",") {
		if part == "" {
			return fieldSet{}, fmt.Errorf("empty list element")
		}

		base, step, err := splitStep(part)
		if err != nil {
			return fieldSet{}, err
		}

		var rangeLo, rangeHi int
		switch {
		case base == "*":
			fs.star = true
			rangeLo, rangeHi = lo, hi
		case strings.Contains(base, "-"):
			bounds := strings.SplitN(base, "-", 2)
			if len(bounds) != 2 {
				return fieldSet{}, fmt.Errorf("invalid range %q", base)
			}
			rangeLo, err = strconv.Atoi(bounds[0])
			if err != nil {
				return fieldSet{}, fmt.Errorf("invalid range start %q", bounds[0])
			}
			rangeHi, err = strconv.Atoi(bounds[1])
			if err != nil {
				return fieldSet{}, fmt.Errorf("invalid range end %q", bounds[1])
			}
		default:
			v, err := strconv.Atoi(base)
			if err != nil {
				return fieldSet{}, fmt.Errorf("invalid value %q", base)
			}
			rangeLo, rangeHi = v, v
		}

		if rangeLo < lo || rangeHi > hi || rangeLo > rangeHi {
			return fieldSet{}, fmt.Errorf("value out of range [%d,%d]: %q", lo, hi, part)
		}

		for v := rangeLo; v <= rangeHi; v += step {
			fs.allowed[v] = true
		}
	}

	return fs, nil
}

func splitStep(part string) (base string, step int, err error) {
	if idx := strings.IndexByte(part, '/'); idx >= 0 {
		base = part[:idx]
		step, err = strconv.Atoi(part[idx+1:])
		if err != nil {
			return "", 0, fmt.Errorf("invalid step in %q", part)
		}
		if step <= 0 {
			return "", 0, fmt.Errorf("step must be positive in %q", part)
		}
		return base, step, nil
	}
	return part, 1, nil
}

// NextAfter finds the least instant strictly greater than t whose
// wall-clock fields all match, evaluated in loc. Day-of-month and
// day-of-week unconstrained (both "*") means "any day"; if only one is
// constrained, that one decides; if both are constrained, a day matching
// either one fires (Unix cron union semantics).
// Returns an error if no match is found within a five-year search horizon,
// which happens for parseable expressions naming a date that never occurs
// (e.g. day 30 of February).
func (e *Expression) NextAfter(t time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)

	// Start at the next whole minute strictly after t.
	next := t.Truncate(time.Minute).Add(time.Minute)

	horizon := t.AddDate(5, 0, 0)

	for !next.After(horizon) {
		if !e.month.has(int(next.Month())) {
			next = firstOfNextMonth(next)
			continue
		}
		if !e.dayMatches(next) {
			next = next.AddDate(0, 0, 1)
			next = time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, loc)
			continue
		}
		if !e.hour.has(next.Hour()) {
			next = nextHour(next)
			continue
		}
		if !e.minute.has(next.Minute()) {
			next = next.Add(time.Minute)
			continue
		}
		return next, nil
	}

	return time.Time{}, fmt.Errorf("cron: no matching instant found within horizon for %q", e.raw)
}

func (e *Expression) dayMatches(t time.Time) bool {
	domStar := e.dom.star
	dowStar := e.dow.star

	if domStar && dowStar {
		return true
	}
	if !domStar && dowStar {
		return e.dom.has(t.Day())
	}
	if domStar && !dowStar {
		return e.dow.has(int(t.Weekday()))
	}
	// Both constrained: Unix cron union semantics.
	return e.dom.has(t.Day()) || e.dow.has(int(t.Weekday()))
}

func firstOfNextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
}

func nextHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location()).Add(time.Hour)
}
