package models

import "time"

// Frequency is the canonical sampling interval of a query.
type Frequency string

const (
	FreqTick    Frequency = "tick"
	FreqBlock   Frequency = "block"
	Freq1s      Frequency = "1s"
	Freq10s     Frequency = "10s"
	Freq15s     Frequency = "15s"
	Freq1Min    Frequency = "1min"
	Freq3Min    Frequency = "3min"
	Freq5Min    Frequency = "5min"
	Freq10Min   Frequency = "10min"
	Freq15Min   Frequency = "15min"
	Freq30Min   Frequency = "30min"
	Freq45Min   Frequency = "45min"
	Freq1H      Frequency = "1h"
	Freq2H      Frequency = "2h"
	Freq4H      Frequency = "4h"
	Freq6H      Frequency = "6h"
	Freq8H      Frequency = "8h"
	Freq12H     Frequency = "12h"
	FreqBDay    Frequency = "b"
	FreqDay     Frequency = "d"
	Freq3D      Frequency = "3d"
	Freq5D      Frequency = "5d"
	Freq7D      Frequency = "7d"
	FreqWeek    Frequency = "w"
	Freq2W      Frequency = "2w"
	FreqMonth   Frequency = "m"
	Freq3M      Frequency = "3m"
	Freq4M      Frequency = "4m"
	Freq6M      Frequency = "6m"
	FreqQuarter Frequency = "q"
	FreqYear    Frequency = "y"
)

type freqSpec struct {
	fixed  time.Duration // fixed-width bucket, zero for calendar buckets
	days   int           // N-day buckets counted from the unix epoch
	weeks  int           // N-week buckets starting on Monday
	months int           // N-month buckets aligned to January
}

var frequencies = map[Frequency]freqSpec{
	FreqTick:    {},
	FreqBlock:   {},
	Freq1s:      {fixed: time.Second},
	Freq10s:     {fixed: 10 * time.Second},
	Freq15s:     {fixed: 15 * time.Second},
	Freq1Min:    {fixed: time.Minute},
	Freq3Min:    {fixed: 3 * time.Minute},
	Freq5Min:    {fixed: 5 * time.Minute},
	Freq10Min:   {fixed: 10 * time.Minute},
	Freq15Min:   {fixed: 15 * time.Minute},
	Freq30Min:   {fixed: 30 * time.Minute},
	Freq45Min:   {fixed: 45 * time.Minute},
	Freq1H:      {fixed: time.Hour},
	Freq2H:      {fixed: 2 * time.Hour},
	Freq4H:      {fixed: 4 * time.Hour},
	Freq6H:      {fixed: 6 * time.Hour},
	Freq8H:      {fixed: 8 * time.Hour},
	Freq12H:     {fixed: 12 * time.Hour},
	FreqBDay:    {days: 1},
	FreqDay:     {days: 1},
	Freq3D:      {days: 3},
	Freq5D:      {days: 5},
	Freq7D:      {days: 7},
	FreqWeek:    {weeks: 1},
	Freq2W:      {weeks: 2},
	FreqMonth:   {months: 1},
	Freq3M:      {months: 3},
	Freq4M:      {months: 4},
	Freq6M:      {months: 6},
	FreqQuarter: {months: 3},
	FreqYear:    {months: 12},
}

// Frequencies lists every canonical frequency from finest to coarsest.
func Frequencies() []Frequency {
	return []Frequency{
		FreqTick, FreqBlock, Freq1s, Freq10s, Freq15s,
		Freq1Min, Freq3Min, Freq5Min, Freq10Min, Freq15Min, Freq30Min, Freq45Min,
		Freq1H, Freq2H, Freq4H, Freq6H, Freq8H, Freq12H,
		FreqBDay, FreqDay, Freq3D, Freq5D, Freq7D, FreqWeek, Freq2W,
		FreqMonth, Freq3M, FreqQuarter, Freq4M, Freq6M, FreqYear,
	}
}

// Valid reports whether f is a canonical frequency.
func (f Frequency) Valid() bool {
	_, ok := frequencies[f]
	return ok
}

// Bucketed reports whether observations at f are grouped into time buckets.
// tick and block are event driven and never resampled.
func (f Frequency) Bucketed() bool {
	return f.Valid() && f != FreqTick && f != FreqBlock
}

// Intraday reports whether f is finer than one day.
func (f Frequency) Intraday() bool {
	return frequencies[f].fixed > 0 || f == FreqTick || f == FreqBlock
}

// Nominal returns an approximate bucket width used for ordering and
// end-boundary checks. Calendar months count as 30 days.
func (f Frequency) Nominal() time.Duration {
	s := frequencies[f]
	switch {
	case s.fixed > 0:
		return s.fixed
	case s.days > 0:
		return time.Duration(s.days) * 24 * time.Hour
	case s.weeks > 0:
		return time.Duration(s.weeks) * 7 * 24 * time.Hour
	case s.months > 0:
		return time.Duration(s.months) * 30 * 24 * time.Hour
	}
	return 0
}

// CoarserThan reports whether f aggregates over a wider window than g.
func (f Frequency) CoarserThan(g Frequency) bool {
	return f.Nominal() > g.Nominal()
}

// mondayEpoch is the first Monday on or after the unix epoch.
var mondayEpoch = time.Date(1970, 1, 5, 0, 0, 0, 0, time.UTC)

// Bucket returns the start of the bucket t falls into, in UTC. Buckets are
// labelled by their start: weeks start on Monday, months on the first.
// ok is false for frequencies that are not bucketed.
func (f Frequency) Bucket(t time.Time) (time.Time, bool) {
	s, known := frequencies[f]
	if !known || !f.Bucketed() {
		return t, false
	}
	t = t.UTC()
	switch {
	case s.fixed > 0:
		return t.Truncate(s.fixed), true
	case s.days > 0:
		day := floorDiv(t.Unix(), 86400)
		start := floorDiv(day, int64(s.days)) * int64(s.days)
		return time.Unix(start*86400, 0).UTC(), true
	case s.weeks > 0:
		days := floorDiv(t.Sub(mondayEpoch).Milliseconds(), 86400000)
		span := int64(7 * s.weeks)
		start := floorDiv(days, span) * span
		return mondayEpoch.AddDate(0, 0, int(start)), true
	default:
		idx := int64(t.Year())*12 + int64(t.Month()) - 1
		start := floorDiv(idx, int64(s.months)) * int64(s.months)
		return time.Date(int(start/12), time.Month(start%12+1), 1, 0, 0, 0, 0, time.UTC), true
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
