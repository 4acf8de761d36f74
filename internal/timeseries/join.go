// Package timeseries reconciles independently fetched series that share a
// timestamp key. The primary series is the complete reference grid (for
// example a full-day forecast); secondary series may lag behind real time
// and have gaps.
//
// Timestamps are compared by exact string equality. Callers normalize them
// with Normalize before joining.
package timeseries

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDuplicateTimestamp is wrapped by DuplicateError.
var ErrDuplicateTimestamp = errors.New("timeseries: duplicate timestamp")

// Point is one sample of a series. An invalid Value means the source sent
// no value or one that could not be parsed.
type Point struct {
	Timestamp string              `json:"timestamp"`
	Value     decimal.NullDecimal `json:"value"`
}

// Merged is one row of a left outer join. Secondary and Delta are null when
// the secondary series has no sample at Timestamp.
type Merged struct {
	Timestamp string              `json:"timestamp"`
	Primary   decimal.NullDecimal `json:"primary"`
	Secondary decimal.NullDecimal `json:"secondary"`
	Delta     decimal.NullDecimal `json:"delta"`
}

// Aligned is one row of Align: Values[0] is the primary value, Values[i]
// the value of the i-th secondary series.
type Aligned struct {
	Timestamp string                `json:"timestamp"`
	Values    []decimal.NullDecimal `json:"values"`
}

// DeltaFunc derives the comparison metric of a matched pair.
type DeltaFunc func(primary, secondary decimal.Decimal) decimal.Decimal

// Difference returns secondary - primary.
func Difference(primary, secondary decimal.Decimal) decimal.Decimal {
	return secondary.Sub(primary)
}

// Join merges secondary into primary. Every primary point yields exactly one
// record, in primary order. Secondary points whose timestamp does not occur
// in primary are dropped. When secondary repeats a timestamp the first
// occurrence wins; use CheckUnique to detect that case.
//
// A nil delta defaults to Difference.
func Join(primary, secondary []Point, delta DeltaFunc) []Merged {
	if delta == nil {
		delta = Difference
	}
	index := firstIndex(secondary)

	out := make([]Merged, 0, len(primary))
	for _, p := range primary {
		m := Merged{Timestamp: p.Timestamp, Primary: p.Value}
		if i, ok := index[p.Timestamp]; ok {
			s := secondary[i]
			m.Secondary = s.Value
			if p.Value.Valid && s.Value.Valid {
				m.Delta = decimal.NewNullDecimal(delta(p.Value.Decimal, s.Value.Decimal))
			}
		}
		out = append(out, m)
	}
	return out
}

// Align is Join generalized to any number of secondary series, without a
// derived metric.
func Align(primary []Point, secondaries ...[]Point) []Aligned {
	indexes := make([]map[string]int, len(secondaries))
	for i, s := range secondaries {
		indexes[i] = firstIndex(s)
	}

	out := make([]Aligned, 0, len(primary))
	for _, p := range primary {
		row := Aligned{
			Timestamp: p.Timestamp,
			Values:    make([]decimal.NullDecimal, len(secondaries)+1),
		}
		row.Values[0] = p.Value
		for i, s := range secondaries {
			if j, ok := indexes[i][p.Timestamp]; ok {
				row.Values[i+1] = s[j].Value
			}
		}
		out = append(out, row)
	}
	return out
}

// firstIndex maps each timestamp to the position of its first occurrence.
func firstIndex(points []Point) map[string]int {
	index := make(map[string]int, len(points))
	for i, p := range points {
		if _, seen := index[p.Timestamp]; !seen {
			index[p.Timestamp] = i
		}
	}
	return index
}

// DuplicateError lists the timestamps that occur more than once in a series.
type DuplicateError struct {
	Timestamps []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDuplicateTimestamp, strings.Join(e.Timestamps, ", "))
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateTimestamp }

// CheckUnique reports repeated timestamps, each listed once in order of
// first repetition. It returns nil for a timestamp-unique series.
func CheckUnique(points []Point) error {
	seen := make(map[string]int, len(points))
	var dups []string
	for _, p := range points {
		seen[p.Timestamp]++
		if seen[p.Timestamp] == 2 {
			dups = append(dups, p.Timestamp)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	return &DuplicateError{Timestamps: dups}
}

// Normalize renders t as the join key used across all sources.
func Normalize(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Tail returns the last n elements of s.
func Tail[T any](s []T, n int) []T {
	if n <= 0 {
		return s[:0]
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Extremes returns the smallest and largest valid values. Both are null when
// no point carries a value.
func Extremes(points []Point) (lo, hi decimal.NullDecimal) {
	for _, p := range points {
		if !p.Value.Valid {
			continue
		}
		if !lo.Valid || p.Value.Decimal.LessThan(lo.Decimal) {
			lo = p.Value
		}
		if !hi.Valid || p.Value.Decimal.GreaterThan(hi.Decimal) {
			hi = p.Value
		}
	}
	return lo, hi
}

// Latest returns the last point that carries a value.
func Latest(points []Point) (Point, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if points[i].Value.Valid {
			return points[i], true
		}
	}
	return Point{}, false
}
