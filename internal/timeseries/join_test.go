package timeseries

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pt(ts string, v float64) Point {
	return Point{Timestamp: ts, Value: decimal.NewNullDecimal(decimal.NewFromFloat(v))}
}

func null(ts string) Point {
	return Point{Timestamp: ts}
}

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestJoin_Scenario(t *testing.T) {
	primary := []Point{pt("09:00", 10), pt("10:00", 12)}
	secondary := []Point{pt("09:00", 11)}

	got := Join(primary, secondary, nil)

	require.Len(t, got, 2)
	assert.Equal(t, "09:00", got[0].Timestamp)
	assert.True(t, got[0].Primary.Decimal.Equal(d(10)))
	assert.True(t, got[0].Secondary.Decimal.Equal(d(11)))
	require.True(t, got[0].Delta.Valid)
	assert.True(t, got[0].Delta.Decimal.Equal(d(1)))

	assert.Equal(t, "10:00", got[1].Timestamp)
	assert.True(t, got[1].Primary.Decimal.Equal(d(12)))
	assert.False(t, got[1].Secondary.Valid)
	assert.False(t, got[1].Delta.Valid, "missing secondary must give a null delta, not zero")
}

func TestJoin_LengthEqualsPrimary(t *testing.T) {
	cases := []struct {
		name      string
		primary   []Point
		secondary []Point
	}{
		{"both empty", nil, nil},
		{"empty secondary", []Point{pt("a", 1), pt("b", 2)}, nil},
		{"empty primary", nil, []Point{pt("a", 1)}},
		{"secondary only extras", []Point{pt("a", 1)}, []Point{pt("x", 1), pt("y", 2), pt("a", 3)}},
		{"full match", []Point{pt("a", 1), pt("b", 2)}, []Point{pt("b", 5), pt("a", 4)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Join(tc.primary, tc.secondary, Difference)
			assert.Len(t, got, len(tc.primary))
		})
	}
}

func TestJoin_DropsSecondaryOnlyTimestamps(t *testing.T) {
	got := Join([]Point{pt("a", 1)}, []Point{pt("z", 9), pt("a", 2)}, nil)

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Timestamp)
	assert.True(t, got[0].Delta.Decimal.Equal(d(1)))
}

func TestJoin_PreservesPrimaryOrder(t *testing.T) {
	primary := []Point{pt("c", 3), pt("a", 1), pt("b", 2)}
	forward := []Point{pt("a", 10), pt("b", 20), pt("c", 30)}
	reversed := []Point{pt("c", 30), pt("b", 20), pt("a", 10)}

	got1 := Join(primary, forward, nil)
	got2 := Join(primary, reversed, nil)

	require.Len(t, got2, len(got1))
	for i, p := range primary {
		assert.Equal(t, p.Timestamp, got1[i].Timestamp)
		assert.Equal(t, p.Timestamp, got2[i].Timestamp)
		assert.True(t, got1[i].Delta.Decimal.Equal(got2[i].Delta.Decimal))
	}
}

func TestJoin_DeltaIsSecondaryMinusPrimary(t *testing.T) {
	primary := []Point{pt("a", 100.5), pt("b", 40), pt("c", 7)}
	secondary := []Point{pt("a", 90.25), pt("c", 7)}

	got := Join(primary, secondary, nil)

	assert.True(t, got[0].Delta.Decimal.Equal(d(-10.25)))
	assert.False(t, got[1].Delta.Valid)
	require.True(t, got[2].Delta.Valid)
	assert.True(t, got[2].Delta.Decimal.IsZero(), "an exact match yields a zero delta, distinct from null")
}

func TestJoin_CustomDelta(t *testing.T) {
	ratio := func(p, s decimal.Decimal) decimal.Decimal { return s.Div(p) }

	got := Join([]Point{pt("a", 4)}, []Point{pt("a", 10)}, ratio)

	assert.True(t, got[0].Delta.Decimal.Equal(d(2.5)))
}

func TestJoin_FirstDuplicateWins(t *testing.T) {
	got := Join([]Point{pt("a", 1)}, []Point{pt("a", 5), pt("a", 9)}, nil)

	assert.True(t, got[0].Secondary.Decimal.Equal(d(5)))
}

func TestJoin_MalformedValuesDegradeToNull(t *testing.T) {
	primary := []Point{null("a"), pt("b", 2)}
	secondary := []Point{pt("a", 1), null("b")}

	got := Join(primary, secondary, nil)

	require.Len(t, got, 2)
	assert.False(t, got[0].Primary.Valid)
	assert.True(t, got[0].Secondary.Valid)
	assert.False(t, got[0].Delta.Valid)
	assert.False(t, got[1].Secondary.Valid)
	assert.False(t, got[1].Delta.Valid)
}

func TestAlign_MultipleSources(t *testing.T) {
	primary := []Point{pt("a", 1), pt("b", 2)}

	got := Align(primary, []Point{pt("b", 20)}, []Point{pt("a", 100), pt("b", 200)})

	require.Len(t, got, 2)
	require.Len(t, got[0].Values, 3)
	assert.True(t, got[0].Values[0].Decimal.Equal(d(1)))
	assert.False(t, got[0].Values[1].Valid)
	assert.True(t, got[0].Values[2].Decimal.Equal(d(100)))
	assert.True(t, got[1].Values[1].Decimal.Equal(d(20)))
}

func TestCheckUnique(t *testing.T) {
	assert.NoError(t, CheckUnique([]Point{pt("a", 1), pt("b", 2)}))
	assert.NoError(t, CheckUnique(nil))

	err := CheckUnique([]Point{pt("a", 1), pt("b", 2), pt("a", 3), pt("b", 4), pt("a", 5)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateTimestamp))

	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, []string{"a", "b"}, dup.Timestamps)
}

func TestNormalize(t *testing.T) {
	istanbul := time.FixedZone("TRT", 3*60*60)
	local := time.Date(2025, 3, 1, 12, 0, 0, 0, istanbul)
	utc := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-01T09:00:00Z", Normalize(local))
	assert.Equal(t, Normalize(utc), Normalize(local))
}

func TestTail(t *testing.T) {
	s := []int{1, 2, 3, 4, 5}

	assert.Equal(t, []int{4, 5}, Tail(s, 2))
	assert.Equal(t, s, Tail(s, 10))
	assert.Empty(t, Tail(s, 0))
}

func TestExtremes(t *testing.T) {
	lo, hi := Extremes([]Point{pt("a", 3), null("b"), pt("c", -1), pt("d", 8)})

	assert.True(t, lo.Decimal.Equal(d(-1)))
	assert.True(t, hi.Decimal.Equal(d(8)))

	lo, hi = Extremes([]Point{null("a")})
	assert.False(t, lo.Valid)
	assert.False(t, hi.Valid)
}

func TestLatest(t *testing.T) {
	p, ok := Latest([]Point{pt("a", 1), pt("b", 2), null("c")})
	require.True(t, ok)
	assert.Equal(t, "b", p.Timestamp)

	_, ok = Latest(nil)
	assert.False(t, ok)
}
