package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOfISOWeekBoundaries(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		key  string
	}{
		{"mid week", time.Date(2025, time.January, 29, 15, 0, 0, 0, time.UTC), "2025-05"},
		{"monday midnight", time.Date(2025, time.January, 27, 0, 0, 0, 0, time.UTC), "2025-05"},
		{"sunday last ms", time.Date(2025, time.February, 2, 23, 59, 59, int(999*time.Millisecond), time.UTC), "2025-05"},
		{"december in next iso year", time.Date(2024, time.December, 30, 9, 0, 0, 0, time.UTC), "2025-01"},
		{"january in previous iso year", time.Date(2027, time.January, 1, 9, 0, 0, 0, time.UTC), "2026-53"},
		{"new year eve week 1", time.Date(2025, time.December, 31, 9, 0, 0, 0, time.UTC), "2026-01"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Of(tc.at, time.UTC)
			require.Equal(t, tc.key, p.Key)
			require.True(t, p.Contains(tc.at))
			require.Equal(t, time.Monday, p.Start.Weekday())
			require.Equal(t, time.Sunday, p.End.Weekday())
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	p, err := Parse("2025-05", time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.January, 27, 0, 0, 0, 0, time.UTC), p.Start)
	require.Equal(t, time.Date(2025, time.February, 2, 23, 59, 59, int(999*time.Millisecond), time.UTC), p.End)

	again := Of(p.Start, time.UTC)
	require.Equal(t, p, again)
	require.Equal(t, p, Of(p.End, time.UTC))
}

func TestParseWeek53(t *testing.T) {
	p, err := Parse("2026-53", time.UTC)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, time.December, 28, 0, 0, 0, 0, time.UTC), p.Start)

	_, err = Parse("2025-53", time.UTC)
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseInvalid(t *testing.T) {
	for _, key := range []string{"", "2025", "2025-5", "25-05", "2025-00", "abcd-01", "2025-W05"} {
		_, err := Parse(key, time.UTC)
		require.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestOfUsesLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)

	// Sunday 20:00 UTC is already Monday 03:00 in UTC+7.
	at := time.Date(2025, time.February, 2, 20, 0, 0, 0, time.UTC)
	require.Equal(t, "2025-05", Of(at, time.UTC).Key)
	require.Equal(t, "2025-06", Of(at, jakarta).Key)

	p, err := Parse("2025-06", jakarta)
	require.NoError(t, err)
	require.Equal(t, jakarta, p.Start.Location())
	require.True(t, p.Contains(at))
}

func TestNextPrevAndDay(t *testing.T) {
	p, err := Parse("2025-52", time.UTC)
	require.NoError(t, err)

	require.Equal(t, "2026-01", p.Next().Key)
	require.Equal(t, "2025-51", p.Prev().Key)
	require.Equal(t, p.Start, p.Day(-3))
	require.Equal(t, p.Start.AddDate(0, 0, 6), p.Day(10))
}

func TestCalculatorResolve(t *testing.T) {
	now := time.Date(2025, time.January, 29, 10, 0, 0, 0, time.UTC)
	calc := NewCalculatorIn(time.UTC).WithClock(func() time.Time { return now })

	cur, err := calc.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "2025-05", cur.Key)
	require.Equal(t, "2025-01-29", calc.Today())

	explicit, err := calc.Resolve("2024-01")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), explicit.Start)
}
