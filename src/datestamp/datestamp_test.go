package datestamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestFromTimestamp(t *testing.T) {
	t.Run("microtime", func(t *testing.T) {
		ds, err := FromTimestamp(1587240724142)
		require.NoError(t, err)
		assert.Equal(t, 20043, ds)
	})
	t.Run("seconds", func(t *testing.T) {
		ds, err := FromTimestamp(1587240724)
		require.NoError(t, err)
		assert.Equal(t, 20043, ds)
	})
	t.Run("negative", func(t *testing.T) {
		_, err := FromTimestamp(-1)
		assert.ErrorIs(t, err, ErrInvalidTimestamp)
	})
}

func TestTruncateTimestamp(t *testing.T) {
	assert.EqualValues(t, 1587240724, TruncateTimestamp(1587240724142))
	assert.EqualValues(t, 1587240724, TruncateTimestamp(1587240724142999))
	assert.EqualValues(t, 1587240724, TruncateTimestamp(1587240724))
	assert.EqualValues(t, 86400, TruncateTimestamp(86400))
}

func TestFromTime(t *testing.T) {
	cases := []struct {
		name     string
		t        time.Time
		expected int
	}{
		{"first is a monday", date(2023, time.May, 1), 23051},
		{"first monday after a tuesday first", date(2023, time.August, 7), 23082},
		{"monday with three days left stays", date(2023, time.August, 28), 23085},
		{"monday on the 30th rolls over", date(2023, time.January, 30), 23021},
		{"week after a roll over", date(2023, time.February, 6), 23022},
		{"friday first", date(2023, time.September, 4), 23091},
		{"roll over into next year", date(2024, time.December, 30), 25011},
		{"week after new year roll over", date(2025, time.January, 6), 25012},
		{"sunday belongs to the previous monday", date(2025, time.January, 5), 25011},
		{"late sunday", time.Date(2020, time.April, 19, 23, 59, 59, 0, time.UTC), 20043},
		{"non-UTC input", time.Date(2020, time.April, 20, 1, 0, 0, 0, time.FixedZone("UTC+2", 2*60*60)), 20043},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, FromTime(c.t))
		})
	}
}

func TestEveryDayOfTheWeekMatches(t *testing.T) {
	monday := date(2023, time.August, 28)
	for i := 0; i < 7; i++ {
		assert.Equal(t, 23085, FromTime(monday.AddDate(0, 0, i).Add(13*time.Hour)))
	}
	assert.Equal(t, 23091, FromTime(monday.AddDate(0, 0, 7)))
}

func TestMonthOnlyDiffersAcrossRollOver(t *testing.T) {
	// Walk two years day by day. The reported month is the month of the
	// week's Monday, or the next one when that Monday rolled over.
	day := date(2023, time.January, 1)
	for i := 0; i < 730; i++ {
		ds := FromTime(day)
		assert.GreaterOrEqual(t, ds, 10000)
		assert.Less(t, ds, 100000)

		start, err := Start(ds)
		require.NoError(t, err, "day %s, datestamp %d", day, ds)
		assert.False(t, day.Before(start))
		assert.True(t, day.Before(start.AddDate(0, 0, 7)))
		assert.Equal(t, time.Monday, start.Weekday())

		if Month(ds) != start.Month() {
			assert.Equal(t, start.AddDate(0, 0, 7).Month(), Month(ds), "day %s", day)
			assert.Equal(t, 1, Week(ds), "day %s", day)
		}

		day = day.AddDate(0, 0, 1)
	}
}

func TestStart(t *testing.T) {
	start, err := Start(25011)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.December, 30), start)

	start, err = Start(20043)
	require.NoError(t, err)
	assert.Equal(t, date(2020, time.April, 13), start)

	_, err = Start(23026)
	assert.ErrorIs(t, err, ErrInvalidDatestamp)
	_, err = Start(23130)
	assert.ErrorIs(t, err, ErrInvalidDatestamp)
	_, err = Start(23050)
	assert.ErrorIs(t, err, ErrInvalidDatestamp)

	assert.True(t, Valid(23051))
	assert.False(t, Valid(23056))
}

func TestSplitAndText(t *testing.T) {
	yy, mm, w := Split(20043)
	assert.Equal(t, 20, yy)
	assert.Equal(t, 4, mm)
	assert.Equal(t, 3, w)

	assert.Equal(t, 2020, Year(20043))
	assert.Equal(t, time.April, Month(20043))
	assert.Equal(t, 3, Week(20043))
	assert.Equal(t, "April 2020 / Week 3", Text(20043))
}
