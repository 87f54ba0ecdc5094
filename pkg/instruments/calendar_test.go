package instruments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDay(t *testing.T) {
	ts := time.Date(2021, 3, 26, 17, 45, 12, 999, time.UTC)
	assert.Equal(t, date(2021, 3, 26), Day(ts))
	assert.Equal(t, int64(1616716800000), DayMillis(ts))
}

func TestLastFriday(t *testing.T) {
	assert.Equal(t, date(2021, 3, 26), LastFriday(2021, time.March))
	assert.Equal(t, date(2021, 6, 25), LastFriday(2021, time.June))
	assert.Equal(t, date(2021, 9, 24), LastFriday(2021, time.September))
	assert.Equal(t, date(2021, 12, 31), LastFriday(2021, time.December))
	assert.Equal(t, date(2020, 12, 25), LastFriday(2020, time.December))
}

func TestQuarterlyDeliveries(t *testing.T) {
	deliveries := QuarterlyDeliveries(date(2021, 1, 1), date(2021, 12, 31))
	assert.Equal(t, []time.Time{
		date(2021, 3, 26),
		date(2021, 6, 25),
		date(2021, 9, 24),
		date(2021, 12, 31),
	}, deliveries)
}

func TestQuarterlyDeliveries_WindowClipsEdges(t *testing.T) {
	deliveries := QuarterlyDeliveries(date(2021, 4, 1), date(2021, 9, 23))
	assert.Equal(t, []time.Time{date(2021, 6, 25)}, deliveries)
}

func TestDeliverySymbol(t *testing.T) {
	assert.Equal(t, "BTCUSD_210326", DeliverySymbol("BTCUSD", date(2021, 3, 26)))
	assert.Equal(t, "ETHUSD_211231", DeliverySymbol("ETHUSD", date(2021, 12, 31)))
}
