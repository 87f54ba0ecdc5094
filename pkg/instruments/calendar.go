package instruments

import (
	"fmt"
	"sort"
	"time"
)

// Quarterly delivery months on Binance coin-margined futures.
var deliveryMonths = []time.Month{time.March, time.June, time.September, time.December}

// Day normalizes t to UTC midnight. All daily maps and segments in this
// module are keyed on these values.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayMillis returns the epoch milliseconds of the UTC midnight of t.
func DayMillis(t time.Time) int64 {
	return Day(t).UnixMilli()
}

// LastFriday returns the last Friday of the given month.
func LastFriday(year int, month time.Month) time.Time {
	firstOfNext := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	candidate := firstOfNext.AddDate(0, 0, -1)
	for candidate.Weekday() != time.Friday {
		candidate = candidate.AddDate(0, 0, -1)
	}
	return candidate
}

// QuarterlyDeliveries enumerates delivery dates (last Friday of March, June,
// September, December) within [from, to], sorted ascending.
func QuarterlyDeliveries(from, to time.Time) []time.Time {
	from, to = Day(from), Day(to)
	seen := make(map[time.Time]bool)
	var deliveries []time.Time
	for year := from.Year(); year <= to.Year(); year++ {
		for _, month := range deliveryMonths {
			delivery := LastFriday(year, month)
			if delivery.Before(from) || delivery.After(to) {
				continue
			}
			if !seen[delivery] {
				seen[delivery] = true
				deliveries = append(deliveries, delivery)
			}
		}
	}
	sort.Slice(deliveries, func(i, j int) bool { return deliveries[i].Before(deliveries[j]) })
	return deliveries
}

// DeliverySymbol builds the venue symbol for a dated contract, e.g.
// BTCUSD_210326 for the March 2021 delivery.
func DeliverySymbol(pair string, delivery time.Time) string {
	return fmt.Sprintf("%s_%s", pair, delivery.UTC().Format("060102"))
}
