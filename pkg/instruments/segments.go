package instruments

import (
	"errors"
	"fmt"
	"time"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

// ErrInsufficientCoverage means the quarterly delivery calendar ran out
// before the requested window was fully covered. This is fatal: the walk
// must never silently truncate the window.
var ErrInsufficientCoverage = errors.New("not enough delivery contracts to cover the requested window")

// calendarPadding widens the delivery enumeration around the window so the
// first and last segments always have a contract to bind to.
const calendarPadding = 365 * 24 * time.Hour

// BuildSegments computes the chronological, non-overlapping, contiguous
// contract segments covering [start, end] inclusive. Each segment ends
// bufferDays before its contract's delivery (or at end, whichever is
// earlier); the next segment starts the following day.
func BuildSegments(pair string, start, end time.Time, bufferDays int, contractSize float64) ([]models.ContractSegment, error) {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return nil, fmt.Errorf("segment window start %s is after end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	deliveries := QuarterlyDeliveries(start.Add(-calendarPadding), end.Add(calendarPadding))

	var segments []models.ContractSegment
	cursor := start
	for _, delivery := range deliveries {
		rollDate := delivery.AddDate(0, 0, -bufferDays)
		segEnd := rollDate
		if segEnd.After(end) {
			segEnd = end
		}
		if cursor.After(segEnd) {
			// Buffer pushed this contract's holding period behind the
			// cursor; it contributes no segment.
			continue
		}
		segments = append(segments, models.ContractSegment{
			Symbol:       DeliverySymbol(pair, delivery),
			Start:        cursor,
			End:          segEnd,
			ContractSize: contractSize,
		})
		cursor = segEnd.AddDate(0, 0, 1)
		if cursor.After(end) {
			break
		}
	}

	if !cursor.After(end) {
		return nil, fmt.Errorf("%w: pair %s, window %s..%s", ErrInsufficientCoverage,
			pair, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return segments, nil
}

// ActiveSymbol resolves which segment covers the given day.
func ActiveSymbol(segments []models.ContractSegment, day time.Time) (models.ContractSegment, bool) {
	day = Day(day)
	for _, seg := range segments {
		if seg.Contains(day) {
			return seg, true
		}
	}
	return models.ContractSegment{}, false
}
