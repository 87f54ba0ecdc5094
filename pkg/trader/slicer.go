package trader

import (
	"math"
)

// RoundToStep truncates value down to a multiple of step, re-expressed at
// the step's decimal precision so repeated float math does not accumulate
// artifacts (0.30000000000000004 -> 0.3). Floor, never round-to-nearest:
// an executed size must not exceed the planned size.
func RoundToStep(value, step float64) float64 {
	if step == 0 {
		return value
	}
	precision := int(math.Round(-math.Log10(step)))
	if precision < 0 {
		precision = 0
	}
	rounded := math.Floor(value/step) * step
	scale := math.Pow(10, float64(precision))
	return math.Round(rounded*scale) / scale
}

// SlicePlan is the per-tick sizing outcome for one leg.
type SlicePlan struct {
	Target  float64
	Rounded float64
	Skipped bool
}

// PlanSlice clips a target size to the instrument's lot step. A clip below
// minQty skips the slice (size zero); it is never an error.
func PlanSlice(target, step, minQty float64) SlicePlan {
	if target <= 0 {
		return SlicePlan{Target: target, Skipped: true}
	}
	rounded := RoundToStep(target, step)
	if rounded < minQty {
		return SlicePlan{Target: target, Skipped: true}
	}
	return SlicePlan{Target: target, Rounded: rounded}
}

// SliceSize divides what remains equally over the slices left, converts it
// to instrument units at unitValue (price for spot quantity, contract size
// for futures, 1 when remaining is already in units), and clips the result.
// Recomputing from the remaining amount every tick makes the schedule
// self-correcting: undersized or skipped slices leave more for later ticks.
func SliceSize(remaining float64, slicesLeft int, unitValue, step, minQty float64) SlicePlan {
	if slicesLeft < 1 {
		slicesLeft = 1
	}
	if unitValue <= 0 {
		return SlicePlan{Skipped: true}
	}
	target := remaining / float64(slicesLeft) / unitValue
	return PlanSlice(target, step, minQty)
}

// ContractQuantity converts a clipped contract count to the quantity sent
// to the venue: whole contracts when the lot step is >= 1, fractional
// otherwise (contract granularity is exchange-dependent).
func ContractQuantity(clip, step float64) float64 {
	if step >= 1 {
		return math.Trunc(clip)
	}
	return clip
}
