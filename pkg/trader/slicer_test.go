package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToStep(t *testing.T) {
	cases := []struct {
		name  string
		value float64
		step  float64
		want  float64
	}{
		{"floors to step", 0.12349, 0.0001, 0.1234},
		{"exact multiple unchanged", 0.25, 0.0001, 0.25},
		{"whole contract step", 10.9, 1, 10},
		{"coarse step", 123.4, 10, 120},
		{"no precision artifact", 0.1 + 0.2, 0.1, 0.3},
		{"zero step passthrough", 0.12345, 0, 0.12345},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, RoundToStep(tc.value, tc.step))
		})
	}
}

func TestRoundToStep_NeverExceedsInput(t *testing.T) {
	steps := []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1}
	values := []float64{0.000014, 0.0072, 0.9999, 3.14159, 25.0001, 9999.5}
	for _, step := range steps {
		for _, v := range values {
			assert.LessOrEqual(t, RoundToStep(v, step), v, "value %v step %v", v, step)
		}
	}
}

func TestPlanSlice_BelowMinimumSkipped(t *testing.T) {
	plan := PlanSlice(0.0009, 0.001, 0.001)
	assert.True(t, plan.Skipped)
	assert.Zero(t, plan.Rounded)
}

func TestPlanSlice_AtMinimumExecutes(t *testing.T) {
	plan := PlanSlice(0.0012, 0.001, 0.001)
	assert.False(t, plan.Skipped)
	assert.Equal(t, 0.001, plan.Rounded)
}

func TestPlanSlice_NonPositiveTargetSkipped(t *testing.T) {
	assert.True(t, PlanSlice(0, 0.001, 0.001).Skipped)
	assert.True(t, PlanSlice(-1, 0.001, 0.001).Skipped)
}

func TestSliceSize_DividesRemainingEqually(t *testing.T) {
	// 120000 USDT over 3 slices at 40000 per coin is 1 coin per tick.
	plan := SliceSize(120000, 3, 40000, 0.0001, 0.0001)
	assert.False(t, plan.Skipped)
	assert.Equal(t, 1.0, plan.Rounded)
}

func TestSliceSize_SelfCorrecting(t *testing.T) {
	// Rounding shortfall on early ticks is absorbed by later ones: after
	// the last slice the residual is below one lot at the trade price.
	const (
		notional = 100000.0
		price    = 30000.0
		step     = 0.0001
		slices   = 3
	)
	remaining := notional
	for left := slices; left >= 1; left-- {
		plan := SliceSize(remaining, left, price, step, step)
		assert.False(t, plan.Skipped)
		assert.LessOrEqual(t, plan.Rounded*price, remaining)
		remaining -= plan.Rounded * price
	}
	assert.Less(t, remaining, step*price)
}

func TestSliceSize_ZeroUnitValueSkipped(t *testing.T) {
	assert.True(t, SliceSize(1000, 4, 0, 0.001, 0.001).Skipped)
}

func TestSliceSize_SlicesLeftClampedToOne(t *testing.T) {
	plan := SliceSize(40000, 0, 40000, 0.0001, 0.0001)
	assert.Equal(t, 1.0, plan.Rounded)
}

func TestContractQuantity(t *testing.T) {
	assert.Equal(t, 7.0, ContractQuantity(7.9, 1))
	assert.Equal(t, 7.9, ContractQuantity(7.9, 0.1))
}
