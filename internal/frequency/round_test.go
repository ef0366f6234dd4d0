package frequency

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name         string
		count, total int64
		want         float64
	}{
		{"zero total", 0, 0, 0},
		{"half", 100, 200, 50},
		{"quarter", 50, 200, 25},
		{"none", 0, 200, 0},
		{"all", 7, 7, 100},
		{"third", 1, 3, 33.33},
		{"two thirds", 2, 3, 66.67},
		// Exact midpoints: half away from zero rounds up where half-even
		// would round down to the even digit.
		{"midpoint 3.125", 1, 32, 3.13},
		{"midpoint 0.005", 1, 20000, 0.01},
		{"midpoint 0.125", 1, 800, 0.13},
		{"midpoint 0.375", 3, 800, 0.38},
		{"below midpoint", 1, 40000, 0},
		{"negative count", -1, 32, -3.13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percent(tt.count, tt.total); got != tt.want {
				t.Errorf("Percent(%d, %d) = %v, want %v", tt.count, tt.total, got, tt.want)
			}
		})
	}
}

// TestProperty_PercentagesSumToHundred checks that the five rounded
// percentages of any sample with a positive total add up to 100 within the
// accumulated rounding error, and are all zero otherwise.
func TestProperty_PercentagesSumToHundred(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	countGen := gen.Int64Range(0, 500000)

	properties.Property("rounded percentages sum to 100 ± 0.05", prop.ForAll(
		func(b, cd8, cd4, nk, mono int64) bool {
			f := FromCounts("s", b, cd8, cd4, nk, mono)
			sum := 0.0
			for _, p := range f.Percentages() {
				sum += p
			}
			if f.TotalCount == 0 {
				return sum == 0
			}
			return math.Abs(sum-100) <= 0.05
		},
		countGen, countGen, countGen, countGen, countGen,
	))

	properties.Property("each percentage is within half a hundredth of the exact value", prop.ForAll(
		func(count, rest int64) bool {
			total := count + rest
			if total == 0 {
				return Percent(count, total) == 0
			}
			exact := float64(count) / float64(total) * 100
			return math.Abs(Percent(count, total)-exact) <= 0.005+1e-9
		},
		gen.Int64Range(0, 1000000),
		gen.Int64Range(0, 1000000),
	))

	properties.Property("zero totals give all zeros", prop.ForAll(
		func(name string) bool {
			return FromCounts(name, 0, 0, 0, 0, 0).Percentages() == [5]float64{}
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
