package frequency

// Percent returns count/total*100 rounded to two decimal places, half away
// from zero. The rounding is done on integers so that exact midpoints such
// as 1/32 = 3.125% always round up to 3.13 regardless of how the quotient
// would be represented as a float. A zero total yields 0.
func Percent(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	neg := (count < 0) != (total < 0)
	if count < 0 {
		count = -count
	}
	if total < 0 {
		total = -total
	}
	// hundredths of a percent = count * 10000 / total, rounded half up
	hundredths := (count*20000 + total) / (2 * total)
	if neg {
		hundredths = -hundredths
	}
	return float64(hundredths) / 100
}
