package chart

// MovingAverage returns the simple mean of the trailing up-to-period values
// at each position. The window grows from the first value until it is full,
// so the result always has len(values) entries. Periods below 2 return the
// input unchanged.
func MovingAverage(values []float64, period int) []float64 {
	if period < 2 {
		return values
	}

	result := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		result[i] = sum / float64(min(i+1, period))
	}
	return result
}
