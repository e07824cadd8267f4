package engine

// Fixed fractional margins used to derive the confidence band around a
// point estimate.
const (
	HouseMargin = 0.05
	FlatMargin  = 0.05

	// DefaultPlotMargin can be widened up to 0.10 per deployment.
	DefaultPlotMargin = 0.05
)

// PriceBand derives the confidence interval around a point estimate
func PriceBand(price, margin float64) (float64, float64) {
	return round2(price * (1 - margin)), round2(price * (1 + margin))
}
