package services

import (
	"math"
	"strconv"
)

// roundTo rounds v to the given number of decimal places, half away from zero
func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// formatAmount renders a credit amount without trailing zeros ("15", "2.5")
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
