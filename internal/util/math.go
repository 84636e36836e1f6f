package util

import (
	"golang.org/x/exp/constraints"
)

// Avg calculates the average of all values in the given array
func Avg(values []float64) float64 {
	sum := 0.0
	for i := 0; i < len(values); i++ {
		sum += values[i]
	}
	return sum / (float64(len(values)))
}

func Min[T constraints.Ordered](values []T) T {
	result := values[0]
	for _, value := range values {
		if value < result {
			result = value
		}
	}
	return result
}

func Max[T constraints.Ordered](values []T) T {
	result := values[0]
	for _, value := range values {
		if value > result {
			result = value
		}
	}
	return result
}
