package util

import (
	"fmt"
	"math"
	"math/cmplx"
)

// FormatPhasor renders a complex quantity as magnitude<angle deg.
func FormatPhasor(v complex128) string {
	return fmt.Sprintf("%s<%sdeg", FormatMagnitude(cmplx.Abs(v)), FormatPhase(cmplx.Phase(v)*180/math.Pi))
}

// FormatPower renders a complex power as P+jQ in MVA.
func FormatPower(s complex128) string {
	sign := "+"
	q := imag(s)
	if q < 0 {
		sign = "-"
		q = -q
	}
	return fmt.Sprintf("%s %s j%s MVA", FormatMagnitude(real(s)), sign, FormatMagnitude(q))
}

// FormatLoading renders a branch loading ratio as a percentage.
func FormatLoading(l complex128) string {
	return fmt.Sprintf("%6.1f %%", real(l)*100)
}

func FormatMagnitude(value float64) string {
	abs := math.Abs(value)
	if abs >= 1000 || (abs < 0.001 && value != 0) {
		return fmt.Sprintf("%8.2e", value) // "1.00e+03" or "5.43e-05"
	}
	return fmt.Sprintf("%8.4g", value) // "  732.5 "
}

func FormatPhase(value float64) string {
	return fmt.Sprintf("%6.1f", value) // "  90.0"
}
