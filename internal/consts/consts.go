package consts

import "math"

const (
	// FaultEps regularizes 1/(Zf+eps) so a solid fault (Zf = 0) does not
	// divide by exact zero.
	FaultEps = 1e-20

	// SeriesEps keeps 1/(R + j(X+eps)) finite for branches with zero impedance.
	SeriesEps = 1e-20

	// RateEps avoids division by zero for branches without a thermal rating.
	RateEps = 1e-9

	// VoltageFactor is the IEC 60909 c-max factor for maximum initial
	// short-circuit current estimates.
	VoltageFactor = 1.1
)

var Sqrt3 = math.Sqrt(3.0)
