package shortcircuit

import (
	"math/cmplx"

	"github.com/gridsolve/faultcalc/internal/consts"
	"github.com/gridsolve/faultcalc/pkg/admittance"
)

// postProcess derives the branch quantities from a solved voltage vector:
// If = Yf·V, It = Yt·V, Sf = Vf∘conj(If), St = Vt∘conj(It), losses = Sf+St,
// loading = |Sf| against the rating. The same recipe serves every analysis
// path; F and T index the from/to entry of V per Yf/Yt row.
func postProcess(set *admittance.Set, v []complex128, f, t []int, rates []float64,
	sbase float64,
) (*PathResults, error) {

	ifr, err := set.Yf.MulVec(v)
	if err != nil {
		return nil, err
	}
	itr, err := set.Yt.MulVec(v)
	if err != nil {
		return nil, err
	}

	m := len(ifr)
	res := &PathResults{
		Voltage: append([]complex128(nil), v...),
		Sf:      make([]complex128, m),
		St:      make([]complex128, m),
		If:      ifr,
		It:      itr,
		Vbranch: make([]complex128, m),
		Losses:  make([]complex128, m),
		Loading: make([]complex128, m),
	}

	sb := complex(sbase, 0)
	for k := 0; k < m; k++ {
		vf := v[f[k]]
		vt := v[t[k]]
		sf := vf * cmplx.Conj(ifr[k])
		st := vt * cmplx.Conj(itr[k])

		res.Sf[k] = sf * sb
		res.St[k] = st * sb
		res.Vbranch[k] = vf - vt
		res.Losses[k] = (sf + st) * sb
		res.Loading[k] = res.Sf[k] / complex(rates[k]+consts.RateEps, 0)
	}

	return res, nil
}
