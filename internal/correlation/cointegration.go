package correlation

import "math"

// adfCritical5 approximates the 5% Dickey-Fuller critical value for the
// no-trend regression. More negative test statistics reject a unit root.
const adfCritical5 = -2.86

// cointegrated runs a two-step screen on two level series: fit the long-run
// relation y = a + b·x by least squares, then test the residuals for
// stationarity with a plain (unaugmented) Dickey-Fuller regression
// Δe_t = ρ·e_{t-1}. Returns the t-statistic on ρ either way.
func cointegrated(x, y []float64) (bool, float64) {
	n := len(x)
	if n < 20 || n != len(y) {
		return false, 0
	}

	var sx, sy float64
	for i := 0; i < n; i++ {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/float64(n), sy/float64(n)
	var cov, vx float64
	for i := 0; i < n; i++ {
		cov += (x[i] - mx) * (y[i] - my)
		vx += (x[i] - mx) * (x[i] - mx)
	}
	if vx == 0 {
		return false, 0
	}
	b := cov / vx
	a := my - b*mx

	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		resid[i] = y[i] - a - b*x[i]
	}

	// Δe_t on e_{t-1}
	var num, den float64
	for t := 1; t < n; t++ {
		de := resid[t] - resid[t-1]
		num += resid[t-1] * de
		den += resid[t-1] * resid[t-1]
	}
	if den == 0 {
		return false, 0
	}
	rho := num / den

	// residual variance of the DF regression for the standard error of rho
	var sse float64
	for t := 1; t < n; t++ {
		de := resid[t] - resid[t-1]
		e := de - rho*resid[t-1]
		sse += e * e
	}
	df := float64(n - 2)
	if df <= 0 || sse == 0 {
		return false, 0
	}
	se := math.Sqrt(sse / df / den)
	if se == 0 {
		return false, 0
	}
	tstat := rho / se
	return tstat < adfCritical5, tstat
}
