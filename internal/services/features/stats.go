package features

import (
	"errors"
	"math"

	gastats "github.com/sartorproj/goarima/stats"
	"github.com/sartorproj/goarima/timeseries"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var errSingular = errors.New("singular design matrix")

// Autocorrelation returns the sample autocorrelation at lag k, or 0 for a constant series.
func Autocorrelation(x []float64, k int) float64 {
	if k <= 0 || k >= len(x) {
		return 0
	}
	acf := gastats.ACF(timeseries.New(x), k)
	if len(acf) <= k {
		return 0
	}
	return acf[k]
}

// TrendCorrelation is the Pearson correlation of x against its index, 0 when undefined.
func TrendCorrelation(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	idx := make([]float64, len(x))
	for i := range idx {
		idx[i] = float64(i)
	}
	r := stat.Correlation(idx, x, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// ZeroRatio is the fraction of exactly-zero observations.
func ZeroRatio(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	zeros := 0
	for _, v := range x {
		if v == 0 {
			zeros++
		}
	}
	return float64(zeros) / float64(len(x))
}

// ADFResult is the outcome of an augmented Dickey-Fuller test with constant.
type ADFResult struct {
	Statistic float64
	PValue    float64
	Lags      int
	NObs      int
}

// ADF regresses Δy_t on a constant, y_{t-1} and lagged differences up to
// floor((n-1)^(1/3)), and reports the t-statistic of the level coefficient.
func ADF(y []float64) (ADFResult, error) {
	n := len(y)
	if n < 12 {
		return ADFResult{}, errors.New("adf: series too short")
	}
	lags := int(math.Floor(math.Pow(float64(n-1), 1.0/3.0)))
	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = y[i] - y[i-1]
	}

	nObs := len(diff) - lags
	k := 2 + lags
	if nObs <= k+2 {
		return ADFResult{}, errors.New("adf: not enough observations")
	}

	X := mat.NewDense(nObs, k, nil)
	Y := mat.NewVecDense(nObs, nil)
	for i := 0; i < nObs; i++ {
		t := i + lags
		Y.SetVec(i, diff[t])
		X.Set(i, 0, 1)
		X.Set(i, 1, y[t])
		for j := 1; j <= lags; j++ {
			X.Set(i, 1+j, diff[t-j])
		}
	}

	beta, se, err := OLS(X, Y)
	if err != nil {
		return ADFResult{}, err
	}
	if se[1] == 0 || math.IsNaN(se[1]) {
		return ADFResult{}, errSingular
	}
	tStat := beta[1] / se[1]
	return ADFResult{Statistic: tStat, PValue: MacKinnonPValue(tStat), Lags: lags, NObs: nObs}, nil
}

// OLS returns coefficients and their standard errors for Y = Xβ + ε.
func OLS(X *mat.Dense, Y *mat.VecDense) (beta, se []float64, err error) {
	n, k := X.Dims()
	if n <= k {
		return nil, nil, errors.New("ols: need more rows than regressors")
	}
	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, nil, errSingular
	}
	var xty mat.VecDense
	xty.MulVec(X.T(), Y)
	var b mat.VecDense
	b.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(X, &b)
	ssr := 0.0
	for i := 0; i < n; i++ {
		r := Y.AtVec(i) - fitted.AtVec(i)
		ssr += r * r
	}
	sigma2 := ssr / float64(n-k)

	beta = make([]float64, k)
	se = make([]float64, k)
	for j := 0; j < k; j++ {
		beta[j] = b.AtVec(j)
		v := sigma2 * inv.At(j, j)
		if v < 0 {
			v = 0
		}
		se[j] = math.Sqrt(v)
	}
	return beta, se, nil
}

// MacKinnon (1994) response-surface coefficients for the constant-only, single series case.
var (
	adfSmallP = [3]float64{2.1659, 1.4412, 0.038269}
	adfLargeP = [4]float64{1.7339, 0.093202, -0.012745, -0.00010368}
)

const (
	adfTauMax  = 2.74
	adfTauMin  = -18.83
	adfTauStar = -1.61
)

// MacKinnonPValue approximates the p-value of an ADF statistic.
func MacKinnonPValue(tau float64) float64 {
	switch {
	case math.IsNaN(tau):
		return 1
	case tau > adfTauMax:
		return 1
	case tau < adfTauMin:
		return 0
	}
	var z float64
	if tau <= adfTauStar {
		z = adfSmallP[0] + adfSmallP[1]*tau + adfSmallP[2]*tau*tau
	} else {
		z = adfLargeP[0] + adfLargeP[1]*tau + adfLargeP[2]*tau*tau + adfLargeP[3]*tau*tau*tau
	}
	return distuv.UnitNormal.CDF(z)
}
