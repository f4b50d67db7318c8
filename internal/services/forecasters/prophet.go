package forecasters

import (
	"context"
	"errors"
	"math"
	"time"

	"DemandCast/internal/domain/models"

	"gonum.org/v1/gonum/mat"
)

// ProphetConfig controls the growth-curve decomposition.
type ProphetConfig struct {
	ChangePoints          int
	ChangePointRange      float64
	ChangePointPriorScale float64
	SeasonalityPriorScale float64
	WeeklyOrder           int
	YearlyOrder           int
	YearlyMinDays         int
}

func DefaultProphetConfig() ProphetConfig {
	return ProphetConfig{
		ChangePoints:          25,
		ChangePointRange:      0.8,
		ChangePointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		WeeklyOrder:           3,
		YearlyOrder:           10,
		YearlyMinDays:         730,
	}
}

// ProphetModel is a piecewise-linear trend plus Fourier seasonality fitted jointly.
type ProphetModel struct {
	Coef         []float64
	ChangePoints []float64
	Yearly       bool
	YScale       float64

	cfg    ProphetConfig
	start  time.Time
	tScale float64
}

// Prophet fits the decomposition by penalized least squares. Slope changes carry a
// penalty inversely proportional to the changepoint prior scale.
type Prophet struct {
	cfg ProphetConfig
}

func NewProphet() *Prophet {
	return &Prophet{cfg: DefaultProphetConfig()}
}

func (p *Prophet) Technique() models.Technique { return models.TechniqueProphet }

func (p *Prophet) Available() bool { return true }

func (p *Prophet) FitPredict(ctx context.Context, series models.DenseSeries, horizon int) (any, []float64, error) {
	return guard(p.Technique(), horizon, func() (any, []float64, error) {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		m, err := fitProphet(series, p.cfg)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Forecast(series.End(), horizon), nil
	})
}

func fitProphet(series models.DenseSeries, cfg ProphetConfig) (*ProphetModel, error) {
	n := series.Len()
	if n < 14 {
		return nil, errors.New("need at least two weeks of history")
	}
	y := series.Values()

	yScale := 0.0
	for _, v := range y {
		yScale = math.Max(yScale, math.Abs(v))
	}
	m := &ProphetModel{
		cfg:    cfg,
		start:  series.Start(),
		tScale: float64(n - 1),
		Yearly: n >= cfg.YearlyMinDays,
		YScale: yScale,
	}
	if yScale == 0 {
		return m, nil
	}

	// changepoints sit evenly inside the first ChangePointRange of history
	histSize := int(math.Floor(float64(n) * cfg.ChangePointRange))
	ncp := min(cfg.ChangePoints, histSize-1)
	for j := 1; j <= ncp; j++ {
		idx := math.Round(float64(j) * float64(histSize-1) / float64(ncp))
		m.ChangePoints = append(m.ChangePoints, idx/m.tScale)
	}

	cols := m.width()
	X := mat.NewDense(n, cols, nil)
	for i, pt := range series.Points {
		X.SetRow(i, m.features(pt.Date))
	}
	Y := mat.NewVecDense(n, nil)
	for i, v := range y {
		Y.SetVec(i, v/yScale)
	}

	var xtx mat.SymDense
	xtx.SymOuterK(1, X.T())
	pen := m.penalties()
	for j := 0; j < cols; j++ {
		xtx.SetSym(j, j, xtx.At(j, j)+pen[j])
	}
	var xty mat.VecDense
	xty.MulVec(X.T(), Y)

	var chol mat.Cholesky
	if ok := chol.Factorize(&xtx); !ok {
		return nil, errors.New("normal equations not positive definite")
	}
	var coef mat.VecDense
	if err := chol.SolveVecTo(&coef, &xty); err != nil {
		return nil, err
	}
	m.Coef = make([]float64, cols)
	for j := range m.Coef {
		m.Coef[j] = coef.AtVec(j)
	}
	return m, nil
}

func (m *ProphetModel) width() int {
	w := 2 + len(m.ChangePoints) + 2*m.cfg.WeeklyOrder
	if m.Yearly {
		w += 2 * m.cfg.YearlyOrder
	}
	return w
}

// penalties is the ridge diagonal: none on intercept and base slope.
func (m *ProphetModel) penalties() []float64 {
	pen := make([]float64, m.width())
	pen[0], pen[1] = 1e-8, 1e-8
	j := 2
	for range m.ChangePoints {
		pen[j] = 1 / m.cfg.ChangePointPriorScale
		j++
	}
	for ; j < len(pen); j++ {
		pen[j] = 1 / m.cfg.SeasonalityPriorScale
	}
	return pen
}

func (m *ProphetModel) features(d time.Time) []float64 {
	row := make([]float64, 0, m.width())
	t := d.Sub(m.start).Hours() / 24 / m.tScale
	row = append(row, 1, t)
	for _, cp := range m.ChangePoints {
		row = append(row, math.Max(0, t-cp))
	}
	// Fourier terms run on absolute days so phase does not depend on the window start
	days := float64(d.Unix()) / 86400
	row = appendFourier(row, days, 7, m.cfg.WeeklyOrder)
	if m.Yearly {
		row = appendFourier(row, days, 365.25, m.cfg.YearlyOrder)
	}
	return row
}

func appendFourier(row []float64, days, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * days / period
		row = append(row, math.Sin(x), math.Cos(x))
	}
	return row
}

// Forecast evaluates the fitted curve for the h days after end.
func (m *ProphetModel) Forecast(end time.Time, h int) []float64 {
	out := make([]float64, h)
	if m.YScale == 0 {
		return out
	}
	for i := range out {
		f := m.features(end.AddDate(0, 0, i+1))
		var v float64
		for j, c := range m.Coef {
			v += c * f[j]
		}
		out[i] = v * m.YScale
	}
	return out
}
