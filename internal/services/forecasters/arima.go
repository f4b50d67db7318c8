package forecasters

import (
	"context"
	"errors"
	"fmt"
	"math"

	"DemandCast/internal/domain/models"

	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/timeseries"
)

// ArimaOrder is one (p,d,q) candidate.
type ArimaOrder struct {
	P, D, Q int
}

func (o ArimaOrder) String() string { return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q) }

// ArimaModel is the winning fit, returned as the adapter artifact.
type ArimaModel struct {
	Order ArimaOrder
	AIC   float64
	Tried int
	fit   *arima.Model
}

// ARIMA grid-searches small orders and keeps the one with the lowest AIC.
type ARIMA struct {
	grid []ArimaOrder
}

func NewARIMA() *ARIMA {
	grid := make([]ArimaOrder, 0, 18)
	for p := 0; p <= 2; p++ {
		for d := 0; d <= 1; d++ {
			for q := 0; q <= 2; q++ {
				grid = append(grid, ArimaOrder{P: p, D: d, Q: q})
			}
		}
	}
	return &ARIMA{grid: grid}
}

func (a *ARIMA) Technique() models.Technique { return models.TechniqueARIMA }

func (a *ARIMA) Available() bool { return true }

func (a *ARIMA) FitPredict(ctx context.Context, series models.DenseSeries, horizon int) (any, []float64, error) {
	return guard(a.Technique(), horizon, func() (any, []float64, error) {
		ts := timeseries.New(series.Values())
		var best *ArimaModel
		tried := 0
		for _, o := range a.grid {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			m, err := fitOrder(ts, o)
			if err != nil {
				continue
			}
			tried++
			if best == nil || m.AIC < best.AIC {
				best = m
			}
		}
		if best == nil {
			return nil, nil, errors.New("no order could be fit")
		}
		best.Tried = tried

		fc, err := best.fit.Predict(horizon)
		if err != nil {
			return nil, nil, fmt.Errorf("predict %s: %w", best.Order, err)
		}
		return best, fc, nil
	})
}

// fitOrder fits one order by conditional sum of squares. A fit whose criterion is not
// finite counts as a failure.
func fitOrder(ts *timeseries.Series, o ArimaOrder) (m *ArimaModel, err error) {
	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("order %s: %v", o, r)
		}
	}()

	fit := arima.New(o.P, o.D, o.Q)
	if err := fit.Fit(ts); err != nil {
		return nil, err
	}
	if math.IsNaN(fit.AIC) || math.IsInf(fit.AIC, 0) {
		return nil, fmt.Errorf("order %s: non-finite AIC", o)
	}
	return &ArimaModel{Order: o, AIC: fit.AIC, fit: fit}, nil
}
