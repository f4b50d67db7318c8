package forecasters

import (
	"context"
	"errors"
	"math"

	"DemandCast/internal/domain/models"
)

const weeklyPeriod = 7

// HoltWintersModel is an additive-trend, optionally additive-seasonal smoother.
type HoltWintersModel struct {
	Alpha, Beta, Gamma float64
	Period             int
	Level, Trend       float64
	Season             []float64
	SSE                float64
	n                  int
}

// HoltWinters picks smoothing weights from a coarse grid by one-step-ahead SSE.
type HoltWinters struct {
	alphas, betas, gammas []float64
}

func NewHoltWinters() *HoltWinters {
	return &HoltWinters{
		alphas: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9},
		betas:  []float64{0.01, 0.05, 0.1, 0.2},
		gammas: []float64{0.05, 0.1, 0.3, 0.5},
	}
}

func (h *HoltWinters) Technique() models.Technique { return models.TechniqueHoltWinters }

func (h *HoltWinters) Available() bool { return true }

func (h *HoltWinters) FitPredict(ctx context.Context, series models.DenseSeries, horizon int) (any, []float64, error) {
	return guard(h.Technique(), horizon, func() (any, []float64, error) {
		y := series.Values()
		if len(y) < 4 {
			return nil, nil, errors.New("need at least 4 observations")
		}
		period := 0
		if len(y) >= 2*weeklyPeriod {
			period = weeklyPeriod
		}
		gammas := h.gammas
		if period == 0 {
			gammas = []float64{0}
		}

		var best *HoltWintersModel
		for _, a := range h.alphas {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			for _, b := range h.betas {
				for _, g := range gammas {
					m := smooth(y, a, b, g, period)
					if finite(m.SSE) && (best == nil || m.SSE < best.SSE) {
						best = m
					}
				}
			}
		}
		if best == nil {
			return nil, nil, errors.New("smoothing diverged for every parameter set")
		}
		return best, best.Forecast(horizon), nil
	})
}

func smooth(y []float64, alpha, beta, gamma float64, period int) *HoltWintersModel {
	m := &HoltWintersModel{Alpha: alpha, Beta: beta, Gamma: gamma, Period: period, n: len(y)}

	start := 1
	if period > 0 {
		first := mean(y[:period])
		second := mean(y[period : 2*period])
		m.Level = first
		m.Trend = (second - first) / float64(period)
		m.Season = make([]float64, period)
		for i := 0; i < period; i++ {
			m.Season[i] = y[i] - first
		}
		start = period
	} else {
		m.Level = y[0]
		m.Trend = y[1] - y[0]
	}

	for t := start; t < len(y); t++ {
		var s float64
		idx := 0
		if period > 0 {
			idx = t % period
			s = m.Season[idx]
		}
		pred := m.Level + m.Trend + s
		e := y[t] - pred
		m.SSE += e * e

		prevLevel := m.Level
		m.Level = alpha*(y[t]-s) + (1-alpha)*(m.Level+m.Trend)
		m.Trend = beta*(m.Level-prevLevel) + (1-beta)*m.Trend
		if period > 0 {
			m.Season[idx] = gamma*(y[t]-m.Level) + (1-gamma)*s
		}
	}
	return m
}

// Forecast extends level and trend h steps and adds the matching seasonal offset.
func (m *HoltWintersModel) Forecast(h int) []float64 {
	out := make([]float64, h)
	for i := 1; i <= h; i++ {
		v := m.Level + float64(i)*m.Trend
		if m.Period > 0 {
			v += m.Season[(m.n+i-1)%m.Period]
		}
		out[i-1] = v
	}
	return out
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	var s float64
	for _, v := range x {
		s += v
	}
	return s / float64(len(x))
}
