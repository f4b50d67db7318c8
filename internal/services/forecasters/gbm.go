package forecasters

import (
	"context"
	"fmt"
	"math"

	"DemandCast/internal/domain/models"
)

// GBMConfig mirrors the usual gradient-boosting knobs.
type GBMConfig struct {
	Rounds         int
	MaxDepth       int
	LearningRate   float64
	Lambda         float64
	MinChildWeight float64
	MinRows        int
}

func DefaultGBMConfig() GBMConfig {
	return GBMConfig{Rounds: 100, MaxDepth: 6, LearningRate: 0.1, Lambda: 1, MinChildWeight: 1, MinRows: 30}
}

// lag features need this much history before the first training row
const maxLag = 14

// feature columns: lag_1, lag_7, lag_14, rolling_mean_7, dayofweek, month, day, is_weekend
const gbmFeatures = 8

// GBMModel is an additive ensemble of regression trees.
type GBMModel struct {
	Base  float64
	Trees []*regressionTree
	Eta   float64
}

func (m *GBMModel) predict(x []float64) float64 {
	v := m.Base
	for _, t := range m.Trees {
		v += m.Eta * t.predict(x)
	}
	return v
}

// GBM is the gradient-boosted tree technique. It forecasts recursively, feeding each
// prediction back as the next step's lag input.
type GBM struct {
	cfg GBMConfig
}

func NewGBM() *GBM {
	return &GBM{cfg: DefaultGBMConfig()}
}

func (g *GBM) Technique() models.Technique { return models.TechniqueXGBoost }

func (g *GBM) Available() bool { return true }

func (g *GBM) FitPredict(ctx context.Context, series models.DenseSeries, horizon int) (any, []float64, error) {
	return guard(g.Technique(), horizon, func() (any, []float64, error) {
		y := series.Values()
		X, target := lagFeatures(series)
		if len(X) < g.cfg.MinRows {
			return nil, nil, fmt.Errorf("need %d feature rows, have %d", g.cfg.MinRows, len(X))
		}

		m, err := g.fit(ctx, X, target)
		if err != nil {
			return nil, nil, err
		}

		history := append([]float64(nil), y...)
		dates := series.FutureDates(horizon)
		out := make([]float64, horizon)
		for i, d := range dates {
			x := featureRow(history, len(history), models.NewDayPoint(d, 0))
			p := math.Max(0, m.predict(x))
			out[i] = p
			history = append(history, p)
		}
		return m, out, nil
	})
}

func (g *GBM) fit(ctx context.Context, X [][]float64, y []float64) (*GBMModel, error) {
	m := &GBMModel{Base: mean(y), Eta: g.cfg.LearningRate}
	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = m.Base
	}
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	grad := make([]float64, len(y))
	params := treeParams{maxDepth: g.cfg.MaxDepth, lambda: g.cfg.Lambda, minChildWeight: g.cfg.MinChildWeight}

	for r := 0; r < g.cfg.Rounds; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range grad {
			grad[i] = pred[i] - y[i]
		}
		t := growTree(X, grad, idx, params)
		m.Trees = append(m.Trees, t)
		for i, row := range X {
			pred[i] += m.Eta * t.predict(row)
		}
	}
	return m, nil
}

// lagFeatures builds one training row per day that has a full 14-day lookback.
// The rolling mean covers the 7 days before the target, matching what is known at
// forecast time.
func lagFeatures(s models.DenseSeries) ([][]float64, []float64) {
	y := s.Values()
	if len(y) <= maxLag {
		return nil, nil
	}
	X := make([][]float64, 0, len(y)-maxLag)
	target := make([]float64, 0, len(y)-maxLag)
	for t := maxLag; t < len(y); t++ {
		X = append(X, featureRow(y, t, s.Points[t]))
		target = append(target, y[t])
	}
	return X, target
}

// featureRow describes day t using history[:t] only.
func featureRow(history []float64, t int, pt models.DayPoint) []float64 {
	row := make([]float64, gbmFeatures)
	row[0] = history[t-1]
	row[1] = history[t-7]
	row[2] = history[t-14]
	row[3] = mean(history[t-7 : t])
	row[4] = float64(pt.DayOfWeek)
	row[5] = float64(pt.Month)
	row[6] = float64(pt.Day)
	if pt.IsWeekend {
		row[7] = 1
	}
	return row
}
