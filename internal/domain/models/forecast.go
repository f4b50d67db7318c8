package models

import "time"

// Technique names one pluggable forecasting method.
type Technique string

const (
	TechniqueARIMA       Technique = "arima"
	TechniqueHoltWinters Technique = "holt_winters"
	TechniqueProphet     Technique = "prophet"
	TechniqueXGBoost     Technique = "xgboost"
)

// AllTechniques is the fallback ranking used when no rule matches.
var AllTechniques = []Technique{TechniqueProphet, TechniqueARIMA, TechniqueHoltWinters, TechniqueXGBoost}

// SentinelMetric marks a candidate whose backtest did not yield a full forecast.
const SentinelMetric = 999999.0

// Metrics holds backtest accuracy. Evaluated is false when no held-out slice existed,
// in which case the numeric fields are zero and carry no meaning.
type Metrics struct {
	RMSE      float64 `json:"rmse"`
	MAPE      float64 `json:"mape"`
	MAE       float64 `json:"mae"`
	Evaluated bool    `json:"evaluated"`
}

func SentinelMetrics() Metrics {
	return Metrics{RMSE: SentinelMetric, MAPE: SentinelMetric, MAE: SentinelMetric, Evaluated: true}
}

func (m Metrics) IsSentinel() bool {
	return m.Evaluated && m.RMSE >= SentinelMetric
}

type DatedValue struct {
	Date  time.Time
	Value float64
}

// CandidateResult is what one technique produced for one entity.
type CandidateResult struct {
	Technique  Technique
	Metrics    Metrics
	Prediction []DatedValue
	Artifact   any
	Err        error
}

// Usable reports whether the production forecast covers the full horizon.
func (c CandidateResult) Usable(horizon int) bool {
	return c.Err == nil && len(c.Prediction) == horizon
}

// ForecastResult is one persisted row keyed by (item, store, date).
type ForecastResult struct {
	Key            EntityKey
	ForecastDate   time.Time
	BestModel      Technique
	BestPrediction int
	Predictions    map[Technique]*int
	Metrics        Metrics
	Category       string
	Brand          string
	ModelVersion   string
}

// Prediction returns the cleaned value for technique t, nil if it was not attempted or failed.
func (r ForecastResult) Prediction(t Technique) *int {
	if r.Predictions == nil {
		return nil
	}
	return r.Predictions[t]
}

type ResultKey struct {
	ItemID       int64
	StoreID      int64
	ForecastDate time.Time
}

func (r ForecastResult) ResultKey() ResultKey {
	return ResultKey{ItemID: r.Key.ItemID, StoreID: r.Key.StoreID, ForecastDate: r.ForecastDate}
}
