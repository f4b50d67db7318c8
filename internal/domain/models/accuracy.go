package models

import "time"

// AccuracyObservation pairs a stored forecast with the realized quantity.
type AccuracyObservation struct {
	Key       EntityKey
	Date      time.Time
	Predicted float64
	Actual    float64
	Model     Technique
}

type DailyAccuracy struct {
	Date         time.Time `json:"date"`
	Observations int       `json:"observations"`
	MAPE         float64   `json:"mape"`
	MAE          float64   `json:"mae"`
	Within20Pct  float64   `json:"within_20_pct"`
}

type AccuracyReport struct {
	From          time.Time             `json:"from"`
	To            time.Time             `json:"to"`
	Daily         []DailyAccuracy       `json:"daily"`
	ByModel       map[Technique]float64 `json:"mape_by_model"`
	OverallMAPE   float64               `json:"overall_mape"`
	DriftDetected bool                  `json:"drift_detected"`
	RecentMAPE    float64               `json:"recent_mape"`
	BaselineMAPE  float64               `json:"baseline_mape"`
}
