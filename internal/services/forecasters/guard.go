package forecasters

import (
	"fmt"
	"math"

	"DemandCast/internal/domain/models"
)

// guard runs one fit-and-predict and normalizes panics and bad output into an error.
func guard(t models.Technique, horizon int, fn func() (any, []float64, error)) (artifact any, forecast []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact, forecast, err = nil, nil, fmt.Errorf("%s: panic during fit: %v", t, r)
		}
	}()

	if horizon <= 0 {
		return nil, nil, fmt.Errorf("%s: horizon must be positive", t)
	}
	artifact, forecast, err = fn()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", t, err)
	}
	if len(forecast) != horizon {
		return nil, nil, fmt.Errorf("%s: produced %d of %d steps", t, len(forecast), horizon)
	}
	for i, v := range forecast {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, fmt.Errorf("%s: non-finite forecast at step %d", t, i)
		}
	}
	return artifact, forecast, nil
}
