package usecase

import (
	"DemandCast/internal/domain/models"
)

const (
	maxCandidates        = 3
	weeklyPromoteAboveAC = 0.5
)

type ruleKey struct {
	seasonality models.SeasonalityCategory
	price       models.PriceCategory
}

// TechniqueRegistry reports which techniques can run in this process.
type TechniqueRegistry interface {
	IsAvailable(t models.Technique) bool
}

// ModelSelector maps an entity's class and series descriptors to a ranked candidate list.
type ModelSelector struct {
	rules    map[ruleKey][]models.Technique
	fallback []models.Technique
	registry TechniqueRegistry
}

func NewModelSelector(registry TechniqueRegistry) *ModelSelector {
	const (
		arima   = models.TechniqueARIMA
		hw      = models.TechniqueHoltWinters
		prophet = models.TechniqueProphet
		xgb     = models.TechniqueXGBoost
	)
	return &ModelSelector{
		rules: map[ruleKey][]models.Technique{
			{models.SeasonalityStable, models.PriceCheap}:           {hw, arima, xgb},
			{models.SeasonalityStable, models.PriceMedium}:          {prophet, hw, xgb},
			{models.SeasonalityStable, models.PriceExpensive}:       {prophet, arima, xgb},
			{models.SeasonalitySeasonal, models.PriceCheap}:         {prophet, hw, xgb},
			{models.SeasonalitySeasonal, models.PriceMedium}:        {prophet, hw, arima},
			{models.SeasonalitySeasonal, models.PriceExpensive}:     {prophet, arima, xgb},
			{models.SeasonalityIntermittent, models.PriceCheap}:     {xgb, prophet, hw},
			{models.SeasonalityIntermittent, models.PriceMedium}:    {xgb, prophet, arima},
			{models.SeasonalityIntermittent, models.PriceExpensive}: {prophet, xgb, arima},
		},
		fallback: models.AllTechniques,
		registry: registry,
	}
}

// Lookup returns the table entry for a class pair, or the fallback ranking.
func (s *ModelSelector) Lookup(seasonality models.SeasonalityCategory, price models.PriceCategory) []models.Technique {
	if r, ok := s.rules[ruleKey{seasonality, price}]; ok {
		return append([]models.Technique(nil), r...)
	}
	return append([]models.Technique(nil), s.fallback...)
}

// Recommend applies the refinements on top of the table and keeps the top three
// techniques the registry can run.
func (s *ModelSelector) Recommend(ch models.EntityCharacteristics, d models.SeriesStatDescriptors) []models.Technique {
	ranked := s.Lookup(ch.SeasonalityCategory, ch.PriceCategory)

	if d.Intermittent() {
		ranked = moveToFront(ranked, models.TechniqueXGBoost, models.TechniqueProphet)
	}
	if i := indexOf(ranked, models.TechniqueProphet); d.WeeklyAutocorrelation > weeklyPromoteAboveAC && (i < 0 || i >= 2) {
		ranked = moveToFront(ranked, models.TechniqueProphet)
	}

	out := make([]models.Technique, 0, maxCandidates)
	for _, t := range ranked {
		if len(out) == maxCandidates {
			break
		}
		if s.registry == nil || s.registry.IsAvailable(t) {
			out = append(out, t)
		}
	}
	return out
}

// moveToFront places front first, in the given order, followed by the rest of list
// with its relative order kept.
func moveToFront(list []models.Technique, front ...models.Technique) []models.Technique {
	out := make([]models.Technique, 0, len(list)+len(front))
	out = append(out, front...)
	for _, t := range list {
		if indexOf(front, t) < 0 {
			out = append(out, t)
		}
	}
	return out
}

func indexOf(list []models.Technique, t models.Technique) int {
	for i, v := range list {
		if v == t {
			return i
		}
	}
	return -1
}
