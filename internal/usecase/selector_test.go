package usecase

import (
	"testing"

	"DemandCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

type allAvailable struct{}

func (allAvailable) IsAvailable(models.Technique) bool { return true }

type onlyAvailable []models.Technique

func (o onlyAvailable) IsAvailable(t models.Technique) bool { return indexOf(o, t) >= 0 }

const (
	arima   = models.TechniqueARIMA
	hw      = models.TechniqueHoltWinters
	prophet = models.TechniqueProphet
	xgb     = models.TechniqueXGBoost
)

func TestLookupTable(t *testing.T) {
	s := NewModelSelector(allAvailable{})
	cases := []struct {
		season models.SeasonalityCategory
		price  models.PriceCategory
		want   []models.Technique
	}{
		{models.SeasonalityStable, models.PriceCheap, []models.Technique{hw, arima, xgb}},
		{models.SeasonalitySeasonal, models.PriceMedium, []models.Technique{prophet, hw, arima}},
		{models.SeasonalityIntermittent, models.PriceExpensive, []models.Technique{prophet, xgb, arima}},
		{"UNKNOWN", models.PriceCheap, models.AllTechniques},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, s.Lookup(c.season, c.price), "%s/%s", c.season, c.price)
	}
}

func TestRecommendIntermittentPromotesTreeAndProphet(t *testing.T) {
	s := NewModelSelector(allAvailable{})
	ch := models.EntityCharacteristics{PriceCategory: models.PriceCheap, SeasonalityCategory: models.SeasonalityStable}

	got := s.Recommend(ch, models.SeriesStatDescriptors{IntermittencyRatio: 0.5})
	assert.Equal(t, []models.Technique{xgb, prophet, hw}, got)
}

func TestRecommendWeeklyPatternPromotesProphet(t *testing.T) {
	s := NewModelSelector(allAvailable{})
	ch := models.EntityCharacteristics{PriceCategory: models.PriceCheap, SeasonalityCategory: models.SeasonalityStable}

	got := s.Recommend(ch, models.SeriesStatDescriptors{WeeklyAutocorrelation: 0.7})
	assert.Equal(t, []models.Technique{prophet, hw, arima}, got)

	// already in the top two: unchanged
	ch.PriceCategory = models.PriceMedium
	got = s.Recommend(ch, models.SeriesStatDescriptors{WeeklyAutocorrelation: 0.7})
	assert.Equal(t, []models.Technique{prophet, hw, xgb}, got)
}

func TestRecommendFiltersUnavailable(t *testing.T) {
	s := NewModelSelector(onlyAvailable{hw, arima})
	ch := models.EntityCharacteristics{PriceCategory: models.PriceMedium, SeasonalityCategory: models.SeasonalitySeasonal}

	got := s.Recommend(ch, models.SeriesStatDescriptors{})
	assert.Equal(t, []models.Technique{hw, arima}, got)
}

func TestRecommendNeverExceedsThree(t *testing.T) {
	s := NewModelSelector(allAvailable{})
	got := s.Recommend(models.EntityCharacteristics{}, models.SeriesStatDescriptors{IntermittencyRatio: 1, WeeklyAutocorrelation: 0.9})
	assert.Len(t, got, 3)
	assert.Equal(t, xgb, got[0])
}

func TestLookupSharedRankings(t *testing.T) {
	s := NewModelSelector(allAvailable{})
	assert.Equal(t,
		s.Lookup(models.SeasonalitySeasonal, models.PriceCheap),
		s.Lookup(models.SeasonalityStable, models.PriceMedium))
	assert.Equal(t,
		s.Lookup(models.SeasonalitySeasonal, models.PriceExpensive),
		s.Lookup(models.SeasonalityStable, models.PriceExpensive))
	assert.Equal(t, []models.Technique{prophet, arima, xgb}, s.Lookup(models.SeasonalityStable, models.PriceExpensive))
}
