package features

import (
	"fmt"
	"sort"
	"time"

	"DemandCast/internal/domain/models"
)

// DefaultMinHistory is the minimum dense length, in days, an entity needs to be forecast.
const DefaultMinHistory = 60

// SeriesPreparer turns sparse daily rows into a gap-free series.
type SeriesPreparer struct {
	MinHistory int
}

func NewSeriesPreparer(minHistory int) *SeriesPreparer {
	if minHistory <= 0 {
		minHistory = DefaultMinHistory
	}
	return &SeriesPreparer{MinHistory: minHistory}
}

// Prepare densifies rows for key. Rows from several stores on the same day are summed.
// It returns models.ErrInsufficientHistory when the dense length is below MinHistory;
// the series is still returned so callers can report its length.
func (p *SeriesPreparer) Prepare(key models.EntityKey, rows []models.RawSalesRow) (models.DenseSeries, error) {
	s := Densify(key, rows)
	if s.Len() < p.MinHistory {
		return s, fmt.Errorf("%w: %s has %d days, need %d", models.ErrInsufficientHistory, key, s.Len(), p.MinHistory)
	}
	return s, nil
}

// Densify builds one point per calendar day in [min(date), max(date)]. Missing days are
// zero sales, not missing data.
func Densify(key models.EntityKey, rows []models.RawSalesRow) models.DenseSeries {
	out := models.DenseSeries{Key: key}
	if len(rows) == 0 {
		return out
	}

	type agg struct {
		qty     float64
		holiday bool
	}
	byDay := make(map[time.Time]*agg, len(rows))
	var first, last time.Time
	for i, r := range rows {
		d := TruncateDay(r.Date)
		a, ok := byDay[d]
		if !ok {
			a = &agg{}
			byDay[d] = a
		}
		a.qty += r.Quantity
		a.holiday = a.holiday || r.IsHoliday
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
		if out.Category == "" {
			out.Category = r.Category
		}
		if out.Brand == "" {
			out.Brand = r.Brand
		}
	}

	n := DaysBetween(first, last) + 1
	out.Points = make([]models.DayPoint, n)
	for i := 0; i < n; i++ {
		d := first.AddDate(0, 0, i)
		var pt models.DayPoint
		if a, ok := byDay[d]; ok {
			pt = models.NewDayPoint(d, a.qty)
			pt.IsHoliday = a.holiday
		} else {
			pt = models.NewDayPoint(d, 0)
		}
		out.Points[i] = pt
	}
	return out
}

// TruncateDay drops the clock part and pins the date to UTC.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(TruncateDay(b).Sub(TruncateDay(a)).Hours() / 24)
}

// GroupByEntity splits a multi-entity row set into per-entity slices sorted by date.
func GroupByEntity(rows []models.RawSalesRow) map[models.EntityKey][]models.RawSalesRow {
	out := make(map[models.EntityKey][]models.RawSalesRow)
	for _, r := range rows {
		k := models.EntityKey{ItemID: r.ItemID, StoreID: r.StoreID}
		out[k] = append(out[k], r)
	}
	for k := range out {
		rs := out[k]
		sort.Slice(rs, func(i, j int) bool { return rs[i].Date.Before(rs[j].Date) })
	}
	return out
}
