package models

import (
	"fmt"
	"math"
	"time"
)

// RawSalesRow is one daily aggregate as stored by the upstream ETL.
type RawSalesRow struct {
	Date      time.Time
	StoreID   int64
	ItemID    int64
	Category  string
	Brand     string
	Quantity  float64
	UnitPrice float64
	IsHoliday bool
}

// EntityKey identifies one forecastable unit. StoreID 0 means all stores combined.
type EntityKey struct {
	ItemID  int64 `json:"item_id"`
	StoreID int64 `json:"store_id"`
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%d@%d", k.ItemID, k.StoreID)
}

// DayPoint is one calendar day of a dense series with its calendar features.
type DayPoint struct {
	Date      time.Time
	Quantity  float64
	Year      int
	Month     int
	Day       int
	DayOfWeek int // Monday=0
	ISOWeek   int
	IsWeekend bool
	IsHoliday bool
	MonthSin  float64
	MonthCos  float64
}

// NewDayPoint builds a point with calendar features derived from date.
func NewDayPoint(date time.Time, qty float64) DayPoint {
	_, week := date.ISOWeek()
	dow := (int(date.Weekday()) + 6) % 7
	m := int(date.Month())
	angle := 2 * math.Pi * float64(m) / 12
	return DayPoint{
		Date:      date,
		Quantity:  qty,
		Year:      date.Year(),
		Month:     m,
		Day:       date.Day(),
		DayOfWeek: dow,
		ISOWeek:   week,
		IsWeekend: dow >= 5,
		MonthSin:  math.Sin(angle),
		MonthCos:  math.Cos(angle),
	}
}

// DenseSeries has one point per calendar day between its first and last date.
type DenseSeries struct {
	Key      EntityKey
	Category string
	Brand    string
	Points   []DayPoint
}

func (s DenseSeries) Len() int { return len(s.Points) }

func (s DenseSeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Quantity
	}
	return out
}

func (s DenseSeries) Start() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[0].Date
}

func (s DenseSeries) End() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// Head returns the first n points sharing the backing array.
func (s DenseSeries) Head(n int) DenseSeries {
	out := s
	out.Points = s.Points[:n]
	return out
}

// Tail returns the last n points sharing the backing array.
func (s DenseSeries) Tail(n int) DenseSeries {
	out := s
	out.Points = s.Points[len(s.Points)-n:]
	return out
}

// FutureDates lists the horizon days that follow the series end.
func (s DenseSeries) FutureDates(horizon int) []time.Time {
	end := s.End()
	out := make([]time.Time, horizon)
	for i := range out {
		out[i] = end.AddDate(0, 0, i+1)
	}
	return out
}
