package warehouse

import (
	"time"

	"ecommerce-etl/internal/models"
)

// DateKey encodes a day as YYYYMMDD
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// BuildDateDimension returns one row per calendar day from first to last inclusive.
// No holiday calendar is modeled.
func BuildDateDimension(first, last time.Time) []models.DimDate {
	first = time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	last = time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, time.UTC)
	if last.Before(first) {
		return nil
	}

	var out []models.DimDate
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		_, week := d.ISOWeek()
		wd := d.Weekday()
		out = append(out, models.DimDate{
			DateKey:    DateKey(d),
			FullDate:   d,
			Year:       d.Year(),
			Quarter:    (int(d.Month())-1)/3 + 1,
			Month:      int(d.Month()),
			Day:        d.Day(),
			MonthName:  d.Month().String(),
			DayName:    wd.String(),
			WeekOfYear: week,
			IsWeekend:  wd == time.Saturday || wd == time.Sunday,
			IsHoliday:  false,
		})
	}
	return out
}
