// Package analytics turns order lists into the series and rankings shown on the analytics view.
package analytics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/shopdash/internal/model"
)

var ErrInvalidArgument = errors.New("invalid argument")

const (
	DefaultWindowDays = 30
	DefaultTopLimit   = 5
)

// Windows lists the revenue windows offered by the dashboard.
var Windows = []int{7, 30, 90}

// ParseWindow reads a window size from a query value. Empty means DefaultWindowDays.
func ParseWindow(value string) (int, error) {
	if value == "" {
		return DefaultWindowDays, nil
	}
	days, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: window %q", ErrInvalidArgument, value)
	}
	for _, w := range Windows {
		if w == days {
			return days, nil
		}
	}
	return 0, fmt.Errorf("%w: window %d not in %v", ErrInvalidArgument, days, Windows)
}

// RevenueSeries sums order totals per calendar day over the windowDays days ending on ref's day.
// Days are taken in ref's location. The result always has exactly windowDays entries.
// Orders dated after ref's day or before the window start are not counted.
func RevenueSeries(orders []model.Order, windowDays int, ref time.Time) ([]model.RevenuePoint, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("%w: window %d", ErrInvalidArgument, windowDays)
	}

	start, end := window(windowDays, ref)

	byDay := make(map[string]decimal.Decimal)
	for _, order := range orders {
		day, ok := orderDay(order, ref.Location())
		if !ok || day.Before(start) || !day.Before(end) {
			continue
		}
		key := day.Format(time.DateOnly)
		byDay[key] = byDay[key].Add(order.Total)
	}

	series := make([]model.RevenuePoint, 0, windowDays)
	for i := 0; i < windowDays; i++ {
		key := start.AddDate(0, 0, i).Format(time.DateOnly)
		revenue, ok := byDay[key]
		if !ok {
			revenue = decimal.Zero
		}
		series = append(series, model.RevenuePoint{Date: key, Revenue: revenue})
	}
	return series, nil
}

// TopProducts ranks product names by units sold, highest first. Ties keep first-seen order.
// Names are matched exactly.
func TopProducts(orders []model.Order, limit int) ([]model.ProductSales, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit %d", ErrInvalidArgument, limit)
	}

	index := make(map[string]int)
	ranking := make([]model.ProductSales, 0)
	for _, order := range orders {
		for _, item := range order.Items {
			if item.Name == "" || item.Quantity <= 0 {
				continue
			}
			i, ok := index[item.Name]
			if !ok {
				i = len(ranking)
				index[item.Name] = i
				ranking = append(ranking, model.ProductSales{Name: item.Name})
			}
			ranking[i].Sales += item.Quantity
		}
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Sales > ranking[j].Sales
	})
	if len(ranking) > limit {
		ranking = ranking[:limit]
	}
	return ranking, nil
}

// Summarize computes the stat cards for the same window RevenueSeries uses.
func Summarize(orders []model.Order, windowDays int, ref time.Time) (model.Summary, error) {
	if windowDays <= 0 {
		return model.Summary{}, fmt.Errorf("%w: window %d", ErrInvalidArgument, windowDays)
	}

	start, end := window(windowDays, ref)

	summary := model.Summary{
		WindowDays:   windowDays,
		Revenue:      decimal.Zero,
		AverageOrder: decimal.Zero,
	}
	for _, order := range orders {
		day, ok := orderDay(order, ref.Location())
		if !ok || day.Before(start) || !day.Before(end) {
			continue
		}
		summary.Revenue = summary.Revenue.Add(order.Total)
		summary.Orders++
	}
	if summary.Orders > 0 {
		summary.AverageOrder = summary.Revenue.
			Div(decimal.NewFromInt(int64(summary.Orders))).
			Round(2)
	}
	return summary, nil
}

// window returns [start, end) as midnights in ref's location.
func window(windowDays int, ref time.Time) (time.Time, time.Time) {
	today := midnight(ref, ref.Location())
	return today.AddDate(0, 0, -(windowDays - 1)), today.AddDate(0, 0, 1)
}

// orderDay отбрасывает заказы с битой датой и отрицательной суммой
func orderDay(order model.Order, loc *time.Location) (time.Time, bool) {
	if !order.Date.Valid() || order.Total.IsNegative() {
		return time.Time{}, false
	}
	return midnight(order.Date.Time, loc), true
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
