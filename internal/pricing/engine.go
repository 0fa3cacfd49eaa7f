package pricing

import (
	"errors"
	"sort"
	"time"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

const minutesPerDay = 24 * 60

// AdjustmentKind - источник корректировки ставки.
type AdjustmentKind string

const (
	AdjustmentVehicleType AdjustmentKind = "vehicle_type"
	AdjustmentTimeOfDay   AdjustmentKind = "time_of_day"
	AdjustmentHoliday     AdjustmentKind = "holiday"
	AdjustmentOccupancy   AdjustmentKind = "occupancy"
	AdjustmentParkingType AdjustmentKind = "parking_type"
)

// Adjustment описывает сработавшую корректировку.
// Для замены ставки по типу транспорта заполняется Rate, иначе Multiplier.
type Adjustment struct {
	Kind       AdjustmentKind `json:"kind"`
	Name       string         `json:"name,omitempty"`
	Multiplier float64        `json:"multiplier,omitempty"`
	Rate       float64        `json:"rate,omitempty"`
}

// RateResult - результат расчёта динамической ставки.
type RateResult struct {
	HourlyRate  float64      `json:"hourlyRate"`
	Subtotal    float64      `json:"subtotal"`
	Adjustments []Adjustment `json:"adjustments"`
}

// Пороги загрузки (в процентах) и соответствующие множители, от старшего к младшему.
var occupancyTiers = []struct {
	threshold  float64
	multiplier float64
}{
	{90, 1.50},
	{75, 1.25},
	{50, 1.10},
}

const (
	lowOccupancyThreshold  = 25.0
	lowOccupancyMultiplier = 0.90
)

// OccupancyMultiplier возвращает множитель для загрузки в процентах.
// Нижняя граница каждой ступени включительна.
func OccupancyMultiplier(rate float64) float64 {
	for _, tier := range occupancyTiers {
		if rate >= tier.threshold {
			return tier.multiplier
		}
	}
	if rate <= lowOccupancyThreshold {
		return lowOccupancyMultiplier
	}
	return 1.0
}

// CalculateRate вычисляет часовую ставку и сумму за durationMinutes, начиная со start.
// День недели и минута дня берутся в часовом поясе start.
func CalculateRate(cfg model.PricingConfig, vt model.VehicleType, start time.Time, durationMinutes int, occupancy *float64) (RateResult, error) {
	if durationMinutes <= 0 {
		return RateResult{}, errors.New("duration must be positive")
	}
	if occupancy != nil && (*occupancy < 0 || *occupancy > 100) {
		return RateResult{}, errors.New("occupancy rate must be between 0 and 100")
	}

	res := RateResult{Adjustments: []Adjustment{}}
	rate := cfg.BaseRate

	for _, vr := range cfg.VehicleTypeRates {
		if vr.VehicleType == vt {
			rate = vr.Rate
			res.Adjustments = append(res.Adjustments, Adjustment{
				Kind: AdjustmentVehicleType,
				Name: string(vt),
				Rate: vr.Rate,
			})
			break
		}
	}

	if tr, ok := matchTimeRate(cfg.TimeBasedRates, start); ok {
		rate *= tr.Multiplier
		res.Adjustments = append(res.Adjustments, Adjustment{
			Kind:       AdjustmentTimeOfDay,
			Name:       tr.Name,
			Multiplier: tr.Multiplier,
		})
	}

	if hr, ok := matchHoliday(cfg.HolidayRates, start); ok {
		rate *= hr.Multiplier
		res.Adjustments = append(res.Adjustments, Adjustment{
			Kind:       AdjustmentHoliday,
			Name:       hr.Name,
			Multiplier: hr.Multiplier,
		})
	}

	switch {
	case occupancy != nil:
		m := OccupancyMultiplier(*occupancy)
		rate *= m
		res.Adjustments = append(res.Adjustments, Adjustment{
			Kind:       AdjustmentOccupancy,
			Name:       "live",
			Multiplier: m,
		})
	case cfg.OccupancyMultiplier > 0 && cfg.OccupancyMultiplier != 1:
		// Без живой загрузки действует множитель из конфигурации.
		rate *= cfg.OccupancyMultiplier
		res.Adjustments = append(res.Adjustments, Adjustment{
			Kind:       AdjustmentOccupancy,
			Name:       "configured",
			Multiplier: cfg.OccupancyMultiplier,
		})
	}

	res.HourlyRate = Round2(rate)
	res.Subtotal = Round2(rate * float64(durationMinutes) / 60)

	return res, nil
}

// matchTimeRate ищет первый подходящий интервал в порядке (StartMinute, EndMinute, порядок в списке).
func matchTimeRate(rates []model.TimeBasedRate, t time.Time) (model.TimeBasedRate, bool) {
	if len(rates) == 0 {
		return model.TimeBasedRate{}, false
	}

	ordered := append([]model.TimeBasedRate{}, rates...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].StartMinute != ordered[j].StartMinute {
			return ordered[i].StartMinute < ordered[j].StartMinute
		}
		return ordered[i].EndMinute < ordered[j].EndMinute
	})

	day := int(t.Weekday())
	minute := MinuteOfDay(t)
	for _, r := range ordered {
		if r.DayOfWeek == day && r.StartMinute <= minute && minute <= r.EndMinute {
			return r, true
		}
	}
	return model.TimeBasedRate{}, false
}

// matchHoliday ищет праздник: разовые даты проверяются раньше повторяющихся.
func matchHoliday(rates []model.HolidayRate, t time.Time) (model.HolidayRate, bool) {
	y, m, d := t.Date()

	for _, r := range rates {
		if r.IsRecurring {
			continue
		}
		ry, rm, rd := r.Date.Date()
		if ry == y && rm == m && rd == d {
			return r, true
		}
	}
	for _, r := range rates {
		if !r.IsRecurring {
			continue
		}
		_, rm, rd := r.Date.Date()
		if rm == m && rd == d {
			return r, true
		}
	}
	return model.HolidayRate{}, false
}

// MinuteOfDay возвращает количество минут от полуночи.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
