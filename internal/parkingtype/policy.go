// Package parkingtype содержит политики валидации и ценообразования
// для частных, уличных и закрытых парковок.
package parkingtype

import (
	"context"
	"fmt"
	"time"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

// ValidationRequest - параметры бронирования, которые проверяет политика.
type ValidationRequest struct {
	UserID          string
	SpotID          string
	VehicleType     model.VehicleType
	VehicleHeightCm int
	Start           time.Time
	End             time.Time
	Now             time.Time
}

// DurationMinutes возвращает длительность запрошенного интервала.
func (r ValidationRequest) DurationMinutes() int {
	return int(r.End.Sub(r.Start) / time.Minute)
}

// ValidationResult накапливает все нарушенные правила.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

func newResult() ValidationResult {
	return ValidationResult{IsValid: true, Errors: []string{}}
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.IsValid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Err возвращает ошибку валидации, если результат содержит нарушения.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return model.NewValidationError(r.Errors...)
}

// Policy - набор правил для одного типа парковки.
type Policy interface {
	Type() model.ParkingType
	ValidateBooking(ctx context.Context, req ValidationRequest) (ValidationResult, error)
	CalculatePrice(ctx context.Context, basePrice float64, params pricing.PriceParams) (float64, error)
	AccessInstructions(ctx context.Context, spotID string) (string, error)
}

// Registry хранит политики по типу парковки. Создаётся один раз при запуске сервиса.
type Registry struct {
	policies map[model.ParkingType]Policy
}

// NewRegistry создаёт реестр из переданных политик.
func NewRegistry(policies ...Policy) *Registry {
	r := &Registry{policies: make(map[model.ParkingType]Policy, len(policies))}
	for _, p := range policies {
		r.policies[p.Type()] = p
	}
	return r
}

// Lookup возвращает политику для типа парковки.
func (r *Registry) Lookup(pt model.ParkingType) (Policy, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.policies[pt]
	return p, ok
}

// Pricer реализует pricing.TypePricerLookup.
func (r *Registry) Pricer(pt model.ParkingType) (pricing.TypePricer, bool) {
	p, ok := r.Lookup(pt)
	if !ok {
		return nil, false
	}
	return p, true
}

const minutesPerDay = 24 * 60

// startOfDay возвращает полночь дня t в его часовом поясе.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// endMinute возвращает минуту окончания интервала относительно дня start;
// окончание ровно в полночь следующего дня даёт 1440.
func endMinute(start, end time.Time) (int, bool) {
	day := startOfDay(start)
	if end.After(day.AddDate(0, 0, 1)) {
		return 0, false
	}
	return int(end.Sub(day) / time.Minute), true
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
