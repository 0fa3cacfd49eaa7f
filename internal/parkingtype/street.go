package parkingtype

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

const defaultStreetInstructions = "Park within the marked bay and display your booking reference."

// Часы пик и ночное время уличной парковки, минуты от полуночи.
var rushHourWindows = [][2]int{{7 * 60, 9 * 60}, {17 * 60, 19 * 60}}

const (
	nightStartMinute = 22 * 60
	nightEndMinute   = 6 * 60
)

// StreetStore - данные, необходимые политике уличной парковки.
type StreetStore interface {
	GetRegulation(ctx context.Context, spotID string) (model.StreetRegulation, error)
	ListRestrictions(ctx context.Context, spotID string, start, end time.Time) ([]model.TemporaryRestriction, error)
	GetActivePermit(ctx context.Context, userID, zone string, at time.Time) (model.ParkingPermit, error)
}

// StreetPricing - включаемые множители уличной парковки.
type StreetPricing struct {
	RushHourEnabled    bool
	RushHourMultiplier float64
	NightEnabled       bool
	NightMultiplier    float64
	WeekendEnabled     bool
	WeekendMultiplier  float64
}

// DefaultStreetPricing возвращает множители по умолчанию.
func DefaultStreetPricing() StreetPricing {
	return StreetPricing{
		RushHourEnabled:    true,
		RushHourMultiplier: 1.5,
		NightEnabled:       true,
		NightMultiplier:    0.5,
		WeekendEnabled:     true,
		WeekendMultiplier:  0.8,
	}
}

// Street - политика муниципальной уличной парковки.
type Street struct {
	store   StreetStore
	pricing StreetPricing
}

// NewStreet создаёт политику уличной парковки.
func NewStreet(store StreetStore, p StreetPricing) *Street {
	return &Street{store: store, pricing: p}
}

// Type возвращает тип парковки.
func (s *Street) Type() model.ParkingType { return model.ParkingTypeStreet }

// ValidateBooking проверяет часы контроля, длительность, тип транспорта,
// разрешение и временные ограничения.
func (s *Street) ValidateBooking(ctx context.Context, req ValidationRequest) (ValidationResult, error) {
	res := newResult()

	reg, err := s.store.GetRegulation(ctx, req.SpotID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			res.fail("spot has no street regulation")
			return res, nil
		}
		return res, fmt.Errorf("get regulation: %w", err)
	}

	if len(reg.EnforcementDays) > 0 && !slices.Contains(reg.EnforcementDays, int(req.Start.Weekday())) {
		res.fail("street parking is not bookable on %s", req.Start.Weekday())
	}

	if reg.EnforcementStartMinute != reg.EnforcementEndMinute {
		from := pricing.MinuteOfDay(req.Start)
		to := int(req.End.Sub(startOfDay(req.Start)) / time.Minute)
		if _, until, ok := enforcementWindow(reg.EnforcementStartMinute, reg.EnforcementEndMinute, from); !ok {
			res.fail("booking must start within enforcement hours")
		} else if to > until {
			res.fail("booking extends past enforcement hours")
		}
	}

	if reg.MaxDurationMinutes > 0 && req.DurationMinutes() > reg.MaxDurationMinutes {
		res.fail("maximum stay on this street is %d minutes", reg.MaxDurationMinutes)
	}

	if len(reg.AllowedVehicleTypes) > 0 && !slices.Contains(reg.AllowedVehicleTypes, req.VehicleType) {
		res.fail("vehicle type %s is not allowed on this street", req.VehicleType)
	}

	if reg.PermitRequired {
		permit, err := s.store.GetActivePermit(ctx, req.UserID, reg.PermitZone, req.Start)
		switch {
		case errors.Is(err, model.ErrNotFound):
			res.fail("a parking permit for zone %s is required", reg.PermitZone)
		case err != nil:
			return res, fmt.Errorf("get permit: %w", err)
		case !permit.ValidAt(req.Start) || req.End.After(permit.ValidUntil):
			res.fail("parking permit for zone %s is not valid for the requested time", reg.PermitZone)
		}
	}

	restrictions, err := s.store.ListRestrictions(ctx, req.SpotID, req.Start, req.End)
	if err != nil {
		return res, fmt.Errorf("list restrictions: %w", err)
	}
	for _, r := range restrictions {
		if overlaps(r.Start, r.End, req.Start, req.End) {
			res.fail("temporary restriction in effect: %s", r.Reason)
		}
	}

	return res, nil
}

// enforcementWindow возвращает интервал контроля, в который попадает минута from,
// в минутах от начала дня брони. Если начало позже конца, интервал переходит
// через полночь (например 22:00-06:00). Совпадающие границы снимают ограничение по часам.
func enforcementWindow(start, end, from int) (since, until int, ok bool) {
	switch {
	case start < end:
		return start, end, from >= start && from < end
	case start > end && from >= start:
		return start, end + minutesPerDay, true
	case start > end && from < end:
		return start - minutesPerDay, end, true
	}
	return 0, 0, false
}

// CalculatePrice применяет множители часа пик, ночи и выходных по времени начала.
func (s *Street) CalculatePrice(ctx context.Context, basePrice float64, params pricing.PriceParams) (float64, error) {
	price := basePrice
	minute := pricing.MinuteOfDay(params.Start)

	if s.pricing.RushHourEnabled && isRushHour(minute) {
		price *= s.pricing.RushHourMultiplier
	}
	if s.pricing.NightEnabled && (minute >= nightStartMinute || minute < nightEndMinute) {
		price *= s.pricing.NightMultiplier
	}
	if s.pricing.WeekendEnabled && isWeekend(params.Start) {
		price *= s.pricing.WeekendMultiplier
	}

	return pricing.Round2(price), nil
}

// AccessInstructions возвращает указания для уличного места.
func (s *Street) AccessInstructions(ctx context.Context, spotID string) (string, error) {
	reg, err := s.store.GetRegulation(ctx, spotID)
	if err != nil {
		return "", fmt.Errorf("get regulation: %w", err)
	}
	if reg.AccessInstructions == "" {
		return defaultStreetInstructions, nil
	}
	return reg.AccessInstructions, nil
}

func isRushHour(minute int) bool {
	for _, w := range rushHourWindows {
		if minute >= w[0] && minute < w[1] {
			return true
		}
	}
	return false
}
