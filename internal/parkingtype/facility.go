package parkingtype

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

const (
	defaultFacilityInstructions = "Use the entrance gate and scan your booking QR code."
	reservationLeadTime         = 30 * time.Minute
	defaultPremiumMultiplier    = 1.2
	premiumStartMinute          = 8 * 60
	premiumEndMinute            = 18 * 60
)

// FacilityStore - данные, необходимые политике закрытых паркингов.
type FacilityStore interface {
	GetSpot(ctx context.Context, spotID string) (model.Spot, error)
	GetFacilityBySpot(ctx context.Context, spotID string) (model.Facility, error)
	ListClosures(ctx context.Context, facilityID string, start, end time.Time) ([]model.MaintenanceClosure, error)
	HasAccessCredential(ctx context.Context, userID, facilityID string) (bool, error)
}

// Facility - политика многоуровневых и закрытых паркингов.
type Facility struct {
	store FacilityStore
}

// NewFacility создаёт политику паркингов.
func NewFacility(store FacilityStore) *Facility {
	return &Facility{store: store}
}

// Type возвращает тип парковки.
func (f *Facility) Type() model.ParkingType { return model.ParkingTypeFacility }

// ValidateBooking проверяет часы работы, высоту, пропуск, предварительную бронь и закрытия.
func (f *Facility) ValidateBooking(ctx context.Context, req ValidationRequest) (ValidationResult, error) {
	res := newResult()

	fac, err := f.store.GetFacilityBySpot(ctx, req.SpotID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			res.fail("spot does not belong to a parking facility")
			return res, nil
		}
		return res, fmt.Errorf("get facility: %w", err)
	}

	if !fac.Is24Hours {
		from := pricing.MinuteOfDay(req.Start)
		to, sameDay := endMinute(req.Start, req.End)
		if !sameDay || from < fac.OpenMinute || to > fac.CloseMinute {
			res.fail("facility is open from %s to %s", formatMinute(fac.OpenMinute), formatMinute(fac.CloseMinute))
		}
	}

	if fac.HeightLimitCm > 0 && req.VehicleHeightCm > fac.HeightLimitCm {
		res.fail("vehicle height %d cm exceeds the facility limit of %d cm", req.VehicleHeightCm, fac.HeightLimitCm)
	}

	if fac.RequiresAccessCredential {
		ok, err := f.store.HasAccessCredential(ctx, req.UserID, fac.ID)
		if err != nil {
			return res, fmt.Errorf("check access credential: %w", err)
		}
		if !ok {
			res.fail("facility requires an access credential")
		}
	}

	if fac.ReservationOnly && req.Start.Sub(req.Now) < reservationLeadTime {
		res.fail("facility requires booking at least %d minutes in advance", int(reservationLeadTime/time.Minute))
	}

	closures, err := f.store.ListClosures(ctx, fac.ID, req.Start, req.End)
	if err != nil {
		return res, fmt.Errorf("list closures: %w", err)
	}
	for _, c := range closures {
		if overlaps(c.Start, c.End, req.Start, req.End) {
			res.fail("facility closed for maintenance: %s", c.Reason)
		}
	}

	return res, nil
}

// CalculatePrice применяет модель оплаты паркинга, премиальное время и множитель этажа.
func (f *Facility) CalculatePrice(ctx context.Context, basePrice float64, params pricing.PriceParams) (float64, error) {
	fac, err := f.store.GetFacilityBySpot(ctx, params.SpotID)
	if err != nil {
		return 0, fmt.Errorf("get facility: %w", err)
	}
	spot, err := f.store.GetSpot(ctx, params.SpotID)
	if err != nil {
		return 0, fmt.Errorf("get spot: %w", err)
	}

	var price float64
	switch fac.PricingModel {
	case model.FacilityPricingFlat:
		price = fac.FlatRate
		if price <= 0 {
			price = basePrice
		}
	case model.FacilityPricingTiered:
		price = tieredPrice(fac.Tiers, params.DurationMinutes, params.HourlyRate, basePrice)
	default:
		// При оплате на выезде бронь фиксирует оценку, итог считается по факту.
		price = basePrice
	}

	if isPremiumTime(params.Start) {
		m := fac.PremiumMultiplier
		if m <= 0 {
			m = defaultPremiumMultiplier
		}
		price *= m
	}

	price *= FloorMultiplier(spot.Floor)

	return pricing.Round2(price), nil
}

// AccessInstructions возвращает инструкции паркинга.
func (f *Facility) AccessInstructions(ctx context.Context, spotID string) (string, error) {
	fac, err := f.store.GetFacilityBySpot(ctx, spotID)
	if err != nil {
		return "", fmt.Errorf("get facility: %w", err)
	}
	if fac.AccessInstructions == "" {
		return defaultFacilityInstructions, nil
	}
	return fac.AccessInstructions, nil
}

// FloorMultiplier возвращает множитель этажа: нулевой и первый дороже на 20%, с пятого и выше дешевле на 10%.
func FloorMultiplier(floor int) float64 {
	switch {
	case floor == 0 || floor == 1:
		return 1.2
	case floor >= 5:
		return 0.9
	default:
		return 1.0
	}
}

// tieredPrice выбирает первую ступень, покрывающую длительность. Сверх последней
// ступени каждый начатый час добавляет часовую ставку.
func tieredPrice(tiers []model.DurationTier, minutes int, hourly, fallback float64) float64 {
	if len(tiers) == 0 {
		return fallback
	}

	ordered := append([]model.DurationTier{}, tiers...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].UpToMinutes < ordered[j].UpToMinutes })

	for _, t := range ordered {
		if minutes <= t.UpToMinutes {
			return t.Price
		}
	}

	last := ordered[len(ordered)-1]
	extraHours := math.Ceil(float64(minutes-last.UpToMinutes) / 60)
	return last.Price + extraHours*hourly
}

func isPremiumTime(t time.Time) bool {
	if isWeekend(t) {
		return false
	}
	m := pricing.MinuteOfDay(t)
	return m >= premiumStartMinute && m < premiumEndMinute
}

func formatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
