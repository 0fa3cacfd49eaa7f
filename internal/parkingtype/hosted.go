package parkingtype

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

const defaultHostedInstructions = "Contact the host through the app for access details."

// HostedStore - данные, необходимые политике частных мест.
type HostedStore interface {
	GetListingBySpot(ctx context.Context, spotID string) (model.HostedListing, error)
	GetGuestProfile(ctx context.Context, userID string) (model.GuestProfile, error)
}

// Hosted - политика мест, которые сдают частные владельцы.
type Hosted struct {
	store HostedStore
}

// NewHosted создаёт политику частных мест.
func NewHosted(store HostedStore) *Hosted {
	return &Hosted{store: store}
}

// Type возвращает тип парковки.
func (h *Hosted) Type() model.ParkingType { return model.ParkingTypeHosted }

// ValidateBooking проверяет объявление, расписание владельца и требования к гостю.
func (h *Hosted) ValidateBooking(ctx context.Context, req ValidationRequest) (ValidationResult, error) {
	res := newResult()

	listing, err := h.store.GetListingBySpot(ctx, req.SpotID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			res.fail("spot has no hosted listing")
			return res, nil
		}
		return res, fmt.Errorf("get listing: %w", err)
	}

	if !listing.IsActive {
		res.fail("hosted listing is not active")
	}

	if len(listing.Schedule) > 0 && !coveredBySchedule(listing.Schedule, req.Start, req.End) {
		res.fail("requested time is outside the host's availability")
	}

	if listing.MinDurationMinutes > 0 && req.DurationMinutes() < listing.MinDurationMinutes {
		res.fail("minimum booking duration for this listing is %d minutes", listing.MinDurationMinutes)
	}

	if listing.MaxAdvanceDays > 0 && req.Start.Sub(req.Now) > time.Duration(listing.MaxAdvanceDays)*24*time.Hour {
		res.fail("this listing can be booked at most %d days in advance", listing.MaxAdvanceDays)
	}

	if listing.RequireVerifiedGuest || listing.MinGuestRating > 0 {
		profile, err := h.store.GetGuestProfile(ctx, req.UserID)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return res, fmt.Errorf("get guest profile: %w", err)
		}
		if listing.RequireVerifiedGuest && !profile.IsVerified {
			res.fail("host requires a verified guest")
		}
		if listing.MinGuestRating > 0 && profile.Rating < listing.MinGuestRating {
			res.fail("host requires a guest rating of at least %.1f", listing.MinGuestRating)
		}
	}

	return res, nil
}

// CalculatePrice считает цену по ставке владельца с его множителями.
// Если ставка владельца не задана, используется часовая ставка из иерархии.
func (h *Hosted) CalculatePrice(ctx context.Context, basePrice float64, params pricing.PriceParams) (float64, error) {
	listing, err := h.store.GetListingBySpot(ctx, params.SpotID)
	if err != nil {
		return 0, fmt.Errorf("get listing: %w", err)
	}

	hourly := listing.HourlyRate
	if hourly <= 0 {
		hourly = params.HourlyRate
	}
	price := hourly * float64(params.DurationMinutes) / 60

	minute := pricing.MinuteOfDay(params.Start)
	for _, tr := range listing.TimeRates {
		if tr.StartMinute <= minute && minute < tr.EndMinute {
			price *= tr.Multiplier
			break
		}
	}

	if isWeekend(params.Start) && listing.WeekendMultiplier > 0 {
		price *= listing.WeekendMultiplier
	}

	for _, sr := range listing.SeasonalRates {
		if !params.Start.Before(sr.Start) && !params.Start.After(sr.End) {
			price *= sr.Multiplier
			break
		}
	}

	return pricing.Round2(price), nil
}

// AccessInstructions возвращает инструкции владельца.
func (h *Hosted) AccessInstructions(ctx context.Context, spotID string) (string, error) {
	listing, err := h.store.GetListingBySpot(ctx, spotID)
	if err != nil {
		return "", fmt.Errorf("get listing: %w", err)
	}
	if listing.AccessInstructions == "" {
		return defaultHostedInstructions, nil
	}
	return listing.AccessInstructions, nil
}

// coveredBySchedule проверяет, что каждая суточная часть интервала
// целиком попадает в одно окно расписания для своего дня недели.
func coveredBySchedule(schedule []model.WeeklyWindow, start, end time.Time) bool {
	cur := start
	for cur.Before(end) {
		next := startOfDay(cur).AddDate(0, 0, 1)
		segEnd := end
		if next.Before(end) {
			segEnd = next
		}

		from := pricing.MinuteOfDay(cur)
		to, _ := endMinute(cur, segEnd)
		day := int(cur.Weekday())

		covered := false
		for _, w := range schedule {
			if w.DayOfWeek == day && w.StartMinute <= from && to <= w.EndMinute {
				covered = true
				break
			}
		}
		if !covered {
			return false
		}
		cur = segEnd
	}
	return true
}
