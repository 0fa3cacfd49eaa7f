package parkingtype

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

func activeListing() *model.HostedListing {
	return &model.HostedListing{
		ID:                 "listing-1",
		SpotID:             "spot-1",
		HostID:             "host-1",
		IsActive:           true,
		HourlyRate:         40,
		MinDurationMinutes: 60,
		MaxAdvanceDays:     14,
		Schedule: []model.WeeklyWindow{
			{DayOfWeek: int(time.Monday), StartMinute: 8 * 60, EndMinute: 20 * 60},
			{DayOfWeek: int(time.Saturday), StartMinute: 0, EndMinute: 24 * 60},
			{DayOfWeek: int(time.Sunday), StartMinute: 0, EndMinute: 12 * 60},
		},
	}
}

func TestHosted_ValidateBooking_Valid(t *testing.T) {
	h := NewHosted(&stubStore{listing: activeListing()})

	res, err := h.ValidateBooking(context.Background(), ValidationRequest{
		UserID: "user-1",
		SpotID: "spot-1",
		Start:  monday(9, 0),
		End:    monday(11, 0),
		Now:    monday(8, 0),
	})
	require.NoError(t, err)
	assert.True(t, res.IsValid, res.Errors)
	assert.Empty(t, res.Errors)
}

func TestHosted_ValidateBooking_NoListing(t *testing.T) {
	h := NewHosted(&stubStore{})

	res, err := h.ValidateBooking(context.Background(), ValidationRequest{Start: monday(9, 0), End: monday(10, 0)})
	require.NoError(t, err)
	assert.False(t, res.IsValid)
	assert.Len(t, res.Errors, 1)
}

func TestHosted_ValidateBooking_AccumulatesErrors(t *testing.T) {
	listing := activeListing()
	listing.IsActive = false
	listing.RequireVerifiedGuest = true
	listing.MinGuestRating = 4.5

	h := NewHosted(&stubStore{
		listing: listing,
		profile: &model.GuestProfile{UserID: "user-1", IsVerified: false, Rating: 3.9},
	})

	res, err := h.ValidateBooking(context.Background(), ValidationRequest{
		UserID: "user-1",
		SpotID: "spot-1",
		Start:  monday(19, 30),
		End:    monday(20, 15),
		Now:    monday(19, 0).AddDate(0, 0, -20),
	})
	require.NoError(t, err)

	assert.False(t, res.IsValid)
	// неактивно, вне расписания, короче минимума, слишком рано, не верифицирован, низкий рейтинг
	assert.Len(t, res.Errors, 6)
}

func TestCoveredBySchedule(t *testing.T) {
	schedule := activeListing().Schedule

	// суббота целиком и утро воскресенья
	assert.True(t, coveredBySchedule(schedule, saturday(20, 0), saturday(10, 0).AddDate(0, 0, 1)))
	// воскресенье после полудня не входит в расписание
	assert.False(t, coveredBySchedule(schedule, saturday(20, 0), saturday(13, 0).AddDate(0, 0, 1)))
	// вторник отсутствует в расписании
	assert.False(t, coveredBySchedule(schedule, monday(9, 0).AddDate(0, 0, 1), monday(10, 0).AddDate(0, 0, 1)))
}

func TestHosted_CalculatePrice(t *testing.T) {
	listing := activeListing()
	listing.TimeRates = []model.ListingTimeRate{{StartMinute: 17 * 60, EndMinute: 21 * 60, Multiplier: 1.5}}
	listing.WeekendMultiplier = 1.25
	listing.SeasonalRates = []model.SeasonalRate{{
		Start:      time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2026, time.October, 31, 0, 0, 0, 0, time.UTC),
		Multiplier: 2,
		Name:       "festival",
	}}
	h := NewHosted(&stubStore{listing: listing})

	tests := []struct {
		name  string
		start time.Time
		want  float64
	}{
		{name: "plain weekday morning", start: monday(9, 0), want: 80},
		{name: "weekday evening", start: monday(18, 0), want: 120},
		{name: "weekend in season", start: saturday(9, 0), want: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.CalculatePrice(context.Background(), 999, pricing.PriceParams{
				SpotID:          "spot-1",
				Start:           tt.start,
				End:             tt.start.Add(2 * time.Hour),
				DurationMinutes: 120,
				HourlyRate:      50,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHosted_CalculatePrice_FallsBackToHierarchyRate(t *testing.T) {
	listing := activeListing()
	listing.HourlyRate = 0
	h := NewHosted(&stubStore{listing: listing})

	got, err := h.CalculatePrice(context.Background(), 0, pricing.PriceParams{
		SpotID:          "spot-1",
		Start:           monday(9, 0),
		DurationMinutes: 90,
		HourlyRate:      50,
	})
	require.NoError(t, err)
	assert.Equal(t, 75.0, got)
}

func TestHosted_AccessInstructions(t *testing.T) {
	listing := activeListing()
	h := NewHosted(&stubStore{listing: listing})

	text, err := h.AccessInstructions(context.Background(), "spot-1")
	require.NoError(t, err)
	assert.Equal(t, defaultHostedInstructions, text)

	listing.AccessInstructions = "Gate code 4321"
	text, err = h.AccessInstructions(context.Background(), "spot-1")
	require.NoError(t, err)
	assert.Equal(t, "Gate code 4321", text)
}
