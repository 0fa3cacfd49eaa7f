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

func weekdayRegulation() *model.StreetRegulation {
	return &model.StreetRegulation{
		SpotID:                 "spot-1",
		EnforcementDays:        []int{1, 2, 3, 4, 5, 6},
		EnforcementStartMinute: 8 * 60,
		EnforcementEndMinute:   20 * 60,
		MaxDurationMinutes:     120,
		AllowedVehicleTypes:    []model.VehicleType{model.VehicleCar, model.VehicleMotorcycle},
	}
}

func TestStreet_ValidateBooking(t *testing.T) {
	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		vehicle   model.VehicleType
		wantValid bool
		wantErrs  int
	}{
		{name: "within enforcement", start: monday(9, 0), end: monday(11, 0), vehicle: model.VehicleCar, wantValid: true},
		{name: "before enforcement", start: monday(7, 0), end: monday(8, 30), vehicle: model.VehicleCar, wantErrs: 1},
		{name: "runs past enforcement", start: monday(19, 0), end: monday(20, 30), vehicle: model.VehicleCar, wantErrs: 1},
		{name: "too long", start: monday(9, 0), end: monday(12, 0), vehicle: model.VehicleCar, wantErrs: 1},
		{name: "vehicle not allowed", start: monday(9, 0), end: monday(10, 0), vehicle: model.VehicleTruck, wantErrs: 1},
		{name: "sunday", start: saturday(10, 0).AddDate(0, 0, 1), end: saturday(11, 0).AddDate(0, 0, 1), vehicle: model.VehicleCar, wantErrs: 1},
		{name: "everything wrong", start: monday(19, 0), end: monday(22, 0), vehicle: model.VehicleVan, wantErrs: 3},
	}

	s := NewStreet(&stubStore{regulation: weekdayRegulation()}, DefaultStreetPricing())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.ValidateBooking(context.Background(), ValidationRequest{
				UserID:      "user-1",
				SpotID:      "spot-1",
				VehicleType: tt.vehicle,
				Start:       tt.start,
				End:         tt.end,
				Now:         monday(6, 0),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, res.IsValid, res.Errors)
			assert.Len(t, res.Errors, tt.wantErrs)
		})
	}
}

func TestStreet_ValidateBooking_EmptyVehicleListAllowsAll(t *testing.T) {
	reg := weekdayRegulation()
	reg.AllowedVehicleTypes = nil
	s := NewStreet(&stubStore{regulation: reg}, DefaultStreetPricing())

	res, err := s.ValidateBooking(context.Background(), ValidationRequest{
		SpotID:      "spot-1",
		VehicleType: model.VehicleTruck,
		Start:       monday(9, 0),
		End:         monday(10, 0),
	})
	require.NoError(t, err)
	assert.True(t, res.IsValid)
}

func TestStreet_ValidateBooking_Permit(t *testing.T) {
	reg := weekdayRegulation()
	reg.PermitRequired = true
	reg.PermitZone = "A"

	req := ValidationRequest{
		UserID:      "user-1",
		SpotID:      "spot-1",
		VehicleType: model.VehicleCar,
		Start:       monday(9, 0),
		End:         monday(10, 0),
	}

	t.Run("missing", func(t *testing.T) {
		s := NewStreet(&stubStore{regulation: reg}, DefaultStreetPricing())
		res, err := s.ValidateBooking(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, res.IsValid)
		assert.Contains(t, res.Errors[0], "permit")
	})

	t.Run("expires mid booking", func(t *testing.T) {
		permit := &model.ParkingPermit{UserID: "user-1", Zone: "A", IsActive: true, ValidFrom: monday(0, 0), ValidUntil: monday(9, 30)}
		s := NewStreet(&stubStore{regulation: reg, permit: permit}, DefaultStreetPricing())
		res, err := s.ValidateBooking(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, res.IsValid)
	})

	t.Run("valid", func(t *testing.T) {
		permit := &model.ParkingPermit{UserID: "user-1", Zone: "A", IsActive: true, ValidFrom: monday(0, 0), ValidUntil: monday(23, 0)}
		s := NewStreet(&stubStore{regulation: reg, permit: permit}, DefaultStreetPricing())
		res, err := s.ValidateBooking(context.Background(), req)
		require.NoError(t, err)
		assert.True(t, res.IsValid, res.Errors)
	})
}

func TestStreet_ValidateBooking_Restrictions(t *testing.T) {
	store := &stubStore{
		regulation: weekdayRegulation(),
		restricts: []model.TemporaryRestriction{
			{SpotID: "spot-1", Start: monday(10, 0), End: monday(12, 0), Reason: "road works"},
			{SpotID: "spot-1", Start: monday(14, 0), End: monday(15, 0), Reason: "parade"},
		},
	}
	s := NewStreet(store, DefaultStreetPricing())

	res, err := s.ValidateBooking(context.Background(), ValidationRequest{
		SpotID:      "spot-1",
		VehicleType: model.VehicleCar,
		Start:       monday(9, 0),
		End:         monday(10, 30),
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "road works")

	// касание границы ограничения не считается пересечением
	res, err = s.ValidateBooking(context.Background(), ValidationRequest{
		SpotID:      "spot-1",
		VehicleType: model.VehicleCar,
		Start:       monday(12, 0),
		End:         monday(14, 0),
	})
	require.NoError(t, err)
	assert.True(t, res.IsValid, res.Errors)
}

func TestStreet_ValidateBooking_OvernightEnforcement(t *testing.T) {
	reg := weekdayRegulation()
	reg.EnforcementDays = nil
	reg.MaxDurationMinutes = 0
	reg.EnforcementStartMinute = 22 * 60
	reg.EnforcementEndMinute = 6 * 60
	s := NewStreet(&stubStore{regulation: reg}, DefaultStreetPricing())

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		wantErrs []string
	}{
		{name: "crosses midnight inside window", start: monday(23, 0), end: monday(23, 0).Add(6 * time.Hour)},
		{name: "early morning part", start: monday(1, 0), end: monday(5, 30)},
		{name: "ends exactly at window end", start: monday(22, 0), end: monday(22, 0).Add(8 * time.Hour)},
		{name: "daytime start", start: monday(12, 0), end: monday(13, 0), wantErrs: []string{"booking must start within enforcement hours"}},
		{name: "runs into the day", start: monday(23, 0), end: monday(23, 0).Add(8 * time.Hour), wantErrs: []string{"booking extends past enforcement hours"}},
		{name: "morning overrun", start: monday(5, 0), end: monday(7, 0), wantErrs: []string{"booking extends past enforcement hours"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.ValidateBooking(context.Background(), ValidationRequest{
				SpotID:      "spot-1",
				VehicleType: model.VehicleCar,
				Start:       tt.start,
				End:         tt.end,
			})
			require.NoError(t, err)
			if len(tt.wantErrs) == 0 {
				assert.True(t, res.IsValid, res.Errors)
				assert.Empty(t, res.Errors)
				return
			}
			assert.False(t, res.IsValid)
			assert.Equal(t, tt.wantErrs, res.Errors)
		})
	}
}

func TestStreet_ValidateBooking_NoEnforcementHours(t *testing.T) {
	reg := weekdayRegulation()
	reg.EnforcementStartMinute = 0
	reg.EnforcementEndMinute = 0
	s := NewStreet(&stubStore{regulation: reg}, DefaultStreetPricing())

	res, err := s.ValidateBooking(context.Background(), ValidationRequest{
		SpotID:      "spot-1",
		VehicleType: model.VehicleCar,
		Start:       monday(3, 0),
		End:         monday(4, 0),
	})
	require.NoError(t, err)
	assert.True(t, res.IsValid, res.Errors)
}

func TestStreet_ValidateBooking_NoRegulation(t *testing.T) {
	s := NewStreet(&stubStore{}, DefaultStreetPricing())

	res, err := s.ValidateBooking(context.Background(), ValidationRequest{SpotID: "spot-1", Start: monday(9, 0), End: monday(10, 0)})
	require.NoError(t, err)
	assert.False(t, res.IsValid)
}

func TestStreet_CalculatePrice(t *testing.T) {
	tests := []struct {
		name  string
		cfg   func(p *StreetPricing)
		start time.Time
		want  float64
	}{
		{name: "rush hour", start: monday(8, 0), want: 150},
		{name: "midday", start: monday(12, 0), want: 100},
		{name: "evening rush ends", start: monday(19, 0), want: 100},
		{name: "weekend night", start: saturday(23, 0), want: 40},
		{name: "early morning", start: monday(5, 59), want: 50},
		{name: "rush disabled", cfg: func(p *StreetPricing) { p.RushHourEnabled = false }, start: monday(8, 0), want: 100},
		{name: "weekend disabled", cfg: func(p *StreetPricing) { p.WeekendEnabled = false }, start: saturday(12, 0), want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultStreetPricing()
			if tt.cfg != nil {
				tt.cfg(&p)
			}
			s := NewStreet(&stubStore{}, p)

			got, err := s.CalculatePrice(context.Background(), 100, pricing.PriceParams{Start: tt.start, DurationMinutes: 60})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStreet_AccessInstructions(t *testing.T) {
	reg := weekdayRegulation()
	reg.AccessInstructions = "Pay at the meter"
	s := NewStreet(&stubStore{regulation: reg}, DefaultStreetPricing())

	text, err := s.AccessInstructions(context.Background(), "spot-1")
	require.NoError(t, err)
	assert.Equal(t, "Pay at the meter", text)

	_, err = NewStreet(&stubStore{}, DefaultStreetPricing()).AccessInstructions(context.Background(), "spot-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
