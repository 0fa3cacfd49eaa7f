package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/parkingtype"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

// Понедельник, 19 октября 2026, 12:00 UTC.
var now = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

// Вечер того же понедельника, попадает в вечерний тариф.
var evening = time.Date(2026, time.October, 19, 18, 30, 0, 0, time.UTC)

type memStore struct {
	users    map[string]model.User
	vehicles map[string]model.Vehicle
	spots    map[string]model.Spot
	listings map[string]model.HostedListing
	bookings map[string]model.Booking
	payouts  []model.Payout
	events   map[string]bool

	createErr error
	// beforeUpdate вызывается один раз перед ближайшим UpdateBooking.
	beforeUpdate func(s *memStore)
}

func newMemStore() *memStore {
	cfg := model.PricingConfig{
		BaseRate:         50,
		VATRate:          0.12,
		VehicleTypeRates: []model.VehicleTypeRate{{VehicleType: model.VehicleCar, Rate: 60}},
		TimeBasedRates: []model.TimeBasedRate{
			{DayOfWeek: int(time.Monday), StartMinute: 17 * 60, EndMinute: 20 * 60, Multiplier: 1.2, Name: "evening"},
		},
	}
	return &memStore{
		users: map[string]model.User{"user-1": {ID: "user-1"}, "user-2": {ID: "user-2"}},
		vehicles: map[string]model.Vehicle{
			"car-1": {ID: "car-1", UserID: "user-1", Type: model.VehicleCar, PlateNumber: "ABC1234"},
			"car-2": {ID: "car-2", UserID: "user-2", Type: model.VehicleCar, PlateNumber: "XYZ9876"},
		},
		spots: map[string]model.Spot{
			"spot-1": {ID: "spot-1", ZoneID: "zone-1", Status: model.SpotStatusAvailable, VehicleType: model.VehicleCar, Pricing: &cfg},
		},
		listings: map[string]model.HostedListing{},
		bookings: map[string]model.Booking{},
		events:   map[string]bool{},
	}
}

func (s *memStore) GetUser(ctx context.Context, id string) (model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (s *memStore) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok {
		return model.Vehicle{}, model.ErrNotFound
	}
	return v, nil
}

func (s *memStore) GetSpot(ctx context.Context, id string) (model.Spot, error) {
	sp, ok := s.spots[id]
	if !ok {
		return model.Spot{}, model.ErrNotFound
	}
	return sp, nil
}

func (s *memStore) GetSpotHierarchy(ctx context.Context, spotID string) (model.SpotHierarchy, error) {
	sp, err := s.GetSpot(ctx, spotID)
	if err != nil {
		return model.SpotHierarchy{}, err
	}
	return model.SpotHierarchy{Spot: sp}, nil
}

func (s *memStore) GetListingBySpot(ctx context.Context, spotID string) (model.HostedListing, error) {
	l, ok := s.listings[spotID]
	if !ok {
		return model.HostedListing{}, model.ErrNotFound
	}
	return l, nil
}

func (s *memStore) CreateBooking(ctx context.Context, b model.Booking) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *memStore) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	return b, nil
}

func (s *memStore) UpdateBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	if hook := s.beforeUpdate; hook != nil {
		s.beforeUpdate = nil
		hook(s)
	}
	cur, ok := s.bookings[b.ID]
	if !ok {
		return model.Booking{}, model.ErrNotFound
	}
	if cur.Version != b.Version {
		return model.Booking{}, model.ErrStaleWrite
	}
	b.Version++
	s.bookings[b.ID] = b
	return b, nil
}

func (s *memStore) ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	var res []model.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			res = append(res, b)
		}
	}
	return res, nil
}

func (s *memStore) CreatePayout(ctx context.Context, p model.Payout) error {
	s.payouts = append(s.payouts, p)
	return nil
}

func (s *memStore) PaymentEventProcessed(ctx context.Context, intentID string, kind model.PaymentEventKind) (bool, error) {
	return s.events[intentID+"/"+string(kind)], nil
}

func (s *memStore) RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) error {
	s.events[ev.IntentID+"/"+string(ev.Kind)] = true
	return nil
}

type fakeAvailability struct {
	unavailable bool
	reserveErr  error
	occupyErr   error
	reserved    []string
	released    []string
	occupied    []string
	consumed    []string
}

func (f *fakeAvailability) CheckAvailability(ctx context.Context, spotID string, start, end time.Time) (bool, error) {
	return !f.unavailable, nil
}

func (f *fakeAvailability) ReserveSpot(ctx context.Context, spotID, userID string, start, end time.Time) (model.SpotReservation, error) {
	if f.reserveErr != nil {
		return model.SpotReservation{}, f.reserveErr
	}
	f.reserved = append(f.reserved, spotID)
	return model.SpotReservation{ID: "hold-1", SpotID: spotID, UserID: userID, StartTime: start, EndTime: end}, nil
}

func (f *fakeAvailability) ReleaseHold(ctx context.Context, b model.Booking) error {
	f.released = append(f.released, b.SpotID)
	return nil
}

func (f *fakeAvailability) MarkOccupied(ctx context.Context, spotID string) error {
	if f.occupyErr != nil {
		return f.occupyErr
	}
	f.occupied = append(f.occupied, spotID)
	return nil
}

func (f *fakeAvailability) ConsumeHold(ctx context.Context, spotID, userID string) error {
	f.consumed = append(f.consumed, spotID+"/"+userID)
	return nil
}

type fakeGateway struct {
	chargeErr error
	refundErr error
	charges   []float64
	refunds   []float64
}

func (g *fakeGateway) Charge(ctx context.Context, bookingID string, amount float64) (string, error) {
	if g.chargeErr != nil {
		return "", g.chargeErr
	}
	g.charges = append(g.charges, amount)
	return "pi_" + bookingID, nil
}

func (g *fakeGateway) Refund(ctx context.Context, intentID string, amount float64) error {
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunds = append(g.refunds, amount)
	return nil
}

type recordingNotifier struct {
	sent []model.NotificationType
}

func (n *recordingNotifier) Notify(ctx context.Context, msg model.Notification) {
	n.sent = append(n.sent, msg.Type)
}

type fixedOccupancy float64

func (o fixedOccupancy) OccupancyRate(ctx context.Context, zoneID string) (float64, error) {
	return float64(o), nil
}

type rejectingPolicy struct{}

func (rejectingPolicy) Type() model.ParkingType { return model.ParkingTypeStreet }

func (rejectingPolicy) ValidateBooking(ctx context.Context, req parkingtype.ValidationRequest) (parkingtype.ValidationResult, error) {
	return parkingtype.ValidationResult{IsValid: false, Errors: []string{"street closed for parade"}}, nil
}

func (rejectingPolicy) CalculatePrice(ctx context.Context, basePrice float64, params pricing.PriceParams) (float64, error) {
	return basePrice, nil
}

func (rejectingPolicy) AccessInstructions(ctx context.Context, spotID string) (string, error) {
	return "", nil
}

type fixture struct {
	store    *memStore
	avail    *fakeAvailability
	gateway  *fakeGateway
	notifier *recordingNotifier
	manager  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    newMemStore(),
		avail:    &fakeAvailability{},
		gateway:  &fakeGateway{},
		notifier: &recordingNotifier{},
	}
	quoter := pricing.NewService(f.store, fixedOccupancy(95), nil, time.UTC)
	f.manager = NewManager(f.store, f.avail, quoter, parkingtype.NewRegistry(rejectingPolicy{}),
		f.gateway, f.notifier, nil, Options{PlatformFeeRate: 0.40})
	f.manager.now = func() time.Time { return now }
	return f
}

func (f *fixture) create(t *testing.T) model.Booking {
	t.Helper()
	b, err := f.manager.Create(context.Background(), CreateRequest{
		UserID:    "user-1",
		SpotID:    "spot-1",
		VehicleID: "car-1",
		Start:     evening,
		End:       evening.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	return b
}

func TestCreate_EndToEndScenario(t *testing.T) {
	f := newFixture(t)

	b := f.create(t)

	assert.Equal(t, model.BookingStatusPending, b.Status)
	assert.Equal(t, model.PaymentStatusPending, b.PaymentStatus)
	assert.Equal(t, 216.0, b.Amount)
	assert.Equal(t, 25.92, b.VATAmount)
	assert.Equal(t, 241.92, b.TotalAmount)
	assert.Equal(t, 0.12, b.VATRate)
	assert.Equal(t, "pi_"+b.ID, b.PaymentIntentID)
	assert.Equal(t, now, b.CreatedAt)

	assert.Equal(t, []string{"spot-1"}, f.avail.reserved)
	assert.Equal(t, []float64{241.92}, f.gateway.charges)

	stored, err := f.manager.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, stored)
}

func TestCreate_WithDiscounts(t *testing.T) {
	f := newFixture(t)

	b, err := f.manager.Create(context.Background(), CreateRequest{
		UserID:    "user-1",
		SpotID:    "spot-1",
		VehicleID: "car-1",
		Start:     evening,
		End:       evening.Add(2 * time.Hour),
		Discounts: []model.DiscountRequest{
			{Type: model.DiscountPromo, Value: 10},
			{Type: model.DiscountSenior},
			{Type: model.DiscountPromo, Value: 16},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []model.AppliedDiscount{
		{Type: model.DiscountPromo, Amount: 16},
		{Type: model.DiscountSenior, Amount: 43.2, IsVATExempt: true},
	}, b.Discounts)
	assert.Zero(t, b.VATAmount)
	assert.Equal(t, 156.8, b.TotalAmount)
}

func TestCreate_RejectsUnknownDiscount(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Create(context.Background(), CreateRequest{
		UserID:    "user-1",
		SpotID:    "spot-1",
		VehicleID: "car-1",
		Start:     evening,
		End:       evening.Add(2 * time.Hour),
		Discounts: []model.DiscountRequest{{Type: "student", Value: 5}},
	})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, f.avail.reserved)
}

func TestCreate_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateRequest, s *memStore)
	}{
		{name: "end before start", mutate: func(r *CreateRequest, s *memStore) { r.End = r.Start.Add(-time.Hour) }},
		{name: "in the past", mutate: func(r *CreateRequest, s *memStore) { r.Start, r.End = now.Add(-time.Hour), now.Add(time.Hour) }},
		{name: "too short", mutate: func(r *CreateRequest, s *memStore) { r.End = r.Start.Add(29 * time.Minute) }},
		{name: "too far ahead", mutate: func(r *CreateRequest, s *memStore) {
			r.Start = now.AddDate(0, 0, 31)
			r.End = r.Start.Add(time.Hour)
		}},
		{name: "unknown user", mutate: func(r *CreateRequest, s *memStore) { r.UserID = "ghost" }},
		{name: "unknown spot", mutate: func(r *CreateRequest, s *memStore) { r.SpotID = "nowhere" }},
		{name: "foreign vehicle", mutate: func(r *CreateRequest, s *memStore) { r.VehicleID = "car-2" }},
		{name: "maintenance", mutate: func(r *CreateRequest, s *memStore) {
			sp := s.spots["spot-1"]
			sp.Status = model.SpotStatusMaintenance
			s.spots["spot-1"] = sp
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := CreateRequest{UserID: "user-1", SpotID: "spot-1", VehicleID: "car-1", Start: evening, End: evening.Add(2 * time.Hour)}
			tt.mutate(&req, f.store)

			_, err := f.manager.Create(context.Background(), req)
			require.Error(t, err)
			assert.True(t, model.IsValidation(err), "got %v", err)
			assert.Empty(t, f.avail.reserved)
			assert.Empty(t, f.store.bookings)
		})
	}
}

func TestCreate_Unavailable(t *testing.T) {
	f := newFixture(t)
	f.avail.unavailable = true

	_, err := f.manager.Create(context.Background(), CreateRequest{UserID: "user-1", SpotID: "spot-1", VehicleID: "car-1", Start: evening, End: evening.Add(time.Hour)})
	assert.ErrorIs(t, err, model.ErrAvailabilityConflict)
	assert.Empty(t, f.store.bookings)
}

func TestCreate_HoldConflict(t *testing.T) {
	f := newFixture(t)
	f.avail.reserveErr = model.ErrAvailabilityConflict

	_, err := f.manager.Create(context.Background(), CreateRequest{UserID: "user-1", SpotID: "spot-1", VehicleID: "car-1", Start: evening, End: evening.Add(time.Hour)})
	assert.ErrorIs(t, err, model.ErrAvailabilityConflict)
	assert.Empty(t, f.store.bookings)
}

func TestCreate_PolicyRejects(t *testing.T) {
	f := newFixture(t)
	sp := f.store.spots["spot-1"]
	sp.ParkingType = model.ParkingTypeStreet
	f.store.spots["spot-1"] = sp

	_, err := f.manager.Create(context.Background(), CreateRequest{UserID: "user-1", SpotID: "spot-1", VehicleID: "car-1", Start: evening, End: evening.Add(time.Hour)})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"street closed for parade"}, verr.Errors)
	assert.Empty(t, f.avail.reserved)
}

func TestCreate_PersistFailureReleasesSpot(t *testing.T) {
	f := newFixture(t)
	f.store.createErr = errors.New("connection reset by peer")

	_, err := f.manager.Create(context.Background(), CreateRequest{UserID: "user-1", SpotID: "spot-1", VehicleID: "car-1", Start: evening, End: evening.Add(time.Hour)})
	var perr *model.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []string{"spot-1"}, f.avail.released)
	assert.Empty(t, f.gateway.charges)
}

func TestCreate_PaymentFailureKeepsPending(t *testing.T) {
	f := newFixture(t)
	f.gateway.chargeErr = &model.PaymentError{Op: "charge", Err: errors.New("gateway down")}

	b := f.create(t)

	assert.Equal(t, model.BookingStatusPending, b.Status)
	assert.Empty(t, b.PaymentIntentID)
	assert.Equal(t, []model.NotificationType{model.NotificationPaymentFailed}, f.notifier.sent)
	assert.Empty(t, f.avail.released)
}

func TestLifecycle_HostedSpot(t *testing.T) {
	f := newFixture(t)
	sp := f.store.spots["spot-1"]
	sp.ParkingType = model.ParkingTypeHosted
	f.store.spots["spot-1"] = sp
	f.store.listings["spot-1"] = model.HostedListing{ID: "l-1", SpotID: "spot-1", HostID: "host-1", IsActive: true}

	b := f.create(t)
	ctx := context.Background()

	b, err := f.manager.MarkPaymentPaid(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, b.PaymentStatus)
	assert.Equal(t, model.BookingStatusConfirmed, b.Status)
	assert.Equal(t, []string{"spot-1/user-1"}, f.avail.consumed)

	_, err = f.manager.Confirm(ctx, b.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	b, err = f.manager.Start(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusActive, b.Status)
	assert.Equal(t, []string{"spot-1"}, f.avail.occupied)

	b, err = f.manager.Complete(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCompleted, b.Status)
	assert.Equal(t, []string{"spot-1"}, f.avail.released)

	require.Len(t, f.store.payouts, 1)
	p := f.store.payouts[0]
	assert.Equal(t, "host-1", p.HostID)
	assert.Equal(t, 216.0, p.Gross)
	assert.Equal(t, 86.4, p.PlatformFee)
	assert.Equal(t, 129.6, p.HostNet)
	assert.NotEmpty(t, p.ID)

	assert.Equal(t, []model.NotificationType{
		model.NotificationPaymentConfirmed,
		model.NotificationBookingConfirmed,
		model.NotificationBookingStarted,
		model.NotificationBookingCompleted,
	}, f.notifier.sent)

	_, err = f.manager.Cancel(ctx, b.ID, "too late")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestComplete_StandardSpotHasNoPayout(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	ctx := context.Background()

	_, err := f.manager.Complete(ctx, b.ID)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = f.manager.Confirm(ctx, b.ID)
	require.NoError(t, err)
	_, err = f.manager.Start(ctx, b.ID)
	require.NoError(t, err)
	_, err = f.manager.Complete(ctx, b.ID)
	require.NoError(t, err)

	assert.Empty(t, f.store.payouts)
}

func TestStart_RevertsWhenSpotWriteFails(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	ctx := context.Background()

	_, err := f.manager.Confirm(ctx, b.ID)
	require.NoError(t, err)

	f.avail.occupyErr = errors.New("spot update failed")
	_, err = f.manager.Start(ctx, b.ID)
	require.Error(t, err)

	stored, err := f.manager.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, stored.Status)
	assert.Nil(t, stored.StartedAt)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)

		b, err := f.manager.Cancel(ctx, b.ID, "plans changed")
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusCancelled, b.Status)
		assert.Equal(t, model.PaymentStatusPending, b.PaymentStatus)
		assert.Equal(t, []string{"spot-1"}, f.avail.released)
		assert.Empty(t, f.gateway.refunds)
	})

	t.Run("paid before start refunds in full", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)
		_, err := f.manager.MarkPaymentPaid(ctx, b.ID)
		require.NoError(t, err)

		b, err = f.manager.Cancel(ctx, b.ID, "plans changed")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusRefunded, b.PaymentStatus)
		assert.Equal(t, 241.92, b.RefundAmount)
		assert.Equal(t, []float64{241.92}, f.gateway.refunds)
	})

	t.Run("paid after start refunds nothing", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)
		_, err := f.manager.MarkPaymentPaid(ctx, b.ID)
		require.NoError(t, err)
		_, err = f.manager.Start(ctx, b.ID)
		require.NoError(t, err)

		b, err = f.manager.Cancel(ctx, b.ID, "left early")
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusRefunded, b.PaymentStatus)
		assert.Zero(t, b.RefundAmount)
		assert.Empty(t, f.gateway.refunds)
	})

	t.Run("refund failure leaves booking unchanged", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)
		_, err := f.manager.MarkPaymentPaid(ctx, b.ID)
		require.NoError(t, err)
		f.gateway.refundErr = &model.PaymentError{Op: "refund", Err: errors.New("declined")}

		_, err = f.manager.Cancel(ctx, b.ID, "plans changed")
		var perr *model.PaymentError
		require.ErrorAs(t, err, &perr)

		stored, err := f.manager.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusConfirmed, stored.Status)
		assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
		assert.Empty(t, f.avail.released)
		assert.Contains(t, f.notifier.sent, model.NotificationPaymentFailed)
	})
}

func TestCancel_RereadsPaymentAfterConcurrentCallback(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	ctx := context.Background()

	// оплата приходит между чтением и записью отмены
	f.store.beforeUpdate = func(s *memStore) {
		cur := s.bookings[b.ID]
		paid, err := MarkPaid(cur, now)
		require.NoError(t, err)
		paid.Version++
		s.bookings[b.ID] = paid
	}

	got, err := f.manager.Cancel(ctx, b.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, got.Status)
	assert.Equal(t, model.PaymentStatusRefunded, got.PaymentStatus)
	assert.Equal(t, 241.92, got.RefundAmount)
	assert.Equal(t, []float64{241.92}, f.gateway.refunds)
}

func TestMarkPaymentPaid(t *testing.T) {
	ctx := context.Background()

	t.Run("twice", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)
		_, err := f.manager.MarkPaymentPaid(ctx, b.ID)
		require.NoError(t, err)
		_, err = f.manager.MarkPaymentPaid(ctx, b.ID)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	})

	t.Run("after cancel refunds immediately", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)
		_, err := f.manager.Cancel(ctx, b.ID, "plans changed")
		require.NoError(t, err)

		b, err = f.manager.MarkPaymentPaid(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusCancelled, b.Status)
		assert.Equal(t, model.PaymentStatusRefunded, b.PaymentStatus)
		assert.Equal(t, []float64{241.92}, f.gateway.refunds)
		assert.Empty(t, f.avail.consumed)
	})

	t.Run("refund unpaid", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)
		_, err := f.manager.MarkPaymentRefunded(ctx, b.ID, 10)
		assert.ErrorIs(t, err, model.ErrInvalidTransition)
	})
}

func TestManager_Extend(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	ctx := context.Background()

	_, err := f.manager.Extend(ctx, b.ID, b.EndTime.Add(time.Hour))
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = f.manager.Confirm(ctx, b.ID)
	require.NoError(t, err)

	_, err = f.manager.Extend(ctx, b.ID, b.EndTime)
	assert.True(t, model.IsValidation(err))

	f.avail.unavailable = true
	_, err = f.manager.Extend(ctx, b.ID, b.EndTime.Add(time.Hour))
	assert.ErrorIs(t, err, model.ErrAvailabilityConflict)
	f.avail.unavailable = false

	// продление 20:30–21:30 вне вечернего тарифа: 60 × 1.5 = 90
	got, err := f.manager.Extend(ctx, b.ID, b.EndTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, b.EndTime.Add(time.Hour), got.EndTime)
	assert.Equal(t, 306.0, got.Amount)
	assert.Equal(t, 36.72, got.VATAmount)
	assert.Equal(t, 342.72, got.TotalAmount)
	assert.Contains(t, f.notifier.sent, model.NotificationBookingExtended)
}

func TestDiscountsThroughManager(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	ctx := context.Background()

	got, err := f.manager.AddDiscount(ctx, b.ID, model.DiscountRequest{Type: model.DiscountPWD})
	require.NoError(t, err)
	assert.Equal(t, []model.AppliedDiscount{{Type: model.DiscountPWD, Amount: 43.2, IsVATExempt: true}}, got.Discounts)
	assert.Zero(t, got.VATAmount)
	assert.Equal(t, 172.8, got.TotalAmount)

	unchanged, err := f.manager.AddDiscount(ctx, b.ID, model.DiscountRequest{Type: model.DiscountPromo})
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, 172.8, unchanged.TotalAmount)

	got, err = f.manager.RemoveDiscount(ctx, b.ID, model.DiscountPWD)
	require.NoError(t, err)
	assert.Equal(t, 241.92, got.TotalAmount)
}

func TestHandlePaymentEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeded is idempotent", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)
		ev := model.PaymentEvent{EventID: "evt_1", IntentID: b.PaymentIntentID, BookingID: b.ID, Kind: model.PaymentEventSucceeded}

		require.NoError(t, f.manager.HandlePaymentEvent(ctx, ev))
		require.NoError(t, f.manager.HandlePaymentEvent(ctx, ev))

		stored, err := f.manager.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPaid, stored.PaymentStatus)
		assert.Equal(t, model.BookingStatusConfirmed, stored.Status)
		assert.Len(t, f.avail.consumed, 1)
	})

	t.Run("already applied transition is accepted", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)
		_, err := f.manager.MarkPaymentPaid(ctx, b.ID)
		require.NoError(t, err)

		ev := model.PaymentEvent{EventID: "evt_2", IntentID: b.PaymentIntentID, BookingID: b.ID, Kind: model.PaymentEventSucceeded}
		assert.NoError(t, f.manager.HandlePaymentEvent(ctx, ev))
	})

	t.Run("refunded", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)
		_, err := f.manager.MarkPaymentPaid(ctx, b.ID)
		require.NoError(t, err)

		ev := model.PaymentEvent{EventID: "evt_3", IntentID: b.PaymentIntentID, BookingID: b.ID, Kind: model.PaymentEventRefunded}
		require.NoError(t, f.manager.HandlePaymentEvent(ctx, ev))

		stored, err := f.manager.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusRefunded, stored.PaymentStatus)
		assert.Equal(t, 241.92, stored.RefundAmount)
	})

	t.Run("failed notifies and keeps state", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)

		ev := model.PaymentEvent{EventID: "evt_4", IntentID: b.PaymentIntentID, BookingID: b.ID, Kind: model.PaymentEventFailed, Reason: "card declined"}
		require.NoError(t, f.manager.HandlePaymentEvent(ctx, ev))

		stored, err := f.manager.Get(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusPending, stored.PaymentStatus)
		assert.Equal(t, []model.NotificationType{model.NotificationPaymentFailed}, f.notifier.sent)
	})

	t.Run("intent mismatch", func(t *testing.T) {
		f := newFixture(t)
		b := f.create(t)

		ev := model.PaymentEvent{EventID: "evt_5", IntentID: "pi_other", BookingID: b.ID, Kind: model.PaymentEventSucceeded}
		err := f.manager.HandlePaymentEvent(ctx, ev)
		assert.True(t, model.IsValidation(err))
	})

	t.Run("unknown booking", func(t *testing.T) {
		f := newFixture(t)
		ev := model.PaymentEvent{EventID: "evt_6", IntentID: "pi_x", BookingID: "missing", Kind: model.PaymentEventSucceeded}
		assert.ErrorIs(t, f.manager.HandlePaymentEvent(ctx, ev), model.ErrNotFound)
	})
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	f.create(t)

	list, err := f.manager.ListForUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.manager.ListForUser(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Empty(t, list)
}
