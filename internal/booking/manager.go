package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/parkingtype"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

const (
	minDuration        = 30 * time.Minute
	maxAdvance         = 30 * 24 * time.Hour
	defaultPlatformFee = 0.40
	maxUpdateAttempts  = 2
)

// Store описывает хранилище бронирований и связанных сущностей.
type Store interface {
	GetUser(ctx context.Context, id string) (model.User, error)
	GetVehicle(ctx context.Context, id string) (model.Vehicle, error)
	GetSpot(ctx context.Context, id string) (model.Spot, error)
	GetListingBySpot(ctx context.Context, spotID string) (model.HostedListing, error)
	CreateBooking(ctx context.Context, b model.Booking) error
	GetBooking(ctx context.Context, id string) (model.Booking, error)
	// UpdateBooking сохраняет b, если версия в хранилище равна b.Version,
	// и возвращает запись с новой версией. Иначе возвращает model.ErrStaleWrite.
	UpdateBooking(ctx context.Context, b model.Booking) (model.Booking, error)
	ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error)
	CreatePayout(ctx context.Context, p model.Payout) error
	PaymentEventProcessed(ctx context.Context, intentID string, kind model.PaymentEventKind) (bool, error)
	RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) error
}

// Availability - операции с доступностью и статусом мест.
type Availability interface {
	CheckAvailability(ctx context.Context, spotID string, start, end time.Time) (bool, error)
	ReserveSpot(ctx context.Context, spotID, userID string, start, end time.Time) (model.SpotReservation, error)
	ReleaseHold(ctx context.Context, b model.Booking) error
	MarkOccupied(ctx context.Context, spotID string) error
	ConsumeHold(ctx context.Context, spotID, userID string) error
}

// Quoter рассчитывает стоимость интервала.
type Quoter interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (pricing.Quote, error)
}

// PolicyLookup находит политику типа парковки.
type PolicyLookup interface {
	Lookup(pt model.ParkingType) (parkingtype.Policy, bool)
}

// PaymentGateway инициирует списания и возвраты.
type PaymentGateway interface {
	Charge(ctx context.Context, bookingID string, amount float64) (string, error)
	Refund(ctx context.Context, intentID string, amount float64) error
}

// Notifier доставляет уведомления пользователям. Ошибки доставки обрабатывает сам.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification)
}

// Options - настраиваемые параметры менеджера.
type Options struct {
	// PlatformFeeRate - доля платформы в выручке частных мест.
	PlatformFeeRate float64
	// Location - часовой пояс для правил по времени суток.
	Location *time.Location
}

// Manager оркестрирует жизненный цикл бронирований.
type Manager struct {
	store    Store
	avail    Availability
	quoter   Quoter
	policies PolicyLookup
	gateway  PaymentGateway
	notifier Notifier
	logger   *zap.Logger
	feeRate  float64
	loc      *time.Location
	now      func() time.Time
}

// NewManager создаёт менеджер бронирований. policies, gateway и notifier могут быть nil.
func NewManager(store Store, avail Availability, quoter Quoter, policies PolicyLookup,
	gateway PaymentGateway, notifier Notifier, logger *zap.Logger, opts Options) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PlatformFeeRate <= 0 || opts.PlatformFeeRate >= 1 {
		opts.PlatformFeeRate = defaultPlatformFee
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Manager{
		store:    store,
		avail:    avail,
		quoter:   quoter,
		policies: policies,
		gateway:  gateway,
		notifier: notifier,
		logger:   logger,
		feeRate:  opts.PlatformFeeRate,
		loc:      opts.Location,
		now:      time.Now,
	}
}

// CreateRequest - запрос на создание брони.
type CreateRequest struct {
	UserID    string
	SpotID    string
	VehicleID string
	Start     time.Time
	End       time.Time
	Discounts []model.DiscountRequest
}

// Create проверяет запрос, удерживает место, рассчитывает цену, сохраняет бронь
// в состоянии pending/pending и инициирует оплату. Если сохранить бронь не удалось,
// место освобождается. Сбой инициации оплаты оставляет бронь в pending.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (model.Booking, error) {
	now := m.now()

	if errs := validateWindow(req.Start, req.End, now); len(errs) > 0 {
		return model.Booking{}, model.NewValidationError(errs...)
	}

	spot, vehicle, err := m.loadParticipants(ctx, req)
	if err != nil {
		return model.Booking{}, err
	}

	ok, err := m.avail.CheckAvailability(ctx, spot.ID, req.Start, req.End)
	if err != nil {
		return model.Booking{}, fmt.Errorf("check availability: %w", err)
	}
	if !ok {
		return model.Booking{}, model.ErrAvailabilityConflict
	}

	if err := m.validatePolicy(ctx, spot, vehicle, req, now); err != nil {
		return model.Booking{}, err
	}

	quote, err := m.quoter.Quote(ctx, pricing.QuoteRequest{
		SpotID:      spot.ID,
		UserID:      req.UserID,
		VehicleType: vehicle.Type,
		Start:       req.Start,
		End:         req.End,
		Discounts:   req.Discounts,
	})
	if err != nil {
		return model.Booking{}, fmt.Errorf("quote: %w", err)
	}

	if _, err := m.avail.ReserveSpot(ctx, spot.ID, req.UserID, req.Start, req.End); err != nil {
		return model.Booking{}, err
	}

	b := model.Booking{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		SpotID:        spot.ID,
		VehicleID:     vehicle.ID,
		StartTime:     req.Start,
		EndTime:       req.End,
		Status:        model.BookingStatusPending,
		PaymentStatus: model.PaymentStatusPending,
		Amount:        quote.Amount,
		Discounts:     quote.Discounts,
		VATRate:       quote.VATRate,
		VATAmount:     quote.VATAmount,
		TotalAmount:   quote.TotalAmount,
		CreatedAt:     now,
	}

	if err := m.store.CreateBooking(ctx, b); err != nil {
		if rerr := m.avail.ReleaseHold(ctx, b); rerr != nil {
			m.logger.Error("release spot after failed booking insert",
				zap.String("spotID", spot.ID), zap.Error(rerr))
		}
		return model.Booking{}, &model.PersistenceError{Op: "create booking", Err: err}
	}

	return m.initiatePayment(ctx, b), nil
}

func validateWindow(start, end, now time.Time) []string {
	var errs []string
	if !start.Before(end) {
		return append(errs, "start time must be before end time")
	}
	if start.Before(now) {
		errs = append(errs, "start time must not be in the past")
	}
	if end.Sub(start) < minDuration {
		errs = append(errs, fmt.Sprintf("minimum booking duration is %d minutes", int(minDuration/time.Minute)))
	}
	if start.Sub(now) > maxAdvance {
		errs = append(errs, "bookings can be made at most 30 days in advance")
	}
	return errs
}

func (m *Manager) loadParticipants(ctx context.Context, req CreateRequest) (model.Spot, model.Vehicle, error) {
	var errs []string

	if _, err := m.store.GetUser(ctx, req.UserID); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			return model.Spot{}, model.Vehicle{}, fmt.Errorf("get user: %w", err)
		}
		errs = append(errs, "user not found")
	}

	spot, err := m.store.GetSpot(ctx, req.SpotID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		errs = append(errs, "spot not found")
	case err != nil:
		return model.Spot{}, model.Vehicle{}, fmt.Errorf("get spot: %w", err)
	case spot.Status == model.SpotStatusMaintenance:
		errs = append(errs, "spot is under maintenance")
	}

	vehicle, err := m.store.GetVehicle(ctx, req.VehicleID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		errs = append(errs, "vehicle not found")
	case err != nil:
		return model.Spot{}, model.Vehicle{}, fmt.Errorf("get vehicle: %w", err)
	case vehicle.UserID != req.UserID:
		errs = append(errs, "vehicle does not belong to the user")
	}

	if len(errs) > 0 {
		return model.Spot{}, model.Vehicle{}, model.NewValidationError(errs...)
	}
	return spot, vehicle, nil
}

func (m *Manager) validatePolicy(ctx context.Context, spot model.Spot, vehicle model.Vehicle, req CreateRequest, now time.Time) error {
	if m.policies == nil {
		return nil
	}
	p, ok := m.policies.Lookup(spot.ParkingType)
	if !ok {
		return nil
	}

	res, err := p.ValidateBooking(ctx, parkingtype.ValidationRequest{
		UserID:          req.UserID,
		SpotID:          spot.ID,
		VehicleType:     vehicle.Type,
		VehicleHeightCm: vehicle.HeightCm,
		Start:           req.Start.In(m.loc),
		End:             req.End.In(m.loc),
		Now:             now.In(m.loc),
	})
	if err != nil {
		return fmt.Errorf("%s policy: %w", spot.ParkingType, err)
	}
	return res.Err()
}

func (m *Manager) initiatePayment(ctx context.Context, b model.Booking) model.Booking {
	if m.gateway == nil {
		return b
	}

	intentID, err := m.gateway.Charge(ctx, b.ID, b.TotalAmount)
	if err != nil {
		m.logger.Warn("payment initiation failed", zap.String("bookingID", b.ID), zap.Error(err))
		m.notify(ctx, b, model.NotificationPaymentFailed, "Payment could not be started, please retry")
		return b
	}

	b.PaymentIntentID = intentID
	saved, err := m.store.UpdateBooking(ctx, b)
	if err != nil {
		m.logger.Error("store payment intent", zap.String("bookingID", b.ID), zap.Error(err))
		return b
	}
	return saved
}

// Get возвращает бронь по идентификатору.
func (m *Manager) Get(ctx context.Context, id string) (model.Booking, error) {
	b, err := m.store.GetBooking(ctx, id)
	if err != nil {
		return model.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// ListForUser возвращает брони пользователя.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]model.Booking, error) {
	list, err := m.store.ListBookingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return list, nil
}

// update читает бронь, применяет переход и сохраняет результат.
// При гонке версий бронь перечитывается и переход повторяется.
func (m *Manager) update(ctx context.Context, id string, fn func(model.Booking) (model.Booking, error)) (before, after model.Booking, err error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		before, err = m.store.GetBooking(ctx, id)
		if err != nil {
			return before, after, fmt.Errorf("get booking: %w", err)
		}

		next, err := fn(before)
		if err != nil {
			return before, before, err
		}

		after, err = m.store.UpdateBooking(ctx, next)
		if errors.Is(err, model.ErrStaleWrite) {
			continue
		}
		if err != nil {
			return before, before, &model.PersistenceError{Op: "update booking", Err: err}
		}
		return before, after, nil
	}
	return before, before, fmt.Errorf("update booking %s: %w", id, model.ErrStaleWrite)
}

// revert возвращает сохранённую бронь к прежнему содержимому после сбоя побочного действия.
func (m *Manager) revert(ctx context.Context, saved, original model.Booking) {
	original.Version = saved.Version
	if _, err := m.store.UpdateBooking(ctx, original); err != nil {
		m.logger.Error("revert booking", zap.String("bookingID", original.ID), zap.Error(err))
	}
}

// Confirm подтверждает бронь и снимает удержание места.
func (m *Manager) Confirm(ctx context.Context, id string) (model.Booking, error) {
	_, b, err := m.update(ctx, id, func(b model.Booking) (model.Booking, error) {
		return Confirm(b, m.now())
	})
	if err != nil {
		return b, err
	}
	m.afterConfirm(ctx, b)
	return b, nil
}

func (m *Manager) afterConfirm(ctx context.Context, b model.Booking) {
	if err := m.avail.ConsumeHold(ctx, b.SpotID, b.UserID); err != nil {
		m.logger.Warn("consume reservation hold", zap.String("bookingID", b.ID), zap.Error(err))
	}
	m.notify(ctx, b, model.NotificationBookingConfirmed, "Your booking is confirmed")
}

// Start начинает парковку и помечает место занятым. Если место пометить не
// удалось, бронь возвращается в confirmed.
func (m *Manager) Start(ctx context.Context, id string) (model.Booking, error) {
	before, b, err := m.update(ctx, id, func(b model.Booking) (model.Booking, error) {
		return Start(b, m.now())
	})
	if err != nil {
		return b, err
	}

	if err := m.avail.MarkOccupied(ctx, b.SpotID); err != nil {
		m.revert(ctx, b, before)
		return before, fmt.Errorf("mark spot occupied: %w", err)
	}

	m.notify(ctx, b, model.NotificationBookingStarted, "Your parking session has started")
	return b, nil
}

// Complete завершает парковку, освобождает место и для частных мест
// сохраняет распределение выручки.
func (m *Manager) Complete(ctx context.Context, id string) (model.Booking, error) {
	before, b, err := m.update(ctx, id, func(b model.Booking) (model.Booking, error) {
		return Complete(b, m.now())
	})
	if err != nil {
		return b, err
	}

	if err := m.avail.ReleaseHold(ctx, b); err != nil {
		m.revert(ctx, b, before)
		return before, fmt.Errorf("release spot: %w", err)
	}

	if err := m.recordPayout(ctx, b); err != nil {
		return b, err
	}

	m.notify(ctx, b, model.NotificationBookingCompleted, "Your parking session is complete")
	return b, nil
}

func (m *Manager) recordPayout(ctx context.Context, b model.Booking) error {
	spot, err := m.store.GetSpot(ctx, b.SpotID)
	if err != nil {
		return fmt.Errorf("get spot: %w", err)
	}
	if spot.ParkingType != model.ParkingTypeHosted {
		return nil
	}

	listing, err := m.store.GetListingBySpot(ctx, b.SpotID)
	if err != nil {
		return fmt.Errorf("get listing: %w", err)
	}

	p := ComputePayout(b, listing.HostID, m.feeRate, m.now())
	p.ID = uuid.NewString()
	if err := m.store.CreatePayout(ctx, p); err != nil {
		return &model.PersistenceError{Op: "create payout", Err: err}
	}
	return nil
}

// Cancel отменяет бронь и освобождает место. Статус оплаты перечитывается
// непосредственно перед записью: оплаченная бронь возвращается полностью,
// если парковка не началась, и без возврата после начала.
func (m *Manager) Cancel(ctx context.Context, id, reason string) (model.Booking, error) {
	var refund float64

	_, b, err := m.update(ctx, id, func(b model.Booking) (model.Booking, error) {
		next, err := Cancel(b, reason, m.now())
		if err != nil {
			return b, err
		}
		refund = 0
		if b.PaymentStatus != model.PaymentStatusPaid {
			return next, nil
		}

		refund = RefundAmount(b)
		if err := m.refund(ctx, b, refund); err != nil {
			return b, err
		}
		return MarkRefunded(next, refund)
	})
	if err != nil {
		var perr *model.PaymentError
		if errors.As(err, &perr) {
			m.notify(ctx, b, model.NotificationPaymentFailed, "Refund could not be processed")
		}
		return b, err
	}

	if err := m.avail.ReleaseHold(ctx, b); err != nil {
		return b, fmt.Errorf("release spot: %w", err)
	}

	m.notify(ctx, b, model.NotificationBookingCancelled, cancelMessage(refund))
	return b, nil
}

func cancelMessage(refund float64) string {
	if refund > 0 {
		return fmt.Sprintf("Your booking was cancelled, %.2f will be refunded", refund)
	}
	return "Your booking was cancelled"
}

func (m *Manager) refund(ctx context.Context, b model.Booking, amount float64) error {
	if amount <= 0 || m.gateway == nil || b.PaymentIntentID == "" {
		return nil
	}
	return m.gateway.Refund(ctx, b.PaymentIntentID, amount)
}

// MarkPaymentPaid отмечает оплату брони. Бронь в pending подтверждается.
// Если бронь уже отменена, оплата сразу возвращается полностью.
func (m *Manager) MarkPaymentPaid(ctx context.Context, id string) (model.Booking, error) {
	before, b, err := m.update(ctx, id, func(b model.Booking) (model.Booking, error) {
		next, err := MarkPaid(b, m.now())
		if err != nil {
			return b, err
		}
		if next.Status != model.BookingStatusCancelled {
			return next, nil
		}
		amount := RefundAmount(next)
		if err := m.refund(ctx, next, amount); err != nil {
			return b, err
		}
		return MarkRefunded(next, amount)
	})
	if err != nil {
		return b, err
	}

	m.notify(ctx, b, model.NotificationPaymentConfirmed, "Payment received")
	if before.Status == model.BookingStatusPending && b.Status == model.BookingStatusConfirmed {
		m.afterConfirm(ctx, b)
	}
	return b, nil
}

// MarkPaymentRefunded отмечает возврат оплаты на сумму amount.
func (m *Manager) MarkPaymentRefunded(ctx context.Context, id string, amount float64) (model.Booking, error) {
	_, b, err := m.update(ctx, id, func(b model.Booking) (model.Booking, error) {
		return MarkRefunded(b, amount)
	})
	return b, err
}

// Extend продлевает бронь до newEnd. Интервал продления должен быть свободен,
// его стоимость рассчитывается отдельно и добавляется к сумме брони.
func (m *Manager) Extend(ctx context.Context, id string, newEnd time.Time) (model.Booking, error) {
	current, err := m.Get(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if err := CheckExtend(current, newEnd, m.now()); err != nil {
		return current, err
	}

	ok, err := m.avail.CheckAvailability(ctx, current.SpotID, current.EndTime, newEnd)
	if err != nil {
		return current, fmt.Errorf("check availability: %w", err)
	}
	if !ok {
		return current, model.ErrAvailabilityConflict
	}

	var vt model.VehicleType
	if v, err := m.store.GetVehicle(ctx, current.VehicleID); err == nil {
		vt = v.Type
	}

	quote, err := m.quoter.Quote(ctx, pricing.QuoteRequest{
		SpotID:      current.SpotID,
		UserID:      current.UserID,
		VehicleType: vt,
		Start:       current.EndTime,
		End:         newEnd,
	})
	if err != nil {
		return current, fmt.Errorf("quote extension: %w", err)
	}

	_, b, err := m.update(ctx, id, func(b model.Booking) (model.Booking, error) {
		if !b.EndTime.Equal(current.EndTime) {
			return b, model.NewValidationError("booking was changed, retry the extension")
		}
		return Extend(b, newEnd, quote.Amount, m.now())
	})
	if err != nil {
		return b, err
	}

	m.notify(ctx, b, model.NotificationBookingExtended,
		fmt.Sprintf("Your booking was extended until %s", newEnd.In(m.loc).Format("2006-01-02 15:04")))
	return b, nil
}

// AddDiscount применяет скидку из каталога. Сумма льготной скидки считается от суммы брони без НДС.
func (m *Manager) AddDiscount(ctx context.Context, id string, req model.DiscountRequest) (model.Booking, error) {
	_, b, err := m.update(ctx, id, func(b model.Booking) (model.Booking, error) {
		d, err := pricing.NewDiscount(req.Type, b.Amount, req.Value)
		if err != nil {
			return b, model.NewValidationError(err.Error())
		}
		return AddDiscount(b, d)
	})
	return b, err
}

// RemoveDiscount снимает скидку типа t.
func (m *Manager) RemoveDiscount(ctx context.Context, id string, t model.DiscountType) (model.Booking, error) {
	_, b, err := m.update(ctx, id, func(b model.Booking) (model.Booking, error) {
		return RemoveDiscount(b, t)
	})
	return b, err
}

// HandlePaymentEvent применяет событие платёжного шлюза. Повторное событие
// того же вида для того же намерения игнорируется.
func (m *Manager) HandlePaymentEvent(ctx context.Context, ev model.PaymentEvent) error {
	done, err := m.store.PaymentEventProcessed(ctx, ev.IntentID, ev.Kind)
	if err != nil {
		return fmt.Errorf("check payment event: %w", err)
	}
	if done {
		m.logger.Info("duplicate payment event", zap.String("intentID", ev.IntentID), zap.String("kind", string(ev.Kind)))
		return nil
	}

	b, err := m.Get(ctx, ev.BookingID)
	if err != nil {
		return err
	}
	if b.PaymentIntentID != "" && b.PaymentIntentID != ev.IntentID {
		return model.NewValidationError("payment intent does not match the booking")
	}

	switch ev.Kind {
	case model.PaymentEventSucceeded:
		_, err = m.MarkPaymentPaid(ctx, b.ID)
	case model.PaymentEventRefunded:
		amount := b.RefundAmount
		if amount == 0 {
			amount = b.TotalAmount
		}
		_, err = m.MarkPaymentRefunded(ctx, b.ID, amount)
	case model.PaymentEventFailed:
		msg := "Payment failed"
		if ev.Reason != "" {
			msg += ": " + ev.Reason
		}
		m.notify(ctx, b, model.NotificationPaymentFailed, msg)
	default:
		return model.NewValidationError(fmt.Sprintf("unknown payment event kind %q", ev.Kind))
	}

	// Событие, уже отражённое в брони, не ошибка: шлюз мог доставить его раньше другим путём.
	if err != nil && !errors.Is(err, model.ErrInvalidTransition) {
		return err
	}

	if err := m.store.RecordPaymentEvent(ctx, ev); err != nil {
		return &model.PersistenceError{Op: "record payment event", Err: err}
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, b model.Booking, t model.NotificationType, msg string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Notify(ctx, model.Notification{
		UserID:    b.UserID,
		BookingID: b.ID,
		Type:      t,
		Message:   msg,
		Timestamp: m.now(),
	})
}
