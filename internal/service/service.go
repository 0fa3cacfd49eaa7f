// Package service связывает доменные компоненты бронирования и проверяет права вызывающего.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbanez/park-angel-v1-sub008/internal/booking"
	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/parkingtype"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

// Bookings - операции жизненного цикла бронирования.
type Bookings interface {
	Create(ctx context.Context, req booking.CreateRequest) (model.Booking, error)
	Get(ctx context.Context, id string) (model.Booking, error)
	ListForUser(ctx context.Context, userID string) ([]model.Booking, error)
	Confirm(ctx context.Context, id string) (model.Booking, error)
	Start(ctx context.Context, id string) (model.Booking, error)
	Complete(ctx context.Context, id string) (model.Booking, error)
	Cancel(ctx context.Context, id, reason string) (model.Booking, error)
	Extend(ctx context.Context, id string, newEnd time.Time) (model.Booking, error)
	AddDiscount(ctx context.Context, id string, d model.DiscountRequest) (model.Booking, error)
	RemoveDiscount(ctx context.Context, id string, t model.DiscountType) (model.Booking, error)
	HandlePaymentEvent(ctx context.Context, ev model.PaymentEvent) error
}

// Availability отвечает на запросы доступности мест.
type Availability interface {
	CheckAvailability(ctx context.Context, spotID string, start, end time.Time) (bool, error)
}

// Pricing рассчитывает цены.
type Pricing interface {
	Quote(ctx context.Context, req pricing.QuoteRequest) (pricing.Quote, error)
	EffectivePricing(ctx context.Context, spotID string) (model.PricingConfig, error)
}

// Repository - чтение мест и проверка соединения с хранилищем.
type Repository interface {
	GetSpotHierarchy(ctx context.Context, spotID string) (model.SpotHierarchy, error)
	Ping(ctx context.Context) error
}

// PolicyLookup находит политику типа парковки.
type PolicyLookup interface {
	Lookup(pt model.ParkingType) (parkingtype.Policy, bool)
}

// Service реализует сценарии API поверх доменных компонентов.
type Service struct {
	repo     Repository
	bookings Bookings
	avail    Availability
	pricing  Pricing
	policies PolicyLookup
}

// NewService создаёт сервис.
func NewService(repo Repository, bookings Bookings, avail Availability, p Pricing, policies PolicyLookup) *Service {
	return &Service{
		repo:     repo,
		bookings: bookings,
		avail:    avail,
		pricing:  p,
		policies: policies,
	}
}

// Health проверяет доступность хранилища.
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// CreateBooking создаёт бронь от имени вызывающего. Оператор и администратор
// могут указать другого пользователя и приложить скидки.
func (s *Service) CreateBooking(ctx context.Context, id model.Identity, req booking.CreateRequest) (model.Booking, error) {
	if len(req.Discounts) > 0 && !id.IsStaff() {
		return model.Booking{}, model.ErrForbidden
	}
	if req.UserID == "" || !id.IsStaff() {
		req.UserID = id.UserID
	}
	if id.UserType == model.UserTypeOperator && (req.UserID != id.UserID || len(req.Discounts) > 0) {
		if err := s.authorizeOperator(ctx, id, req.SpotID); err != nil {
			return model.Booking{}, err
		}
	}
	return s.bookings.Create(ctx, req)
}

// GetBooking возвращает бронь, если вызывающий имеет к ней доступ.
func (s *Service) GetBooking(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if err := s.authorize(ctx, id, b); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// ListBookings возвращает брони вызывающего.
func (s *Service) ListBookings(ctx context.Context, id model.Identity) ([]model.Booking, error) {
	return s.bookings.ListForUser(ctx, id.UserID)
}

// ConfirmBooking подтверждает бронь вручную. Владелец брони подтверждает её
// только оплатой, поэтому вызов доступен администратору и оператору локации.
func (s *Service) ConfirmBooking(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error) {
	return s.staffGuarded(ctx, id, bookingID, s.bookings.Confirm)
}

// StartBooking начинает парковку.
func (s *Service) StartBooking(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error) {
	return s.guarded(ctx, id, bookingID, s.bookings.Start)
}

// CompleteBooking завершает парковку.
func (s *Service) CompleteBooking(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error) {
	return s.guarded(ctx, id, bookingID, s.bookings.Complete)
}

// CancelBooking отменяет бронь.
func (s *Service) CancelBooking(ctx context.Context, id model.Identity, bookingID, reason string) (model.Booking, error) {
	return s.guarded(ctx, id, bookingID, func(ctx context.Context, bid string) (model.Booking, error) {
		return s.bookings.Cancel(ctx, bid, reason)
	})
}

// ExtendBooking продлевает бронь до newEnd.
func (s *Service) ExtendBooking(ctx context.Context, id model.Identity, bookingID string, newEnd time.Time) (model.Booking, error) {
	return s.guarded(ctx, id, bookingID, func(ctx context.Context, bid string) (model.Booking, error) {
		return s.bookings.Extend(ctx, bid, newEnd)
	})
}

// AddDiscount применяет скидку из каталога. Доступно только оператору и администратору.
func (s *Service) AddDiscount(ctx context.Context, id model.Identity, bookingID string, d model.DiscountRequest) (model.Booking, error) {
	return s.staffGuarded(ctx, id, bookingID, func(ctx context.Context, bid string) (model.Booking, error) {
		return s.bookings.AddDiscount(ctx, bid, d)
	})
}

// RemoveDiscount снимает скидку. Доступно только оператору и администратору.
func (s *Service) RemoveDiscount(ctx context.Context, id model.Identity, bookingID string, t model.DiscountType) (model.Booking, error) {
	return s.staffGuarded(ctx, id, bookingID, func(ctx context.Context, bid string) (model.Booking, error) {
		return s.bookings.RemoveDiscount(ctx, bid, t)
	})
}

// HandlePaymentEvent применяет проверенное событие платёжного шлюза.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev model.PaymentEvent) error {
	return s.bookings.HandlePaymentEvent(ctx, ev)
}

// CheckAvailability сообщает, свободно ли место на интервале.
func (s *Service) CheckAvailability(ctx context.Context, spotID string, start, end time.Time) (bool, error) {
	if !start.Before(end) {
		return false, model.NewValidationError("start time must be before end time")
	}
	return s.avail.CheckAvailability(ctx, spotID, start, end)
}

// Quote рассчитывает стоимость для вызывающего. Скидки в расчёте доступны только персоналу.
func (s *Service) Quote(ctx context.Context, id model.Identity, req pricing.QuoteRequest) (pricing.Quote, error) {
	if len(req.Discounts) > 0 {
		if !id.IsStaff() {
			return pricing.Quote{}, model.ErrForbidden
		}
		if id.UserType == model.UserTypeOperator {
			if err := s.authorizeOperator(ctx, id, req.SpotID); err != nil {
				return pricing.Quote{}, err
			}
		}
	}
	req.UserID = id.UserID
	return s.pricing.Quote(ctx, req)
}

// EffectivePricing возвращает конфигурацию цены, действующую для места.
func (s *Service) EffectivePricing(ctx context.Context, spotID string) (model.PricingConfig, error) {
	return s.pricing.EffectivePricing(ctx, spotID)
}

// AccessInstructions возвращает инструкции проезда к месту. Для обычных мест
// оператора возвращается пустая строка.
func (s *Service) AccessInstructions(ctx context.Context, spotID string) (string, error) {
	h, err := s.repo.GetSpotHierarchy(ctx, spotID)
	if err != nil {
		return "", fmt.Errorf("get spot: %w", err)
	}
	p, ok := s.policies.Lookup(h.Spot.ParkingType)
	if !ok {
		return "", nil
	}
	return p.AccessInstructions(ctx, spotID)
}

func (s *Service) guarded(ctx context.Context, id model.Identity, bookingID string,
	fn func(ctx context.Context, bookingID string) (model.Booking, error)) (model.Booking, error) {
	if _, err := s.GetBooking(ctx, id, bookingID); err != nil {
		return model.Booking{}, err
	}
	return fn(ctx, bookingID)
}

// staffGuarded выполняет fn только для администратора и оператора локации места брони.
// Владение бронью здесь прав не даёт.
func (s *Service) staffGuarded(ctx context.Context, id model.Identity, bookingID string,
	fn func(ctx context.Context, bookingID string) (model.Booking, error)) (model.Booking, error) {
	if !id.IsStaff() {
		return model.Booking{}, model.ErrForbidden
	}
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if id.UserType == model.UserTypeOperator {
		if err := s.authorizeOperator(ctx, id, b.SpotID); err != nil {
			return model.Booking{}, err
		}
	}
	return fn(ctx, bookingID)
}

// authorize разрешает доступ владельцу брони, администратору и оператору локации места.
func (s *Service) authorize(ctx context.Context, id model.Identity, b model.Booking) error {
	switch {
	case b.UserID == id.UserID, id.UserType == model.UserTypeAdmin:
		return nil
	case id.UserType == model.UserTypeOperator:
		return s.authorizeOperator(ctx, id, b.SpotID)
	default:
		return model.ErrForbidden
	}
}

func (s *Service) authorizeOperator(ctx context.Context, id model.Identity, spotID string) error {
	h, err := s.repo.GetSpotHierarchy(ctx, spotID)
	if errors.Is(err, model.ErrNotFound) {
		return model.ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("get spot hierarchy: %w", err)
	}
	if id.OperatorID == "" || h.Location.OperatorID != id.OperatorID {
		return model.ErrForbidden
	}
	return nil
}
