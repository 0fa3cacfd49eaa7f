package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/davidbanez/park-angel-v1-sub008/internal/booking"
	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/validation"
)

type bookingResponse struct {
	ID                 string                  `json:"id"`
	UserID             string                  `json:"userId"`
	SpotID             string                  `json:"spotId"`
	VehicleID          string                  `json:"vehicleId"`
	StartTime          time.Time               `json:"startTime"`
	EndTime            time.Time               `json:"endTime"`
	Status             model.BookingStatus     `json:"status"`
	PaymentStatus      model.PaymentStatus     `json:"paymentStatus"`
	PaymentIntentID    string                  `json:"paymentIntentId,omitempty"`
	Amount             float64                 `json:"amount"`
	Discounts          []model.AppliedDiscount `json:"discounts"`
	VATRate            float64                 `json:"vatRate"`
	VATAmount          float64                 `json:"vatAmount"`
	TotalAmount        float64                 `json:"totalAmount"`
	RefundAmount       float64                 `json:"refundAmount,omitempty"`
	CreatedAt          time.Time               `json:"createdAt"`
	ConfirmedAt        *time.Time              `json:"confirmedAt,omitempty"`
	StartedAt          *time.Time              `json:"startedAt,omitempty"`
	CompletedAt        *time.Time              `json:"completedAt,omitempty"`
	CancelledAt        *time.Time              `json:"cancelledAt,omitempty"`
	CancellationReason *string                 `json:"cancellationReason,omitempty"`
}

func toBookingResponse(b model.Booking) bookingResponse {
	discounts := b.Discounts
	if discounts == nil {
		discounts = []model.AppliedDiscount{}
	}
	return bookingResponse{
		ID:                 b.ID,
		UserID:             b.UserID,
		SpotID:             b.SpotID,
		VehicleID:          b.VehicleID,
		StartTime:          b.StartTime,
		EndTime:            b.EndTime,
		Status:             b.Status,
		PaymentStatus:      b.PaymentStatus,
		PaymentIntentID:    b.PaymentIntentID,
		Amount:             b.Amount,
		Discounts:          discounts,
		VATRate:            b.VATRate,
		VATAmount:          b.VATAmount,
		TotalAmount:        b.TotalAmount,
		RefundAmount:       b.RefundAmount,
		CreatedAt:          b.CreatedAt,
		ConfirmedAt:        b.ConfirmedAt,
		StartedAt:          b.StartedAt,
		CompletedAt:        b.CompletedAt,
		CancelledAt:        b.CancelledAt,
		CancellationReason: b.CancellationReason,
	}
}

type createBookingRequest struct {
	UserID    string                  `json:"userId,omitempty"`
	SpotID    string                  `json:"spotId"`
	VehicleID string                  `json:"vehicleId"`
	StartTime time.Time               `json:"startTime"`
	EndTime   time.Time               `json:"endTime"`
	Discounts []model.DiscountRequest `json:"discounts,omitempty"`
}

// CreateBooking создаёт бронь для текущего пользователя.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var errs []string
	for _, d := range req.Discounts {
		errs = append(errs, validation.DiscountErrors(d)...)
	}
	if len(errs) > 0 {
		h.writeError(w, "create booking", model.NewValidationError(errs...))
		return
	}

	b, err := h.service.CreateBooking(r.Context(), id, booking.CreateRequest{
		UserID:    req.UserID,
		SpotID:    req.SpotID,
		VehicleID: req.VehicleID,
		Start:     req.StartTime,
		End:       req.EndTime,
		Discounts: req.Discounts,
	})
	if err != nil {
		h.writeError(w, "create booking", err)
		return
	}

	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

// ListBookings возвращает брони текущего пользователя.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), id)
	if err != nil {
		h.writeError(w, "list bookings", err)
		return
	}

	if len(bookings) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]bookingResponse, 0, len(bookings))
	for _, b := range bookings {
		resp = append(resp, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetBooking возвращает одну бронь.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, "get booking", h.service.GetBooking)
}

// ConfirmBooking подтверждает бронь.
func (h *Handler) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, "confirm booking", h.service.ConfirmBooking)
}

// StartBooking отмечает прибытие на место.
func (h *Handler) StartBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, "start booking", h.service.StartBooking)
}

// CompleteBooking завершает парковку.
func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	h.bookingAction(w, r, "complete booking", h.service.CompleteBooking)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// CancelBooking отменяет бронь. Тело запроса необязательно.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}
	h.bookingAction(w, r, "cancel booking", func(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error) {
		return h.service.CancelBooking(ctx, id, bookingID, req.Reason)
	})
}

type extendRequest struct {
	EndTime time.Time `json:"endTime"`
}

// ExtendBooking переносит окончание брони.
func (h *Handler) ExtendBooking(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EndTime.IsZero() {
		h.writeError(w, "extend booking", model.NewValidationError("endTime is required"))
		return
	}
	h.bookingAction(w, r, "extend booking", func(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error) {
		return h.service.ExtendBooking(ctx, id, bookingID, req.EndTime)
	})
}

// AddDiscount применяет скидку из каталога к брони.
func (h *Handler) AddDiscount(w http.ResponseWriter, r *http.Request) {
	var d model.DiscountRequest
	if !decodeJSON(w, r, &d) {
		return
	}
	if errs := validation.DiscountErrors(d); len(errs) > 0 {
		h.writeError(w, "add discount", model.NewValidationError(errs...))
		return
	}
	h.bookingAction(w, r, "add discount", func(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error) {
		return h.service.AddDiscount(ctx, id, bookingID, d)
	})
}

// RemoveDiscount снимает скидку указанного типа.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	t := model.DiscountType(chi.URLParam(r, "type"))
	h.bookingAction(w, r, "remove discount", func(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error) {
		return h.service.RemoveDiscount(ctx, id, bookingID, t)
	})
}

func (h *Handler) bookingAction(w http.ResponseWriter, r *http.Request, op string,
	fn func(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error)) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	bookingID := chi.URLParam(r, "id")
	if !validation.IsValidID(bookingID) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid booking id"})
		return
	}

	b, err := fn(r.Context(), id, bookingID)
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}
