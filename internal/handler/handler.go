// Package handler содержит HTTP-обработчики API сервиса бронирования парковок.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/davidbanez/park-angel-v1-sub008/internal/booking"
	"github.com/davidbanez/park-angel-v1-sub008/internal/middleware"
	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/payment"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Health(ctx context.Context) error

	CreateBooking(ctx context.Context, id model.Identity, req booking.CreateRequest) (model.Booking, error)
	GetBooking(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error)
	ListBookings(ctx context.Context, id model.Identity) ([]model.Booking, error)
	ConfirmBooking(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error)
	StartBooking(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error)
	CompleteBooking(ctx context.Context, id model.Identity, bookingID string) (model.Booking, error)
	CancelBooking(ctx context.Context, id model.Identity, bookingID, reason string) (model.Booking, error)
	ExtendBooking(ctx context.Context, id model.Identity, bookingID string, newEnd time.Time) (model.Booking, error)
	AddDiscount(ctx context.Context, id model.Identity, bookingID string, d model.DiscountRequest) (model.Booking, error)
	RemoveDiscount(ctx context.Context, id model.Identity, bookingID string, t model.DiscountType) (model.Booking, error)
	HandlePaymentEvent(ctx context.Context, ev model.PaymentEvent) error

	CheckAvailability(ctx context.Context, spotID string, start, end time.Time) (bool, error)
	Quote(ctx context.Context, id model.Identity, req pricing.QuoteRequest) (pricing.Quote, error)
	EffectivePricing(ctx context.Context, spotID string) (model.PricingConfig, error)
	AccessInstructions(ctx context.Context, spotID string) (string, error)
}

// Options - параметры HTTP-слоя.
type Options struct {
	WebhookSecret  string
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
}

// Handler реализует HTTP-обработчики API сервиса бронирования.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	opts           Options
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, opts Options) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		opts:           opts,
	}
}

type errorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит доменную ошибку в HTTP-статус.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var (
		ve *model.ValidationError
		te *model.TransitionError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Errors: ve.Errors})
	case errors.As(err, &te):
		writeJSON(w, http.StatusConflict, errorResponse{Error: te.Error()})
	case errors.Is(err, model.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrAvailabilityConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: model.ErrAvailabilityConflict.Error()})
	case errors.Is(err, model.ErrStaleWrite):
		writeJSON(w, http.StatusConflict, errorResponse{Error: model.ErrStaleWrite.Error()})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: http.StatusText(http.StatusNotFound)})
	case errors.Is(err, model.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: http.StatusText(http.StatusForbidden)})
	case errors.Is(err, payment.ErrInvalidSignature):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: payment.ErrInvalidSignature.Error()})
	default:
		h.logger.Error(op+" error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: http.StatusText(http.StatusInternalServerError)})
	}
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (model.Identity, bool) {
	id, ok := middleware.GetIdentityFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	}
	return id, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return false
	}
	return true
}

func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed JSON body"})
		return false
	}
	return true
}

const maxBodyBytes = 1 << 20

// Health сообщает о готовности сервиса и хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
