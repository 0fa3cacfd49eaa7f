package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
	"github.com/davidbanez/park-angel-v1-sub008/internal/validation"
)

func (h *Handler) spotID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validation.IsValidID(id) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid spot id"})
		return "", false
	}
	return id, true
}

type availabilityResponse struct {
	SpotID    string    `json:"spotId"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// CheckAvailability отвечает, свободно ли место на интервале ?start=&end=.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	spotID, ok := h.spotID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	start, end, err := validation.ParseWindow(q.Get("start"), q.Get("end"))
	if err != nil {
		h.writeError(w, "check availability", err)
		return
	}

	available, err := h.service.CheckAvailability(r.Context(), spotID, start, end)
	if err != nil {
		h.writeError(w, "check availability", err)
		return
	}

	writeJSON(w, http.StatusOK, availabilityResponse{SpotID: spotID, Start: start, End: end, Available: available})
}

type quoteRequest struct {
	SpotID      string                  `json:"spotId"`
	VehicleType model.VehicleType       `json:"vehicleType"`
	StartTime   time.Time               `json:"startTime"`
	EndTime     time.Time               `json:"endTime"`
	Discounts   []model.DiscountRequest `json:"discounts,omitempty"`
}

// Quote рассчитывает стоимость без создания брони.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req quoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var errs []string
	if !validation.IsValidID(req.SpotID) {
		errs = append(errs, "spotId is required")
	}
	if !req.StartTime.Before(req.EndTime) {
		errs = append(errs, "start time must be before end time")
	}
	for _, d := range req.Discounts {
		errs = append(errs, validation.DiscountErrors(d)...)
	}
	if len(errs) > 0 {
		h.writeError(w, "quote", model.NewValidationError(errs...))
		return
	}

	quote, err := h.service.Quote(r.Context(), id, pricing.QuoteRequest{
		SpotID:      req.SpotID,
		VehicleType: req.VehicleType,
		Start:       req.StartTime,
		End:         req.EndTime,
		Discounts:   req.Discounts,
	})
	if err != nil {
		h.writeError(w, "quote", err)
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// SpotPricing возвращает конфигурацию цены, действующую для места с учётом наследования.
func (h *Handler) SpotPricing(w http.ResponseWriter, r *http.Request) {
	spotID, ok := h.spotID(w, r)
	if !ok {
		return
	}

	cfg, err := h.service.EffectivePricing(r.Context(), spotID)
	if err != nil {
		h.writeError(w, "spot pricing", err)
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

type accessResponse struct {
	SpotID       string `json:"spotId"`
	Instructions string `json:"instructions"`
}

// SpotAccess возвращает инструкции проезда к месту.
func (h *Handler) SpotAccess(w http.ResponseWriter, r *http.Request) {
	spotID, ok := h.spotID(w, r)
	if !ok {
		return
	}

	instructions, err := h.service.AccessInstructions(r.Context(), spotID)
	if err != nil {
		h.writeError(w, "spot access", err)
		return
	}

	writeJSON(w, http.StatusOK, accessResponse{SpotID: spotID, Instructions: instructions})
}
