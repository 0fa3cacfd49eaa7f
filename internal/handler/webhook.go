package handler

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/davidbanez/park-angel-v1-sub008/internal/payment"
)

// PaymentWebhook принимает подписанные события платёжного шлюза.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	ev, err := payment.ParseEvent([]byte(h.opts.WebhookSecret), body, r.Header.Get(payment.SignatureHeader))
	if err != nil {
		h.writeError(w, "payment webhook", err)
		return
	}

	if err := h.service.HandlePaymentEvent(r.Context(), ev); err != nil {
		h.writeError(w, "payment webhook", err)
		return
	}

	h.logger.Info("payment event applied",
		zap.String("intentID", ev.IntentID),
		zap.String("bookingID", ev.BookingID),
		zap.String("kind", string(ev.Kind)),
	)
	w.WriteHeader(http.StatusOK)
}
