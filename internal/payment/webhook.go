package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

// SignatureHeader - заголовок с подписью вебхука.
const SignatureHeader = "X-Signature"

// ErrInvalidSignature возвращается, если подпись вебхука не совпала.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Sign возвращает HMAC-SHA256 тела в шестнадцатеричном виде.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сверяет подпись с телом запроса за постоянное время.
func VerifySignature(secret, body []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// ParseEvent проверяет подпись и разбирает событие шлюза.
func ParseEvent(secret, body []byte, signature string) (model.PaymentEvent, error) {
	if !VerifySignature(secret, body, signature) {
		return model.PaymentEvent{}, ErrInvalidSignature
	}

	var ev model.PaymentEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return model.PaymentEvent{}, model.NewValidationError(fmt.Sprintf("malformed event: %v", err))
	}

	var errs []string
	if ev.IntentID == "" {
		errs = append(errs, "intentId is required")
	}
	if ev.BookingID == "" {
		errs = append(errs, "bookingId is required")
	}
	switch ev.Kind {
	case model.PaymentEventSucceeded, model.PaymentEventFailed, model.PaymentEventRefunded:
	default:
		errs = append(errs, fmt.Sprintf("unknown event kind %q", ev.Kind))
	}
	if len(errs) > 0 {
		return model.PaymentEvent{}, model.NewValidationError(errs...)
	}

	return ev, nil
}
