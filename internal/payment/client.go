// Package payment предоставляет клиент платёжного шлюза и разбор его вебхуков.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

// ErrRateLimited возвращается, если шлюз ответил 429.
var ErrRateLimited = errors.New("payment gateway rate limited")

const (
	maxRetries   = 2
	retryWaitMin = 100 * time.Millisecond
	retryWaitMax = time.Second
)

// Client инкапсулирует HTTP-взаимодействие с платёжным шлюзом.
// Сетевые сбои и ответы 5xx повторяются с тем же ключом идемпотентности.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

type chargeRequest struct {
	BookingID   string `json:"bookingId"`
	AmountCents int64  `json:"amountCents"`
}

type chargeResponse struct {
	IntentID string `json:"intentId"`
	Status   string `json:"status"`
}

type refundRequest struct {
	IntentID    string `json:"intentId"`
	AmountCents int64  `json:"amountCents"`
}

// NewClient создаёт HTTP-клиент платёжного шлюза по указанному адресу.
func NewClient(baseURL string) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = 5 * time.Second
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.Logger = nil
	rc.CheckRetry = retryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc,
	}
}

// retryPolicy не повторяет 429: ограничение частоты возвращается вызывающему как ErrRateLimited.
func retryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Charge создаёт платёжное намерение на сумму amount и возвращает его идентификатор.
// Повторный вызов для той же брони шлюз распознаёт по ключу идемпотентности.
func (c *Client) Charge(ctx context.Context, bookingID string, amount float64) (string, error) {
	var resp chargeResponse
	err := c.post(ctx, "/v1/charges", idempotencyKey("charge", bookingID), chargeRequest{
		BookingID:   bookingID,
		AmountCents: toCents(amount),
	}, &resp)
	if err != nil {
		return "", &model.PaymentError{Op: "charge", Err: err}
	}
	if resp.IntentID == "" {
		return "", &model.PaymentError{Op: "charge", Err: errors.New("empty intent id in response")}
	}
	return resp.IntentID, nil
}

// Refund возвращает amount по платёжному намерению intentID.
func (c *Client) Refund(ctx context.Context, intentID string, amount float64) error {
	err := c.post(ctx, "/v1/refunds", idempotencyKey("refund", intentID), refundRequest{
		IntentID:    intentID,
		AmountCents: toCents(amount),
	}, nil)
	if err != nil {
		return &model.PaymentError{Op: "refund", Err: err}
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, key string, body, out any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("payment gateway not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, base+path, payload)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return fmt.Errorf("%w: retry after %s", ErrRateLimited, retryAfter)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// idempotencyKey детерминированно выводит ключ из операции и идентификатора.
func idempotencyKey(op, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(op+":"+id)).String()
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
