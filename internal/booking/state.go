// Package booking реализует жизненный цикл бронирования парковочного места.
//
// Переходы состояний - чистые функции: они принимают значение model.Booking и
// возвращают новое значение либо *model.TransitionError, не изменяя исходное.
// Manager оркеструет переходы, хранилище, доступность мест и платежи.
package booking

import (
	"slices"
	"time"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/pricing"
)

func transitionErr(action string, b model.Booking) error {
	return &model.TransitionError{Action: action, From: string(b.Status)}
}

func paymentErr(action string, b model.Booking) error {
	return &model.TransitionError{Action: action, From: "payment " + string(b.PaymentStatus)}
}

// Confirm переводит бронь из pending в confirmed.
func Confirm(b model.Booking, at time.Time) (model.Booking, error) {
	if b.Status != model.BookingStatusPending {
		return b, transitionErr("confirm", b)
	}
	b.Status = model.BookingStatusConfirmed
	b.ConfirmedAt = &at
	return b, nil
}

// Start переводит бронь из confirmed в active.
func Start(b model.Booking, at time.Time) (model.Booking, error) {
	if b.Status != model.BookingStatusConfirmed {
		return b, transitionErr("start", b)
	}
	b.Status = model.BookingStatusActive
	b.StartedAt = &at
	return b, nil
}

// Complete переводит бронь из active в completed.
func Complete(b model.Booking, at time.Time) (model.Booking, error) {
	if b.Status != model.BookingStatusActive {
		return b, transitionErr("complete", b)
	}
	b.Status = model.BookingStatusCompleted
	b.CompletedAt = &at
	return b, nil
}

// Cancel отменяет бронь из любого состояния, кроме completed и cancelled.
func Cancel(b model.Booking, reason string, at time.Time) (model.Booking, error) {
	if b.Status == model.BookingStatusCompleted || b.Status == model.BookingStatusCancelled {
		return b, transitionErr("cancel", b)
	}
	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &at
	if reason != "" {
		b.CancellationReason = &reason
	}
	return b, nil
}

// MarkPaid отмечает оплату. Неподтверждённая бронь при этом подтверждается.
func MarkPaid(b model.Booking, at time.Time) (model.Booking, error) {
	if b.PaymentStatus != model.PaymentStatusPending {
		return b, paymentErr("mark paid", b)
	}
	b.PaymentStatus = model.PaymentStatusPaid
	if b.Status == model.BookingStatusPending {
		b.Status = model.BookingStatusConfirmed
		b.ConfirmedAt = &at
	}
	return b, nil
}

// MarkRefunded отмечает возврат оплаты на сумму amount.
func MarkRefunded(b model.Booking, amount float64) (model.Booking, error) {
	if b.PaymentStatus != model.PaymentStatusPaid {
		return b, paymentErr("refund", b)
	}
	b.PaymentStatus = model.PaymentStatusRefunded
	b.RefundAmount = pricing.Round2(amount)
	return b, nil
}

// RefundAmount возвращает сумму возврата при отмене: полная сумма, пока парковка
// не началась, и ноль после начала.
func RefundAmount(b model.Booking) float64 {
	if b.StartedAt != nil {
		return 0
	}
	return b.TotalAmount
}

// CheckExtend проверяет, можно ли продлить бронь до newEnd в момент now.
func CheckExtend(b model.Booking, newEnd, now time.Time) error {
	if b.Status != model.BookingStatusActive && b.Status != model.BookingStatusConfirmed {
		return transitionErr("extend", b)
	}
	if !now.Before(b.EndTime) {
		return model.NewValidationError("booking has already ended")
	}
	if !newEnd.After(b.EndTime) {
		return model.NewValidationError("new end time must be after the current end time")
	}
	return nil
}

// Extend продлевает бронь до newEnd и добавляет стоимость продления extra к сумме.
func Extend(b model.Booking, newEnd time.Time, extra float64, now time.Time) (model.Booking, error) {
	if err := CheckExtend(b, newEnd, now); err != nil {
		return b, err
	}
	b.EndTime = newEnd
	b.Amount = pricing.Round2(b.Amount + extra)
	return recalculate(b), nil
}

// AddDiscount добавляет скидку, заменяя скидку того же типа, и пересчитывает итог.
func AddDiscount(b model.Booking, d model.AppliedDiscount) (model.Booking, error) {
	if !discountable(b) {
		return b, transitionErr("discount", b)
	}
	b.Discounts = MergeDiscounts(b.Discounts, d)
	return recalculate(b), nil
}

// RemoveDiscount удаляет скидку типа t и пересчитывает итог. Отсутствие скидки не ошибка.
func RemoveDiscount(b model.Booking, t model.DiscountType) (model.Booking, error) {
	if !discountable(b) {
		return b, transitionErr("discount", b)
	}
	b.Discounts = slices.DeleteFunc(slices.Clone(b.Discounts), func(d model.AppliedDiscount) bool {
		return d.Type == t
	})
	return recalculate(b), nil
}

// MergeDiscounts возвращает новый список, в котором каждая скидка из add
// заменяет прежнюю скидку того же типа.
func MergeDiscounts(current []model.AppliedDiscount, add ...model.AppliedDiscount) []model.AppliedDiscount {
	res := slices.Clone(current)
	for _, d := range add {
		i := slices.IndexFunc(res, func(x model.AppliedDiscount) bool { return x.Type == d.Type })
		if i >= 0 {
			res[i] = d
		} else {
			res = append(res, d)
		}
	}
	return res
}

func discountable(b model.Booking) bool {
	switch b.Status {
	case model.BookingStatusPending, model.BookingStatusConfirmed, model.BookingStatusActive:
		return true
	}
	return false
}

func recalculate(b model.Booking) model.Booking {
	t := pricing.Recalculate(b.Amount, b.Discounts, b.VATRate)
	b.VATAmount = t.VATAmount
	b.TotalAmount = t.TotalAmount
	return b
}

// ComputePayout делит выручку брони между платформой и владельцем места.
// База - сумма без НДС, feeRate - доля платформы.
func ComputePayout(b model.Booking, hostID string, feeRate float64, at time.Time) model.Payout {
	gross := pricing.Round2(b.TotalAmount - b.VATAmount)
	fee := pricing.Round2(gross * feeRate)
	return model.Payout{
		BookingID:   b.ID,
		HostID:      hostID,
		Gross:       gross,
		PlatformFee: fee,
		HostNet:     pricing.Round2(gross - fee),
		CreatedAt:   at,
	}
}
