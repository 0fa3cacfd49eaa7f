package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
	"github.com/davidbanez/park-angel-v1-sub008/internal/validation"
)

// GetUser возвращает пользователя.
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `SELECT id, user_type FROM users WHERE id = $1`, id).Scan(&u.ID, &u.UserType)
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", mapError(err))
	}
	return u, nil
}

// GetVehicle возвращает транспортное средство.
func (r *PostgresRepository) GetVehicle(ctx context.Context, id string) (model.Vehicle, error) {
	var (
		v  model.Vehicle
		vt string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, type, plate_number, is_default, height_cm FROM vehicles WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.UserID, &vt, &v.PlateNumber, &v.IsDefault, &v.HeightCm)
	if err != nil {
		return model.Vehicle{}, fmt.Errorf("get vehicle: %w", mapError(err))
	}
	v.Type = model.VehicleType(vt)
	v.PlateNumber = validation.NormalizePlate(v.PlateNumber)
	return v, nil
}

const bookingColumns = `id, user_id, spot_id, vehicle_id, start_time, end_time, status, payment_status,
	payment_intent_id, amount_cents, discounts, vat_rate, vat_amount_cents, total_amount_cents,
	refund_amount_cents, created_at, confirmed_at, started_at, completed_at, cancelled_at,
	cancellation_reason, version`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var (
		b                                          model.Booking
		status, paymentStatus                      string
		amount, vatAmount, totalAmount, refundAmnt int64
		discounts                                  []byte
	)

	err := row.Scan(
		&b.ID, &b.UserID, &b.SpotID, &b.VehicleID, &b.StartTime, &b.EndTime, &status, &paymentStatus,
		&b.PaymentIntentID, &amount, &discounts, &b.VATRate, &vatAmount, &totalAmount,
		&refundAmnt, &b.CreatedAt, &b.ConfirmedAt, &b.StartedAt, &b.CompletedAt, &b.CancelledAt,
		&b.CancellationReason, &b.Version,
	)
	if err != nil {
		return model.Booking{}, err
	}

	b.Discounts, err = unmarshalList[model.AppliedDiscount](discounts)
	if err != nil {
		return model.Booking{}, fmt.Errorf("unmarshal discounts: %w", err)
	}

	b.Status = model.BookingStatus(status)
	b.PaymentStatus = model.PaymentStatus(paymentStatus)
	b.Amount = fromCents(amount)
	b.VATAmount = fromCents(vatAmount)
	b.TotalAmount = fromCents(totalAmount)
	b.RefundAmount = fromCents(refundAmnt)
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()

	var res []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		res = append(res, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// CreateBooking сохраняет новую бронь с версией 1.
func (r *PostgresRepository) CreateBooking(ctx context.Context, b model.Booking) error {
	discounts, err := marshalList(b.Discounts)
	if err != nil {
		return fmt.Errorf("marshal discounts: %w", err)
	}

	err = r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO bookings (`+bookingColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, 1)`,
			b.ID, b.UserID, b.SpotID, b.VehicleID, b.StartTime, b.EndTime, string(b.Status), string(b.PaymentStatus),
			b.PaymentIntentID, toCents(b.Amount), discounts, b.VATRate, toCents(b.VATAmount), toCents(b.TotalAmount),
			toCents(b.RefundAmount), b.CreatedAt, b.ConfirmedAt, b.StartedAt, b.CompletedAt, b.CancelledAt,
			b.CancellationReason,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert booking: %w", mapError(err))
	}
	return nil
}

// GetBooking возвращает бронь.
func (r *PostgresRepository) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		return model.Booking{}, fmt.Errorf("get booking: %w", mapError(err))
	}
	return b, nil
}

// UpdateBooking сохраняет бронь, если её версия в БД равна b.Version, и возвращает запись с новой версией.
func (r *PostgresRepository) UpdateBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	discounts, err := marshalList(b.Discounts)
	if err != nil {
		return model.Booking{}, fmt.Errorf("marshal discounts: %w", err)
	}

	var version int64
	err = r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE bookings SET
			    end_time = $3, status = $4, payment_status = $5, payment_intent_id = $6,
			    amount_cents = $7, discounts = $8, vat_rate = $9, vat_amount_cents = $10,
			    total_amount_cents = $11, refund_amount_cents = $12, confirmed_at = $13,
			    started_at = $14, completed_at = $15, cancelled_at = $16, cancellation_reason = $17,
			    version = version + 1
			 WHERE id = $1 AND version = $2
			 RETURNING version`,
			b.ID, b.Version,
			b.EndTime, string(b.Status), string(b.PaymentStatus), b.PaymentIntentID,
			toCents(b.Amount), discounts, b.VATRate, toCents(b.VATAmount),
			toCents(b.TotalAmount), toCents(b.RefundAmount), b.ConfirmedAt,
			b.StartedAt, b.CompletedAt, b.CancelledAt, b.CancellationReason,
		).Scan(&version)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetBooking(ctx, b.ID); gerr != nil {
			return model.Booking{}, gerr
		}
		return model.Booking{}, model.ErrStaleWrite
	}
	if err != nil {
		return model.Booking{}, fmt.Errorf("update booking: %w", err)
	}

	b.Version = version
	return b, nil
}

// ListBookingsByUser возвращает брони пользователя, новые первыми.
func (r *PostgresRepository) ListBookingsByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select bookings: %w", err)
	}
	return collectBookings(rows)
}

// CreatePayout сохраняет распределение выручки по брони.
func (r *PostgresRepository) CreatePayout(ctx context.Context, p model.Payout) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payouts (id, booking_id, host_id, gross_cents, platform_fee_cents, host_net_cents, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (booking_id) DO NOTHING`,
		p.ID, p.BookingID, p.HostID, toCents(p.Gross), toCents(p.PlatformFee), toCents(p.HostNet), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", mapError(err))
	}
	return nil
}

// PaymentEventProcessed сообщает, было ли уже обработано событие такого вида для намерения.
func (r *PostgresRepository) PaymentEventProcessed(ctx context.Context, intentID string, kind model.PaymentEventKind) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM payment_events WHERE intent_id = $1 AND kind = $2)`,
		intentID, string(kind),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select payment event: %w", err)
	}
	return exists, nil
}

// RecordPaymentEvent фиксирует обработанное событие шлюза.
func (r *PostgresRepository) RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payment_events (event_id, intent_id, booking_id, kind, reason, received_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (intent_id, kind) DO NOTHING`,
		ev.EventID, ev.IntentID, ev.BookingID, string(ev.Kind), ev.Reason, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}
