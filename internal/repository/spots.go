package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

const spotColumns = `s.id, s.zone_id, s.number, s.status, s.vehicle_type, s.parking_type,
	s.latitude, s.longitude, s.amenities, s.floor, s.pricing, s.version`

func scanSpot(row pgx.Row, extra ...any) (model.Spot, error) {
	var (
		s           model.Spot
		status      string
		vehicleType string
		parkingType string
		pricing     []byte
	)

	dest := append([]any{
		&s.ID, &s.ZoneID, &s.Number, &status, &vehicleType, &parkingType,
		&s.Latitude, &s.Longitude, &s.Amenities, &s.Floor, &pricing, &s.Version,
	}, extra...)

	if err := row.Scan(dest...); err != nil {
		return model.Spot{}, err
	}

	cfg, err := unmarshalPricing(pricing)
	if err != nil {
		return model.Spot{}, err
	}

	s.Status = model.SpotStatus(status)
	s.VehicleType = model.VehicleType(vehicleType)
	s.ParkingType = model.ParkingType(parkingType)
	s.Pricing = cfg
	return s, nil
}

// GetSpot возвращает парковочное место.
func (r *PostgresRepository) GetSpot(ctx context.Context, spotID string) (model.Spot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+spotColumns+` FROM parking_spots s WHERE s.id = $1`, spotID)

	s, err := scanSpot(row)
	if err != nil {
		return model.Spot{}, fmt.Errorf("get spot: %w", mapError(err))
	}
	return s, nil
}

// GetSpotHierarchy возвращает место вместе с зоной, секцией и локацией.
func (r *PostgresRepository) GetSpotHierarchy(ctx context.Context, spotID string) (model.SpotHierarchy, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+spotColumns+`,
		        z.id, z.section_id, z.name, z.pricing,
		        sec.id, sec.location_id, sec.name, sec.pricing,
		        l.id, l.operator_id, l.name, l.address, l.pricing
		 FROM parking_spots s
		 JOIN zones z ON z.id = s.zone_id
		 JOIN sections sec ON sec.id = z.section_id
		 JOIN locations l ON l.id = sec.location_id
		 WHERE s.id = $1`,
		spotID,
	)

	var h model.SpotHierarchy
	var zonePricing, sectionPricing, locPricing []byte
	spot, err := scanSpot(row,
		&h.Zone.ID, &h.Zone.SectionID, &h.Zone.Name, &zonePricing,
		&h.Section.ID, &h.Section.LocationID, &h.Section.Name, &sectionPricing,
		&h.Location.ID, &h.Location.OperatorID, &h.Location.Name, &h.Location.Address, &locPricing,
	)
	if err != nil {
		return model.SpotHierarchy{}, fmt.Errorf("get spot hierarchy: %w", mapError(err))
	}
	h.Spot = spot

	if h.Zone.Pricing, err = unmarshalPricing(zonePricing); err != nil {
		return model.SpotHierarchy{}, err
	}
	if h.Section.Pricing, err = unmarshalPricing(sectionPricing); err != nil {
		return model.SpotHierarchy{}, err
	}
	if h.Location.Pricing, err = unmarshalPricing(locPricing); err != nil {
		return model.SpotHierarchy{}, err
	}

	return h, nil
}

// SetSpotPricing сохраняет собственную конфигурацию цены места. nil снимает переопределение.
func (r *PostgresRepository) SetSpotPricing(ctx context.Context, spotID string, cfg *model.PricingConfig) error {
	data, err := marshalPricing(cfg)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `UPDATE parking_spots SET pricing = $2 WHERE id = $1`, spotID, data)
	if err != nil {
		return fmt.Errorf("update spot pricing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// UpdateSpotStatus меняет статус места, если его версия равна expectedVersion.
func (r *PostgresRepository) UpdateSpotStatus(ctx context.Context, spotID string, status model.SpotStatus, expectedVersion int64) (int64, error) {
	var version int64

	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE parking_spots SET status = $2, version = version + 1
			 WHERE id = $1 AND version = $3
			 RETURNING version`,
			spotID, string(status), expectedVersion,
		).Scan(&version)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetSpot(ctx, spotID); gerr != nil {
			return 0, gerr
		}
		return 0, model.ErrStaleWrite
	}
	if err != nil {
		return 0, fmt.Errorf("update spot status: %w", err)
	}

	return version, nil
}

// CountZoneSpots возвращает общее число мест зоны и число занятых или удерживаемых.
func (r *PostgresRepository) CountZoneSpots(ctx context.Context, zoneID string) (int, int, error) {
	var total, busy int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status IN ($2, $3))
		 FROM parking_spots
		 WHERE zone_id = $1`,
		zoneID, string(model.SpotStatusOccupied), string(model.SpotStatusReserved),
	).Scan(&total, &busy)
	if err != nil {
		return 0, 0, fmt.Errorf("count zone spots: %w", err)
	}
	return total, busy, nil
}

// CountActiveBookings возвращает число начатых парковок на месте.
func (r *PostgresRepository) CountActiveBookings(ctx context.Context, spotID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE spot_id = $1 AND status = $2`,
		spotID, string(model.BookingStatusActive),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active bookings: %w", err)
	}
	return n, nil
}

// ListOverlappingBookings возвращает подтверждённые и активные брони места, пересекающие [start, end).
func (r *PostgresRepository) ListOverlappingBookings(ctx context.Context, spotID string, start, end time.Time) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE spot_id = $1 AND start_time < $3 AND end_time > $2 AND status IN ($4, $5)
		 ORDER BY start_time`,
		spotID, start, end,
		string(model.BookingStatusConfirmed), string(model.BookingStatusActive),
	)
	if err != nil {
		return nil, fmt.Errorf("select overlapping bookings: %w", err)
	}
	return collectBookings(rows)
}

const reservationColumns = `id, spot_id, user_id, start_time, end_time, expires_at`

func collectReservations(rows pgx.Rows) ([]model.SpotReservation, error) {
	defer rows.Close()

	var res []model.SpotReservation
	for rows.Next() {
		var h model.SpotReservation
		if err := rows.Scan(&h.ID, &h.SpotID, &h.UserID, &h.StartTime, &h.EndTime, &h.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res = append(res, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ListSpotReservations возвращает все удержания места.
func (r *PostgresRepository) ListSpotReservations(ctx context.Context, spotID string) ([]model.SpotReservation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reservationColumns+` FROM spot_reservations WHERE spot_id = $1 ORDER BY start_time`,
		spotID,
	)
	if err != nil {
		return nil, fmt.Errorf("select reservations: %w", err)
	}
	return collectReservations(rows)
}

// CreateReservation сохраняет удержание. Пересечение с другим удержанием
// отклоняется ограничением исключения и возвращается как model.ErrAvailabilityConflict.
func (r *PostgresRepository) CreateReservation(ctx context.Context, h model.SpotReservation) error {
	err := r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO spot_reservations (`+reservationColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			h.ID, h.SpotID, h.UserID, h.StartTime, h.EndTime, h.ExpiresAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert reservation: %w", mapError(err))
	}
	return nil
}

// DeleteReservation удаляет удержание. Отсутствие записи не ошибка.
func (r *PostgresRepository) DeleteReservation(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM spot_reservations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// DeleteSpotReservations удаляет все удержания места.
func (r *PostgresRepository) DeleteSpotReservations(ctx context.Context, spotID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM spot_reservations WHERE spot_id = $1`, spotID)
	if err != nil {
		return 0, fmt.Errorf("delete spot reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteUserReservations удаляет удержания места, принадлежащие пользователю.
func (r *PostgresRepository) DeleteUserReservations(ctx context.Context, spotID, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM spot_reservations WHERE spot_id = $1 AND user_id = $2`,
		spotID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete user reservations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListExpiredReservations возвращает удержания, истёкшие к моменту now.
func (r *PostgresRepository) ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]model.SpotReservation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reservationColumns+`
		 FROM spot_reservations
		 WHERE expires_at <= $1
		 ORDER BY expires_at
		 LIMIT $2`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select expired reservations: %w", err)
	}
	return collectReservations(rows)
}
