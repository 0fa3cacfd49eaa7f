package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

// GetListingBySpot возвращает объявление владельца для места.
func (r *PostgresRepository) GetListingBySpot(ctx context.Context, spotID string) (model.HostedListing, error) {
	var (
		l                                   model.HostedListing
		hourlyRate                          int64
		schedule, timeRates, seasonalRates []byte
	)

	err := r.pool.QueryRow(ctx,
		`SELECT id, spot_id, host_id, is_active, hourly_rate_cents, min_duration_minutes, max_advance_days,
		        schedule, require_verified_guest, min_guest_rating, time_rates, weekend_multiplier,
		        seasonal_rates, access_instructions
		 FROM hosted_listings
		 WHERE spot_id = $1`,
		spotID,
	).Scan(
		&l.ID, &l.SpotID, &l.HostID, &l.IsActive, &hourlyRate, &l.MinDurationMinutes, &l.MaxAdvanceDays,
		&schedule, &l.RequireVerifiedGuest, &l.MinGuestRating, &timeRates, &l.WeekendMultiplier,
		&seasonalRates, &l.AccessInstructions,
	)
	if err != nil {
		return model.HostedListing{}, fmt.Errorf("get listing: %w", mapError(err))
	}

	l.HourlyRate = fromCents(hourlyRate)
	if l.Schedule, err = unmarshalList[model.WeeklyWindow](schedule); err != nil {
		return model.HostedListing{}, fmt.Errorf("unmarshal schedule: %w", err)
	}
	if l.TimeRates, err = unmarshalList[model.ListingTimeRate](timeRates); err != nil {
		return model.HostedListing{}, fmt.Errorf("unmarshal time rates: %w", err)
	}
	if l.SeasonalRates, err = unmarshalList[model.SeasonalRate](seasonalRates); err != nil {
		return model.HostedListing{}, fmt.Errorf("unmarshal seasonal rates: %w", err)
	}

	return l, nil
}

// GetGuestProfile возвращает профиль гостя.
func (r *PostgresRepository) GetGuestProfile(ctx context.Context, userID string) (model.GuestProfile, error) {
	var p model.GuestProfile
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, is_verified, rating FROM guest_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.IsVerified, &p.Rating)
	if err != nil {
		return model.GuestProfile{}, fmt.Errorf("get guest profile: %w", mapError(err))
	}
	return p, nil
}

// GetRegulation возвращает правила уличной парковки для места.
func (r *PostgresRepository) GetRegulation(ctx context.Context, spotID string) (model.StreetRegulation, error) {
	var (
		reg     model.StreetRegulation
		days    []int32
		allowed []string
	)

	err := r.pool.QueryRow(ctx,
		`SELECT spot_id, enforcement_days, enforcement_start_minute, enforcement_end_minute,
		        max_duration_minutes, allowed_vehicle_types, permit_required, permit_zone, access_instructions
		 FROM street_regulations
		 WHERE spot_id = $1`,
		spotID,
	).Scan(
		&reg.SpotID, &days, &reg.EnforcementStartMinute, &reg.EnforcementEndMinute,
		&reg.MaxDurationMinutes, &allowed, &reg.PermitRequired, &reg.PermitZone, &reg.AccessInstructions,
	)
	if err != nil {
		return model.StreetRegulation{}, fmt.Errorf("get regulation: %w", mapError(err))
	}

	for _, d := range days {
		reg.EnforcementDays = append(reg.EnforcementDays, int(d))
	}
	for _, vt := range allowed {
		reg.AllowedVehicleTypes = append(reg.AllowedVehicleTypes, model.VehicleType(vt))
	}
	return reg, nil
}

// ListRestrictions возвращает временные ограничения места, пересекающие [start, end).
func (r *PostgresRepository) ListRestrictions(ctx context.Context, spotID string, start, end time.Time) ([]model.TemporaryRestriction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT spot_id, start_time, end_time, reason
		 FROM street_restrictions
		 WHERE spot_id = $1 AND start_time < $3 AND end_time > $2
		 ORDER BY start_time`,
		spotID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("select restrictions: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TemporaryRestriction, error) {
		var t model.TemporaryRestriction
		err := row.Scan(&t.SpotID, &t.Start, &t.End, &t.Reason)
		return t, err
	})
}

// GetActivePermit возвращает разрешение пользователя для зоны, действующее в момент at.
func (r *PostgresRepository) GetActivePermit(ctx context.Context, userID, zone string, at time.Time) (model.ParkingPermit, error) {
	var p model.ParkingPermit
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, zone, is_active, valid_from, valid_until
		 FROM parking_permits
		 WHERE user_id = $1 AND zone = $2 AND is_active AND valid_from <= $3 AND valid_until > $3
		 ORDER BY valid_until DESC
		 LIMIT 1`,
		userID, zone, at,
	).Scan(&p.UserID, &p.Zone, &p.IsActive, &p.ValidFrom, &p.ValidUntil)
	if err != nil {
		return model.ParkingPermit{}, fmt.Errorf("get permit: %w", mapError(err))
	}
	return p, nil
}

// GetFacilityBySpot возвращает паркинг, к которому относится место.
func (r *PostgresRepository) GetFacilityBySpot(ctx context.Context, spotID string) (model.Facility, error) {
	var (
		f        model.Facility
		pm       string
		flatRate int64
		tiers    []byte
	)

	err := r.pool.QueryRow(ctx,
		`SELECT f.id, f.name, f.is_24_hours, f.open_minute, f.close_minute, f.height_limit_cm,
		        f.requires_access_credential, f.reservation_only, f.pricing_model, f.flat_rate_cents,
		        f.tiers, f.premium_multiplier, f.access_instructions
		 FROM facilities f
		 JOIN parking_spots s ON s.facility_id = f.id
		 WHERE s.id = $1`,
		spotID,
	).Scan(
		&f.ID, &f.Name, &f.Is24Hours, &f.OpenMinute, &f.CloseMinute, &f.HeightLimitCm,
		&f.RequiresAccessCredential, &f.ReservationOnly, &pm, &flatRate,
		&tiers, &f.PremiumMultiplier, &f.AccessInstructions,
	)
	if err != nil {
		return model.Facility{}, fmt.Errorf("get facility: %w", mapError(err))
	}

	f.PricingModel = model.FacilityPricingModel(pm)
	f.FlatRate = fromCents(flatRate)
	if f.Tiers, err = unmarshalList[model.DurationTier](tiers); err != nil {
		return model.Facility{}, fmt.Errorf("unmarshal tiers: %w", err)
	}
	return f, nil
}

// ListClosures возвращает периоды закрытия паркинга, пересекающие [start, end).
func (r *PostgresRepository) ListClosures(ctx context.Context, facilityID string, start, end time.Time) ([]model.MaintenanceClosure, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT facility_id, start_time, end_time, reason
		 FROM facility_closures
		 WHERE facility_id = $1 AND start_time < $3 AND end_time > $2
		 ORDER BY start_time`,
		facilityID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("select closures: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.MaintenanceClosure, error) {
		var c model.MaintenanceClosure
		err := row.Scan(&c.FacilityID, &c.Start, &c.End, &c.Reason)
		return c, err
	})
}

// HasAccessCredential сообщает, выдан ли пользователю пропуск в паркинг.
func (r *PostgresRepository) HasAccessCredential(ctx context.Context, userID, facilityID string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM access_credentials WHERE user_id = $1 AND facility_id = $2)`,
		userID, facilityID,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("select access credential: %w", err)
	}
	return ok, nil
}
