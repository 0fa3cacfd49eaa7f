// Package availability управляет доступностью парковочных мест и временными удержаниями.
//
// Manager - единственный компонент, который меняет статус места. Каждая запись
// статуса защищена версией места и сопровождается откатом при сбое следующего шага.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

// DefaultReservationTTL - время удержания места на период оформления.
const DefaultReservationTTL = 15 * time.Minute

const (
	maxWriteAttempts = 3
	sweepBatchSize   = 100
)

// Store описывает хранилище, которое нужно менеджеру доступности.
type Store interface {
	GetSpot(ctx context.Context, spotID string) (model.Spot, error)
	// UpdateSpotStatus меняет статус, если версия места совпадает с expectedVersion,
	// и возвращает новую версию. При несовпадении возвращает model.ErrStaleWrite.
	UpdateSpotStatus(ctx context.Context, spotID string, status model.SpotStatus, expectedVersion int64) (int64, error)
	ListOverlappingBookings(ctx context.Context, spotID string, start, end time.Time) ([]model.Booking, error)
	ListSpotReservations(ctx context.Context, spotID string) ([]model.SpotReservation, error)
	CreateReservation(ctx context.Context, r model.SpotReservation) error
	DeleteReservation(ctx context.Context, id string) error
	DeleteSpotReservations(ctx context.Context, spotID string) (int64, error)
	DeleteUserReservations(ctx context.Context, spotID, userID string) (int64, error)
	ListExpiredReservations(ctx context.Context, now time.Time, limit int) ([]model.SpotReservation, error)
	CountZoneSpots(ctx context.Context, zoneID string) (total, busy int, err error)
	CountActiveBookings(ctx context.Context, spotID string) (int, error)
}

// OccupancyPublisher получает изменения статусов мест. Доставка не должна блокировать вызывающего.
type OccupancyPublisher interface {
	PublishOccupancy(ctx context.Context, u model.OccupancyUpdate)
}

// Manager отвечает на запросы доступности и держит временные брони мест.
type Manager struct {
	store     Store
	publisher OccupancyPublisher
	logger    *zap.Logger
	ttl       time.Duration
	now       func() time.Time
}

// NewManager создаёт менеджер доступности. publisher может быть nil.
func NewManager(store Store, publisher OccupancyPublisher, logger *zap.Logger, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultReservationTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:     store,
		publisher: publisher,
		logger:    logger,
		ttl:       ttl,
		now:       time.Now,
	}
}

// CheckAvailability сообщает, свободно ли место на интервале [start, end).
// Место недоступно на обслуживании или при пересечении с подтверждённой или активной бронью.
func (m *Manager) CheckAvailability(ctx context.Context, spotID string, start, end time.Time) (bool, error) {
	spot, err := m.store.GetSpot(ctx, spotID)
	if err != nil {
		return false, fmt.Errorf("get spot: %w", err)
	}
	return m.available(ctx, spot, start, end)
}

func (m *Manager) available(ctx context.Context, spot model.Spot, start, end time.Time) (bool, error) {
	if spot.Status == model.SpotStatusMaintenance {
		return false, nil
	}

	bookings, err := m.store.ListOverlappingBookings(ctx, spot.ID, start, end)
	if err != nil {
		return false, fmt.Errorf("list bookings: %w", err)
	}
	for _, b := range bookings {
		if b.BlocksSpot() && b.Overlaps(start, end) {
			return false, nil
		}
	}
	return true, nil
}

// ReserveSpot повторно проверяет доступность, переводит место в reserved и
// создаёт удержание со сроком now+TTL. Если удержание не сохранилось, статус
// места возвращается к прежнему значению.
//
// Пересекающееся действующее удержание другого пользователя считается конфликтом.
// Истёкшие удержания и собственные пересекающиеся удержания пользователя заменяются.
func (m *Manager) ReserveSpot(ctx context.Context, spotID, userID string, start, end time.Time) (model.SpotReservation, error) {
	if !start.Before(end) {
		return model.SpotReservation{}, model.NewValidationError("start time must be before end time")
	}

	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		now := m.now()

		spot, err := m.store.GetSpot(ctx, spotID)
		if err != nil {
			return model.SpotReservation{}, fmt.Errorf("get spot: %w", err)
		}

		ok, err := m.available(ctx, spot, start, end)
		if err != nil {
			return model.SpotReservation{}, err
		}
		if !ok {
			return model.SpotReservation{}, model.ErrAvailabilityConflict
		}

		if err := m.clearHolds(ctx, spotID, userID, start, end, now); err != nil {
			return model.SpotReservation{}, err
		}

		next := spot.Status
		if next == model.SpotStatusAvailable {
			next = model.SpotStatusReserved
		}

		version, err := m.store.UpdateSpotStatus(ctx, spotID, next, spot.Version)
		if errors.Is(err, model.ErrStaleWrite) {
			continue
		}
		if err != nil {
			return model.SpotReservation{}, &model.PersistenceError{Op: "reserve spot", Err: err}
		}

		r := model.SpotReservation{
			ID:        uuid.NewString(),
			SpotID:    spotID,
			UserID:    userID,
			StartTime: start,
			EndTime:   end,
			ExpiresAt: now.Add(m.ttl),
		}
		if err := m.store.CreateReservation(ctx, r); err != nil {
			m.rollbackStatus(ctx, spotID, spot.Status, version)
			if errors.Is(err, model.ErrAvailabilityConflict) {
				return model.SpotReservation{}, err
			}
			return model.SpotReservation{}, &model.PersistenceError{Op: "create reservation", Err: err}
		}

		if next != spot.Status {
			m.publish(ctx, spot, next)
		}
		return r, nil
	}

	return model.SpotReservation{}, fmt.Errorf("reserve spot %s: %w", spotID, model.ErrStaleWrite)
}

// clearHolds удаляет истёкшие и собственные пересекающиеся удержания и
// возвращает конфликт при пересечении с чужим действующим удержанием.
func (m *Manager) clearHolds(ctx context.Context, spotID, userID string, start, end, now time.Time) error {
	holds, err := m.store.ListSpotReservations(ctx, spotID)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	for _, h := range holds {
		overlapping := h.StartTime.Before(end) && start.Before(h.EndTime)
		switch {
		case h.Expired(now), overlapping && h.UserID == userID:
			if err := m.store.DeleteReservation(ctx, h.ID); err != nil {
				return fmt.Errorf("delete reservation: %w", err)
			}
		case overlapping:
			return model.ErrAvailabilityConflict
		}
	}
	return nil
}

func (m *Manager) rollbackStatus(ctx context.Context, spotID string, prev model.SpotStatus, version int64) {
	if _, err := m.store.UpdateSpotStatus(ctx, spotID, prev, version); err != nil {
		m.logger.Error("rollback spot status failed",
			zap.String("spotID", spotID),
			zap.String("status", string(prev)),
			zap.Error(err),
		)
	}
}

// ReleaseSpot принудительно удаляет все удержания места и возвращает его в available.
// Повторный вызов ничего не меняет. Место на обслуживании остаётся на обслуживании.
func (m *Manager) ReleaseSpot(ctx context.Context, spotID string) error {
	if _, err := m.store.DeleteSpotReservations(ctx, spotID); err != nil {
		return &model.PersistenceError{Op: "delete reservations", Err: err}
	}
	return m.transition(ctx, spotID, func(s model.SpotStatus) (model.SpotStatus, bool) {
		if s == model.SpotStatusAvailable || s == model.SpotStatusMaintenance {
			return s, false
		}
		return model.SpotStatusAvailable, true
	})
}

// ReleaseHold снимает удержания владельца брони, пересекающие её интервал.
// Место возвращается в available, только если на нём не осталось чужих
// действующих удержаний и активных парковок. Повторный вызов ничего не меняет.
func (m *Manager) ReleaseHold(ctx context.Context, b model.Booking) error {
	now := m.now()

	holds, err := m.store.ListSpotReservations(ctx, b.SpotID)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}

	live := 0
	for _, h := range holds {
		if h.UserID == b.UserID && h.StartTime.Before(b.EndTime) && b.StartTime.Before(h.EndTime) {
			if err := m.store.DeleteReservation(ctx, h.ID); err != nil {
				return &model.PersistenceError{Op: "delete reservation", Err: err}
			}
			continue
		}
		if !h.Expired(now) {
			live++
		}
	}

	active, err := m.store.CountActiveBookings(ctx, b.SpotID)
	if err != nil {
		return fmt.Errorf("count active bookings: %w", err)
	}
	if live > 0 || active > 0 {
		return nil
	}

	return m.transition(ctx, b.SpotID, func(s model.SpotStatus) (model.SpotStatus, bool) {
		if s == model.SpotStatusAvailable || s == model.SpotStatusMaintenance {
			return s, false
		}
		return model.SpotStatusAvailable, true
	})
}

// MarkOccupied переводит место в occupied при начале парковки.
func (m *Manager) MarkOccupied(ctx context.Context, spotID string) error {
	return m.transition(ctx, spotID, func(s model.SpotStatus) (model.SpotStatus, bool) {
		return model.SpotStatusOccupied, s != model.SpotStatusOccupied
	})
}

// ConsumeHold снимает удержания пользователя после подтверждения брони.
// Статус места не меняется: дальше место блокирует сама бронь.
func (m *Manager) ConsumeHold(ctx context.Context, spotID, userID string) error {
	if _, err := m.store.DeleteUserReservations(ctx, spotID, userID); err != nil {
		return &model.PersistenceError{Op: "delete reservations", Err: err}
	}
	return nil
}

// transition выполняет запись статуса с проверкой версии и повторяет её при гонке.
func (m *Manager) transition(ctx context.Context, spotID string, next func(model.SpotStatus) (model.SpotStatus, bool)) error {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		spot, err := m.store.GetSpot(ctx, spotID)
		if err != nil {
			return fmt.Errorf("get spot: %w", err)
		}

		status, change := next(spot.Status)
		if !change {
			return nil
		}

		_, err = m.store.UpdateSpotStatus(ctx, spotID, status, spot.Version)
		if errors.Is(err, model.ErrStaleWrite) {
			continue
		}
		if err != nil {
			return &model.PersistenceError{Op: "update spot status", Err: err}
		}

		m.publish(ctx, spot, status)
		return nil
	}
	return fmt.Errorf("update spot %s: %w", spotID, model.ErrStaleWrite)
}

// SweepExpired удаляет истёкшие удержания и освобождает места, у которых
// не осталось действующих удержаний. Возвращает число удалённых удержаний.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	now := m.now()

	expired, err := m.store.ListExpiredReservations(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}

	swept := 0
	spots := make(map[string]struct{})
	for _, r := range expired {
		if err := m.store.DeleteReservation(ctx, r.ID); err != nil {
			return swept, fmt.Errorf("delete reservation: %w", err)
		}
		swept++
		spots[r.SpotID] = struct{}{}
	}

	for spotID := range spots {
		if err := m.releaseIfIdle(ctx, spotID, now); err != nil {
			m.logger.Warn("release swept spot", zap.String("spotID", spotID), zap.Error(err))
		}
	}

	return swept, nil
}

func (m *Manager) releaseIfIdle(ctx context.Context, spotID string, now time.Time) error {
	holds, err := m.store.ListSpotReservations(ctx, spotID)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}
	for _, h := range holds {
		if !h.Expired(now) {
			return nil
		}
	}

	return m.transition(ctx, spotID, func(s model.SpotStatus) (model.SpotStatus, bool) {
		return model.SpotStatusAvailable, s == model.SpotStatusReserved
	})
}

// StartSweeper запускает фоновую очистку истёкших удержаний и блокируется до отмены ctx.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.SweepExpired(ctx)
			if err != nil {
				m.logger.Error("sweep expired reservations", zap.Error(err))
				continue
			}
			if n > 0 {
				m.logger.Info("expired reservations swept", zap.Int("count", n))
			}
		}
	}
}

// OccupancyRate возвращает долю занятых и удерживаемых мест зоны в процентах.
func (m *Manager) OccupancyRate(ctx context.Context, zoneID string) (float64, error) {
	total, busy, err := m.store.CountZoneSpots(ctx, zoneID)
	if err != nil {
		return 0, fmt.Errorf("count zone spots: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(busy) * 100 / float64(total), nil
}

func (m *Manager) publish(ctx context.Context, spot model.Spot, status model.SpotStatus) {
	if m.publisher == nil {
		return
	}
	m.publisher.PublishOccupancy(ctx, model.OccupancyUpdate{
		SpotID:    spot.ID,
		ZoneID:    spot.ZoneID,
		Status:    status,
		Timestamp: m.now(),
	})
}
