// Package notify публикует уведомления пользователей и изменения занятости мест в Redis.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

const (
	// NotificationsChannel - канал уведомлений пользователей.
	NotificationsChannel = "parking:notifications"
	// OccupancyChannel - канал изменений статуса мест.
	OccupancyChannel = "parking:occupancy"

	publishTimeout = 2 * time.Second
)

// Client - часть redis-клиента, нужная публикатору.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher отправляет события в Redis pub/sub. Ошибки публикации только логируются.
type Publisher struct {
	client Client
	logger *zap.Logger
}

// NewPublisher создаёт публикатор. Без клиента события только логируются.
func NewPublisher(client Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, logger: logger}
}

// Notify публикует уведомление пользователю.
func (p *Publisher) Notify(ctx context.Context, n model.Notification) {
	p.publish(ctx, NotificationsChannel, n,
		zap.String("type", string(n.Type)), zap.String("bookingID", n.BookingID))
}

// PublishOccupancy публикует изменение статуса места.
func (p *Publisher) PublishOccupancy(ctx context.Context, u model.OccupancyUpdate) {
	p.publish(ctx, OccupancyChannel, u,
		zap.String("spotID", u.SpotID), zap.String("status", string(u.Status)))
}

func (p *Publisher) publish(ctx context.Context, channel string, v any, fields ...zap.Field) {
	fields = append(fields, zap.String("channel", channel))

	if p.client == nil {
		p.logger.Debug("event not published, redis is not configured", fields...)
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("marshal event", append(fields, zap.Error(err))...)
		return
	}

	// Отмена запроса клиента не должна терять событие.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		p.logger.Warn("publish event", append(fields, zap.Error(err))...)
	}
}
