package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"momolearn-backend/internal/models"
)

// UserChannel is the pub/sub channel that carries pushes for one user.
func UserChannel(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}

// StatusPublisher announces study set status changes. Publishing is best
// effort and never fails the caller.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, userID uuid.UUID, event models.StudySetStatusEvent)
}

type RedisStatusPublisher struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisStatusPublisher(rdb *redis.Client, log *zap.Logger) *RedisStatusPublisher {
	return &RedisStatusPublisher{rdb: rdb, log: log.Named("events")}
}

// PublishStatus sends a WebSocket update via Redis pub/sub
func (p *RedisStatusPublisher) PublishStatus(ctx context.Context, userID uuid.UUID, event models.StudySetStatusEvent) {
	data, err := json.Marshal(models.WSMessage{Type: models.WSTypeStudySetStatus, Payload: event})
	if err != nil {
		p.log.Error("failed to encode status event", zap.Error(err))
		return
	}
	if err := p.rdb.Publish(ctx, UserChannel(userID), data).Err(); err != nil {
		p.log.Warn("failed to publish status event",
			zap.String("user_id", userID.String()),
			zap.String("set_id", event.SetID.String()),
			zap.Error(err),
		)
	}
}
