package repository

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/zeebo/xxh3"
)

const (
	eventTTL       = 10 * time.Minute
	eventKeyPrefix = "chatrelay:event:"
	// longer keys are stored by digest
	maxEventKeyLen = 64
)

// EventRepository remembers processed platform event keys for a short window
// so that webhook retries are not relayed twice.
type EventRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewEventRepository(rdb *redis.Client) *EventRepository {
	return &EventRepository{rdb: rdb, ttl: eventTTL}
}

// eventKey keeps short ids readable in redis and bounds the length of
// everything else with a 128 bit xxh3 digest.
func eventKey(key string) string {
	if len(key) <= maxEventKeyLen {
		return eventKeyPrefix + key
	}
	sum := xxh3.HashString128(key).Bytes()
	return eventKeyPrefix + "h:" + hex.EncodeToString(sum[:])
}

func (r *EventRepository) Seen(ctx context.Context, key string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Event.Repository.Seen")
	defer span.End()

	ok, err := r.rdb.SetNX(ctx, eventKey(key), 1, r.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, errors.Wrap(err, "failed to record event")
	}
	return !ok, nil
}

// Forget drops a recorded key so the next delivery of the event is processed.
func (r *EventRepository) Forget(ctx context.Context, key string) error {
	ctx, span := tracer.Start(ctx, "Event.Repository.Forget")
	defer span.End()

	if err := r.rdb.Del(ctx, eventKey(key)).Err(); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to release event")
	}
	return nil
}
