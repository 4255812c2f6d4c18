package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/chatrelay/internal/domain"
)

var tracer = otel.Tracer("repository")

const connectionsKey = "chatrelay:connections"

// ConnectionRepository keeps connection records in a single redis hash keyed
// by connection id.
type ConnectionRepository struct {
	rdb *redis.Client
}

func NewConnectionRepository(rdb *redis.Client) *ConnectionRepository {
	return &ConnectionRepository{rdb: rdb}
}

func (r *ConnectionRepository) Put(ctx context.Context, conn domain.Connection) error {
	ctx, span := tracer.Start(ctx, "Connection.Repository.Put")
	defer span.End()

	value, err := json.Marshal(conn)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := r.rdb.HSet(ctx, connectionsKey, conn.ConnectionID, value).Err(); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to store connection")
	}
	return nil
}

func (r *ConnectionRepository) Get(ctx context.Context, connectionID string) (domain.Connection, error) {
	ctx, span := tracer.Start(ctx, "Connection.Repository.Get")
	defer span.End()

	value, err := r.rdb.HGet(ctx, connectionsKey, connectionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Connection{}, domain.NotFoundError{Resource: "connection"}
	}
	if err != nil {
		span.RecordError(err)
		return domain.Connection{}, errors.Wrap(err, "failed to load connection")
	}

	var conn domain.Connection
	if err := json.Unmarshal(value, &conn); err != nil {
		span.RecordError(err)
		return domain.Connection{}, errors.Wrap(err, "corrupt connection record")
	}
	return conn, nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, connectionID string) error {
	ctx, span := tracer.Start(ctx, "Connection.Repository.Delete")
	defer span.End()

	if err := r.rdb.HDel(ctx, connectionsKey, connectionID).Err(); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to delete connection")
	}
	return nil
}

// List returns every stored connection. Records that fail to decode are
// skipped.
func (r *ConnectionRepository) List(ctx context.Context) ([]domain.Connection, error) {
	ctx, span := tracer.Start(ctx, "Connection.Repository.List")
	defer span.End()

	values, err := r.rdb.HGetAll(ctx, connectionsKey).Result()
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to list connections")
	}

	result := make([]domain.Connection, 0, len(values))
	for _, value := range values {
		var conn domain.Connection
		if err := json.Unmarshal([]byte(value), &conn); err != nil {
			continue
		}
		result = append(result, conn)
	}
	return result, nil
}
