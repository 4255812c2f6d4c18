package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/chatrelay/internal/domain"
)

const (
	SignalPush  = "push"
	SignalClose = "close"
)

// Signal is a message addressed to one live connection.
type Signal struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SignalService delivers signals to the process holding a connection's socket
// through redis pub/sub, one channel per connection id.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func signalChannel(connectionID string) string {
	return "chatrelay:conn:" + connectionID
}

func (s *SignalService) publish(ctx context.Context, connectionID string, signal Signal) error {
	jsonstr, err := json.Marshal(signal)
	if err != nil {
		return err
	}

	receivers, err := s.rdb.Publish(ctx, signalChannel(connectionID), jsonstr).Result()
	if err != nil {
		return errors.Wrap(err, "failed to publish signal")
	}
	if receivers == 0 {
		return domain.ErrStaleConnection
	}
	return nil
}

// Post pushes payload to the connection. It returns domain.ErrStaleConnection
// when no process is subscribed for it.
func (s *SignalService) Post(ctx context.Context, connectionID string, payload any) error {
	ctx, span := tracer.Start(ctx, "Signal.Service.Post")
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		return err
	}
	err = s.publish(ctx, connectionID, Signal{Kind: SignalPush, Payload: body})
	if err != nil && !errors.Is(err, domain.ErrStaleConnection) {
		span.RecordError(err)
	}
	return err
}

// Close asks the connection's holder to close the socket. A connection that is
// already gone is not an error.
func (s *SignalService) Close(ctx context.Context, connectionID string) error {
	ctx, span := tracer.Start(ctx, "Signal.Service.Close")
	defer span.End()

	err := s.publish(ctx, connectionID, Signal{Kind: SignalClose})
	if errors.Is(err, domain.ErrStaleConnection) {
		slog.DebugContext(ctx, "close requested for stale connection", slog.String("connection", connectionID), slog.String("module", "signal"))
		return nil
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Subscribe returns a subscription receiving the signals for connectionID.
// The subscription is ready when Subscribe returns.
func (s *SignalService) Subscribe(ctx context.Context, connectionID string) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, signalChannel(connectionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, errors.Wrap(err, "failed to subscribe")
	}

	sub := &Subscription{
		pubsub: pubsub,
		C:      make(chan Signal),
	}
	go sub.run(ctx)
	return sub, nil
}

// Subscription is a live stream of signals for one connection.
type Subscription struct {
	pubsub *redis.PubSub
	C      chan Signal
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.C)
	for msg := range s.pubsub.Channel() {
		var signal Signal
		if err := json.Unmarshal([]byte(msg.Payload), &signal); err != nil {
			slog.WarnContext(ctx, "invalid signal", slog.String("error", err.Error()), slog.String("module", "signal"))
			continue
		}
		select {
		case s.C <- signal:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}
