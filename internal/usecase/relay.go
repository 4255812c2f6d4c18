package usecase

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/totegamma/chatrelay/internal/domain"
)

// RelayUsecase fans inbound platform messages out to the connections joined to
// the message's channel.
type RelayUsecase struct {
	repo       ConnectionRepository
	gateway    ConnectionGateway
	events     EventLog
	normalizer *MessageNormalizer
}

func NewRelayUsecase(
	repo ConnectionRepository,
	gateway ConnectionGateway,
	events EventLog,
	users UserResolver,
) *RelayUsecase {
	return &RelayUsecase{
		repo:       repo,
		gateway:    gateway,
		events:     events,
		normalizer: NewMessageNormalizer(users),
	}
}

func (uc *RelayUsecase) HandleEvent(ctx context.Context, event domain.PlatformEvent) (domain.RelayResult, error) {
	ctx, span := tracer.Start(ctx, "Relay.Usecase.HandleEvent")
	defer span.End()

	switch ev := event.(type) {
	case domain.ChallengeEvent:
		slog.InfoContext(ctx, "handling challenge", slog.String("module", "relay"))
		return domain.RelayResult{Challenge: ev.Challenge}, nil
	case domain.MessageEvent:
		result, err := uc.relay(ctx, ev)
		if err != nil {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("delivered", result.Delivered), attribute.Int("pruned", result.Pruned))
		return result, err
	case domain.IgnoredEvent:
		slog.DebugContext(ctx, "ignoring event", slog.String("reason", ev.Reason), slog.String("module", "relay"))
		return domain.RelayResult{}, nil
	default:
		return domain.RelayResult{}, nil
	}
}

func (uc *RelayUsecase) relay(ctx context.Context, ev domain.MessageEvent) (result domain.RelayResult, err error) {
	if uc.events != nil && ev.EventID != "" {
		seen, serr := uc.events.Seen(ctx, ev.EventID)
		if serr != nil {
			return domain.RelayResult{}, errors.Wrap(serr, "failed to check event log")
		}
		if seen {
			slog.InfoContext(ctx, "duplicate event", slog.String("event", ev.EventID), slog.String("module", "relay"))
			return domain.RelayResult{Duplicate: true}, nil
		}
		// a failed relay must stay retryable
		defer func() {
			if err == nil {
				return
			}
			if ferr := uc.events.Forget(context.WithoutCancel(ctx), ev.EventID); ferr != nil {
				slog.ErrorContext(
					ctx, "failed to release event",
					slog.String("event", ev.EventID),
					slog.String("error", ferr.Error()),
					slog.String("module", "relay"),
				)
			}
		}()
	}

	connections, err := uc.repo.List(ctx)
	if err != nil {
		return domain.RelayResult{}, errors.Wrap(err, "failed to list connections")
	}
	slog.DebugContext(ctx, "found connections", slog.Int("count", len(connections)), slog.String("module", "relay"))

	msg, err := uc.normalizer.Normalize(ctx, ev.Message)
	if err != nil {
		return domain.RelayResult{}, err
	}
	push := domain.Push{Type: "message", Data: msg}

	var delivered, pruned atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for _, conn := range connections {
		if conn.ChannelID != ev.Channel {
			continue
		}
		connectionID := conn.ConnectionID
		g.Go(func() error {
			err := uc.gateway.Post(gctx, connectionID, push)
			if err == nil {
				delivered.Add(1)
				return nil
			}
			if errors.Is(err, domain.ErrStaleConnection) {
				slog.InfoContext(gctx, "found stale connection, deleting", slog.String("connection", connectionID), slog.String("module", "relay"))
				if err := uc.repo.Delete(gctx, connectionID); err != nil {
					return errors.Wrapf(err, "failed to delete stale connection %s", connectionID)
				}
				pruned.Add(1)
				return nil
			}
			slog.ErrorContext(
				gctx, "failed to send message to connection",
				slog.String("connection", connectionID),
				slog.String("error", err.Error()),
				slog.String("module", "relay"),
			)
			return errors.Wrapf(err, "failed to send message to connection %s", connectionID)
		})
	}
	err = g.Wait()

	result = domain.RelayResult{Delivered: int(delivered.Load()), Pruned: int(pruned.Load())}
	return result, err
}
