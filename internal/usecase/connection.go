package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/chatrelay/internal/domain"
)

const (
	historyLimit = 20
	repliesLimit = 1000
)

// ConnectionUsecase routes socket lifecycle events for one connection at a
// time: connect, frames and disconnect.
type ConnectionUsecase struct {
	repo       ConnectionRepository
	mapping    *MappingUsecase
	auth       AuthProvider
	platform   ChatPlatform
	gateway    ConnectionGateway
	normalizer *MessageNormalizer
}

func NewConnectionUsecase(
	repo ConnectionRepository,
	mapping *MappingUsecase,
	auth AuthProvider,
	platform ChatPlatform,
	gateway ConnectionGateway,
) *ConnectionUsecase {
	return &ConnectionUsecase{
		repo:       repo,
		mapping:    mapping,
		auth:       auth,
		platform:   platform,
		gateway:    gateway,
		normalizer: NewMessageNormalizer(platform),
	}
}

// Connect authenticates a new connection and records it.
func (uc *ConnectionUsecase) Connect(ctx context.Context, connectionID, token string) (domain.Connection, error) {
	ctx, span := tracer.Start(ctx, "Connection.Usecase.Connect")
	defer span.End()

	if token == "" {
		slog.WarnContext(ctx, "token not found", slog.String("connection", connectionID), slog.String("module", "connection"))
		return domain.Connection{}, domain.ErrUnauthenticated
	}

	email, ok, err := uc.auth.EmailByToken(ctx, token)
	if err != nil {
		span.RecordError(err)
		return domain.Connection{}, errors.Wrap(err, "failed to verify token")
	}
	if !ok || email == "" {
		slog.WarnContext(ctx, "no email found for token", slog.String("connection", connectionID), slog.String("module", "connection"))
		return domain.Connection{}, domain.ErrUnauthenticated
	}

	conn := domain.Connection{ConnectionID: connectionID, Email: email}
	if err := uc.repo.Put(ctx, conn); err != nil {
		span.RecordError(err)
		return domain.Connection{}, errors.Wrap(err, "failed to store connection")
	}
	span.SetAttributes(attribute.String("email", email))
	return conn, nil
}

// Disconnect removes the connection record and notifies the admin channel.
func (uc *ConnectionUsecase) Disconnect(ctx context.Context, connectionID string) error {
	ctx, span := tracer.Start(ctx, "Connection.Usecase.Disconnect")
	defer span.End()

	conn, err := uc.repo.Get(ctx, connectionID)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to get connection")
	}

	if err := uc.repo.Delete(ctx, connectionID); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to delete connection")
	}

	slog.InfoContext(ctx, "disconnect", slog.String("connection", connectionID), slog.String("email", conn.Email), slog.String("module", "connection"))
	if err := uc.platform.PostToAdminChannel(ctx, fmt.Sprintf("User %s disconnected", conn.Email)); err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "failed to notify admin channel")
	}
	return nil
}

// HandleFrame executes one client frame. Failures of the operation itself are
// reported inside the envelope; the returned error is reserved for failing to
// load the connection record.
func (uc *ConnectionUsecase) HandleFrame(ctx context.Context, connectionID string, frame domain.Frame, correlationID string) (domain.Envelope, error) {
	ctx, span := tracer.Start(ctx, "Connection.Usecase.HandleFrame")
	defer span.End()
	span.SetAttributes(attribute.String("type", domain.FrameType(frame)))

	conn, err := uc.repo.Get(ctx, connectionID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return domain.Envelope{}, errors.Wrap(err, "failed to get connection")
	}

	var data any
	if err == nil {
		data, err = uc.dispatch(ctx, conn, frame)
	}
	if err != nil {
		slog.ErrorContext(
			ctx, "error while processing message",
			slog.String("connection", connectionID),
			slog.String("type", domain.FrameType(frame)),
			slog.String("error", err.Error()),
			slog.String("module", "connection"),
		)
		return domain.Envelope{Error: errors.Cause(err).Error(), CorrelationID: correlationID}, nil
	}
	return domain.Envelope{Data: data, CorrelationID: correlationID}, nil
}

func (uc *ConnectionUsecase) dispatch(ctx context.Context, conn domain.Connection, frame domain.Frame) (any, error) {
	switch f := frame.(type) {
	case domain.JoinFrame:
		return uc.join(ctx, conn)
	case domain.PostFrame:
		return uc.post(ctx, conn, f)
	case domain.HistoryFrame:
		return uc.history(ctx, conn, f)
	case domain.RepliesFrame:
		return uc.replies(ctx, conn, f)
	case domain.UnknownFrame:
		return nil, domain.UnknownMessageTypeError{Type: f.Type}
	default:
		return nil, domain.UnknownMessageTypeError{Type: domain.FrameType(frame)}
	}
}

func (uc *ConnectionUsecase) join(ctx context.Context, conn domain.Connection) (domain.JoinResult, error) {
	channels, err := uc.mapping.GetChannels(ctx)
	if err != nil {
		return domain.JoinResult{}, err
	}

	emailDomain := domain.EmailDomain(conn.Email)
	channelID, ok := channels[emailDomain]
	if !ok || channelID == "" {
		slog.WarnContext(ctx, "no channel mapping found", slog.String("email", conn.Email), slog.String("module", "connection"))
		if err := uc.platform.PostToAdminChannel(ctx, fmt.Sprintf("No channel mapping found for %s", conn.Email)); err != nil {
			return domain.JoinResult{}, errors.Wrap(err, "failed to notify admin channel")
		}
		if err := uc.gateway.Close(ctx, conn.ConnectionID); err != nil {
			return domain.JoinResult{}, errors.Wrap(err, "failed to disconnect client")
		}
		return domain.JoinResult{}, domain.UnmappedDomainError{Email: conn.Email}
	}

	conn.ChannelID = channelID
	if err := uc.repo.Put(ctx, conn); err != nil {
		return domain.JoinResult{}, errors.Wrap(err, "failed to store connection")
	}

	info, err := uc.platform.GetChannelInfo(ctx, channelID)
	if err != nil {
		return domain.JoinResult{}, errors.Wrap(err, "failed to get channel info")
	}

	if err := uc.platform.PostToAdminChannel(ctx, fmt.Sprintf("User %s joined channel <#%s|%s>", conn.Email, channelID, info.Name)); err != nil {
		return domain.JoinResult{}, errors.Wrap(err, "failed to notify admin channel")
	}

	return domain.JoinResult{
		Email:       conn.Email,
		ChannelID:   channelID,
		ChannelName: info.Name,
		TeamID:      info.TeamID,
	}, nil
}

func (uc *ConnectionUsecase) post(ctx context.Context, conn domain.Connection, f domain.PostFrame) (string, error) {
	if !conn.Joined() {
		return "", domain.ErrNotJoined
	}
	return uc.platform.PostMessage(ctx, conn.ChannelID, domain.OutgoingMessage{
		ThreadID: f.ThreadID,
		Text:     f.Text,
		Username: f.User.Name,
		IconURL:  f.User.Icon,
	})
}

func (uc *ConnectionUsecase) history(ctx context.Context, conn domain.Connection, f domain.HistoryFrame) ([]domain.Message, error) {
	if !conn.Joined() {
		return nil, domain.ErrNotJoined
	}
	msgs, err := uc.platform.GetHistory(ctx, conn.ChannelID, f.Latest, historyLimit)
	if err != nil {
		return nil, err
	}
	return uc.normalizer.NormalizeAll(ctx, msgs)
}

func (uc *ConnectionUsecase) replies(ctx context.Context, conn domain.Connection, f domain.RepliesFrame) ([]domain.Message, error) {
	if !conn.Joined() {
		return nil, domain.ErrNotJoined
	}
	msgs, err := uc.platform.GetReplies(ctx, conn.ChannelID, f.TS, repliesLimit)
	if err != nil {
		return nil, err
	}
	return uc.normalizer.NormalizeAll(ctx, msgs)
}
