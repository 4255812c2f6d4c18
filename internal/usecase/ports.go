package usecase

import (
	"context"

	"github.com/totegamma/chatrelay/internal/domain"
)

// ConnectionRepository stores connection records keyed by connection id.
type ConnectionRepository interface {
	Put(ctx context.Context, conn domain.Connection) error
	Get(ctx context.Context, connectionID string) (domain.Connection, error)
	Delete(ctx context.Context, connectionID string) error
	List(ctx context.Context) ([]domain.Connection, error)
}

// MappingRepository stores domain to channel mapping rules.
type MappingRepository interface {
	List(ctx context.Context) ([]domain.MappingRule, error)
	Replace(ctx context.Context, rules []domain.MappingRule) error
}

// MappingSource fetches the authoritative mapping rules.
type MappingSource interface {
	Fetch(ctx context.Context) ([]domain.MappingRule, error)
}

// AuthProvider exchanges a client token for a verified email. ok is false when
// the token is invalid; err is reserved for unexpected failures.
type AuthProvider interface {
	EmailByToken(ctx context.Context, token string) (email string, ok bool, err error)
}

// UserResolver resolves a platform user id to a display user.
type UserResolver interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
}

// ChatPlatform is the chat platform client.
type ChatPlatform interface {
	UserResolver
	PostMessage(ctx context.Context, channelID string, msg domain.OutgoingMessage) (string, error)
	PostToAdminChannel(ctx context.Context, text string) error
	GetChannelInfo(ctx context.Context, channelID string) (domain.ChannelInfo, error)
	GetHistory(ctx context.Context, channelID, latest string, limit int) ([]domain.PlatformMessage, error)
	GetReplies(ctx context.Context, channelID, ts string, limit int) ([]domain.PlatformMessage, error)
}

// ConnectionGateway delivers payloads to live connections. Post returns
// domain.ErrStaleConnection when the target no longer exists.
type ConnectionGateway interface {
	Post(ctx context.Context, connectionID string, payload any) error
	Close(ctx context.Context, connectionID string) error
}

// EventLog remembers processed platform events. Seen returns true when the key
// was already recorded; Forget releases a key so a redelivery is processed.
type EventLog interface {
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}
