package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/slack-go/slack"

	"github.com/totegamma/chatrelay/internal/domain"
)

const (
	unknownChannelValue = "unknown"
	userCacheTTL        = 60 * 60 // seconds
)

// SlackAPI is the subset of the slack-go client used by the gateway.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// SlackGateway talks to the Slack Web API on behalf of the relay.
type SlackGateway struct {
	api          SlackAPI
	mc           *memcache.Client
	cache        *cache.Cache
	adminChannel string
}

// NewSlackClient builds a slack-go client. An empty apiURL uses Slack's
// default endpoint.
func NewSlackClient(token, apiURL string) *slack.Client {
	options := []slack.Option{}
	if apiURL != "" {
		options = append(options, slack.OptionAPIURL(apiURL))
	}
	return slack.New(token, options...)
}

// NewSlackGateway creates a gateway. mc may be nil to disable the shared user
// profile cache.
func NewSlackGateway(api SlackAPI, mc *memcache.Client, adminChannel string) *SlackGateway {
	return &SlackGateway{
		api:          api,
		mc:           mc,
		cache:        cache.New(10*time.Minute, 15*time.Minute),
		adminChannel: adminChannel,
	}
}

func (g *SlackGateway) PostMessage(ctx context.Context, channelID string, msg domain.OutgoingMessage) (string, error) {
	ctx, span := tracer.Start(ctx, "Slack.Gateway.PostMessage")
	defer span.End()

	options := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if msg.ThreadID != "" {
		options = append(options, slack.MsgOptionTS(msg.ThreadID))
	}
	if msg.Username != "" {
		options = append(options, slack.MsgOptionUsername(msg.Username))
	}
	if msg.IconURL != "" {
		options = append(options, slack.MsgOptionIconURL(msg.IconURL))
	}

	_, ts, err := g.api.PostMessageContext(ctx, channelID, options...)
	if err != nil {
		span.RecordError(err)
		return "", errors.Wrap(err, "failed to post message")
	}
	return ts, nil
}

func (g *SlackGateway) PostToAdminChannel(ctx context.Context, text string) error {
	_, err := g.PostMessage(ctx, g.adminChannel, domain.OutgoingMessage{Text: text})
	return err
}

func (g *SlackGateway) GetChannelInfo(ctx context.Context, channelID string) (domain.ChannelInfo, error) {
	ctx, span := tracer.Start(ctx, "Slack.Gateway.GetChannelInfo")
	defer span.End()

	cacheKey := "channel:" + channelID
	if x, found := g.cache.Get(cacheKey); found {
		return x.(domain.ChannelInfo), nil
	}

	channel, err := g.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		span.RecordError(err)
		return domain.ChannelInfo{}, errors.Wrap(err, "failed to get channel info")
	}

	info := domain.ChannelInfo{ID: channelID, Name: unknownChannelValue, TeamID: unknownChannelValue}
	if channel != nil {
		if channel.Name != "" {
			info.Name = channel.Name
		}
		if channel.ContextTeamID != "" {
			info.TeamID = channel.ContextTeamID
		}
	}

	g.cache.Set(cacheKey, info, cache.DefaultExpiration)
	return info, nil
}

// GetUser resolves a user id to its profile name and 48px avatar.
func (g *SlackGateway) GetUser(ctx context.Context, userID string) (domain.User, error) {
	ctx, span := tracer.Start(ctx, "Slack.Gateway.GetUser")
	defer span.End()

	cacheKey := "chatrelay:user:" + userID
	if g.mc != nil {
		item, err := g.mc.Get(cacheKey)
		if err == nil {
			var user domain.User
			if err := json.Unmarshal(item.Value, &user); err == nil {
				return user, nil
			}
		} else if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.DebugContext(ctx, "user cache unavailable", slog.String("error", err.Error()), slog.String("module", "slack"))
		}
	}

	info, err := g.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, errors.Wrapf(err, "failed to get user %s", userID)
	}

	user := domain.User{
		Name: info.Profile.RealName,
		Icon: info.Profile.Image48,
	}

	if g.mc != nil {
		if value, err := json.Marshal(user); err == nil {
			g.mc.Set(&memcache.Item{Key: cacheKey, Value: value, Expiration: userCacheTTL})
		}
	}
	return user, nil
}

func (g *SlackGateway) GetHistory(ctx context.Context, channelID, latest string, limit int) ([]domain.PlatformMessage, error) {
	ctx, span := tracer.Start(ctx, "Slack.Gateway.GetHistory")
	defer span.End()

	resp, err := g.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID:          channelID,
		Latest:             latest,
		Limit:              limit,
		IncludeAllMetadata: true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to get history")
	}
	if resp == nil {
		return []domain.PlatformMessage{}, nil
	}
	return fromSlackMessages(resp.Messages), nil
}

func (g *SlackGateway) GetReplies(ctx context.Context, channelID, ts string, limit int) ([]domain.PlatformMessage, error) {
	ctx, span := tracer.Start(ctx, "Slack.Gateway.GetReplies")
	defer span.End()

	msgs, _, _, err := g.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID:          channelID,
		Timestamp:          ts,
		Limit:              limit,
		IncludeAllMetadata: true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "failed to get replies")
	}
	return fromSlackMessages(msgs), nil
}

func fromSlackMessages(msgs []slack.Message) []domain.PlatformMessage {
	result := make([]domain.PlatformMessage, len(msgs))
	for i, m := range msgs {
		result[i] = fromSlackMsg(m.Msg)
	}
	return result
}

func fromSlackMsg(m slack.Msg) domain.PlatformMessage {
	msg := domain.PlatformMessage{
		TS:         m.Timestamp,
		Type:       m.Type,
		SubType:    m.SubType,
		Channel:    m.Channel,
		User:       m.User,
		Username:   m.Username,
		Text:       m.Text,
		ThreadTS:   m.ThreadTimestamp,
		ReplyCount: m.ReplyCount,
	}
	for _, r := range m.Reactions {
		msg.Reactions = append(msg.Reactions, domain.Reaction{Name: r.Name, Count: r.Count, Users: r.Users})
	}
	for _, f := range m.Files {
		msg.Files = append(msg.Files, domain.File{ID: f.ID, Name: f.Name, URL: f.URLPrivateDownload, ThumbURL: f.Thumb64})
	}
	return msg
}
