package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/totegamma/chatrelay/internal/domain"
)

var mentionPattern = regexp.MustCompile(`<@(.+?)>`)

const unknownUserName = "Unknown"

// bounds concurrent users.info lookups for history and replies listings
const normalizeConcurrency = 8

// MessageNormalizer turns platform messages into the client message shape.
type MessageNormalizer struct {
	users UserResolver
}

func NewMessageNormalizer(users UserResolver) *MessageNormalizer {
	return &MessageNormalizer{users: users}
}

func (n *MessageNormalizer) Normalize(ctx context.Context, msg domain.PlatformMessage) (domain.Message, error) {
	user, err := n.author(ctx, msg)
	if err != nil {
		return domain.Message{}, err
	}

	files := make([]domain.File, 0, len(msg.Files))
	files = append(files, msg.Files...)

	return domain.Message{
		TS:         msg.TS,
		User:       user,
		Text:       n.ResolveMentions(ctx, msg.Text),
		ThreadID:   msg.ThreadTS,
		ReplyCount: msg.ReplyCount,
		Reactions:  msg.Reactions,
		Files:      files,
	}, nil
}

// NormalizeAll normalizes a history or replies listing. Messages without a
// timestamp and channel join notices are dropped; order is preserved.
func (n *MessageNormalizer) NormalizeAll(ctx context.Context, msgs []domain.PlatformMessage) ([]domain.Message, error) {
	kept := make([]domain.PlatformMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.TS == "" || m.SubType == "channel_join" {
			continue
		}
		kept = append(kept, m)
	}

	result := make([]domain.Message, len(kept))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(normalizeConcurrency)
	for i, m := range kept {
		g.Go(func() error {
			msg, err := n.Normalize(gctx, m)
			if err != nil {
				return err
			}
			result[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

func (n *MessageNormalizer) author(ctx context.Context, msg domain.PlatformMessage) (domain.User, error) {
	if msg.Username != "" {
		return domain.User{Name: msg.Username}, nil
	}
	if msg.User != "" {
		user, err := n.users.GetUser(ctx, msg.User)
		if err != nil {
			return domain.User{}, errors.Wrapf(err, "failed to resolve user %s", msg.User)
		}
		return user, nil
	}
	if msg.UserProfile != nil && msg.UserProfile.RealName != "" {
		return domain.User{Name: msg.UserProfile.RealName, Icon: msg.UserProfile.Image48}, nil
	}
	return domain.User{Name: unknownUserName}, nil
}

// ResolveMentions rewrites every <@id> token to <@id|name>. Each occurrence is
// looked up separately and concurrently; results are substituted in occurrence
// order in a single pass. A failed lookup leaves the token as <@id>.
func (n *MessageNormalizer) ResolveMentions(ctx context.Context, text string) string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return text
	}

	resolved := make([]string, len(matches))
	var wg sync.WaitGroup
	for i, match := range matches {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			user, err := n.users.GetUser(ctx, userID)
			if err != nil || user.Name == "" {
				if err != nil {
					slog.DebugContext(
						ctx, "failed to resolve mention",
						slog.String("user", userID),
						slog.String("error", err.Error()),
						slog.String("module", "message"),
					)
				}
				resolved[i] = "<@" + userID + ">"
				return
			}
			resolved[i] = "<@" + userID + "|" + user.Name + ">"
		}(i, match[1])
	}
	wg.Wait()

	next := 0
	return mentionPattern.ReplaceAllStringFunc(text, func(string) string {
		r := resolved[next]
		next++
		return r
	})
}
