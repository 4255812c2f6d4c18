package gateway

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/slack-go/slack"

	"github.com/totegamma/chatrelay/internal/domain"
)

type slackEventProfile struct {
	RealName string `json:"real_name"`
	Image48  string `json:"image_48"`
}

type slackEventMessage struct {
	slack.Msg
	UserProfile *slackEventProfile `json:"user_profile,omitempty"`
}

type slackEventPayload struct {
	Type      string             `json:"type"`
	Challenge string             `json:"challenge"`
	EventID   string             `json:"event_id"`
	Event     *slackEventMessage `json:"event"`
}

// ParseSlackEvent classifies an Events API callback body.
func ParseSlackEvent(body []byte) (domain.PlatformEvent, error) {
	var payload slackEventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, errors.Wrap(err, "invalid event payload")
	}

	if payload.Challenge != "" {
		return domain.ChallengeEvent{Challenge: payload.Challenge}, nil
	}

	if payload.Event == nil {
		return domain.IgnoredEvent{Reason: "no event"}, nil
	}

	ev := payload.Event
	if !isRelayableMessage(ev.Msg) {
		return domain.IgnoredEvent{Reason: "not a message: " + ev.Type + "/" + ev.SubType}, nil
	}

	msg := fromSlackMsg(ev.Msg)
	if ev.UserProfile != nil {
		msg.UserProfile = &domain.UserProfile{RealName: ev.UserProfile.RealName, Image48: ev.UserProfile.Image48}
	}

	eventID := payload.EventID
	if eventID == "" {
		eventID = ev.Channel + ":" + ev.Timestamp
	}

	return domain.MessageEvent{
		EventID: eventID,
		Channel: ev.Channel,
		Message: msg,
	}, nil
}

func isRelayableMessage(m slack.Msg) bool {
	return m.Type == "message" && m.Text != "" && (m.SubType == "" || m.SubType == slack.MsgSubTypeBotMessage)
}
