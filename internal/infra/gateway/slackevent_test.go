package gateway

import (
	"testing"

	"github.com/totegamma/chatrelay/internal/domain"
)

func TestParseSlackEventChallenge(t *testing.T) {
	ev, err := ParseSlackEvent([]byte(`{"type":"url_verification","challenge":"abc"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	challenge, ok := ev.(domain.ChallengeEvent)
	if !ok || challenge.Challenge != "abc" {
		t.Fatalf("unexpected event: %#v", ev)
	}
}

func TestParseSlackEventMessage(t *testing.T) {
	body := `{
		"type":"event_callback",
		"event_id":"Ev1",
		"event":{
			"type":"message","channel":"C1","user":"U1","text":"hi <@U2>","ts":"1.0",
			"user_profile":{"real_name":"Alice","image_48":"a.png"}
		}
	}`
	ev, err := ParseSlackEvent([]byte(body))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	msg, ok := ev.(domain.MessageEvent)
	if !ok {
		t.Fatalf("unexpected event: %#v", ev)
	}
	if msg.EventID != "Ev1" || msg.Channel != "C1" {
		t.Fatalf("unexpected message event: %+v", msg)
	}
	if msg.Message.Text != "hi <@U2>" || msg.Message.User != "U1" || msg.Message.TS != "1.0" {
		t.Fatalf("unexpected message: %+v", msg.Message)
	}
	if msg.Message.UserProfile == nil || msg.Message.UserProfile.RealName != "Alice" {
		t.Fatalf("expected user profile: %+v", msg.Message.UserProfile)
	}
}

func TestParseSlackEventFilters(t *testing.T) {
	testcases := []struct {
		body    string
		relayed bool
	}{
		{`{"event":{"type":"message","channel":"C1","text":"bot says","subtype":"bot_message","username":"bot","ts":"1"}}`, true},
		{`{"event":{"type":"message","channel":"C1","text":"edited","subtype":"message_changed","ts":"1"}}`, false},
		{`{"event":{"type":"message","channel":"C1","text":"","ts":"1"}}`, false},
		{`{"event":{"type":"reaction_added","channel":"C1","text":"x"}}`, false},
		{`{"type":"event_callback"}`, false},
	}

	for _, tc := range testcases {
		ev, err := ParseSlackEvent([]byte(tc.body))
		if err != nil {
			t.Fatalf("%s: parse failed: %v", tc.body, err)
		}
		_, relayed := ev.(domain.MessageEvent)
		if relayed != tc.relayed {
			t.Fatalf("%s: expected relayed=%v got %#v", tc.body, tc.relayed, ev)
		}
	}
}

func TestParseSlackEventFallbackID(t *testing.T) {
	ev, err := ParseSlackEvent([]byte(`{"event":{"type":"message","channel":"C1","text":"x","ts":"1.5"}}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	msg := ev.(domain.MessageEvent)
	if msg.EventID != "C1:1.5" {
		t.Fatalf("unexpected fallback id: %s", msg.EventID)
	}
}

func TestParseSlackEventInvalid(t *testing.T) {
	if _, err := ParseSlackEvent([]byte(`nope`)); err == nil {
		t.Fatalf("expected error")
	}
}
