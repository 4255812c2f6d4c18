package domain

import (
	"testing"
)

func TestParseFrame(t *testing.T) {
	frame, correlationID, err := ParseFrame([]byte(`{"type":"post","data":{"threadId":"1.0","text":"hi","user":{"name":"Alice","icon":"a.png"}},"correlationId":"k1"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if correlationID != "k1" {
		t.Fatalf("expected correlation id k1, got %s", correlationID)
	}
	post, ok := frame.(PostFrame)
	if !ok {
		t.Fatalf("unexpected frame %T", frame)
	}
	if post.ThreadID != "1.0" || post.Text != "hi" || post.User.Name != "Alice" || post.User.Icon != "a.png" {
		t.Fatalf("unexpected post frame: %+v", post)
	}
}

func TestParseFrameVariants(t *testing.T) {
	testcases := []struct {
		raw      string
		expected string
	}{
		{`{"type":"join"}`, FrameJoin},
		{`{"type":"history","data":{"latest":"5"}}`, FrameHistory},
		{`{"type":"history"}`, FrameHistory},
		{`{"type":"replies","data":{"ts":"1.0"}}`, FrameReplies},
		{`{"type":"dance"}`, "dance"},
	}

	for _, tc := range testcases {
		frame, _, err := ParseFrame([]byte(tc.raw))
		if err != nil {
			t.Fatalf("%s: parse failed: %v", tc.raw, err)
		}
		if FrameType(frame) != tc.expected {
			t.Fatalf("%s: expected %s got %s", tc.raw, tc.expected, FrameType(frame))
		}
	}
}

func TestParseFrameMalformed(t *testing.T) {
	if _, _, err := ParseFrame([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed frame")
	}

	_, correlationID, err := ParseFrame([]byte(`{"type":"replies","data":"oops","correlationId":"k2"}`))
	if err == nil {
		t.Fatalf("expected error for malformed data")
	}
	if correlationID != "k2" {
		t.Fatalf("expected correlation id to survive, got %q", correlationID)
	}
}
