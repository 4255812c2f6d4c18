package domain

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Frame types sent by clients over the socket.
const (
	FrameJoin    = "join"
	FramePost    = "post"
	FrameHistory = "history"
	FrameReplies = "replies"
)

// Frame is one decoded client request. The concrete type selects the operation.
type Frame interface {
	frameType() string
}

type JoinFrame struct{}

type PostFrame struct {
	ThreadID string `json:"threadId,omitempty"`
	Text     string `json:"text"`
	User     User   `json:"user"`
}

type HistoryFrame struct {
	Latest string `json:"latest,omitempty"`
}

type RepliesFrame struct {
	TS string `json:"ts"`
}

// UnknownFrame carries the type of a frame no handler exists for.
type UnknownFrame struct {
	Type string
}

func (JoinFrame) frameType() string      { return FrameJoin }
func (PostFrame) frameType() string      { return FramePost }
func (HistoryFrame) frameType() string   { return FrameHistory }
func (RepliesFrame) frameType() string   { return FrameReplies }
func (f UnknownFrame) frameType() string { return f.Type }

// FrameType returns the wire type of a frame.
func FrameType(f Frame) string {
	return f.frameType()
}

type rawFrame struct {
	Type          string          `json:"type"`
	Data          json.RawMessage `json:"data"`
	CorrelationID string          `json:"correlationId"`
}

// ParseFrame decodes a client frame. When the envelope is readable but its data
// is not, the correlation id is returned alongside the error.
func ParseFrame(raw []byte) (Frame, string, error) {
	var r rawFrame
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, "", errors.Wrap(err, "malformed frame")
	}

	var frame Frame
	switch r.Type {
	case FrameJoin:
		frame = JoinFrame{}
	case FramePost:
		var f PostFrame
		if err := decodeData(r.Data, &f); err != nil {
			return nil, r.CorrelationID, err
		}
		frame = f
	case FrameHistory:
		var f HistoryFrame
		if err := decodeData(r.Data, &f); err != nil {
			return nil, r.CorrelationID, err
		}
		frame = f
	case FrameReplies:
		var f RepliesFrame
		if err := decodeData(r.Data, &f); err != nil {
			return nil, r.CorrelationID, err
		}
		frame = f
	default:
		frame = UnknownFrame{Type: r.Type}
	}
	return frame, r.CorrelationID, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "malformed frame data")
	}
	return nil
}

// Envelope is the reply to a frame. Exactly one of Data and Error is set.
type Envelope struct {
	Data          any    `json:"data,omitempty"`
	Error         string `json:"error,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}
