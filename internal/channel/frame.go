package channel

import (
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
)

type FrameKind int

const (
	FrameBinary FrameKind = iota + 1
	FrameText
	FrameError
)

func (k FrameKind) String() string {
	switch k {
	case FrameBinary:
		return "binary"
	case FrameText:
		return "text"
	case FrameError:
		return "error"
	}
	return "unknown"
}

var (
	ErrMalformedJSON   = errors.New("invalid JSON message")
	ErrMissingType     = errors.New("message type is required")
	ErrUnsupportedKind = errors.New("unsupported frame type")
)

// Message is a decoded signaling message. Raw keeps the full object so it can
// be routed to a peer untouched.
type Message struct {
	Type string
	Raw  json.RawMessage
}

// Frame is one inbound websocket message classified at the transport
// boundary. Exactly one of Audio, Message or Err is set, matching Kind.
type Frame struct {
	Kind    FrameKind
	Audio   []byte
	Message *Message
	Err     error
}

// DecodeFrame classifies a websocket message by its opcode. Text payloads
// must be JSON objects carrying a non-empty string "type".
func DecodeFrame(messageType int, data []byte) Frame {
	switch messageType {
	case websocket.BinaryMessage:
		return Frame{Kind: FrameBinary, Audio: data}
	case websocket.TextMessage:
		msg, err := decodeMessage(data)
		if err != nil {
			return Frame{Kind: FrameError, Err: err}
		}
		return Frame{Kind: FrameText, Message: msg}
	}
	return Frame{Kind: FrameError, Err: ErrUnsupportedKind}
}

func decodeMessage(data []byte) (*Message, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, ErrMalformedJSON
	}

	rawType, ok := fields["type"]
	if !ok {
		return nil, ErrMissingType
	}
	var typ string
	if err := json.Unmarshal(rawType, &typ); err != nil || typ == "" {
		return nil, ErrMissingType
	}

	return &Message{Type: typ, Raw: json.RawMessage(data)}, nil
}
