package channel

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name        string
		messageType int
		data        string
		wantKind    FrameKind
		wantType    string
		wantErr     error
	}{
		{"binary", websocket.BinaryMessage, "\x01\x02\x03", FrameBinary, "", nil},
		{"offer", websocket.TextMessage, `{"type":"offer","sdp":"v=0"}`, FrameText, "offer", nil},
		{"candidate", websocket.TextMessage, `{"type":"candidate","candidate":{}}`, FrameText, "candidate", nil},
		{"not json", websocket.TextMessage, `hello`, FrameError, "", ErrMalformedJSON},
		{"json array", websocket.TextMessage, `[1,2]`, FrameError, "", ErrMalformedJSON},
		{"json null", websocket.TextMessage, `null`, FrameError, "", ErrMalformedJSON},
		{"missing type", websocket.TextMessage, `{"sdp":"v=0"}`, FrameError, "", ErrMissingType},
		{"empty type", websocket.TextMessage, `{"type":""}`, FrameError, "", ErrMissingType},
		{"numeric type", websocket.TextMessage, `{"type":7}`, FrameError, "", ErrMissingType},
		{"other opcode", websocket.PingMessage, "", FrameError, "", ErrUnsupportedKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := DecodeFrame(tt.messageType, []byte(tt.data))

			assert.Equal(t, tt.wantKind, frame.Kind)
			switch tt.wantKind {
			case FrameBinary:
				assert.Equal(t, []byte(tt.data), frame.Audio)
			case FrameText:
				require.NotNil(t, frame.Message)
				assert.Equal(t, tt.wantType, frame.Message.Type)
				assert.JSONEq(t, tt.data, string(frame.Message.Raw))
			case FrameError:
				assert.ErrorIs(t, frame.Err, tt.wantErr)
			}
		})
	}
}

func TestFrameKind_String(t *testing.T) {
	assert.Equal(t, "binary", FrameBinary.String())
	assert.Equal(t, "text", FrameText.String())
	assert.Equal(t, "error", FrameError.String())
	assert.Equal(t, "unknown", FrameKind(0).String())
}

func TestConn_TrySend(t *testing.T) {
	c := newConn("c1", "s1", nil, 1)

	require.NoError(t, c.TrySend(websocket.TextMessage, []byte("a")))
	assert.ErrorIs(t, c.TrySend(websocket.TextMessage, []byte("b")), ErrBackpressure)

	assert.True(t, c.closeSend(websocket.CloseNormalClosure, ""))
	assert.False(t, c.closeSend(websocket.ClosePolicyViolation, "late"))
	assert.ErrorIs(t, c.TrySend(websocket.TextMessage, []byte("c")), ErrConnClosed)
	assert.Equal(t, websocket.CloseNormalClosure, c.closeCode)
}
