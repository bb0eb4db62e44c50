package channel

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type outbound struct {
	messageType int
	data        []byte
}

// Conn is one accepted channel connection. Replies are queued on a bounded
// send channel drained by a single writer goroutine.
type Conn struct {
	id        string
	sessionID string
	ws        *websocket.Conn
	send      chan outbound

	mu          sync.RWMutex
	closed      bool
	closeCode   int
	closeReason string
}

func newConn(id, sessionID string, ws *websocket.Conn, buffer int) *Conn {
	return &Conn{
		id:        id,
		sessionID: sessionID,
		ws:        ws,
		send:      make(chan outbound, buffer),
		closeCode: websocket.CloseNormalClosure,
	}
}

func (c *Conn) ID() string        { return c.id }
func (c *Conn) SessionID() string { return c.sessionID }

// TrySend queues data without blocking.
func (c *Conn) TrySend(messageType int, data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- outbound{messageType: messageType, data: data}:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Conn) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("connId", c.id).Msg("channel reply marshal")
		return
	}
	if err := c.TrySend(websocket.TextMessage, b); err != nil {
		log.Warn().Err(err).
			Str("connId", c.id).
			Str("sessionId", c.sessionID).
			Msg("channel reply dropped")
	}
}

// closeSend stops accepting replies. The writer drains what is queued, then
// sends a close frame with code and reason. Only the first call has effect.
func (c *Conn) closeSend(code int, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
	return true
}

func (c *Conn) writePump(writeWait, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("connId", c.id).Msg("writePump set deadline")
				_ = c.ws.Close()
				return
			}
			if !ok {
				c.mu.RLock()
				frame := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				c.mu.RUnlock()
				_ = c.ws.WriteMessage(websocket.CloseMessage, frame)
				return
			}
			if err := c.ws.WriteMessage(msg.messageType, msg.data); err != nil {
				log.Debug().Err(err).Str("connId", c.id).Msg("writePump write error")
				_ = c.ws.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				_ = c.ws.Close()
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connId", c.id).Msg("writePump ping error")
				_ = c.ws.Close()
				return
			}
		}
	}
}
