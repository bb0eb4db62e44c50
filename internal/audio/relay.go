package audio

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Relay maps session ids to their audio buffers. Each buffer carries its own
// lock, so appends for different sessions never contend beyond the map read
// lock. Stream lifecycle is independent of session pairing and expiry.
type Relay struct {
	mu          sync.RWMutex
	streams     map[string]*Buffer
	maxDuration time.Duration
	nowF        func() time.Time
}

func NewRelay(maxDuration time.Duration) *Relay {
	return &Relay{
		streams:     make(map[string]*Buffer),
		maxDuration: maxDuration,
		nowF:        time.Now,
	}
}

// Start returns the session's buffer, creating it on first call. Repeated
// calls return the same buffer.
func (r *Relay) Start(sessionID string) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if buf, ok := r.streams[sessionID]; ok {
		return buf
	}

	buf := newBuffer(r.maxDuration, r.nowF)
	r.streams[sessionID] = buf

	log.Info().
		Str("sessionId", sessionID).
		Dur("maxDuration", buf.maxDuration).
		Msg("audio stream started")

	return buf
}

// Stop removes and returns the session's buffer, or nil if none is active.
// Appends that race the stop are rejected.
func (r *Relay) Stop(sessionID string) *Buffer {
	r.mu.Lock()
	buf, ok := r.streams[sessionID]
	if ok {
		delete(r.streams, sessionID)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}
	buf.seal()

	log.Info().
		Str("sessionId", sessionID).
		Float64("durationSeconds", buf.DurationSeconds()).
		Msg("audio stream stopped")

	return buf
}

// AddAudioChunk appends to the session's stream. Without an active stream the
// chunk is dropped with a warning.
func (r *Relay) AddAudioChunk(sessionID string, chunk []byte) bool {
	r.mu.RLock()
	buf, ok := r.streams[sessionID]
	r.mu.RUnlock()

	if !ok || !buf.AddChunk(chunk) {
		log.Warn().
			Str("sessionId", sessionID).
			Int("bytes", len(chunk)).
			Msg("no active audio stream, dropping chunk")
		return false
	}
	return true
}

// Clear empties the session's buffer without stopping the stream.
func (r *Relay) Clear(sessionID string) bool {
	buf := r.Buffer(sessionID)
	if buf == nil {
		return false
	}
	buf.Clear()
	return true
}

func (r *Relay) Buffer(sessionID string) *Buffer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.streams[sessionID]
}

func (r *Relay) ActiveSessions() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.streams))
	for id := range r.streams {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}
