package audio

import (
	"bytes"
	"sync"
	"time"
)

// Stream format: 16-bit signed little-endian PCM, mono, 16 kHz.
const (
	SampleRate     = 16000
	Channels       = 1
	SampleWidth    = 2
	BytesPerSecond = SampleRate * Channels * SampleWidth

	DefaultMaxDuration = 30 * time.Second
)

// Buffer is a bounded window over one session's microphone stream. Chunks are
// appended at the tail and whole chunks are evicted from the head once the
// window exceeds maxDuration. A Buffer is safe for concurrent use; appends
// are serialized in call order.
type Buffer struct {
	mu          sync.Mutex
	chunks      [][]byte
	totalBytes  int
	maxBytes    int
	maxDuration time.Duration
	createdAt   time.Time
	sealed      bool
	nowF        func() time.Time
}

type Info struct {
	DurationSeconds    float64   `json:"duration_seconds"`
	TotalBytes         int       `json:"total_bytes"`
	Chunks             int       `json:"chunks"`
	MaxDurationSeconds float64   `json:"max_duration_seconds"`
	SampleRate         int       `json:"sample_rate"`
	CreatedAt          time.Time `json:"created_at"`
}

func NewBuffer(maxDuration time.Duration) *Buffer {
	return newBuffer(maxDuration, time.Now)
}

func newBuffer(maxDuration time.Duration, nowF func() time.Time) *Buffer {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Buffer{
		maxBytes:    int(maxDuration.Seconds() * BytesPerSecond),
		maxDuration: maxDuration,
		createdAt:   nowF(),
		nowF:        nowF,
	}
}

// AddChunk appends a copy of chunk and trims the head. It reports false once
// the buffer has been sealed by its relay.
func (b *Buffer) AddChunk(chunk []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.sealed {
		return false
	}
	if len(chunk) == 0 {
		return true
	}

	b.chunks = append(b.chunks, bytes.Clone(chunk))
	b.totalBytes += len(chunk)

	for b.totalBytes > b.maxBytes && len(b.chunks) > 0 {
		b.totalBytes -= len(b.chunks[0])
		b.chunks[0] = nil
		b.chunks = b.chunks[1:]
	}
	return true
}

func (b *Buffer) DurationSeconds() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return durationSeconds(b.totalBytes)
}

func durationSeconds(n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(n) / BytesPerSecond
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalBytes
}

// Bytes returns the retained PCM as one contiguous slice.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.joinLocked()
}

func (b *Buffer) joinLocked() []byte {
	out := make([]byte, 0, b.totalBytes)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}

// ToWAV wraps the retained PCM in a canonical WAV container. An empty buffer
// yields an empty result.
func (b *Buffer) ToWAV() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.totalBytes == 0 {
		return []byte{}
	}
	return EncodeWAV(b.joinLocked())
}

// Clear drops all chunks and restarts the window. The buffer stays usable.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = nil
	b.totalBytes = 0
	b.createdAt = b.nowF()
}

func (b *Buffer) Info() Info {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Info{
		DurationSeconds:    durationSeconds(b.totalBytes),
		TotalBytes:         b.totalBytes,
		Chunks:             len(b.chunks),
		MaxDurationSeconds: b.maxDuration.Seconds(),
		SampleRate:         SampleRate,
		CreatedAt:          b.createdAt,
	}
}

func (b *Buffer) seal() {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()
}
