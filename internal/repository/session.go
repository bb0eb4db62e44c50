package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/homehub/cast-server-go/internal/model"
	"github.com/homehub/cast-server-go/internal/util"
)

var ErrDuplicateSession = errors.New("session id already tracked")

// SessionRepository is the session index. Lookups never match a session whose
// TTL has elapsed, even before the reaper removes it. Returned sessions are
// copies.
type SessionRepository interface {
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)
	FindByID(ctx context.Context, id string) *model.Session
	FindByPIN(ctx context.Context, pin string) *model.Session
	Update(ctx context.Context, id string, fn func(s *model.Session) bool) (*model.Session, bool)
	Delete(ctx context.Context, id string) bool
	DeleteExpired(ctx context.Context) []string
	ListActive(ctx context.Context) []model.Session
	DeleteAll(ctx context.Context) int
}

type sessionEntry struct {
	session *model.Session
	seq     uint64
}

type memorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	nextSeq  uint64
	nowF     func() time.Time
}

func NewMemorySessionRepository(nowF func() time.Time) SessionRepository {
	if nowF == nil {
		nowF = time.Now
	}
	return &memorySessionRepo{
		sessions: make(map[string]*sessionEntry),
		nowF:     nowF,
	}
}

func (r *memorySessionRepo) Create(_ context.Context, params model.CreateSessionParams) (*model.Session, error) {
	s := &model.Session{
		ID:             params.ID,
		PIN:            params.PIN,
		SignalingState: model.SignalingStateNew,
		CreatedAt:      params.CreatedAt,
		ExpiresAt:      params.ExpiresAt,
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[s.ID]; exists {
		return nil, ErrDuplicateSession
	}
	r.nextSeq++
	r.sessions[s.ID] = &sessionEntry{session: s, seq: r.nextSeq}

	return s.Clone(), nil
}

func (r *memorySessionRepo) FindByID(_ context.Context, id string) *model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.sessions[id]
	if !ok || e.session.IsExpiredAt(r.nowF()) {
		return nil
	}
	return e.session.Clone()
}

// FindByPIN scans live sessions and returns the earliest inserted match.
func (r *memorySessionRepo) FindByPIN(_ context.Context, pin string) *model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.nowF()
	var best *sessionEntry
	for _, e := range r.sessions {
		if e.session.IsExpiredAt(now) || !util.ConstantTimeEqual(e.session.PIN, pin) {
			continue
		}
		if best == nil || e.seq < best.seq {
			best = e
		}
	}
	if best == nil {
		return nil
	}
	return best.session.Clone()
}

// Update applies fn to a live session under the write lock. fn returns false
// to abort without mutating; the session must not be retained by fn.
func (r *memorySessionRepo) Update(_ context.Context, id string, fn func(s *model.Session) bool) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok || e.session.IsExpiredAt(r.nowF()) {
		return nil, false
	}

	draft := e.session.Clone()
	if !fn(draft) {
		return e.session.Clone(), false
	}
	e.session = draft
	return draft.Clone(), true
}

func (r *memorySessionRepo) Delete(_ context.Context, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *memorySessionRepo) DeleteExpired(_ context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowF()
	var removed []string
	for id, e := range r.sessions {
		if e.session.IsExpiredAt(now) {
			delete(r.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func (r *memorySessionRepo) ListActive(_ context.Context) []model.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.nowF()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		if !e.session.IsExpiredAt(now) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	sessions := make([]model.Session, 0, len(entries))
	for _, e := range entries {
		sessions = append(sessions, *e.session.Clone())
	}
	return sessions
}

func (r *memorySessionRepo) DeleteAll(_ context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.sessions)
	r.sessions = make(map[string]*sessionEntry)
	return n
}
