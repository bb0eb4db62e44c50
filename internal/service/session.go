package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/homehub/cast-server-go/internal/audit"
	apperrors "github.com/homehub/cast-server-go/internal/errors"
	"github.com/homehub/cast-server-go/internal/model"
	"github.com/homehub/cast-server-go/internal/repository"
	"github.com/homehub/cast-server-go/internal/sse"
	"github.com/homehub/cast-server-go/internal/util"
)

const maxCreateAttempts = 3

// EventPublisher delivers session lifecycle events to subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID string, event sse.Event) error
}

type SessionService struct {
	sessionRepo repository.SessionRepository
	publisher   EventPublisher
	recorder    *audit.Recorder
	ttl         time.Duration
	nowF        func() time.Time
	newID       func() (string, error)
	newPIN      func() (string, error)
}

func NewSessionService(
	sessionRepo repository.SessionRepository,
	publisher EventPublisher,
	recorder *audit.Recorder,
	ttl time.Duration,
	nowF func() time.Time,
) *SessionService {
	if nowF == nil {
		nowF = time.Now
	}
	return &SessionService{
		sessionRepo: sessionRepo,
		publisher:   publisher,
		recorder:    recorder,
		ttl:         ttl,
		nowF:        nowF,
		newID:       util.GenerateSessionID,
		newPIN:      util.GeneratePIN,
	}
}

func (s *SessionService) Now() time.Time {
	return s.nowF()
}

func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Create mints a session with a fresh id and PIN. The expiry is fixed here
// and never extended.
func (s *SessionService) Create(ctx context.Context) (*model.Session, error) {
	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		pin, err := s.newPIN()
		if err != nil {
			return nil, fmt.Errorf("generate pin: %w", err)
		}

		now := s.nowF()
		session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
			ID:        id,
			PIN:       pin,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		})
		if errors.Is(err, repository.ErrDuplicateSession) {
			log.Warn().Int("attempt", attempt).Msg("session id collision, regenerating")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}

		log.Info().
			Str("sessionId", session.ID).
			Str("pin", util.MaskPIN(pin)).
			Time("expiresAt", session.ExpiresAt).
			Msg("session created")

		audit.Log(ctx, audit.Event{Type: audit.EventSessionCreate, SessionID: session.ID})

		return session, nil
	}

	return nil, fmt.Errorf("create session: %w", repository.ErrDuplicateSession)
}

func (s *SessionService) Get(ctx context.Context, id string) *model.Session {
	return s.sessionRepo.FindByID(ctx, id)
}

func (s *SessionService) GetByPIN(ctx context.Context, pin string) *model.Session {
	return s.sessionRepo.FindByPIN(ctx, pin)
}

// Pair marks a live session as paired. Pairing an already paired session by
// its id succeeds again; paired_at keeps its first value and device info is
// replaced when given.
func (s *SessionService) Pair(ctx context.Context, id string, deviceInfo model.DeviceInfo) bool {
	_, err := s.pair(ctx, id, deviceInfo, "", false)
	return err == nil
}

// RedeemPIN pairs the session holding pin. The PIN is single-use: once its
// session is paired further redemptions fail with ALREADY_PAIRED.
func (s *SessionService) RedeemPIN(ctx context.Context, pin string, deviceInfo model.DeviceInfo, clientIP string) (*model.Session, error) {
	match := s.sessionRepo.FindByPIN(ctx, pin)
	if match == nil {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventPairFailure,
			IP:      clientIP,
			Details: map[string]interface{}{"reason": "unknown_pin"},
		})
		return nil, apperrors.SessionNotFound()
	}

	session, err := s.pair(ctx, match.ID, deviceInfo, clientIP, true)
	if err != nil {
		audit.Log(ctx, audit.Event{
			Type:      audit.EventPairFailure,
			SessionID: match.ID,
			IP:        clientIP,
			Details:   map[string]interface{}{"reason": string(apperrors.GetCode(err))},
		})
		return nil, err
	}
	return session, nil
}

func (s *SessionService) pair(ctx context.Context, id string, deviceInfo model.DeviceInfo, clientIP string, singleUse bool) (*model.Session, error) {
	firstPairing := false
	session, ok := s.sessionRepo.Update(ctx, id, func(sess *model.Session) bool {
		if singleUse && sess.Paired {
			return false
		}
		if !sess.Paired {
			now := s.nowF()
			sess.Paired = true
			sess.PairedAt = &now
			firstPairing = true
		}
		if deviceInfo != nil {
			sess.DeviceInfo = maps.Clone(deviceInfo)
		}
		return true
	})
	if !ok {
		if session != nil {
			return nil, apperrors.AlreadyPaired()
		}
		return nil, apperrors.SessionNotFound()
	}

	log.Info().
		Str("sessionId", session.ID).
		Bool("firstPairing", firstPairing).
		Msg("session paired")

	audit.Log(ctx, audit.Event{
		Type:      audit.EventSessionPaired,
		SessionID: session.ID,
		IP:        clientIP,
		Details:   map[string]interface{}{"first_pairing": firstPairing},
	})

	if firstPairing {
		s.recorder.RecordPairing(ctx, session, clientIP)
		s.publish(ctx, session.ID, model.SessionEventPaired, map[string]any{
			"session_id":  session.ID,
			"paired_at":   session.PairedAt,
			"device_info": session.DeviceInfo,
		})
	}

	return session, nil
}

// Unpair removes the session entirely.
func (s *SessionService) Unpair(ctx context.Context, id string) bool {
	if !s.sessionRepo.Delete(ctx, id) {
		return false
	}

	log.Info().Str("sessionId", id).Msg("session unpaired")
	audit.Log(ctx, audit.Event{Type: audit.EventSessionUnpair, SessionID: id})
	s.publish(ctx, id, model.SessionEventUnpaired, map[string]any{"session_id": id})

	return true
}

func (s *SessionService) ListActive(ctx context.Context) []model.Session {
	return s.sessionRepo.ListActive(ctx)
}

func (s *SessionService) ListPaired(ctx context.Context) []model.Session {
	active := s.sessionRepo.ListActive(ctx)
	paired := make([]model.Session, 0, len(active))
	for _, sess := range active {
		if sess.Paired {
			paired = append(paired, sess)
		}
	}
	return paired
}

// ResetAll drops every tracked session, expired or not.
func (s *SessionService) ResetAll(ctx context.Context) int {
	n := s.sessionRepo.DeleteAll(ctx)

	log.Warn().Int("count", n).Msg("all sessions reset")
	audit.Log(ctx, audit.Event{
		Type:    audit.EventSessionsReset,
		Details: map[string]interface{}{"count": n},
	})

	return n
}

// SetSignalingState stores any known state the channel reports. No transition
// rules are enforced here.
func (s *SessionService) SetSignalingState(ctx context.Context, id string, state model.SignalingState) bool {
	if !state.Valid() {
		log.Warn().Str("sessionId", id).Str("state", string(state)).Msg("unknown signaling state rejected")
		return false
	}

	_, ok := s.sessionRepo.Update(ctx, id, func(sess *model.Session) bool {
		sess.SignalingState = state
		return true
	})
	if !ok {
		return false
	}

	log.Debug().Str("sessionId", id).Str("state", string(state)).Msg("signaling state updated")
	s.publish(ctx, id, model.SessionEventSignaling, map[string]any{
		"session_id":      id,
		"signaling_state": state,
	})

	return true
}

// ReapExpired removes every session whose TTL has elapsed.
func (s *SessionService) ReapExpired(ctx context.Context) (int64, error) {
	removed := s.sessionRepo.DeleteExpired(ctx)
	for _, id := range removed {
		s.publish(ctx, id, model.SessionEventExpired, map[string]any{"session_id": id})
	}

	if len(removed) > 0 {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventSessionsReaped,
			Details: map[string]interface{}{"count": len(removed)},
		})
	}

	return int64(len(removed)), nil
}

func (s *SessionService) publish(ctx context.Context, sessionID string, eventType model.SessionEventType, data any) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to marshal session event")
		return
	}

	if err := s.publisher.Publish(ctx, sessionID, sse.Event{Type: string(eventType), Data: payload}); err != nil {
		log.Warn().Err(err).
			Str("sessionId", sessionID).
			Str("eventType", string(eventType)).
			Msg("failed to publish session event")
	}
}
