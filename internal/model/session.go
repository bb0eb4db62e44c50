package model

import (
	"maps"
	"time"
)

// DeviceInfo is client-defined metadata supplied on pairing. It is only
// round-tripped, never interpreted.
type DeviceInfo map[string]any

type Session struct {
	ID             string         `json:"session_id"`
	PIN            string         `json:"pin,omitempty"`
	Paired         bool           `json:"paired"`
	DeviceInfo     DeviceInfo     `json:"device_info,omitempty"`
	SignalingState SignalingState `json:"signaling_state"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	PairedAt       *time.Time     `json:"paired_at,omitempty"`
}

type CreateSessionParams struct {
	ID        string
	PIN       string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsExpiredAt reports whether the session's TTL has elapsed at now.
func (s *Session) IsExpiredAt(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsActiveAt reports whether the session is paired and still within its TTL.
func (s *Session) IsActiveAt(now time.Time) bool {
	return s.Paired && !s.IsExpiredAt(now)
}

// Clone returns a deep copy safe to hand out of the store.
func (s *Session) Clone() *Session {
	c := *s
	if s.DeviceInfo != nil {
		c.DeviceInfo = maps.Clone(s.DeviceInfo)
	}
	if s.PairedAt != nil {
		t := *s.PairedAt
		c.PairedAt = &t
	}
	return &c
}

// SessionView is the externally visible shape of a session. The PIN is only
// present while the session is still waiting to be paired.
type SessionView struct {
	SessionID      string         `json:"session_id"`
	PIN            string         `json:"pin,omitempty"`
	Paired         bool           `json:"paired"`
	DeviceInfo     DeviceInfo     `json:"device_info"`
	SignalingState SignalingState `json:"signaling_state"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
	PairedAt       *time.Time     `json:"paired_at,omitempty"`
	IsActive       bool           `json:"is_active"`
}

func (s *Session) View(now time.Time) SessionView {
	v := SessionView{
		SessionID:      s.ID,
		Paired:         s.Paired,
		DeviceInfo:     s.DeviceInfo,
		SignalingState: s.SignalingState,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
		PairedAt:       s.PairedAt,
		IsActive:       s.IsActiveAt(now),
	}
	if !s.Paired {
		v.PIN = s.PIN
	}
	if v.DeviceInfo == nil {
		v.DeviceInfo = DeviceInfo{}
	}
	return v
}
