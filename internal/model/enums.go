package model

type SignalingState string

const (
	SignalingStateNew        SignalingState = "new"
	SignalingStateConnecting SignalingState = "connecting"
	SignalingStateConnected  SignalingState = "connected"
	SignalingStateClosed     SignalingState = "closed"
)

func (s SignalingState) Valid() bool {
	switch s {
	case SignalingStateNew, SignalingStateConnecting, SignalingStateConnected, SignalingStateClosed:
		return true
	}
	return false
}

type SessionEventType string

const (
	SessionEventCreated   SessionEventType = "session.created"
	SessionEventPaired    SessionEventType = "session.paired"
	SessionEventUnpaired  SessionEventType = "session.unpaired"
	SessionEventExpired   SessionEventType = "session.expired"
	SessionEventSignaling SessionEventType = "session.signaling"
)
