package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/homehub/cast-server-go/internal/model"
	"github.com/homehub/cast-server-go/internal/repository"
)

// Recorder keeps the pairing history. Without a repository it only logs.
type Recorder struct {
	repo repository.PairingEventRepository
}

func NewRecorder(repo repository.PairingEventRepository) *Recorder {
	return &Recorder{repo: repo}
}

func (r *Recorder) Enabled() bool {
	return r != nil && r.repo != nil
}

// RecordPairing persists a successful pairing. Failures are logged and never
// propagate to the pairing caller.
func (r *Recorder) RecordPairing(ctx context.Context, session *model.Session, clientIP string) {
	if !r.Enabled() {
		return
	}

	info, err := json.Marshal(session.DeviceInfo)
	if err != nil || session.DeviceInfo == nil {
		info = []byte("{}")
	}

	pairedAt := time.Now()
	if session.PairedAt != nil {
		pairedAt = *session.PairedAt
	}

	ev, err := r.repo.Create(ctx, model.CreatePairingEventParams{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		DeviceInfo: info,
		ClientIP:   clientIP,
		PairedAt:   pairedAt,
	})
	if err != nil {
		log.Error().Err(err).Str("sessionId", session.ID).Msg("failed to persist pairing event")
		return
	}

	Log(ctx, Event{
		Type:      EventPairingPersisted,
		SessionID: session.ID,
		Details:   map[string]interface{}{"pairing_event_id": ev.ID},
	})
}

func (r *Recorder) History(ctx context.Context, limit int) ([]model.PairingEvent, error) {
	if !r.Enabled() {
		return nil, nil
	}
	return r.repo.ListRecent(ctx, limit)
}

// Prune removes history older than the retention window.
func (r *Recorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if !r.Enabled() {
		return 0, nil
	}
	return r.repo.DeleteOlderThan(ctx, time.Now().Add(-retention))
}
