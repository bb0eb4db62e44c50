package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/homehub/cast-server-go/internal/model"
)

type PairingEventRepository interface {
	Create(ctx context.Context, params model.CreatePairingEventParams) (*model.PairingEvent, error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.PairingEvent, error)
	ListRecent(ctx context.Context, limit int) ([]model.PairingEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type pairingEventRepo struct {
	db *sqlx.DB
}

func NewPairingEventRepository(db *sqlx.DB) PairingEventRepository {
	return &pairingEventRepo{db: db}
}

func (r *pairingEventRepo) Create(ctx context.Context, params model.CreatePairingEventParams) (*model.PairingEvent, error) {
	var ev model.PairingEvent
	err := r.db.GetContext(ctx, &ev, `
		INSERT INTO pairing_events (id, session_id, device_info, client_ip, paired_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		RETURNING *
	`, params.ID, params.SessionID, string(params.DeviceInfo), params.ClientIP, params.PairedAt)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *pairingEventRepo) FindBySessionID(ctx context.Context, sessionID string) (*model.PairingEvent, error) {
	var ev model.PairingEvent
	err := r.db.GetContext(ctx, &ev, `
		SELECT * FROM pairing_events
		WHERE session_id = $1
		ORDER BY paired_at DESC
		LIMIT 1
	`, sessionID)
	return HandleNotFound(&ev, err)
}

func (r *pairingEventRepo) ListRecent(ctx context.Context, limit int) ([]model.PairingEvent, error) {
	events := []model.PairingEvent{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT * FROM pairing_events
		ORDER BY paired_at DESC
		LIMIT $1
	`, limit)
	return events, err
}

func (r *pairingEventRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_events
		WHERE paired_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
