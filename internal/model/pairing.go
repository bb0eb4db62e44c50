package model

import (
	"encoding/json"
	"time"
)

// PairingEvent is one row of the pairing history kept in Postgres.
type PairingEvent struct {
	ID         string          `db:"id" json:"id"`
	SessionID  string          `db:"session_id" json:"session_id"`
	DeviceInfo json.RawMessage `db:"device_info" json:"device_info"`
	ClientIP   string          `db:"client_ip" json:"client_ip,omitempty"`
	PairedAt   time.Time       `db:"paired_at" json:"paired_at"`
}

type CreatePairingEventParams struct {
	ID         string
	SessionID  string
	DeviceInfo json.RawMessage
	ClientIP   string
	PairedAt   time.Time
}
