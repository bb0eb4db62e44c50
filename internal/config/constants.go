package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 10
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for startup checks
const DBPingTimeout = 5 * time.Second

// Real-time channel keepalive
const (
	ChannelWriteWait  = 5 * time.Second
	ChannelPongWait   = 60 * time.Second
	ChannelPingPeriod = (ChannelPongWait * 9) / 10
)

// PIN redemption rate limiting window
const PairRateLimitWindow = time.Minute

// Maximum pairing history rows returned per request
const MaxPairingHistoryLimit = 200

const ServiceName = "homehub-cast"
