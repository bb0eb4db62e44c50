package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                    int      `env:"PORT" envDefault:"3005"`
	LogLevel                string   `env:"LOG_LEVEL" envDefault:"info"`
	ServiceVersion          string   `env:"SERVICE_VERSION" envDefault:"0.1.0"`
	SessionTTLSeconds       int      `env:"SESSION_TTL_SECONDS" envDefault:"300"`
	ReaperIntervalSeconds   int      `env:"REAPER_INTERVAL_SECONDS" envDefault:"60"`
	AudioMaxDurationSeconds int      `env:"AUDIO_MAX_DURATION_SECONDS" envDefault:"30"`
	ChannelReadLimitBytes   int64    `env:"CHANNEL_READ_LIMIT_BYTES" envDefault:"1048576"`
	ChannelSendBuffer       int      `env:"CHANNEL_SEND_BUFFER" envDefault:"64"`
	PairRateLimitPerMin     int      `env:"PAIR_RATE_LIMIT_PER_MIN" envDefault:"10"`
	RedisURL                string   `env:"REDIS_URL"`
	DatabaseURL             string   `env:"DATABASE_URL"`
	HistoryRetentionDays    int      `env:"PAIRING_HISTORY_RETENTION_DAYS" envDefault:"30"`
	STUNURLs                []string `env:"STUN_URLS" envSeparator:","`
	TURNURLs                []string `env:"TURN_URLS" envSeparator:","`
	TURNUsername            string   `env:"TURN_USERNAME"`
	TURNCredential          string   `env:"TURN_CREDENTIAL"`
	DiscoveryEnabled        bool     `env:"DISCOVERY_ENABLED" envDefault:"true"`
	DiscoveryInstance       string   `env:"DISCOVERY_INSTANCE" envDefault:"HomeHub"`
	DiscoveryService        string   `env:"DISCOVERY_SERVICE" envDefault:"_homehub-cast._tcp"`
	DiscoveryDomain         string   `env:"DISCOVERY_DOMAIN" envDefault:"local."`
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}

func (c *Config) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSeconds) * time.Second
}

func (c *Config) AudioMaxDuration() time.Duration {
	return time.Duration(c.AudioMaxDurationSeconds) * time.Second
}

func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}
	if c.ReaperIntervalSeconds <= 0 {
		return fmt.Errorf("REAPER_INTERVAL_SECONDS must be positive")
	}
	if c.AudioMaxDurationSeconds <= 0 {
		return fmt.Errorf("AUDIO_MAX_DURATION_SECONDS must be positive")
	}
	if c.DatabaseURL != "" && c.HistoryRetentionDays <= 0 {
		return fmt.Errorf("PAIRING_HISTORY_RETENTION_DAYS must be positive")
	}
	if c.ChannelSendBuffer <= 0 {
		return fmt.Errorf("CHANNEL_SEND_BUFFER must be positive")
	}

	if c.ReaperIntervalSeconds > c.SessionTTLSeconds {
		log.Warn().
			Int("reaperInterval", c.ReaperIntervalSeconds).
			Int("sessionTtl", c.SessionTTLSeconds).
			Msg("reaper interval exceeds session TTL: expired sessions linger until the next tick")
	}
	if len(c.TURNURLs) > 0 && (c.TURNUsername == "" || c.TURNCredential == "") {
		log.Warn().Msg("TURN_URLS set without TURN_USERNAME/TURN_CREDENTIAL: TURN entries are sent without credentials")
	}
	if strings.HasPrefix(c.RedisURL, "redis://") && !isLocalURL(c.RedisURL) {
		log.Warn().Msg("REDIS_URL uses redis:// (not TLS) to a remote host: consider using rediss://")
	}

	return nil
}

func isLocalURL(u string) bool {
	return strings.Contains(u, "localhost") || strings.Contains(u, "127.0.0.1")
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
