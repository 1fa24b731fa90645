// internal/feed/ranker/config.go
package ranker

import (
	"time"

	appconfig "chorehero-feed/internal/common/config"
)

type Config struct {
	DefaultLimit int
	MaxLimit     int
	// CandidateMultiplier sizes the local-path raw batch relative to the
	// requested limit.
	CandidateMultiplier int
	RadiusKm            float64
	RPCTimeout          time.Duration
	ReadTimeout         time.Duration
}

func LoadConfig() *Config {
	return &Config{
		DefaultLimit:        20,
		MaxLimit:            100,
		CandidateMultiplier: 2,
		RadiusKm:            50,
		RPCTimeout:          3 * time.Second,
		ReadTimeout:         5 * time.Second,
	}
}

// ConfigFromApp maps the application feed config onto the ranker's config.
func ConfigFromApp(cfg appconfig.FeedConfig) *Config {
	return &Config{
		DefaultLimit:        cfg.DefaultLimit,
		MaxLimit:            cfg.MaxLimit,
		CandidateMultiplier: cfg.CandidateMultiplier,
		RadiusKm:            cfg.RadiusKm,
		RPCTimeout:          time.Duration(cfg.RPCTimeout) * time.Millisecond,
		ReadTimeout:         time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}
}
