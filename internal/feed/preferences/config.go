// internal/feed/preferences/config.go
package preferences

import "time"

type Config struct {
	// HistoryLimit bounds how many recent bookings feed the profile.
	HistoryLimit int
	// MaxPreferred caps the ranked preferred-services list.
	MaxPreferred int
	CacheTTL     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		HistoryLimit: 10,
		MaxPreferred: 3,
		CacheTTL:     5 * time.Minute,
	}
}
