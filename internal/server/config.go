package server

import (
	"fmt"
	"net"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/roach88/danmaku/internal/wire"
)

// EnvPrefix is the environment prefix read by LoadConfig.
const EnvPrefix = "DANMAKU"

// Config holds the event server settings. Every field can be set from the
// environment, e.g. DANMAKU_ADDR or DANMAKU_TOKEN_TTL=10m.
type Config struct {
	Addr   string `envconfig:"ADDR" default:":8000"`
	DBPath string `envconfig:"DB_PATH" default:"danmaku.db"` // empty disables persistence

	TokenTTL     time.Duration `envconfig:"TOKEN_TTL" default:"5m"`
	MaxInMemory  int           `envconfig:"MAX_IN_MEMORY" default:"500"`
	RecoverLimit int           `envconfig:"RECOVER_LIMIT" default:"1000"`

	PingInterval     time.Duration `envconfig:"PING_INTERVAL" default:"15s"`
	SubscriberBuffer int           `envconfig:"SUBSCRIBER_BUFFER" default:"200"`

	PostRPS   float64 `envconfig:"POST_RPS" default:"5"`
	PostBurst int     `envconfig:"POST_BURST" default:"10"`

	// TrustedProxies lists the addresses or CIDRs whose X-Forwarded-For
	// header is believed when rate limiting. Empty means none.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	// MaxContentBytes caps the byte length of a posted message.
	MaxContentBytes int `envconfig:"MAX_CONTENT_BYTES" default:"2000"`
}

// DefaultConfig returns the built-in defaults, identical to an empty
// environment.
func DefaultConfig() Config {
	return Config{
		Addr:             ":8000",
		DBPath:           "danmaku.db",
		TokenTTL:         5 * time.Minute,
		MaxInMemory:      500,
		RecoverLimit:     1000,
		PingInterval:     15 * time.Second,
		SubscriberBuffer: 200,
		PostRPS:          5,
		PostBurst:        10,
		MaxContentBytes:  2000,
	}
}

// LoadConfig reads DANMAKU_* variables over the defaults.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read %s_* environment: %w", EnvPrefix, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.TokenTTL <= 0:
		return fmt.Errorf("token ttl must be > 0, got %v", c.TokenTTL)
	case c.MaxInMemory < 1:
		return fmt.Errorf("max in memory must be >= 1, got %d", c.MaxInMemory)
	case c.PingInterval <= 0:
		return fmt.Errorf("ping interval must be > 0, got %v", c.PingInterval)
	case c.SubscriberBuffer < 1:
		return fmt.Errorf("subscriber buffer must be >= 1, got %d", c.SubscriberBuffer)
	case c.MaxContentBytes < 1 || c.MaxContentBytes > wire.MaxContentBytes:
		return fmt.Errorf("max content bytes must be in 1..%d, got %d", wire.MaxContentBytes, c.MaxContentBytes)
	}
	for _, p := range c.TrustedProxies {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return fmt.Errorf("trusted proxy %q is not an address or CIDR", p)
			}
		}
	}
	return nil
}
