package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/battleship/game/engine"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults applied when a flag is not set
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8080
	DefaultIdleTimeout    = time.Duration(0)
	DefaultReapInterval   = 30 * time.Second
	DefaultResultsHistory = 100
	DefaultNATSSubject    = "battleship"
)

// Config holds the server settings gathered from flags, environment and .env
type Config struct {
	Host  string
	Port  int
	Debug bool

	// IdleTimeout of zero, the default, disables the idle room reaper.
	// Ngrok settings are ignored unless Ngrok is set.
	IdleTimeout    time.Duration
	ReapInterval   time.Duration
	ResultsHistory int

	MaxShips     int
	MaxShipCells int

	NATSURL     string
	NATSSubject string

	Ngrok       bool
	NgrokAuth   string
	NgrokDomain string
}

// Default returns a Config with every default applied
func Default() Config {
	return Config{
		Host:           DefaultHost,
		Port:           DefaultPort,
		IdleTimeout:    DefaultIdleTimeout,
		ReapInterval:   DefaultReapInterval,
		ResultsHistory: DefaultResultsHistory,
		NATSSubject:    DefaultNATSSubject,
	}
}

// Validate reports the first setting that cannot be served
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be between 1-65535 inclusive: %d", ErrInvalidConfig, c.Port)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle-timeout must not be negative", ErrInvalidConfig)
	}
	if c.IdleTimeout > 0 && c.ReapInterval <= 0 {
		return fmt.Errorf("%w: reap-interval must be positive when idle-timeout is set", ErrInvalidConfig)
	}
	if c.ResultsHistory < 1 {
		return fmt.Errorf("%w: results-history must be at least 1: %d", ErrInvalidConfig, c.ResultsHistory)
	}
	if c.MaxShips < 0 || c.MaxShipCells < 0 {
		return fmt.Errorf("%w: ship limits must not be negative", ErrInvalidConfig)
	}
	if c.NATSURL != "" && strings.TrimSpace(c.NATSSubject) == "" {
		return fmt.Errorf("%w: nats-subject is required with nats-url", ErrInvalidConfig)
	}
	if strings.ContainsAny(c.NATSSubject, " *>") {
		return fmt.Errorf("%w: nats-subject must be a literal subject prefix: %q", ErrInvalidConfig, c.NATSSubject)
	}
	return nil
}

// Addr is the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Rules converts the ship limits for the engine
func (c *Config) Rules() engine.Rules {
	return engine.Rules{MaxShips: c.MaxShips, MaxShipCells: c.MaxShipCells}
}
