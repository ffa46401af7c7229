// Package config provides server configuration for the battleship server.
//
// Config is populated by the CLI from flags, BATTLESHIP_* environment
// variables and an optional .env file, then checked with Validate before the
// server starts.
//
// Usage:
//
//	cfg := config.Default()
//	cfg.Port = 9090
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManager(logger, session.WithRules(cfg.Rules()))
package config
