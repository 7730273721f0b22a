package main

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config is the daemon's startup configuration, in the shape of
// node/config.go: a flat struct, DefaultConfig, and explicit validation.
type Config struct {
	DiskPath          string `json:"disk_path"`
	AgentStorePath    string `json:"agent_store_path"`
	AccumulatorPubHex string `json:"accumulator_pubkey"`
	LogLevel          string `json:"log_level"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".sigil-daemon"
	}
	return filepath.Join(home, ".sigil-daemon")
}

func DefaultConfig() Config {
	dir := DefaultDataDir()
	return Config{
		DiskPath:       filepath.Join(dir, "child.disk"),
		AgentStorePath: filepath.Join(dir, "agentstore.db"),
		LogLevel:       "info",
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.DiskPath) == "" {
		return errors.New("disk_path is required")
	}
	if strings.TrimSpace(cfg.AgentStorePath) == "" {
		return errors.New("agent_store_path is required")
	}
	if strings.TrimSpace(cfg.AccumulatorPubHex) == "" {
		return errors.New("accumulator_pubkey is required")
	}
	pub, err := hex.DecodeString(cfg.AccumulatorPubHex)
	if err != nil || len(pub) != 33 {
		return errors.New("accumulator_pubkey must be 33 bytes hex")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return errors.New("invalid log_level")
	}
	return nil
}
