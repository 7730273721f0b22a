package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config is the mother CLI's persistent configuration surface, in the
// shape of node/config.go: a flat struct, a DefaultConfig, and explicit
// field-by-field validation.
type Config struct {
	VaultDir string `json:"vault_dir"`
	RSABits  int    `json:"rsa_bits"`
	LogLevel string `json:"log_level"`
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultVaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".sigil-mother"
	}
	return filepath.Join(home, ".sigil-mother")
}

func DefaultConfig() Config {
	return Config{
		VaultDir: DefaultVaultDir(),
		RSABits:  2048,
		LogLevel: "info",
	}
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.VaultDir) == "" {
		return errors.New("vault_dir is required")
	}
	if cfg.RSABits < 1024 {
		return errors.New("rsa_bits must be >= 1024")
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return errors.New("invalid log_level")
	}
	return nil
}
