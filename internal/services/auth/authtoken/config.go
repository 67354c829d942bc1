package authtoken

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const minKeyBytes = 32

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Issuer string        `env:"MESSENGER_AUTH_TOKEN_ISSUER" envDefault:"messenger"`
	Key    string        `env:"MESSENGER_AUTH_TOKEN_KEY"`
	TTL    time.Duration `env:"MESSENGER_AUTH_TOKEN_TTL"    envDefault:"720h"`
}

// Config defines how session tokens are signed and validated.
type Config struct {
	Issuer string
	Key    []byte
	TTL    time.Duration
	Now    func() time.Time
}

// LoadConfigFromEnv reads the token signing configuration. The key is the
// hex value printed by the hmac-key tool.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse auth token env: %w", err)
	}
	return configFromRaw(raw, now)
}

func configFromRaw(raw tokenEnv, now func() time.Time) (Config, error) {
	issuer := strings.TrimSpace(raw.Issuer)
	keyHex := strings.TrimSpace(raw.Key)
	if issuer == "" {
		return Config{}, errors.New("MESSENGER_AUTH_TOKEN_ISSUER is required")
	}
	if keyHex == "" {
		return Config{}, errors.New("MESSENGER_AUTH_TOKEN_KEY is required")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return Config{}, fmt.Errorf("decode MESSENGER_AUTH_TOKEN_KEY: %w", err)
	}
	if len(key) < minKeyBytes {
		return Config{}, fmt.Errorf("MESSENGER_AUTH_TOKEN_KEY must be at least %d bytes", minKeyBytes)
	}
	if raw.TTL <= 0 {
		return Config{}, errors.New("MESSENGER_AUTH_TOKEN_TTL must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return Config{Issuer: issuer, Key: key, TTL: raw.TTL, Now: now}, nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Issuer) == "" || len(c.Key) < minKeyBytes || c.TTL <= 0 {
		return errors.New("auth token signer is not configured")
	}
	return nil
}
