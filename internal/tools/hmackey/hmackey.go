// Package hmackey generates signing keys for messenger session tokens.
package hmackey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// DefaultEnvName is the variable read by the auth token provider.
const DefaultEnvName = "MESSENGER_AUTH_TOKEN_KEY"

// Config holds configuration for key generation.
type Config struct {
	Bytes   int
	EnvName string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32, EnvName: DefaultEnvName}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (minimum 32)")
	fs.StringVar(&cfg.EnvName, "env", cfg.EnvName, "environment variable name to print")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes it to out as an env assignment.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < 32 {
		return errors.New("bytes must be at least 32")
	}
	envName := strings.TrimSpace(cfg.EnvName)
	if envName == "" {
		return errors.New("env name is required")
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err := fmt.Fprintf(out, "%s=%s\n", envName, hex.EncodeToString(buf))
	return err
}
