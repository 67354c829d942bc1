// Package profile parses profile command flags and launches the profile runtime.
package profile

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	entrypoint "github.com/louisbranch/messenger/internal/platform/cmd"
	platformgrpc "github.com/louisbranch/messenger/internal/platform/grpc"
	profileapp "github.com/louisbranch/messenger/internal/services/profile/app"
)

// Config holds profile command configuration.
type Config struct {
	HTTPAddr                 string `env:"MESSENGER_PROFILE_HTTP_ADDR" envDefault:":8080"`
	GRPCPort                 int    `env:"MESSENGER_PROFILE_GRPC_PORT" envDefault:"8081"`
	CachePath                string `env:"MESSENGER_PROFILE_CACHE_PATH" envDefault:"data/profile-cache.db"`
	RecordsPath              string `env:"MESSENGER_RECORDS_DB_PATH" envDefault:"data/records.db"`
	RedisAddr                string `env:"MESSENGER_RECORDS_REDIS_ADDR"`
	RedisPassword            string `env:"MESSENGER_RECORDS_REDIS_PASSWORD"`
	RedisDB                  int    `env:"MESSENGER_RECORDS_REDIS_DB" envDefault:"0"`
	BlobBaseURL              string `env:"MESSENGER_BLOB_BASE_URL" envDefault:"http://localhost:9000/messenger"`
	VerifyBlobs              bool   `env:"MESSENGER_BLOB_VERIFY" envDefault:"false"`
	Policy                   string `env:"MESSENGER_PROFILE_REFRESH_POLICY" envDefault:"last-completion"`
	ShowUnavailableRow       bool   `env:"MESSENGER_PROFILE_SHOW_UNAVAILABLE_ROW" envDefault:"false"`
	RevertPresenceOnFailure  bool   `env:"MESSENGER_PROFILE_REVERT_PRESENCE_ON_FAILURE" envDefault:"false"`
	NavigateOnSignOutFailure bool   `env:"MESSENGER_PROFILE_NAVIGATE_ON_SIGNOUT_FAILURE" envDefault:"false"`
	Locale                   string `env:"MESSENGER_PROFILE_LOCALE" envDefault:"en"`

	// Check probes the running process health endpoint and exits.
	Check        bool
	CheckTimeout time.Duration
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.CheckTimeout = 5 * time.Second

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The HTTP API listen address")
	fs.IntVar(&cfg.GRPCPort, "grpc-port", cfg.GRPCPort, "The gRPC health server port")
	fs.StringVar(&cfg.CachePath, "cache-path", cfg.CachePath, "The local session cache file")
	fs.StringVar(&cfg.RecordsPath, "records-path", cfg.RecordsPath, "The SQLite record store file")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "The Redis record store address; overrides -records-path")
	fs.StringVar(&cfg.BlobBaseURL, "blob-base-url", cfg.BlobBaseURL, "The base URL profile pictures are served from")
	fs.BoolVar(&cfg.VerifyBlobs, "verify-blobs", cfg.VerifyBlobs, "Check picture existence before returning URLs")
	fs.StringVar(&cfg.Policy, "refresh-policy", cfg.Policy, "Overlapping refresh policy (last-completion, latest-invocation)")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "The label locale")
	fs.BoolVar(&cfg.Check, "check", false, "Probe the gRPC health endpoint and exit")
	fs.DurationVar(&cfg.CheckTimeout, "check-timeout", cfg.CheckTimeout, "The health probe timeout")

	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GRPCAddr is the health server listen address.
func (c Config) GRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}

// Check waits until the local profile process reports SERVING.
func Check(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.CheckTimeout)
	defer cancel()
	return platformgrpc.Probe(ctx, fmt.Sprintf("localhost:%d", cfg.GRPCPort), profileapp.HealthService, log.Printf)
}

// Run starts the profile runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceProfile, func(context.Context) error {
		return profileapp.Run(ctx, profileapp.RuntimeConfig{
			HTTPAddr:                 cfg.HTTPAddr,
			GRPCAddr:                 cfg.GRPCAddr(),
			CachePath:                cfg.CachePath,
			RecordsPath:              cfg.RecordsPath,
			RedisAddr:                cfg.RedisAddr,
			RedisPassword:            cfg.RedisPassword,
			RedisDB:                  cfg.RedisDB,
			BlobBaseURL:              cfg.BlobBaseURL,
			VerifyBlobs:              cfg.VerifyBlobs,
			Policy:                   cfg.Policy,
			ShowUnavailableRow:       cfg.ShowUnavailableRow,
			RevertPresenceOnFailure:  cfg.RevertPresenceOnFailure,
			NavigateOnSignOutFailure: cfg.NavigateOnSignOutFailure,
			Locale:                   cfg.Locale,
		})
	})
}
