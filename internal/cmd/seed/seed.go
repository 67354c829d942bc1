// Package seed writes demo profile data into the configured record store.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/louisbranch/messenger/internal/platform/timeouts"
	"github.com/louisbranch/messenger/internal/services/conversations"
	"github.com/louisbranch/messenger/internal/services/profile/app"
	"github.com/louisbranch/messenger/internal/services/profile/lookupkey"
)

const maxConversations = 50

// Config holds seed command configuration.
type Config struct {
	RecordsPath   string
	RedisAddr     string
	Email         string
	FirstName     string
	LastName      string
	Active        bool
	Conversations int
	// Now stamps generated messages. Defaults to time.Now.
	Now func() time.Time
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	cfg := Config{
		RecordsPath: envOrDefault(lookup, "MESSENGER_RECORDS_DB_PATH", "data/records.db"),
		RedisAddr:   envOrDefault(lookup, "MESSENGER_RECORDS_REDIS_ADDR", ""),
	}
	fs.StringVar(&cfg.RecordsPath, "records-path", cfg.RecordsPath, "SQLite record store file")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis record store address; overrides -records-path")
	fs.StringVar(&cfg.Email, "email", "demo@example.com", "account email")
	fs.StringVar(&cfg.FirstName, "first-name", "Demo", "profile first name")
	fs.StringVar(&cfg.LastName, "last-name", "User", "profile last name")
	fs.BoolVar(&cfg.Active, "active", true, "presence flag")
	fs.IntVar(&cfg.Conversations, "conversations", 3, "number of demo conversations")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Conversations < 0 || cfg.Conversations > maxConversations {
		return Config{}, fmt.Errorf("conversations must be between 0 and %d", maxConversations)
	}
	return cfg, nil
}

// Run writes the profile, presence and conversations of cfg.Email.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if strings.TrimSpace(cfg.FirstName) == "" || strings.TrimSpace(cfg.LastName) == "" {
		return errors.New("first and last name are required")
	}
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	key, err := lookupkey.Sanitize(email)
	if err != nil {
		return err
	}

	store, err := app.OpenRecords(ctx, app.RuntimeConfig{RecordsPath: cfg.RecordsPath, RedisAddr: cfg.RedisAddr})
	if err != nil {
		return err
	}
	defer store.Close()

	writeCtx, cancel := context.WithTimeout(ctx, 3*timeouts.RemoteWrite)
	defer cancel()

	// The profile path owns the presence and conversations subtrees, so it
	// is written first.
	if err := store.Set(writeCtx, lookupkey.ProfilePath(key), map[string]any{
		"first_name": cfg.FirstName,
		"last_name":  cfg.LastName,
	}); err != nil {
		return fmt.Errorf("seed profile: %w", err)
	}
	if err := store.Set(writeCtx, lookupkey.PresencePath(key), cfg.Active); err != nil {
		return fmt.Errorf("seed presence: %w", err)
	}
	fmt.Fprintf(out, "seeded profile %s as %q active=%t\n", email, cfg.FirstName+" "+cfg.LastName, cfg.Active)

	if cfg.Conversations == 0 {
		return nil
	}
	svc, err := conversations.NewService(conversations.Config{Records: store, Blobs: noBlobs{}})
	if err != nil {
		return err
	}
	list := demoConversations(cfg.Conversations, cfg.Now())
	if err := svc.Put(writeCtx, email, list); err != nil {
		return fmt.Errorf("seed conversations: %w", err)
	}
	fmt.Fprintf(out, "seeded %d conversations for %s\n", len(list), email)
	return nil
}

func demoConversations(n int, now time.Time) []conversations.Conversation {
	list := make([]conversations.Conversation, 0, n)
	for i := 1; i <= n; i++ {
		sent := now.Add(-time.Duration(i) * time.Hour)
		list = append(list, conversations.Conversation{
			ID:             fmt.Sprintf("conversation-%02d", i),
			Name:           fmt.Sprintf("Friend %d", i),
			OtherUserEmail: fmt.Sprintf("friend%d@example.com", i),
			LatestMessage: conversations.Message{
				Text:   fmt.Sprintf("Hello from friend %d", i),
				Date:   conversations.StoredDate(sent),
				IsRead: i%2 == 0,
			},
		})
	}
	return list
}

// noBlobs satisfies the resolver requirement; seeding never resolves pictures.
type noBlobs struct{}

func (noBlobs) DownloadURL(context.Context, string) (string, error) {
	return "", errors.New("blob resolution is not available while seeding")
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}
