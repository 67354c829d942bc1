// Package app wires the profile synchronizer into a headless process: an
// HTTP JSON API plus a gRPC health endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/messenger/internal/platform/bus"
	platformgrpc "github.com/louisbranch/messenger/internal/platform/grpc"
	"github.com/louisbranch/messenger/internal/platform/timeouts"
	"github.com/louisbranch/messenger/internal/platform/uiloop"
	"github.com/louisbranch/messenger/internal/services/auth/authtoken"
	"github.com/louisbranch/messenger/internal/services/blob"
	"github.com/louisbranch/messenger/internal/services/conversations"
	"github.com/louisbranch/messenger/internal/services/profile/domain"
	"github.com/louisbranch/messenger/internal/services/profile/render"
	"github.com/louisbranch/messenger/internal/services/profile/session"
	"github.com/louisbranch/messenger/internal/services/records"
	recordsredis "github.com/louisbranch/messenger/internal/services/records/redis"
	recordssqlite "github.com/louisbranch/messenger/internal/services/records/sqlite"
	"github.com/louisbranch/messenger/internal/storage/kv"
)

// HealthService is the gRPC health service name reported by the process.
const HealthService = "messenger.profile"

// RuntimeConfig controls profile process startup and dependency wiring.
type RuntimeConfig struct {
	HTTPAddr string
	GRPCAddr string

	CachePath   string
	RecordsPath string
	// RedisAddr selects the Redis record store instead of SQLite.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	BlobBaseURL string
	VerifyBlobs bool

	Policy                   string
	ShowUnavailableRow       bool
	RevertPresenceOnFailure  bool
	NavigateOnSignOutFailure bool
	Locale                   string
}

// RecordStore is a record store owned by the process.
type RecordStore interface {
	records.Store
	Close() error
}

// OpenRecords opens the record store selected by cfg.
func OpenRecords(ctx context.Context, cfg RuntimeConfig) (RecordStore, error) {
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		store, err := recordsredis.Open(ctx, recordsredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open redis records: %w", err)
		}
		return store, nil
	}
	if strings.TrimSpace(cfg.RecordsPath) == "" {
		return nil, errors.New("records path or redis addr is required")
	}
	store, err := recordssqlite.Open(cfg.RecordsPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite records: %w", err)
	}
	return store, nil
}

func (cfg RuntimeConfig) validate() error {
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return errors.New("http address is required")
	}
	if strings.TrimSpace(cfg.GRPCAddr) == "" {
		return errors.New("grpc address is required")
	}
	if strings.TrimSpace(cfg.CachePath) == "" {
		return errors.New("cache path is required")
	}
	if strings.TrimSpace(cfg.BlobBaseURL) == "" {
		return errors.New("blob base url is required")
	}
	if strings.TrimSpace(cfg.RecordsPath) == "" && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("records path or redis addr is required")
	}
	return nil
}

// Run starts the profile runtime until context cancellation.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cfg.validate(); err != nil {
		return err
	}
	policy, err := domain.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}
	tokenCfg, err := authtoken.LoadConfigFromEnv(time.Now)
	if err != nil {
		return err
	}

	cache, err := kv.Open(cfg.CachePath)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer func() {
		if closeErr := cache.Close(); closeErr != nil {
			log.Printf("close cache: %v", closeErr)
		}
	}()

	store, err := OpenRecords(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close records: %v", closeErr)
		}
	}()

	blobs, err := blob.NewCDN(cfg.BlobBaseURL, cfg.VerifyBlobs)
	if err != nil {
		return fmt.Errorf("configure blobs: %w", err)
	}

	events := bus.New(log.Printf)
	defer events.Wait()

	auth, err := authtoken.New(tokenCfg, cache, store, events)
	if err != nil {
		return fmt.Errorf("configure auth: %w", err)
	}

	loc := render.NewLocalizer(cfg.Locale)
	loop := uiloop.New()
	profile, err := domain.NewService(domain.Deps{
		Auth:      auth,
		Records:   store,
		Blobs:     blobs,
		Session:   session.NewStore(cache),
		Loop:      loop,
		View:      logView{logf: log.Printf},
		Navigator: logNavigator{logf: log.Printf},
		Reporter:  domain.NewTelemetryReporter(log.Printf),
	}, domain.Config{
		Policy:                   policy,
		ShowUnavailableRow:       cfg.ShowUnavailableRow,
		RevertPresenceOnFailure:  cfg.RevertPresenceOnFailure,
		NavigateOnSignOutFailure: cfg.NavigateOnSignOutFailure,
		Localizer:                loc,
	})
	if err != nil {
		return fmt.Errorf("configure profile: %w", err)
	}
	unsubscribe := profile.Subscribe(events)
	defer unsubscribe()

	convs, err := conversations.NewService(conversations.Config{
		Records:   store,
		Blobs:     blobs,
		Localizer: loc,
		Logf:      log.Printf,
	})
	if err != nil {
		return fmt.Errorf("configure conversations: %w", err)
	}

	handler, err := NewHandler(HandlerDeps{Auth: auth, Profile: profile, Conversations: convs, Logf: log.Printf})
	if err != nil {
		return err
	}

	healthServer, err := platformgrpc.NewHealthServer(cfg.GRPCAddr, HealthService)
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPAddr, err)
	}
	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := loop.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("profile loop: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return healthServer.Serve(groupCtx)
	})
	group.Go(func() error {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		healthServer.MarkNotServing()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	profile.Activate(groupCtx)
	healthServer.MarkServing()
	log.Printf("profile server listening http=%s grpc=%s", listener.Addr(), healthServer.Addr())

	return group.Wait()
}

type logView struct {
	logf func(string, ...any)
}

func (v logView) Render(model domain.Model) {
	v.logf("profile rendered rows=%d image=%t", len(model.Rows), model.Header.ImageURL != "")
}

type logNavigator struct {
	logf func(string, ...any)
}

func (n logNavigator) ShowSignedOut() {
	n.logf("profile signed out")
}
