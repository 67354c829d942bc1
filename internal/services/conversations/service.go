package conversations

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/louisbranch/messenger/internal/platform/errors"
	"github.com/louisbranch/messenger/internal/platform/timeouts"
	"github.com/louisbranch/messenger/internal/services/blob"
	"github.com/louisbranch/messenger/internal/services/profile/lookupkey"
	"github.com/louisbranch/messenger/internal/services/profile/render"
	"github.com/louisbranch/messenger/internal/services/records"
)

const previewConcurrency = 8

// ErrServiceNotConfigured indicates a nil service or missing collaborator.
var ErrServiceNotConfigured = errors.New("conversations service is not configured")

// Preview is a conversation formatted for display.
type Preview struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Message  string `json:"message"`
	Date     string `json:"date"`
	Unread   bool   `json:"unread"`
	ImageURL string `json:"image_url,omitempty"`
}

// Config holds the collaborators of Service.
type Config struct {
	Records   records.Store
	Blobs     blob.Resolver
	Localizer render.Localizer
	Logf      func(string, ...any)
}

// Service reads conversation lists from the record store.
type Service struct {
	records records.Store
	blobs   blob.Resolver
	loc     render.Localizer
	logf    func(string, ...any)
}

// NewService validates cfg and returns a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Records == nil || cfg.Blobs == nil {
		return nil, ErrServiceNotConfigured
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Service{records: cfg.Records, blobs: cfg.Blobs, loc: cfg.Localizer, logf: cfg.Logf}, nil
}

// List returns the conversations of email, newest first. A user without
// conversations gets an empty list.
func (s *Service) List(ctx context.Context, email string) ([]Conversation, error) {
	if s == nil {
		return nil, ErrServiceNotConfigured
	}
	key, err := lookupkey.Sanitize(email)
	if err != nil {
		return nil, err
	}
	readCtx, cancel := context.WithTimeout(ctx, timeouts.RemoteRead)
	defer cancel()
	value, err := s.records.Get(readCtx, lookupkey.ConversationsPath(key))
	if errors.Is(err, records.ErrNotFound) {
		return []Conversation{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return decodeList(value)
}

// Previews returns the conversations of email formatted for display, with
// partner pictures resolved concurrently. A picture that fails to resolve
// leaves its preview without an image.
func (s *Service) Previews(ctx context.Context, email string) ([]Preview, error) {
	list, err := s.List(ctx, email)
	if err != nil {
		return nil, err
	}
	previews := make([]Preview, len(list))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(previewConcurrency)
	for i, conversation := range list {
		previews[i] = Preview{
			ID:      conversation.ID,
			Name:    conversation.Name,
			Message: conversation.LatestMessage.Text,
			Date:    FormatDate(conversation.LatestMessage.Date, s.loc),
			Unread:  !conversation.LatestMessage.IsRead,
		}
		group.Go(func() error {
			url, err := resolvePicture(groupCtx, s.blobs, conversation.OtherUserEmail)
			if err != nil {
				s.logf("conversation picture unavailable conversation=%s err=%v", conversation.ID, err)
				return nil
			}
			previews[i].ImageURL = url
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return previews, nil
}

// Put writes conversations for email, replacing the stored list.
func (s *Service) Put(ctx context.Context, email string, list []Conversation) error {
	if s == nil {
		return ErrServiceNotConfigured
	}
	key, err := lookupkey.Sanitize(email)
	if err != nil {
		return err
	}
	value := make(map[string]any, len(list))
	for _, conversation := range list {
		if conversation.ID == "" {
			return apperrors.New(apperrors.CodeInvalidArgument, "conversation id is required")
		}
		value[conversation.ID] = conversation.Record()
	}
	writeCtx, cancel := context.WithTimeout(ctx, timeouts.RemoteWrite)
	defer cancel()
	if err := s.records.Set(writeCtx, lookupkey.ConversationsPath(key), value); err != nil {
		return fmt.Errorf("put conversations: %w", err)
	}
	return nil
}
