package conversations

import (
	"context"
	"errors"
	"log"

	"github.com/louisbranch/messenger/internal/platform/timeouts"
	"github.com/louisbranch/messenger/internal/platform/uiloop"
	"github.com/louisbranch/messenger/internal/services/blob"
	"github.com/louisbranch/messenger/internal/services/profile/lookupkey"
	"github.com/louisbranch/messenger/internal/services/profile/render"
)

// ErrCellNotConfigured indicates a cell without a loop or resolver.
var ErrCellNotConfigured = errors.New("conversation cell is not configured")

// ImageRenderer displays the partner picture of a cell. It is called on the loop.
type ImageRenderer interface {
	SetImage(url string)
}

// CellState is what a cell currently displays.
type CellState struct {
	Name     string
	Message  string
	Date     string
	Unread   bool
	ImageURL string
}

// CellOptions configures a Cell.
type CellOptions struct {
	Loop      *uiloop.Loop
	Blobs     blob.Resolver
	Images    ImageRenderer
	Localizer render.Localizer
	Logf      func(string, ...any)
}

// Cell is a reusable conversation list row. A cell may be reconfigured for
// another conversation while a picture lookup is still in flight; the late
// result is dropped.
type Cell struct {
	loop   *uiloop.Loop
	blobs  blob.Resolver
	images ImageRenderer
	loc    render.Localizer
	logf   func(string, ...any)

	// Loop-confined.
	gen   uint64
	state CellState
}

// NewCell returns a Cell bound to opts.Loop.
func NewCell(opts CellOptions) (*Cell, error) {
	if opts.Loop == nil || opts.Blobs == nil {
		return nil, ErrCellNotConfigured
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	return &Cell{
		loop:   opts.Loop,
		blobs:  opts.Blobs,
		images: opts.Images,
		loc:    opts.Localizer,
		logf:   opts.Logf,
	}, nil
}

// Configure shows conversation in the cell. Labels are applied before it
// returns; the partner picture follows asynchronously. The returned channel
// is closed once the picture lookup has been handled, applied or dropped.
func (c *Cell) Configure(ctx context.Context, conversation Conversation) (<-chan struct{}, error) {
	if c == nil {
		return nil, ErrCellNotConfigured
	}
	var gen uint64
	if err := c.loop.Do(ctx, func() {
		c.gen++
		gen = c.gen
		c.state = CellState{
			Name:    conversation.Name,
			Message: conversation.LatestMessage.Text,
			Date:    FormatDate(conversation.LatestMessage.Date, c.loc),
			Unread:  !conversation.LatestMessage.IsRead,
		}
		c.setImage("")
	}); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		url, err := c.resolvePicture(ctx, conversation.OtherUserEmail)
		if !c.loop.Post(func() {
			defer close(done)
			if gen != c.gen {
				return
			}
			if err != nil {
				c.logf("conversation picture unavailable conversation=%s err=%v", conversation.ID, err)
				return
			}
			c.setImage(url)
		}) {
			close(done)
		}
	}()
	return done, nil
}

// Prepare readies the cell for reuse: pending lookups are invalidated and
// the picture is cleared.
func (c *Cell) Prepare(ctx context.Context) error {
	if c == nil {
		return ErrCellNotConfigured
	}
	return c.loop.Do(ctx, func() {
		c.gen++
		c.state = CellState{}
		c.setImage("")
	})
}

// State returns what the cell displays.
func (c *Cell) State(ctx context.Context) (CellState, error) {
	if c == nil {
		return CellState{}, ErrCellNotConfigured
	}
	var state CellState
	err := c.loop.Do(ctx, func() { state = c.state })
	return state, err
}

func (c *Cell) setImage(url string) {
	c.state.ImageURL = url
	if c.images != nil {
		c.images.SetImage(url)
	}
}

func (c *Cell) resolvePicture(ctx context.Context, email string) (string, error) {
	return resolvePicture(ctx, c.blobs, email)
}

// resolvePicture looks up the profile picture of email, keyed by the same
// sanitized key as the profile record.
func resolvePicture(ctx context.Context, blobs blob.Resolver, email string) (string, error) {
	key, err := lookupkey.Sanitize(email)
	if err != nil {
		return "", err
	}
	resolveCtx, cancel := context.WithTimeout(ctx, timeouts.BlobResolve)
	defer cancel()
	return blobs.DownloadURL(resolveCtx, lookupkey.ProfilePicturePath(key))
}
