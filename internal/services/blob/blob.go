// Package blob resolves stored object paths into download URLs.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/louisbranch/messenger/internal/platform/timeouts"
)

var (
	// ErrNotFound indicates no object exists at the path.
	ErrNotFound = errors.New("blob not found")
	// ErrUnavailable indicates a transient transport failure.
	ErrUnavailable = errors.New("blob store unavailable")
)

// Resolver resolves an object path into a URL the image renderer can load.
type Resolver interface {
	DownloadURL(ctx context.Context, path string) (string, error)
}

// CDN resolves paths against a static base URL.
type CDN struct {
	base *url.URL
	// VerifyExists issues a HEAD request before returning the URL.
	VerifyExists bool
	Client       *http.Client
}

// NewCDN parses baseURL and returns a CDN resolver.
func NewCDN(baseURL string, verifyExists bool) (*CDN, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse blob base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("blob base url %q must be absolute", baseURL)
	}
	return &CDN{
		base:         parsed,
		VerifyExists: verifyExists,
		Client:       &http.Client{Timeout: timeouts.BlobResolve},
	}, nil
}

// DownloadURL joins the base URL and the escaped object path.
func (c *CDN) DownloadURL(ctx context.Context, path string) (string, error) {
	if c == nil || c.base == nil {
		return "", errors.New("blob resolver is not configured")
	}
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", errors.New("blob path is required")
	}

	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	resolved := c.base.JoinPath(segments...).String()
	if !c.VerifyExists {
		return resolved, nil
	}
	if err := c.probe(ctx, resolved); err != nil {
		return "", err
	}
	return resolved, nil
}

func (c *CDN) probe(ctx context.Context, target string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	_ = resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, target)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("probe %s: status %d", target, resp.StatusCode)
	}
	return nil
}
