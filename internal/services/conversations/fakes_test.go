package conversations

import (
	"context"
	"sync"
	"testing"

	"github.com/louisbranch/messenger/internal/platform/uiloop"
)

// gatedBlobs answers DownloadURL per path, blocking on the path gate if any.
type gatedBlobs struct {
	mu    sync.Mutex
	urls  map[string]string
	errs  map[string]error
	gates map[string]chan struct{}
	calls []string
}

func (g *gatedBlobs) DownloadURL(ctx context.Context, path string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, path)
	gate := g.gates[path]
	url, err := g.urls[path], g.errs[path]
	g.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return url, err
}

type recordingImages struct {
	urls []string
}

func (r *recordingImages) SetImage(url string) {
	r.urls = append(r.urls, url)
}

func startLoop(t *testing.T) *uiloop.Loop {
	t.Helper()
	loop := uiloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-loop.Stopped()
	})
	return loop
}
