package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/messenger/internal/platform/uiloop"
	"github.com/louisbranch/messenger/internal/services/auth/authtoken"
	"github.com/louisbranch/messenger/internal/services/profile/session"
	"github.com/louisbranch/messenger/internal/services/records"
	"github.com/louisbranch/messenger/internal/storage/kv"
)

const (
	annEmail = "ann@x.com"
	annKey   = "ann-40x-2ecom"
)

// staticRecords answers reads from fixed maps.
type staticRecords struct {
	mu      sync.Mutex
	values  map[string]any
	getErrs map[string]error
	setErr  error
	setGate chan struct{}
	gets    int
	sets    map[string]any
}

func (f *staticRecords) Get(_ context.Context, path string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if err := f.getErrs[path]; err != nil {
		return nil, err
	}
	value, ok := f.values[path]
	if !ok {
		return nil, records.ErrNotFound
	}
	return value, nil
}

func (f *staticRecords) Set(ctx context.Context, path string, value any) error {
	if f.setGate != nil {
		select {
		case <-f.setGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	if f.sets == nil {
		f.sets = map[string]any{}
	}
	f.sets[path] = value
	return nil
}

func (f *staticRecords) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

type readResult struct {
	value any
	err   error
}

// pendingRead is one blocked Get waiting for the test to answer it.
type pendingRead struct {
	path  string
	reply chan readResult
}

func (p pendingRead) answer(value any, err error) {
	p.reply <- readResult{value: value, err: err}
}

// gatedRecords blocks every Get until the test answers it.
type gatedRecords struct {
	reads chan pendingRead
}

func newGatedRecords() *gatedRecords {
	return &gatedRecords{reads: make(chan pendingRead)}
}

func (g *gatedRecords) Get(ctx context.Context, path string) (any, error) {
	read := pendingRead{path: path, reply: make(chan readResult, 1)}
	select {
	case g.reads <- read:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-read.reply:
		return result.value, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedRecords) Set(context.Context, string, any) error {
	return nil
}

// takeReads collects the profile and presence reads of one refresh.
func (g *gatedRecords) takeReads(t *testing.T) (profile, presence pendingRead) {
	t.Helper()
	for i := 0; i < 2; i++ {
		select {
		case read := <-g.reads:
			if read.path == annKey+"/is_active" {
				presence = read
			} else {
				profile = read
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for remote read")
		}
	}
	return profile, presence
}

type blobResponse struct {
	url     string
	err     error
	gate    chan struct{}
	started chan struct{}
}

// queuedBlobs answers DownloadURL calls in order; extra calls reuse fallback.
type queuedBlobs struct {
	mu        sync.Mutex
	responses []blobResponse
	fallback  blobResponse
}

func (q *queuedBlobs) DownloadURL(ctx context.Context, _ string) (string, error) {
	q.mu.Lock()
	response := q.fallback
	if len(q.responses) > 0 {
		response = q.responses[0]
		q.responses = q.responses[1:]
	}
	q.mu.Unlock()
	if response.started != nil {
		close(response.started)
	}
	if response.gate != nil {
		select {
		case <-response.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return response.url, response.err
}

type fakeAuth struct {
	mu          sync.Mutex
	user        authtoken.User
	signedIn    bool
	currentErr  error
	signOutErr  error
	signOutGate chan struct{}
	signOuts    int
}

func (f *fakeAuth) CurrentUser(context.Context) (authtoken.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, f.signedIn, f.currentErr
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	if f.signOutGate != nil {
		select {
		case <-f.signOutGate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	return f.signOutErr
}

type recordingView struct {
	mu      sync.Mutex
	renders []Model
	updates chan Model
}

func newRecordingView() *recordingView {
	return &recordingView{updates: make(chan Model, 64)}
}

func (v *recordingView) Render(model Model) {
	v.mu.Lock()
	v.renders = append(v.renders, model)
	v.mu.Unlock()
	select {
	case v.updates <- model:
	default:
	}
}

func (v *recordingView) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.renders)
}

type recordingNavigator struct {
	mu    sync.Mutex
	shown int
}

func (n *recordingNavigator) ShowSignedOut() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown++
}

func (n *recordingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shown
}

type reportedFailure struct {
	dependency string
	err        error
}

type recordingReporter struct {
	mu       sync.Mutex
	failures []reportedFailure
}

func (r *recordingReporter) Report(_ context.Context, dependency string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, reportedFailure{dependency: dependency, err: err})
}

func (r *recordingReporter) dependencies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.failures))
	for _, failure := range r.failures {
		out = append(out, failure.dependency)
	}
	return out
}

type harness struct {
	svc       *Service
	cache     *kv.Memory
	sessions  *session.Store
	auth      *fakeAuth
	view      *recordingView
	navigator *recordingNavigator
	reporter  *recordingReporter
	blobs     *queuedBlobs
}

func newHarness(t *testing.T, store records.Store, cfg Config) *harness {
	t.Helper()
	loop := uiloop.New()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-loop.Stopped()
	})

	h := &harness{
		cache:     &kv.Memory{},
		auth:      &fakeAuth{},
		view:      newRecordingView(),
		navigator: &recordingNavigator{},
		reporter:  &recordingReporter{},
		blobs:     &queuedBlobs{fallback: blobResponse{url: "https://cdn.test/images/" + annKey + "_profile_picture.png"}},
	}
	h.sessions = session.NewStore(h.cache)
	svc, err := NewService(Deps{
		Auth:      h.auth,
		Records:   store,
		Blobs:     h.blobs,
		Session:   h.sessions,
		Loop:      loop,
		View:      h.view,
		Navigator: h.navigator,
		Reporter:  h.reporter,
	}, cfg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc
	return h
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func annRecords() *staticRecords {
	return &staticRecords{values: map[string]any{
		annKey:                map[string]any{"first_name": "Ann", "last_name": "Lee"},
		annKey + "/is_active": true,
	}}
}
