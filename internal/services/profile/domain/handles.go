package domain

import (
	"context"
	"sync"
)

// RefreshResult describes how one refresh call resolved.
type RefreshResult struct {
	Seq uint64
	// NoActiveSession is set when no user was signed in. It is not an error.
	NoActiveSession bool
	ProfileErr      error
	PresenceErr     error
	// Applied reports that the fetched profile reached the session store.
	Applied bool
	// Discarded reports that a successful profile fetch lost to a newer one.
	Discarded bool
}

// RefreshHandle resolves once both reads of a refresh have been reconciled.
type RefreshHandle struct {
	seq     uint64
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	pending int
	result  RefreshResult
	onDone  func()
}

func newRefreshHandle(seq uint64, parts int, onDone func()) *RefreshHandle {
	return &RefreshHandle{
		seq:     seq,
		done:    make(chan struct{}),
		pending: parts,
		result:  RefreshResult{Seq: seq},
		onDone:  onDone,
	}
}

func resolvedRefresh(seq uint64, result RefreshResult) *RefreshHandle {
	h := newRefreshHandle(seq, 0, nil)
	result.Seq = seq
	h.result = result
	h.finish()
	return h
}

// Seq is the invocation sequence number of the refresh.
func (h *RefreshHandle) Seq() uint64 {
	return h.seq
}

// Done is closed when the refresh has resolved.
func (h *RefreshHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the refresh resolves or ctx ends.
func (h *RefreshHandle) Wait(ctx context.Context) (RefreshResult, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.result, nil
	case <-ctx.Done():
		return RefreshResult{Seq: h.seq}, ctx.Err()
	}
}

func (h *RefreshHandle) update(fn func(*RefreshResult)) {
	h.mu.Lock()
	fn(&h.result)
	h.mu.Unlock()
}

// partDone marks one read reconciled and resolves the handle after the last.
func (h *RefreshHandle) partDone() {
	h.mu.Lock()
	h.pending--
	last := h.pending <= 0
	h.mu.Unlock()
	if last {
		h.finish()
	}
}

func (h *RefreshHandle) finish() {
	h.once.Do(func() {
		if h.onDone != nil {
			h.onDone()
		}
		close(h.done)
	})
}

// PresenceWrite resolves once a presence write has been acknowledged.
type PresenceWrite struct {
	done chan struct{}
	ok   bool
	err  error
}

func newPresenceWrite() *PresenceWrite {
	return &PresenceWrite{done: make(chan struct{})}
}

func resolvedPresenceWrite(err error) *PresenceWrite {
	w := newPresenceWrite()
	w.resolve(err)
	return w
}

func (w *PresenceWrite) resolve(err error) {
	w.ok = err == nil
	w.err = err
	close(w.done)
}

// Done is closed when the write has resolved.
func (w *PresenceWrite) Done() <-chan struct{} {
	return w.done
}

// Wait reports whether the remote store accepted the write.
func (w *PresenceWrite) Wait(ctx context.Context) (bool, error) {
	select {
	case <-w.done:
		return w.ok, w.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// LogoutResult describes how the asynchronous half of a logout resolved.
type LogoutResult struct {
	// ClearErr is set when the local session could not be removed.
	ClearErr   error
	SignOutErr error
	Navigated  bool
}

// LogoutHandle resolves after the sign-out response has been handled.
type LogoutHandle struct {
	done   chan struct{}
	result LogoutResult
	err    error
}

func newLogoutHandle() *LogoutHandle {
	return &LogoutHandle{done: make(chan struct{})}
}

func (h *LogoutHandle) resolve(result LogoutResult, err error) {
	h.result = result
	h.err = err
	close(h.done)
}

// Done is closed when the logout has resolved.
func (h *LogoutHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the sign-out response has been handled.
func (h *LogoutHandle) Wait(ctx context.Context) (LogoutResult, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return LogoutResult{}, ctx.Err()
	}
}
