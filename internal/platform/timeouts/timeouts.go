// Package timeouts defines shared timeout constants used by messenger
// processes so transport and collaborator deadlines stay consistent.
package timeouts

import "time"

// RemoteRead caps a single read against the remote record store.
const RemoteRead = 5 * time.Second

// RemoteWrite caps a single write against the remote record store.
const RemoteWrite = 5 * time.Second

// BlobResolve caps a download URL resolution, including the optional probe.
const BlobResolve = 3 * time.Second

// HealthProbe caps each gRPC health check attempt.
const HealthProbe = time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
