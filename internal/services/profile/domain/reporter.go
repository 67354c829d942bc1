package domain

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Reporter observes failures that the profile screen degrades through.
type Reporter interface {
	Report(ctx context.Context, dependency string, err error)
}

// TelemetryReporter logs failures and records them on the active span.
type TelemetryReporter struct {
	logf func(string, ...any)
}

// NewTelemetryReporter returns a reporter writing through logf, or the
// standard logger when logf is nil.
func NewTelemetryReporter(logf func(string, ...any)) *TelemetryReporter {
	if logf == nil {
		logf = log.Printf
	}
	return &TelemetryReporter{logf: logf}
}

// Report implements Reporter.
func (r *TelemetryReporter) Report(ctx context.Context, dependency string, err error) {
	if r == nil || err == nil {
		return
	}
	remote := isDependencyFailure(err)
	r.logf("profile degraded dependency=%s remote=%t err=%v", dependency, remote, err)

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("profile.degraded", trace.WithAttributes(
		attribute.String("profile.dependency", dependency),
		attribute.Bool("profile.remote", remote),
	))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
