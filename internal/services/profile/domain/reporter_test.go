package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestTelemetryReporterLogsDependency(t *testing.T) {
	t.Parallel()

	var lines []string
	reporter := NewTelemetryReporter(func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	})

	reporter.Report(context.Background(), dependencyProfile, &DependencyError{Dependency: dependencyProfile, Err: errors.New("offline")})
	reporter.Report(context.Background(), dependencyProfile, nil)

	if len(lines) != 1 {
		t.Fatalf("lines = %v, want one", lines)
	}
	for _, want := range []string{"dependency=records.profile", "remote=true", "offline"} {
		if !strings.Contains(lines[0], want) {
			t.Fatalf("line = %q, want %q", lines[0], want)
		}
	}
}

func TestTelemetryReporterLocalFailure(t *testing.T) {
	t.Parallel()

	var line string
	reporter := NewTelemetryReporter(func(format string, args ...any) {
		line = fmt.Sprintf(format, args...)
	})
	reporter.Report(context.Background(), dependencyPresence, ErrMalformedPresence)
	if !strings.Contains(line, "remote=false") {
		t.Fatalf("line = %q, want remote=false", line)
	}
}

func TestNilTelemetryReporter(t *testing.T) {
	t.Parallel()

	var reporter *TelemetryReporter
	reporter.Report(context.Background(), dependencyAuth, errors.New("boom"))
}

func TestDependencyErrorMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("offline")
	err := &DependencyError{Dependency: dependencyHeader, Err: cause}
	if got, want := err.Error(), "blob.header: offline"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause")
	}
}
