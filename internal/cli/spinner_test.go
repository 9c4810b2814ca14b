package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

// captureStdout redirects command output for the duration of a test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func TestSpinnerBasic(t *testing.T) {
	s := newSpinnerWithContext(context.Background(), "Testing...")
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()
}

func TestSpinnerWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	s := newSpinnerWithContext(ctx, "Testing with context...")
	s.Start()
	cancel()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context cancellation")
	}
}

func TestSpinnerWithTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := newSpinnerWithContext(ctx, "Testing with timeout...")
	s.Start()
	time.Sleep(100 * time.Millisecond)

	if !s.Cancelled() {
		t.Error("Spinner should be cancelled after context timeout")
	}
}

func TestSpinnerStopIsIdempotent(t *testing.T) {
	s := newSpinnerWithContext(context.Background(), "Testing idempotent stop...")
	s.Start()

	s.Stop()
	s.Stop()
	s.Stop()
}

func TestSpinnerStopWithSuccess(t *testing.T) {
	out := captureStdout(t)
	s := newSpinnerWithContext(context.Background(), "Importing...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.StopWithSuccess("Imported 3 files")

	if !strings.Contains(out.String(), "Imported 3 files") {
		t.Errorf("output = %q, want success message", out.String())
	}
}

func TestSpinnerStopWithError(t *testing.T) {
	out := captureStdout(t)
	s := newSpinnerWithContext(context.Background(), "Importing...")
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.StopWithError("Import failed")

	if !strings.Contains(out.String(), "Import failed") {
		t.Errorf("output = %q, want error message", out.String())
	}
}

func TestSpinnerWritesToItsWriter(t *testing.T) {
	var buf bytes.Buffer
	s := newSpinnerWithContext(context.Background(), "Exporting...")
	s.w = &buf
	s.Start()
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if !strings.Contains(buf.String(), "Exporting...") {
		t.Errorf("spinner output %q should show the message", buf.String())
	}
	if s.Cancelled() {
		t.Error("Stop should not count as cancellation")
	}
}
