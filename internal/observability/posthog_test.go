package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/posthog/posthog-go"

	"reach/internal/config"
)

type fakePostHog struct {
	posthog.Client
	messages []posthog.Message
	closed   bool
	err      error
}

func (f *fakePostHog) Enqueue(m posthog.Message) error {
	f.messages = append(f.messages, m)
	return f.err
}

func (f *fakePostHog) Close() error {
	f.closed = true
	return nil
}

func TestDisabledClientIsNoop(t *testing.T) {
	c, err := NewPostHogClient(config.PostHog{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewPostHogClient failed: %v", err)
	}
	if c.IsEnabled() {
		t.Error("expected disabled client")
	}
	if err := c.TrackGenerated(context.Background(), Generated{RunID: "r"}); err != nil {
		t.Errorf("disabled client should not fail: %v", err)
	}
	if err := c.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestEnabledRequiresAPIKey(t *testing.T) {
	if _, err := NewPostHogClient(config.PostHog{Enabled: true}, nil); err == nil {
		t.Error("expected error without API key")
	}
}

func TestTrackGenerated(t *testing.T) {
	fake := &fakePostHog{}
	c, _ := withFake(fake)

	if err := c.TrackGenerated(context.Background(), Generated{RunID: "run-1", Year: 2025, Month: 8, Sections: 3, Strategy: "inline"}); err != nil {
		t.Fatalf("TrackGenerated failed: %v", err)
	}
	if len(fake.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fake.messages))
	}
	capture, ok := fake.messages[0].(posthog.Capture)
	if !ok {
		t.Fatalf("expected Capture, got %T", fake.messages[0])
	}
	if capture.Event != EventNewsletterGenerated || capture.DistinctId != systemDistinctID {
		t.Errorf("unexpected capture: %+v", capture)
	}
	if capture.Properties["run_id"] != "run-1" || capture.Properties["sections"] != 3 {
		t.Errorf("unexpected properties: %v", capture.Properties)
	}
}

func TestTrackSentIncludesError(t *testing.T) {
	fake := &fakePostHog{}
	c, _ := withFake(fake)

	if err := c.TrackSent(context.Background(), Sent{RunID: "run-2", Success: false, Error: "smtp down"}); err != nil {
		t.Fatalf("TrackSent failed: %v", err)
	}
	capture := fake.messages[0].(posthog.Capture)
	if capture.Event != EventNewsletterSent || capture.Properties["error"] != "smtp down" {
		t.Errorf("unexpected capture: %+v", capture)
	}

	if err := c.Shutdown(context.Background()); err != nil || !fake.closed {
		t.Errorf("expected Shutdown to close the client, err=%v", err)
	}
}

func TestCaptureEnqueueError(t *testing.T) {
	fake := &fakePostHog{err: errors.New("queue full")}
	c, _ := withFake(fake)
	if err := c.Capture(context.Background(), "x", nil); err == nil {
		t.Error("expected enqueue error to surface")
	}
}

func withFake(fake *fakePostHog) (*PostHogClient, error) {
	c, err := NewPostHogClient(config.PostHog{}, nil)
	if err != nil {
		return nil, err
	}
	c.client = fake
	c.enabled = true
	return c, nil
}
