// Package observability reports newsletter runs to PostHog.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/posthog/posthog-go"

	"reach/internal/config"
)

const systemDistinctID = "reach-newsletter"

// Event names.
const (
	EventNewsletterGenerated = "newsletter_generated"
	EventNewsletterSent      = "newsletter_sent"
)

// EventProperties contains properties for an event
type EventProperties map[string]any

// Generated describes a finished generation run.
type Generated struct {
	RunID        string
	Year         int
	Month        int
	Sections     int
	Strategy     string
	PDFBytes     int
	CacheHits    int
	LLMCalls     int
	Fallbacks    int
	DurationMs   int64
	ContentItems int
}

// Sent describes a delivery attempt.
type Sent struct {
	RunID      string
	Year       int
	Month      int
	Success    bool
	Recipients int
	Error      string
}

// Tracker records pipeline analytics.
type Tracker interface {
	TrackGenerated(ctx context.Context, ev Generated) error
	TrackSent(ctx context.Context, ev Sent) error
}

// PostHogClient wraps the PostHog SDK for product analytics
type PostHogClient struct {
	client  posthog.Client
	enabled bool
	log     *slog.Logger
}

// NewPostHogClient creates a client from cfg. A disabled config yields a
// client whose methods do nothing.
func NewPostHogClient(cfg config.PostHog, log *slog.Logger) (*PostHogClient, error) {
	if log == nil {
		log = slog.Default()
	}
	if !cfg.Enabled {
		return &PostHogClient{enabled: false, log: log}, nil
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("PostHog enabled but missing API key")
	}

	client, err := posthog.NewWithConfig(cfg.APIKey, posthog.Config{
		Endpoint: cfg.Host,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create PostHog client: %w", err)
	}
	return &PostHogClient{client: client, enabled: true, log: log}, nil
}

// IsEnabled returns whether PostHog tracking is enabled
func (p *PostHogClient) IsEnabled() bool {
	return p.enabled
}

// Capture enqueues an event.
func (p *PostHogClient) Capture(ctx context.Context, event string, properties EventProperties) error {
	if !p.enabled {
		return nil
	}

	props := posthog.NewProperties()
	for k, v := range properties {
		props.Set(k, v)
	}
	if err := p.client.Enqueue(posthog.Capture{
		DistinctId: systemDistinctID,
		Event:      event,
		Properties: props,
	}); err != nil {
		p.log.Warn("failed to enqueue analytics event", "event", event, "error", err.Error())
		return err
	}
	return nil
}

// TrackGenerated implements Tracker.
func (p *PostHogClient) TrackGenerated(ctx context.Context, ev Generated) error {
	return p.Capture(ctx, EventNewsletterGenerated, EventProperties{
		"run_id":        ev.RunID,
		"year":          ev.Year,
		"month":         ev.Month,
		"sections":      ev.Sections,
		"strategy":      ev.Strategy,
		"pdf_bytes":     ev.PDFBytes,
		"cache_hits":    ev.CacheHits,
		"llm_calls":     ev.LLMCalls,
		"fallbacks":     ev.Fallbacks,
		"content_items": ev.ContentItems,
		"duration_ms":   ev.DurationMs,
	})
}

// TrackSent implements Tracker.
func (p *PostHogClient) TrackSent(ctx context.Context, ev Sent) error {
	props := EventProperties{
		"run_id":     ev.RunID,
		"year":       ev.Year,
		"month":      ev.Month,
		"success":    ev.Success,
		"recipients": ev.Recipients,
	}
	if ev.Error != "" {
		props["error"] = ev.Error
	}
	return p.Capture(ctx, EventNewsletterSent, props)
}

// Shutdown flushes pending events and closes the client.
func (p *PostHogClient) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	return p.client.Close()
}

// Nop is a Tracker that records nothing.
type Nop struct{}

func (Nop) TrackGenerated(context.Context, Generated) error { return nil }
func (Nop) TrackSent(context.Context, Sent) error           { return nil }
