// Package mocks provides hand-written fakes of the pipeline collaborators.
package mocks

import (
	"context"
	"sync"

	"reach/internal/content"
	"reach/internal/llm"
	"reach/internal/mailer"
	"reach/internal/observability"
)

// MockContentSource provides a mock implementation of content.Source
type MockContentSource struct {
	FetchFunc func(ctx context.Context, q content.Query) ([]content.Record, error)
	Records   []content.Record
}

func (m *MockContentSource) Fetch(ctx context.Context, q content.Query) ([]content.Record, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, q)
	}
	return m.Records, nil
}

// MockCompleter provides a mock implementation of llm.Completer and counts calls.
type MockCompleter struct {
	CompleteFunc func(ctx context.Context, req llm.Request) (string, error)

	mu       sync.Mutex
	requests []llm.Request
}

func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "Generated text.", nil
}

// Calls returns the number of Complete calls so far.
func (m *MockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received.
func (m *MockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// MockRenderer provides a mock implementation of pdf.Renderer
type MockRenderer struct {
	RenderFunc func(ctx context.Context, html string) []byte
	Calls      int
}

func (m *MockRenderer) Render(ctx context.Context, html string) []byte {
	m.Calls++
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, html)
	}
	return []byte("%PDF-1.4 mock")
}

// MockDonorSource provides a mock implementation of donors.Source
type MockDonorSource struct {
	OptedInEmailsFunc func(ctx context.Context) ([]string, error)
	Emails            []string
}

func (m *MockDonorSource) OptedInEmails(ctx context.Context) ([]string, error) {
	if m.OptedInEmailsFunc != nil {
		return m.OptedInEmailsFunc(ctx)
	}
	return m.Emails, nil
}

// MockSender provides a mock implementation of mailer.Sender
type MockSender struct {
	SendFunc func(ctx context.Context, msg mailer.Message) mailer.Outcome
	Messages []mailer.Message
}

func (m *MockSender) Send(ctx context.Context, msg mailer.Message) mailer.Outcome {
	m.Messages = append(m.Messages, msg)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, msg)
	}
	if len(msg.Recipients) == 0 {
		return mailer.Outcome{Success: false, Error: mailer.ErrNoRecipients.Error()}
	}
	return mailer.Outcome{Success: true, Count: len(msg.Recipients)}
}

// MockTracker records analytics events.
type MockTracker struct {
	Generated []observability.Generated
	Sent      []observability.Sent
}

func (m *MockTracker) TrackGenerated(ctx context.Context, ev observability.Generated) error {
	m.Generated = append(m.Generated, ev)
	return nil
}

func (m *MockTracker) TrackSent(ctx context.Context, ev observability.Sent) error {
	m.Sent = append(m.Sent, ev)
	return nil
}
