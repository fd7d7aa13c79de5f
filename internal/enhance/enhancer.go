// Package enhance turns raw content captions into newsletter prose using a
// language model, with a process-wide cache, bounded retries and throttling.
package enhance

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"reach/internal/llm"
)

// Config controls retry and throttling behaviour.
type Config struct {
	OrgName        string
	MaxTokens      int
	Temperature    float64
	MaxAttempts    int
	BackoffBase    time.Duration
	InterCallDelay time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		OrgName:        "Project REACH",
		MaxTokens:      600,
		Temperature:    0.7,
		MaxAttempts:    3,
		BackoffBase:    time.Second,
		InterCallDelay: 1500 * time.Millisecond,
	}
}

// Task describes one fragment to enhance.
type Task struct {
	Key      Key
	Kind     PromptKind
	Name     string
	Caption  string
	Fallback string
}

// Result is the text to publish for a task and where it came from.
type Result struct {
	Text      string
	FromCache bool
	Fallback  bool
	Attempts  int
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Enhancer issues enhancement calls one at a time.
type Enhancer struct {
	completer llm.Completer
	cache     *Cache
	cfg       Config
	log       *slog.Logger
	sleep     SleepFunc
	jitter    func(base time.Duration) time.Duration
}

// Option customizes an Enhancer.
type Option func(*Enhancer)

// WithSleep replaces the timer used for backoff and throttling.
func WithSleep(fn SleepFunc) Option {
	return func(e *Enhancer) { e.sleep = fn }
}

// WithJitter replaces the random jitter added to each backoff wait.
func WithJitter(fn func(base time.Duration) time.Duration) Option {
	return func(e *Enhancer) { e.jitter = fn }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Enhancer) { e.log = log }
}

// NewEnhancer creates an enhancer. A nil completer means every task falls
// back to its raw text. A nil cache gets a fresh private cache.
func NewEnhancer(completer llm.Completer, cache *Cache, cfg Config, opts ...Option) *Enhancer {
	if cache == nil {
		cache = NewCache()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	e := &Enhancer{
		completer: completer,
		cache:     cache,
		cfg:       cfg,
		log:       slog.Default(),
		sleep:     sleepContext,
		jitter:    defaultJitter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the cache backing this enhancer.
func (e *Enhancer) Cache() *Cache {
	return e.cache
}

// Enhance returns prose for task. It never fails: any provider error ends
// in the task's fallback text, which is not cached.
func (e *Enhancer) Enhance(ctx context.Context, task Task) Result {
	if text, ok := e.cache.Get(task.Key); ok {
		e.log.Debug("enhancement cache hit", "key", task.Key.String())
		return Result{Text: text, FromCache: true}
	}

	if e.completer == nil {
		return Result{Text: task.Fallback, Fallback: true}
	}

	req := llm.Request{
		System:      BuildRoleFraming(e.cfg.OrgName),
		Prompt:      BuildPrompt(task.Kind, task.Name, task.Caption),
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	}

	text, attempts, err := e.completeWithRetry(ctx, req)
	if err == nil {
		text = StripSalutation(text)
		if strings.TrimSpace(text) == "" {
			err = llm.ErrEmptyResponse
		}
	}
	if err != nil {
		e.log.Warn("enhancement failed, using raw text",
			"key", task.Key.String(),
			"attempts", attempts,
			"status", llm.StatusCode(err),
			"error", err.Error())
		return Result{Text: task.Fallback, Fallback: true, Attempts: attempts}
	}

	e.cache.Set(task.Key, text)

	if e.cfg.InterCallDelay > 0 {
		if err := e.sleep(ctx, e.cfg.InterCallDelay); err != nil {
			e.log.Debug("throttle interrupted", "error", err.Error())
		}
	}
	return Result{Text: text, Attempts: attempts}
}

func (e *Enhancer) completeWithRetry(ctx context.Context, req llm.Request) (string, int, error) {
	var lastErr error
	schedule := e.newSchedule()
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		text, err := e.completer.Complete(ctx, req)
		if err == nil {
			return text, attempt, nil
		}
		lastErr = err

		if !llm.IsRetryable(err) || attempt == e.cfg.MaxAttempts {
			return "", attempt, lastErr
		}

		wait := schedule.NextBackOff() + e.jitter(e.cfg.BackoffBase)
		e.log.Info("retrying enhancement",
			"attempt", attempt,
			"backoff", wait,
			"status", llm.StatusCode(err))
		if err := e.sleep(ctx, wait); err != nil {
			return "", attempt, errors.Join(lastErr, err)
		}
	}
	return "", e.cfg.MaxAttempts, lastErr
}

// newSchedule yields base, 2*base, 4*base, ... with no built-in
// randomization; jitter is added by the caller.
func (e *Enhancer) newSchedule() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.BackoffBase
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = e.cfg.BackoffBase << e.cfg.MaxAttempts
	b.Reset()
	return b
}

func defaultJitter(base time.Duration) time.Duration {
	limit := int64(base / 4)
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(limit))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var salutationPattern = regexp.MustCompile(`(?i)^\s*(?:dear|hi|hello)\b[^.!?\n]*[.!?\n]\s*`)

// StripSalutation removes a leading "Dear ...", "Hi ..." or "Hello ..."
// clause through the first sentence terminator or line break.
func StripSalutation(text string) string {
	loc := salutationPattern.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text)
	}
	rest := strings.TrimSpace(text[loc[1]:])
	if rest == "" {
		return strings.TrimSpace(text)
	}
	return rest
}
