package enhance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"reach/internal/llm"
)

type fakeCompleter struct {
	calls        int
	lastRequest  llm.Request
	CompleteFunc func(call int, req llm.Request) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	f.lastRequest = req
	return f.CompleteFunc(f.calls, req)
}

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func (r *recordingSleeper) total() time.Duration {
	var sum time.Duration
	for _, w := range r.waits {
		sum += w
	}
	return sum
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffBase = 100 * time.Millisecond
	cfg.InterCallDelay = 0
	return cfg
}

func noJitter(time.Duration) time.Duration { return 0 }

func sotmTask(id string) Task {
	return Task{
		Key:      Key{Scope: ScopeStudentOfMonth, ItemID: id},
		Kind:     PromptStudentOfMonth,
		Name:     "Priya",
		Caption:  "Priya topped her class in mathematics.",
		Fallback: "Priya topped her class in mathematics.",
	}
}

func TestEnhanceCachesResult(t *testing.T) {
	fc := &fakeCompleter{CompleteFunc: func(int, llm.Request) (string, error) {
		return "Priya's **remarkable** year.", nil
	}}
	sleeper := &recordingSleeper{}
	e := NewEnhancer(fc, NewCache(), testConfig(), WithSleep(sleeper.sleep), WithJitter(noJitter))

	first := e.Enhance(context.Background(), sotmTask("item-1"))
	second := e.Enhance(context.Background(), sotmTask("item-1"))

	if fc.calls != 1 {
		t.Fatalf("expected exactly one provider call, got %d", fc.calls)
	}
	if first.FromCache || !second.FromCache {
		t.Errorf("unexpected cache flags: first=%v second=%v", first.FromCache, second.FromCache)
	}
	if first.Text != second.Text {
		t.Errorf("cached text differs: %q vs %q", first.Text, second.Text)
	}
}

func TestEnhanceCacheSharedAcrossEnhancers(t *testing.T) {
	cache := NewCache()
	cache.Set(Key{Scope: ScopeGratitude, ItemID: "g-1"}, "Thank you.")

	fc := &fakeCompleter{CompleteFunc: func(int, llm.Request) (string, error) {
		t.Fatal("provider should not be called on a cache hit")
		return "", nil
	}}
	e := NewEnhancer(fc, cache, testConfig())

	got := e.Enhance(context.Background(), Task{Key: Key{Scope: ScopeGratitude, ItemID: "g-1"}, Kind: PromptGratitude})
	if got.Text != "Thank you." || !got.FromCache {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestEnhanceRetriesRateLimitThenFallsBack(t *testing.T) {
	fc := &fakeCompleter{CompleteFunc: func(int, llm.Request) (string, error) {
		return "", &llm.StatusError{StatusCode: 429, Err: errors.New("quota exceeded")}
	}}
	sleeper := &recordingSleeper{}
	cfg := testConfig()
	cache := NewCache()
	e := NewEnhancer(fc, cache, cfg, WithSleep(sleeper.sleep), WithJitter(noJitter))

	task := sotmTask("item-2")
	got := e.Enhance(context.Background(), task)

	if fc.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", fc.calls)
	}
	if !got.Fallback || got.Text != task.Fallback {
		t.Errorf("expected raw-text fallback, got %+v", got)
	}
	if want := cfg.BackoffBase + 2*cfg.BackoffBase; sleeper.total() != want {
		t.Errorf("total backoff = %v, want %v (waits %v)", sleeper.total(), want, sleeper.waits)
	}
	if cache.Len() != 0 {
		t.Error("fallback text must not be cached")
	}
}

func TestEnhanceRetriesServiceUnavailableThenSucceeds(t *testing.T) {
	fc := &fakeCompleter{CompleteFunc: func(call int, _ llm.Request) (string, error) {
		if call == 1 {
			return "", &llm.StatusError{StatusCode: 503, Err: errors.New("overloaded")}
		}
		return "Back online.", nil
	}}
	sleeper := &recordingSleeper{}
	e := NewEnhancer(fc, nil, testConfig(), WithSleep(sleeper.sleep), WithJitter(noJitter))

	got := e.Enhance(context.Background(), sotmTask("item-3"))
	if got.Text != "Back online." || got.Attempts != 2 {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestEnhanceBackoffElapsedWithoutInjectedSleep(t *testing.T) {
	fc := &fakeCompleter{CompleteFunc: func(int, llm.Request) (string, error) {
		return "", &llm.StatusError{StatusCode: 429, Err: errors.New("slow down")}
	}}
	cfg := testConfig()
	cfg.BackoffBase = 20 * time.Millisecond
	e := NewEnhancer(fc, nil, cfg)

	start := time.Now()
	e.Enhance(context.Background(), sotmTask("item-4"))
	elapsed := time.Since(start)

	// 20ms + 40ms, each with up to 5ms jitter.
	if elapsed < 60*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Errorf("elapsed %v outside expected backoff window", elapsed)
	}
	if fc.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", fc.calls)
	}
}

func TestEnhanceNonRetryableAbortsImmediately(t *testing.T) {
	fc := &fakeCompleter{CompleteFunc: func(int, llm.Request) (string, error) {
		return "", &llm.StatusError{StatusCode: 400, Err: errors.New("bad request")}
	}}
	sleeper := &recordingSleeper{}
	e := NewEnhancer(fc, nil, testConfig(), WithSleep(sleeper.sleep), WithJitter(noJitter))

	got := e.Enhance(context.Background(), sotmTask("item-5"))
	if fc.calls != 1 {
		t.Errorf("expected a single attempt, got %d", fc.calls)
	}
	if !got.Fallback {
		t.Error("expected fallback")
	}
	if len(sleeper.waits) != 0 {
		t.Errorf("expected no waits, got %v", sleeper.waits)
	}
}

func TestEnhanceThrottlesOnlyAfterSuccessfulMiss(t *testing.T) {
	fc := &fakeCompleter{CompleteFunc: func(int, llm.Request) (string, error) {
		return "Generated.", nil
	}}
	sleeper := &recordingSleeper{}
	cfg := testConfig()
	cfg.InterCallDelay = 1500 * time.Millisecond
	e := NewEnhancer(fc, nil, cfg, WithSleep(sleeper.sleep), WithJitter(noJitter))

	e.Enhance(context.Background(), sotmTask("a"))
	e.Enhance(context.Background(), sotmTask("a"))

	if len(sleeper.waits) != 1 || sleeper.waits[0] != cfg.InterCallDelay {
		t.Errorf("expected one throttle wait of %v, got %v", cfg.InterCallDelay, sleeper.waits)
	}
}

func TestEnhanceNoThrottleOnFallback(t *testing.T) {
	fc := &fakeCompleter{CompleteFunc: func(int, llm.Request) (string, error) {
		return "", errors.New("network down")
	}}
	sleeper := &recordingSleeper{}
	cfg := testConfig()
	cfg.InterCallDelay = time.Second
	e := NewEnhancer(fc, nil, cfg, WithSleep(sleeper.sleep))

	e.Enhance(context.Background(), sotmTask("b"))
	if len(sleeper.waits) != 0 {
		t.Errorf("expected no throttle after failure, got %v", sleeper.waits)
	}
}

func TestEnhanceWithoutCompleterFallsBack(t *testing.T) {
	e := NewEnhancer(nil, nil, testConfig())
	got := e.Enhance(context.Background(), sotmTask("c"))
	if !got.Fallback || got.Text != sotmTask("c").Fallback {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestEnhanceSendsRoleFramingAndPrompt(t *testing.T) {
	fc := &fakeCompleter{CompleteFunc: func(int, llm.Request) (string, error) {
		return "Dear donors, thank you.\nYour support kept Priya in school.", nil
	}}
	e := NewEnhancer(fc, nil, testConfig(), WithSleep((&recordingSleeper{}).sleep))

	got := e.Enhance(context.Background(), sotmTask("d"))

	if !strings.Contains(fc.lastRequest.System, "Project REACH") {
		t.Errorf("role framing missing org name: %q", fc.lastRequest.System)
	}
	if !strings.Contains(fc.lastRequest.Prompt, "Priya topped her class") {
		t.Errorf("prompt missing caption: %q", fc.lastRequest.Prompt)
	}
	if fc.lastRequest.MaxTokens != 600 {
		t.Errorf("unexpected max tokens: %d", fc.lastRequest.MaxTokens)
	}
	if got.Text != "Your support kept Priya in school." {
		t.Errorf("salutation not stripped: %q", got.Text)
	}
}

func TestStripSalutation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dear supporters, this month was special. We grew.", "We grew."},
		{"Hi everyone!\nPriya won the prize.", "Priya won the prize."},
		{"hello friends\nNew term started.", "New term started."},
		{"Highlights from August.", "Highlights from August."},
		{"Dear friends.", "Dear friends."},
		{"  Thank you for everything.  ", "Thank you for everything."},
	}

	for _, tt := range tests {
		if got := StripSalutation(tt.in); got != tt.want {
			t.Errorf("StripSalutation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	gratitude := BuildPrompt(PromptGratitude, "ignored", "ignored caption")
	if strings.Contains(gratitude, "ignored") {
		t.Error("gratitude prompt should not take item input")
	}

	achievement := BuildPrompt(PromptAchievement, "", "Won the district science fair.")
	if !strings.Contains(achievement, "one of our students") || !strings.Contains(achievement, "science fair") {
		t.Errorf("unexpected achievement prompt: %q", achievement)
	}

	sotm := BuildPrompt(PromptStudentOfMonth, "Arjun", "Scored top marks.")
	if !strings.Contains(sotm, "Arjun") || !strings.Contains(sotm, "Student of the Month") {
		t.Errorf("unexpected narrative prompt: %q", sotm)
	}
}

func TestExtractName(t *testing.T) {
	tests := []struct {
		title   string
		caption string
		want    string
	}{
		{"Student of the month: Priya Sharma", "", "Priya Sharma"},
		{"Science fair - Arjun", "", "Arjun"},
		{"August update", "Congratulations Meera Nair on her results.", "Meera Nair"},
		{"Festive Season", "the kids sang songs", ""},
		{"Student of the month", "Our Student Ravi scored 98%.", "Ravi"},
	}

	for _, tt := range tests {
		if got := ExtractName(tt.title, tt.caption); got != tt.want {
			t.Errorf("ExtractName(%q, %q) = %q, want %q", tt.title, tt.caption, got, tt.want)
		}
	}
}

func TestCacheKeyString(t *testing.T) {
	k := Key{Scope: ScopeAchievement, ItemID: "42"}
	if k.String() != "achievement:42" {
		t.Errorf("unexpected key: %q", k.String())
	}
}

func TestRetryScheduleDoubles(t *testing.T) {
	cfg := testConfig()
	cfg.BackoffBase = 100 * time.Millisecond
	cfg.MaxAttempts = 4
	e := NewEnhancer(nil, nil, cfg)

	schedule := e.newSchedule()
	for i, want := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond} {
		if got := schedule.NextBackOff(); got != want {
			t.Errorf("wait %d = %v, want %v", i+1, got, want)
		}
	}
}
