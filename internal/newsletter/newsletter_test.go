package newsletter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"testing"
	"time"

	"reach/internal/content"
	"reach/internal/document"
	"reach/internal/enhance"
	"reach/internal/llm"
	"reach/internal/mailer"
	"reach/test/mocks"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func aug(day int) time.Time {
	return time.Date(2025, 8, day, 10, 0, 0, 0, time.UTC)
}

func sampleRecords() []content.Record {
	return []content.Record{
		{ID: "gen-1", Title: "Thank you", Description: "Donations funded 40 uniforms.", Categories: []string{"General"}, CreatedAt: aug(2)},
		{ID: "fest-1", Title: "Diwali: Kavya", Description: "Kavya led the rangoli contest.", Images: []string{"https://cdn.example.org/rangoli.jpg", "/local/only.jpg"}, Categories: []string{"Festive celebrations"}, CreatedAt: aug(3)},
		{ID: "sotm-1", Title: "Student of the month: Priya", Description: "Priya topped her class.", Images: []string{"https://cdn.example.org/priya.jpg"}, Categories: []string{"Student achievements this month"}, CreatedAt: aug(4)},
		{ID: "fest-2", Title: "Lamps", Description: "Students made 200 <clay> lamps & sold them.", Categories: []string{"Festive Season"}, CreatedAt: aug(5)},
		{ID: "sotm-2", Title: "Runner up", Description: "Ravi came second.", Categories: []string{"Student of the month"}, CreatedAt: aug(6)},
		{ID: "sch-1", Title: "Scholarships", Description: "Ten new scholarships.", Categories: []string{"Scholarships"}, CreatedAt: aug(7)},
	}
}

type fixture struct {
	pipeline  *Pipeline
	completer *mocks.MockCompleter
	renderer  *mocks.MockRenderer
	sender    *mocks.MockSender
	donors    *mocks.MockDonorSource
	tracker   *mocks.MockTracker
	cache     *enhance.Cache
}

func newFixture(records []content.Record) *fixture {
	f := &fixture{
		completer: &mocks.MockCompleter{CompleteFunc: func(ctx context.Context, req llm.Request) (string, error) {
			return "**Enhanced** prose.", nil
		}},
		renderer: &mocks.MockRenderer{},
		sender:   &mocks.MockSender{},
		donors:   &mocks.MockDonorSource{Emails: []string{"a@example.org", "b@example.org"}},
		tracker:  &mocks.MockTracker{},
		cache:    enhance.NewCache(),
	}
	f.pipeline = f.build(&mocks.MockContentSource{Records: records})
	return f
}

func (f *fixture) build(src content.Source) *Pipeline {
	cfg := enhance.DefaultConfig()
	cfg.InterCallDelay = 0
	cfg.BackoffBase = time.Millisecond
	enhancer := enhance.NewEnhancer(f.completer, f.cache, cfg,
		enhance.WithLogger(quiet()),
		enhance.WithSleep(func(context.Context, time.Duration) error { return nil }))

	return NewPipeline(Components{
		Content:  src,
		Enhancer: enhancer,
		Renderer: f.renderer,
		Donors:   f.donors,
		Sender:   f.sender,
		Tracker:  f.tracker,
	}, DefaultConfig(), quiet())
}

func TestGenerateDryRunSkipPDF(t *testing.T) {
	f := newFixture(sampleRecords())

	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, DryRun: true, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if res.PDF == nil || len(res.PDF) != 0 {
		t.Errorf("expected empty non-nil pdf buffer, got %d bytes", len(res.PDF))
	}
	if res.Sent != nil {
		t.Errorf("dry run must not send, got %+v", res.Sent)
	}
	if !strings.Contains(res.HTML, "Project REACH Newsletter – August 2025") {
		t.Error("html missing subject line")
	}
	if f.renderer.Calls != 0 {
		t.Error("renderer should not run with SkipPDF")
	}
	if len(f.sender.Messages) != 0 {
		t.Error("sender should not run on dry run")
	}
}

func TestGenerateSectionOrderAndEnhancementEconomy(t *testing.T) {
	f := newFixture(sampleRecords())

	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, DryRun: true, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var cats, ids []string
	for _, s := range res.Sections {
		cats = append(cats, s.Category)
		ids = append(ids, s.Title)
	}
	wantCats := []string{
		content.CategoryStudentOfMonth,
		content.CategoryFestive, content.CategoryFestive,
		content.CategoryGeneral,
		"Scholarships",
	}
	if strings.Join(cats, "|") != strings.Join(wantCats, "|") {
		t.Fatalf("section categories = %v, want %v", cats, wantCats)
	}
	if res.Sections[0].Title != "Student of the month: Priya" {
		t.Errorf("only the first student of the month should appear, got %v", ids)
	}

	if f.completer.Calls() != 4 {
		t.Errorf("expected one enhancement per category (4), got %d", f.completer.Calls())
	}
	if !strings.Contains(res.Sections[1].BodyHTML, "<strong>Enhanced</strong>") {
		t.Errorf("first festive item should be enhanced: %q", res.Sections[1].BodyHTML)
	}
	if got := res.Sections[2].BodyHTML; got != "<p>Students made 200 &lt;clay&gt; lamps &amp; sold them.</p>" {
		t.Errorf("second festive item should pass through escaped, got %q", got)
	}
	if res.Stats.LLMCalls != 4 || res.Stats.CacheHits != 0 || res.Stats.Items != 5 {
		t.Errorf("unexpected stats: %+v", res.Stats)
	}
}

func TestGeneratePromptVariants(t *testing.T) {
	f := newFixture(sampleRecords())
	if _, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, DryRun: true, SkipPDF: true}); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	reqs := f.completer.Requests()
	if len(reqs) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(reqs))
	}
	if !strings.Contains(reqs[0].Prompt, "Student of the Month") || !strings.Contains(reqs[0].Prompt, "Priya") {
		t.Errorf("first call should be the student-of-month narrative: %q", reqs[0].Prompt)
	}
	if !strings.Contains(reqs[1].Prompt, "Kavya") {
		t.Errorf("festive call should carry the extracted name: %q", reqs[1].Prompt)
	}
	if strings.Contains(reqs[2].Prompt, "uniforms") {
		t.Errorf("gratitude prompt should not include item text: %q", reqs[2].Prompt)
	}
	for _, r := range reqs {
		if !strings.Contains(r.System, "Project REACH") {
			t.Errorf("missing role framing: %q", r.System)
		}
	}
}

func TestGenerateReusesCacheAcrossRuns(t *testing.T) {
	f := newFixture(sampleRecords())
	ctx := context.Background()

	if _, err := f.pipeline.Generate(ctx, Options{Year: 2025, Month: 8, DryRun: true, SkipPDF: true}); err != nil {
		t.Fatalf("first Generate failed: %v", err)
	}
	res, err := f.pipeline.Generate(ctx, Options{Year: 2025, Month: 8, DryRun: true, SkipPDF: true, UseTemplate: true})
	if err != nil {
		t.Fatalf("second Generate failed: %v", err)
	}

	if f.completer.Calls() != 4 {
		t.Errorf("second run should be served from cache, total calls %d", f.completer.Calls())
	}
	if res.Stats.CacheHits != 4 || res.Stats.LLMCalls != 0 {
		t.Errorf("unexpected stats on cached run: %+v", res.Stats)
	}
	if f.cache.Len() != 4 {
		t.Errorf("expected 4 cache entries, got %d", f.cache.Len())
	}
}

func TestGenerateEmptyMonthUsesFallbackSection(t *testing.T) {
	f := newFixture(nil)

	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, DryRun: true, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(res.Sections) != 1 {
		t.Fatalf("expected exactly one fallback section, got %d", len(res.Sections))
	}
	s := res.Sections[0]
	if s.Category != content.CategoryGeneral || s.Title != "Updates" {
		t.Errorf("unexpected fallback section: %+v", s)
	}
	if !strings.Contains(s.BodyHTML, "No new updates this month") {
		t.Errorf("unexpected fallback body: %q", s.BodyHTML)
	}
	if f.completer.Calls() != 0 {
		t.Error("fallback section must not call the model")
	}
}

func TestGenerateContentFailureStillProducesDocument(t *testing.T) {
	f := newFixture(nil)
	f.pipeline = f.build(&mocks.MockContentSource{FetchFunc: func(context.Context, content.Query) ([]content.Record, error) {
		return nil, errors.New("cms timeout")
	}})

	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, DryRun: true})
	if err != nil {
		t.Fatalf("Generate should recover from content failure: %v", err)
	}
	if len(res.Sections) != 1 || !strings.Contains(res.HTML, "No new updates this month") {
		t.Errorf("expected fallback document, got %d sections", len(res.Sections))
	}
}

func TestGenerateEnhancementFailureFallsBackToRawText(t *testing.T) {
	f := newFixture(sampleRecords())
	f.completer.CompleteFunc = func(context.Context, llm.Request) (string, error) {
		return "", &llm.StatusError{StatusCode: 429, Err: errors.New("rate limited")}
	}

	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, DryRun: true, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got := res.Sections[0].BodyHTML; got != "<p>Priya topped her class.</p>" {
		t.Errorf("expected raw caption fallback, got %q", got)
	}
	if f.completer.Calls() != 12 {
		t.Errorf("expected 3 attempts for each of 4 calls, got %d", f.completer.Calls())
	}
	if res.Stats.Fallbacks != 4 || f.cache.Len() != 0 {
		t.Errorf("unexpected stats %+v, cache %d", res.Stats, f.cache.Len())
	}
}

func TestGenerateDropsRelativeImages(t *testing.T) {
	f := newFixture(sampleRecords())
	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, DryRun: true, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	festive := res.Sections[1]
	if len(festive.Images) != 1 || festive.Images[0] != "https://cdn.example.org/rangoli.jpg" {
		t.Errorf("unexpected images: %v", festive.Images)
	}
}

func TestGenerateTemplateStrategy(t *testing.T) {
	f := newFixture(sampleRecords())
	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, DryRun: true, SkipPDF: true, UseTemplate: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Stats.Strategy != document.StrategyTemplate.String() {
		t.Errorf("unexpected strategy %q", res.Stats.Strategy)
	}
	if regexp.MustCompile(`\{\{[A-Z0-9_]+\}\}`).MatchString(res.HTML) {
		t.Error("unresolved tokens in template output")
	}
	if strings.Index(res.HTML, content.CategoryStudentOfMonth) > strings.Index(res.HTML, content.CategoryFestive) {
		t.Error("student of the month block should come first")
	}
}

func TestGenerateRendersPDFAndSends(t *testing.T) {
	f := newFixture(sampleRecords())

	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if f.renderer.Calls != 1 || len(res.PDF) == 0 {
		t.Errorf("expected one render with output, calls=%d bytes=%d", f.renderer.Calls, len(res.PDF))
	}
	if res.Sent == nil || !res.Sent.Success || res.Sent.Count != 2 {
		t.Fatalf("unexpected send outcome: %+v", res.Sent)
	}

	msg := f.sender.Messages[0]
	if msg.PDFName != "newsletter-2025-08.pdf" || msg.Subject != res.Subject || len(msg.PDF) == 0 {
		t.Errorf("unexpected message: name=%q subject=%q pdf=%d", msg.PDFName, msg.Subject, len(msg.PDF))
	}
	if len(f.tracker.Generated) != 1 || len(f.tracker.Sent) != 1 || !f.tracker.Sent[0].Success {
		t.Errorf("unexpected tracked events: %+v %+v", f.tracker.Generated, f.tracker.Sent)
	}
}

func TestGenerateSendFailureKeepsDocument(t *testing.T) {
	f := newFixture(sampleRecords())
	f.sender.SendFunc = func(context.Context, mailer.Message) mailer.Outcome {
		return mailer.Outcome{Success: false, Error: "smtp: 421 service not available"}
	}

	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Sent == nil || res.Sent.Success || !strings.Contains(res.Sent.Error, "421") {
		t.Errorf("unexpected outcome: %+v", res.Sent)
	}
	if res.HTML == "" || len(res.Sections) == 0 {
		t.Error("document should survive a send failure")
	}
}

func TestGenerateDonorFailure(t *testing.T) {
	f := newFixture(sampleRecords())
	f.donors.OptedInEmailsFunc = func(context.Context) ([]string, error) {
		return nil, errors.New("db down")
	}

	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Sent == nil || res.Sent.Success || !strings.Contains(res.Sent.Error, "db down") {
		t.Errorf("unexpected outcome: %+v", res.Sent)
	}
	if len(f.sender.Messages) != 0 {
		t.Error("nothing should be sent without recipients")
	}
}

func TestGenerateNoRecipients(t *testing.T) {
	f := newFixture(sampleRecords())
	f.donors.Emails = nil

	res, err := f.pipeline.Generate(context.Background(), Options{Year: 2025, Month: 8, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Sent == nil || res.Sent.Success || res.Sent.Count != 0 || res.Sent.Error != mailer.ErrNoRecipients.Error() {
		t.Errorf("unexpected outcome: %+v", res.Sent)
	}
}

func TestGenerateDefaultsToCurrentMonth(t *testing.T) {
	f := newFixture(nil)
	f.pipeline.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.Local) }

	res, err := f.pipeline.Generate(context.Background(), Options{DryRun: true, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Year != 2026 || res.Month != 3 || res.Subject != "Project REACH Newsletter – March 2026" {
		t.Errorf("unexpected month resolution: %d-%d %q", res.Year, res.Month, res.Subject)
	}

	res, err = f.pipeline.Generate(context.Background(), Options{Year: 2024, DryRun: true, SkipPDF: true})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if res.Year != 2024 || res.Month != 3 {
		t.Errorf("missing month should default from now, got %d-%d", res.Year, res.Month)
	}
}

func TestStageString(t *testing.T) {
	want := []string{"GROUPING", "BUILDING_SECTIONS", "ASSEMBLING_HTML", "RENDERING_PDF", "SENDING", "DONE"}
	for i, w := range want {
		if got := Stage(i).String(); got != w {
			t.Errorf("Stage(%d) = %q, want %q", i, got, w)
		}
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(2025, 8); got != "newsletter-2025-08.pdf" {
		t.Errorf("Filename = %q", got)
	}
}
