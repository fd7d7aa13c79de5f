// Package newsletter runs the monthly generation pipeline: grouping,
// section building, HTML assembly, PDF rendering and delivery.
package newsletter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"reach/internal/content"
	"reach/internal/document"
	"reach/internal/donors"
	"reach/internal/enhance"
	"reach/internal/mailer"
	"reach/internal/observability"
	"reach/internal/pdf"
)

// Options selects the month and the optional stages of one run. Zero Year
// or Month takes the value from the current local date.
type Options struct {
	Year        int  `json:"year"`
	Month       int  `json:"month"`
	DryRun      bool `json:"dryRun"`
	SkipPDF     bool `json:"skipPdf"`
	UseTemplate bool `json:"useTemplate"`
}

// Result is the artifact returned to every caller. PDF is empty when
// rendering was skipped or failed; Sent is nil on dry runs.
type Result struct {
	RunID    string             `json:"runId"`
	Year     int                `json:"year"`
	Month    int                `json:"month"`
	Subject  string             `json:"subject"`
	HTML     string             `json:"html"`
	PDF      []byte             `json:"-"`
	Sections []document.Section `json:"sections"`
	Sent     *mailer.Outcome    `json:"sent,omitempty"`
	Stats    Stats              `json:"stats"`
}

// PDFFilename is the download name for the result's PDF.
func (r *Result) PDFFilename() string {
	return Filename(r.Year, r.Month)
}

// Filename returns newsletter-<yyyy>-<mm>.pdf.
func Filename(year, month int) string {
	return fmt.Sprintf("newsletter-%04d-%02d.pdf", year, month)
}

// Stats tracks pipeline execution metrics
type Stats struct {
	SectionStats
	Strategy string        `json:"strategy"`
	PDFBytes int           `json:"pdfBytes"`
	Duration time.Duration `json:"duration"`
}

// Config holds pipeline configuration
type Config struct {
	OrgName      string
	TemplatePath string
	Theme        document.Theme
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		OrgName: "Project REACH",
		Theme:   document.DefaultTheme(),
	}
}

// Components are the collaborators a Pipeline drives. Renderer, Donors,
// Sender and Tracker may be nil.
type Components struct {
	Content  content.Source
	Enhancer *enhance.Enhancer
	Renderer pdf.Renderer
	Donors   donors.Source
	Sender   mailer.Sender
	Tracker  observability.Tracker
}

// Pipeline orchestrates newsletter generation. It is safe for concurrent
// use; the only state shared between runs is the enhancer's cache.
type Pipeline struct {
	grouper  *content.Grouper
	sections *SectionBuilder
	renderer pdf.Renderer
	donors   donors.Source
	sender   mailer.Sender
	tracker  observability.Tracker
	config   Config
	log      *slog.Logger
	now      func() time.Time
}

// NewPipeline creates a pipeline. A nil Enhancer gets one without a
// completer, so every section uses raw text.
func NewPipeline(c Components, config Config, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if config.OrgName == "" {
		config.OrgName = DefaultConfig().OrgName
	}
	enhancer := c.Enhancer
	if enhancer == nil {
		enhancer = enhance.NewEnhancer(nil, nil, enhance.DefaultConfig(), enhance.WithLogger(log))
	}
	tracker := c.Tracker
	if tracker == nil {
		tracker = observability.Nop{}
	}
	return &Pipeline{
		grouper:  content.NewGrouper(c.Content, log),
		sections: NewSectionBuilder(enhancer, log),
		renderer: c.Renderer,
		donors:   c.Donors,
		sender:   c.Sender,
		tracker:  tracker,
		config:   config,
		log:      log,
		now:      time.Now,
	}
}

// Subject returns the subject line for a month, e.g.
// "Project REACH Newsletter – August 2025".
func Subject(orgName string, year, month int) string {
	return fmt.Sprintf("%s Newsletter – %s %d", orgName, time.Month(month), year)
}

// ResolveMonth fills a zero year or month from now.
func ResolveMonth(year, month int, now time.Time) (int, int) {
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return year, month
}

// Generate runs one pipeline invocation. Content, enhancement, PDF and
// delivery failures are recovered inside the run; an error is returned only
// when the document itself cannot be assembled.
func (p *Pipeline) Generate(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	year, month := ResolveMonth(opts.Year, opts.Month, p.now())
	runID := uuid.NewString()
	log := p.log.With("run_id", runID, "year", year, "month", month)

	result := &Result{
		RunID:   runID,
		Year:    year,
		Month:   month,
		Subject: Subject(p.config.OrgName, year, month),
		PDF:     []byte{},
	}
	strategy := document.StrategyFor(opts.UseTemplate)
	result.Stats.Strategy = strategy.String()

	enter := func(s Stage) { log.Info("Newsletter stage", "stage", s.String()) }

	enter(StageGrouping)
	grouped := p.grouper.Group(ctx, year, month)

	enter(StageBuildingSections)
	sections, sectionStats := p.sections.Build(ctx, grouped)
	result.Sections = sections
	result.Stats.SectionStats = sectionStats

	enter(StageAssemblingHTML)
	assembler, err := document.New(strategy, document.Options{
		OrgName:      p.config.OrgName,
		Theme:        p.config.Theme,
		TemplatePath: p.config.TemplatePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s assembler: %w", strategy, err)
	}
	html, err := assembler.Assemble(result.Subject, sections)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble newsletter: %w", err)
	}
	result.HTML = html

	if !opts.SkipPDF {
		enter(StageRenderingPDF)
		if p.renderer != nil {
			result.PDF = p.renderer.Render(ctx, html)
		} else {
			log.Warn("No PDF renderer configured")
		}
		result.Stats.PDFBytes = len(result.PDF)
	}

	result.Stats.Duration = time.Since(start)
	p.trackGenerated(ctx, result)

	if !opts.DryRun {
		enter(StageSending)
		outcome := p.send(ctx, log, result)
		result.Sent = &outcome
		if err := p.tracker.TrackSent(ctx, observability.Sent{
			RunID:      runID,
			Year:       year,
			Month:      month,
			Success:    outcome.Success,
			Recipients: outcome.Count,
			Error:      outcome.Error,
		}); err != nil {
			log.Debug("Failed to track send", "error", err.Error())
		}
	}

	enter(StageDone)
	log.Info("Newsletter generated",
		"sections", len(result.Sections),
		"strategy", result.Stats.Strategy,
		"pdf_bytes", len(result.PDF),
		"llm_calls", result.Stats.LLMCalls,
		"cache_hits", result.Stats.CacheHits,
		"fallbacks", result.Stats.Fallbacks,
		"duration", time.Since(start))
	return result, nil
}

func (p *Pipeline) send(ctx context.Context, log *slog.Logger, result *Result) mailer.Outcome {
	if p.sender == nil {
		log.Warn("No email transport configured")
		return mailer.Outcome{Success: false, Error: "email transport not configured"}
	}
	if p.donors == nil {
		return mailer.Outcome{Success: false, Error: mailer.ErrNoRecipients.Error()}
	}

	recipients, err := p.donors.OptedInEmails(ctx)
	if err != nil {
		log.Error("Failed to list donors", "error", err.Error())
		return mailer.Outcome{Success: false, Error: fmt.Sprintf("failed to list recipients: %v", err)}
	}

	return p.sender.Send(ctx, mailer.Message{
		Subject:    result.Subject,
		HTML:       result.HTML,
		PDF:        result.PDF,
		PDFName:    result.PDFFilename(),
		Recipients: recipients,
	})
}

func (p *Pipeline) trackGenerated(ctx context.Context, result *Result) {
	err := p.tracker.TrackGenerated(ctx, observability.Generated{
		RunID:        result.RunID,
		Year:         result.Year,
		Month:        result.Month,
		Sections:     len(result.Sections),
		Strategy:     result.Stats.Strategy,
		PDFBytes:     len(result.PDF),
		CacheHits:    result.Stats.CacheHits,
		LLMCalls:     result.Stats.LLMCalls,
		Fallbacks:    result.Stats.Fallbacks,
		ContentItems: result.Stats.Items,
		DurationMs:   result.Stats.Duration.Milliseconds(),
	})
	if err != nil {
		p.log.Debug("Failed to track generation", "error", err.Error())
	}
}
