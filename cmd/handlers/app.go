package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"reach/internal/config"
	"reach/internal/content"
	"reach/internal/donors"
	"reach/internal/enhance"
	"reach/internal/llm"
	"reach/internal/mailer"
	"reach/internal/newsletter"
	"reach/internal/observability"
	"reach/internal/pdf"
)

// app holds the wired pipeline and the resources that must be released
// when a command finishes.
type app struct {
	pipeline *newsletter.Pipeline
	db       *sql.DB
	tracker  *observability.PostHogClient
	log      *slog.Logger
}

// newApp builds a pipeline from cfg. The database is only opened when a
// Postgres content source or donor list needs it.
func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{log: log}

	if cfg.Database.ConnectionString != "" {
		db, err := content.OpenPostgres(cfg.Database.ConnectionString)
		if err != nil {
			return nil, err
		}
		a.db = db
	}

	source, err := contentSource(cfg, a.db)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	completer, err := newCompleter(ctx, cfg.AI)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	if completer == nil {
		log.Warn("No AI provider configured, sections will use raw content")
	}

	tracker, err := observability.NewPostHogClient(cfg.PostHog, log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.tracker = tracker

	enhancer := enhance.NewEnhancer(completer, enhance.NewCache(), enhanceConfig(cfg), enhance.WithLogger(log))

	a.pipeline = newsletter.NewPipeline(newsletter.Components{
		Content:  source,
		Enhancer: enhancer,
		Renderer: pdf.NewChromeRenderer(pdfConfig(cfg.PDF), log),
		Donors:   donorSource(cfg, a.db),
		Sender:   emailSender(cfg.Email, log),
		Tracker:  tracker,
	}, newsletter.Config{
		OrgName:      cfg.App.OrgName,
		TemplatePath: cfg.Newsletter.TemplatePath,
		Theme:        newsletter.DefaultConfig().Theme,
	}, log)

	return a, nil
}

// Close flushes analytics and closes the database.
func (a *app) Close(ctx context.Context) {
	if a.tracker != nil {
		if err := a.tracker.Shutdown(ctx); err != nil {
			a.log.Warn("Failed to flush analytics", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

// pingDB is used as the server's database health check.
func (a *app) pingDB(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.PingContext(ctx)
}

func contentSource(cfg *config.Config, db *sql.DB) (content.Source, error) {
	switch cfg.Content.Source {
	case "file":
		return content.NewFileSource(cfg.Content.FilePath), nil
	default:
		if db == nil {
			return nil, fmt.Errorf("content source is postgres but database.connection_string is not set\n\n" +
				"Set DATABASE_URL, or use content.source: file with content.file_path for local previews")
		}
		return content.NewPostgresSource(db), nil
	}
}

func newCompleter(ctx context.Context, cfg config.AI) (llm.Completer, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, nil
		}
		client, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return client, nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, nil
		}
		client, err := llm.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
		return client, nil
	default:
		return nil, nil
	}
}

func enhanceConfig(cfg *config.Config) enhance.Config {
	ec := enhance.DefaultConfig()
	ec.OrgName = cfg.App.OrgName
	if cfg.AI.MaxTokens > 0 {
		ec.MaxTokens = cfg.AI.MaxTokens
	}
	ec.Temperature = cfg.AI.Temperature
	ec.MaxAttempts = cfg.AI.MaxAttempts
	ec.BackoffBase = cfg.AI.BackoffBase
	ec.InterCallDelay = cfg.AI.InterCallDelay
	return ec
}

func pdfConfig(cfg config.PDF) pdf.Config {
	return pdf.Config{
		ExecPath:       cfg.ExecPath,
		SettleDelay:    cfg.SettleDelay,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
	}
}

// donorSource prefers the donor table; a static recipient list in config
// is used when no database is configured.
func donorSource(cfg *config.Config, db *sql.DB) donors.Source {
	if db != nil {
		return donors.NewPostgresSource(db)
	}
	if len(cfg.Email.Recipients) > 0 {
		return donors.NewStaticSource(cfg.Email.Recipients)
	}
	return nil
}

func emailSender(cfg config.Email, log *slog.Logger) mailer.Sender {
	if cfg.SMTP.Host == "" {
		return nil
	}
	return mailer.NewSMTPSender(mailer.Config{
		Host:        cfg.SMTP.Host,
		Port:        cfg.SMTP.Port,
		Username:    cfg.SMTP.Username,
		Password:    cfg.SMTP.Password,
		TLSEnabled:  cfg.SMTP.TLSEnabled,
		FromAddress: cfg.FromAddress,
		FromName:    cfg.FromName,
		BatchSize:   cfg.BatchSize,
	}, log)
}
