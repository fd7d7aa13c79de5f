// Package pdf renders newsletter HTML to PDF with a headless Chrome instance.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	pdfreader "github.com/ledongthuc/pdf"
)

// A4 in inches, as Chrome's print API expects.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
)

// Config controls the browser and page setup.
type Config struct {
	// ExecPath points at a Chrome/Chromium binary; empty uses chromedp's lookup.
	ExecPath       string
	SettleDelay    time.Duration
	ViewportWidth  int64
	ViewportHeight int64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SettleDelay:    800 * time.Millisecond,
		ViewportWidth:  1240,
		ViewportHeight: 1754,
	}
}

// Renderer converts a complete HTML document to PDF bytes.
type Renderer interface {
	Render(ctx context.Context, html string) []byte
}

// ChromeRenderer launches a fresh browser for every Render call.
type ChromeRenderer struct {
	cfg Config
	log *slog.Logger
}

// NewChromeRenderer creates a renderer. Zero viewport dimensions take the defaults.
func NewChromeRenderer(cfg Config, log *slog.Logger) *ChromeRenderer {
	def := DefaultConfig()
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = def.ViewportWidth
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = def.ViewportHeight
	}
	if log == nil {
		log = slog.Default()
	}
	return &ChromeRenderer{cfg: cfg, log: log}
}

// Render returns the PDF for html, or an empty slice if anything fails.
// The browser is torn down before Render returns.
func (r *ChromeRenderer) Render(ctx context.Context, html string) []byte {
	start := time.Now()
	data, err := r.render(ctx, html)
	if err != nil {
		r.log.Error("pdf render failed", "error", err.Error(), "duration", time.Since(start))
		return []byte{}
	}

	attrs := []any{"bytes", len(data), "duration", time.Since(start)}
	if pages, err := PageCount(data); err == nil {
		attrs = append(attrs, "pages", pages)
	}
	r.log.Info("pdf rendered", attrs...)
	return data
}

func (r *ChromeRenderer) render(ctx context.Context, html string) (data []byte, err error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("hide-scrollbars", true),
	)
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	defer func() {
		if cerr := chromedp.Cancel(browserCtx); cerr != nil {
			r.log.Debug("browser shutdown", "error", cerr.Error())
		}
	}()

	err = chromedp.Run(browserCtx,
		chromedp.EmulateViewport(r.cfg.ViewportWidth, r.cfg.ViewportHeight),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to get frame tree: %w", err)
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.cfg.SettleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthInches).
				WithPaperHeight(a4HeightInches).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return fmt.Errorf("failed to print page: %w", err)
			}
			data = buf
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("browser returned an empty pdf")
	}
	return data, nil
}

// PageCount parses data and returns its number of pages.
func PageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty pdf")
	}
	reader, err := pdfreader.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("failed to read pdf: %w", err)
	}
	return reader.NumPage(), nil
}
