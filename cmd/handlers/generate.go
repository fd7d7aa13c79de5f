package handlers

import (
	"context"
	"fmt"

	"reach/internal/config"
	"reach/internal/logger"
	"reach/internal/newsletter"
	"reach/internal/render"

	"github.com/spf13/cobra"
)

type runFlags struct {
	year        int
	month       int
	useTemplate bool
	skipPDF     bool
	outputDir   string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.year, "year", 0, "Newsletter year (default: current year)")
	cmd.Flags().IntVar(&f.month, "month", 0, "Newsletter month 1-12 (default: current month)")
	cmd.Flags().BoolVar(&f.useTemplate, "template", false, "Assemble with the HTML base template instead of inline rendering")
	cmd.Flags().BoolVar(&f.skipPDF, "skip-pdf", false, "Skip PDF rendering")
	cmd.Flags().StringVarP(&f.outputDir, "output", "o", "", "Directory for the HTML and PDF files (default from config: newsletters)")
}

func (f *runFlags) validate() error {
	if f.month < 0 || f.month > 12 {
		return fmt.Errorf("invalid --month %d: must be between 1 and 12", f.month)
	}
	if f.year < 0 || (f.year != 0 && (f.year < 1000 || f.year > 9999)) {
		return fmt.Errorf("invalid --year %d: must be a four-digit year", f.year)
	}
	return nil
}

// NewGenerateCmd creates the generate command
func NewGenerateCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a month's newsletter to disk without sending",
		Long: `Generate the newsletter for a month and write it to the output directory
as newsletter-<yyyy>-<mm>.html and newsletter-<yyyy>-<mm>.pdf.

Nothing is emailed.

Examples:
  # Current month
  reach generate

  # August 2025 using the base template, HTML only
  reach generate --year 2025 --month 8 --template --skip-pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			return runNewsletter(cmd, flags, true)
		},
	}

	flags.register(cmd)
	return cmd
}

// runNewsletter runs one pipeline pass, writes the artifacts and prints a summary.
func runNewsletter(cmd *cobra.Command, flags runFlags, dryRun bool) error {
	log := logger.Get()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	if cfg.Newsletter.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Newsletter.Timeout)
		defer cancel()
	}

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	result, err := a.pipeline.Generate(ctx, newsletter.Options{
		Year:        flags.year,
		Month:       flags.month,
		DryRun:      dryRun,
		SkipPDF:     flags.skipPDF,
		UseTemplate: flags.useTemplate,
	})
	if err != nil {
		return fmt.Errorf("newsletter generation failed: %w", err)
	}

	outputDir := flags.outputDir
	if outputDir == "" {
		outputDir = cfg.App.OutputDir
	}
	files, err := render.WriteArtifacts(outputDir, result.PDFFilename(), result.HTML, result.PDF)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summarize(result, files))

	if result.Sent != nil && !result.Sent.Success {
		return fmt.Errorf("newsletter send failed: %s", result.Sent.Error)
	}
	return nil
}
