package handlers

import (
	"github.com/spf13/cobra"
)

// NewSendCmd creates the send command
func NewSendCmd() *cobra.Command {
	var (
		flags  runFlags
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Generate a month's newsletter and email it to opted-in donors",
		Long: `Generate the newsletter for a month, attach the PDF and send it in BCC
batches to every donor who opted in. The HTML and PDF are also written to
the output directory.

Examples:
  # Send the current month's newsletter
  reach send

  # Build everything for September 2025 but do not email
  reach send --year 2025 --month 9 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			return runNewsletter(cmd, flags, dryRun)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Build the newsletter but do not send email")
	return cmd
}
