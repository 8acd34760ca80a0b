package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	service "github.com/okian/scorestat/internal/app"
	"github.com/okian/scorestat/internal/ingest"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
	infoColor = color.New(color.FgCyan)
)

func newImportCmd(c *cli) *cobra.Command {
	var (
		truncate  bool
		dryRun    bool
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "import <csv-file>",
		Short: "Import a score CSV into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if batchSize <= 0 {
				batchSize = c.cfg.BatchSize
			}
			opts := ingest.Options{
				Truncate:      truncate,
				DryRun:        dryRun,
				BatchSize:     batchSize,
				ProgressEvery: c.cfg.ProgressEvery,
			}
			return c.runImport(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&truncate, "truncate", false, "delete every existing record first")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate rows without writing")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per flush (defaults to SCORESTAT_BATCH_SIZE)")
	return cmd
}

func (c *cli) runImport(ctx context.Context, out io.Writer, path string, opts ingest.Options) error {
	progress := func(p ingest.Progress) {
		infoColor.Fprintf(out, "  %d rows read (%d created, %d updated, %d errors)\n", p.Rows, p.Created, p.Updated, p.Errors)
	}
	svc, stop, err := c.startService(ctx, service.WithImportProgress(progress))
	if err != nil {
		return err
	}
	defer stop()

	res, err := svc.Import(ctx, path, opts)
	if err != nil {
		return err
	}
	printImportResult(out, res)
	return nil
}

func printImportResult(out io.Writer, res ingest.Result) {
	if res.DryRun {
		warnColor.Fprintln(out, "Dry run: nothing was written")
	}
	okColor.Fprintf(out, "Import %s finished\n", res.RunID)
	fmt.Fprintf(out, "  encoding: %s\n", res.Encoding)
	fmt.Fprintf(out, "  rows:     %d\n", res.Rows)
	fmt.Fprintf(out, "  created:  %d\n", res.Created)
	fmt.Fprintf(out, "  updated:  %d\n", res.Updated)
	if res.Deleted > 0 {
		fmt.Fprintf(out, "  deleted:  %d\n", res.Deleted)
	}
	if res.Errors > 0 {
		warnColor.Fprintf(out, "  errors:   %d\n", res.Errors)
	} else {
		fmt.Fprintf(out, "  errors:   %d\n", res.Errors)
	}
}
