package main

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/scorestat/internal/sample"
)

func newGenerateCmd(*cli) *cobra.Command {
	var (
		cfg  sample.Config
		path string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic score CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			out := cmd.OutOrStdout()
			if path != "" && path != "-" {
				f, cerr := os.Create(path)
				if cerr != nil {
					return cerr
				}
				defer func() {
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}()
				out = f
			}
			bw := bufio.NewWriter(out)
			if err := sample.WriteCSV(cmd.Context(), bw, cfg); err != nil {
				return err
			}
			if err := bw.Flush(); err != nil {
				return err
			}
			if path != "" && path != "-" {
				okColor.Fprintf(cmd.ErrOrStderr(), "Wrote %d rows to %s\n", cfg.Rows, path)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Rows, "rows", 1000, "number of candidates")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 0, "generation workers (defaults to GOMAXPROCS)")
	cmd.Flags().StringVarP(&path, "out", "o", "-", "output file, - for stdout")
	return cmd
}
