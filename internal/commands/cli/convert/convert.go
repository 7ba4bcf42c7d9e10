// Package convert provides the convert command.
package convert

import (
	"fmt"
	"time"

	"github.com/andrei-cloud/ebookconv/internal/commands/cli/env"
	conv "github.com/andrei-cloud/ebookconv/internal/convert"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// NewConvertCommand creates the convert command.
func NewConvertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert INPUT...",
		Short: "Convert e-books to another format",
		Long: `Convert one or more e-books. Each input is resolved to an input format
plugin by its extension, preprocess hooks run on the input, and postprocess
hooks run on the produced file.`,
		Example: `  # Convert one book next to the source
  ebookconv convert book.epub --to mobi

  # Convert a batch into a directory with 8 workers
  ebookconv convert *.epub --to azw3 --output out --workers 8`,
		Args: cobra.MinimumNArgs(1),
		RunE: runConvert,
	}

	cmd.Flags().String("to", "", "output format (e.g. epub, mobi, azw3, txt)")
	cmd.Flags().StringP("output", "o", "", "output directory (default: next to each input)")
	cmd.Flags().IntP("workers", "w", 0, "parallel conversions (default: convert.workers)")
	cmd.Flags().StringToString("option", nil, "conversion option passed to plugins, key=value")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	env.InitLogger(true)

	e, err := env.Load(cmd.Context())
	if err != nil {
		return err
	}
	defer e.Close()

	to, _ := cmd.Flags().GetString("to")
	outDir, _ := cmd.Flags().GetString("output")
	workers, _ := cmd.Flags().GetInt("workers")
	options, _ := cmd.Flags().GetStringToString("option")
	if outDir == "" {
		outDir = e.Config.Convert.OutputDir
	}
	if workers <= 0 {
		workers = e.Config.Convert.Workers
	}

	jobs := make([]conv.Job, 0, len(args))
	for _, in := range args {
		jobs = append(jobs, conv.Job{Input: in, OutputFormat: to, OutputDir: outDir, Options: options})
	}

	c := conv.New(e.Registry)
	if len(jobs) == 1 {
		out, err := c.Convert(cmd.Context(), jobs[0])
		if err != nil {
			return err
		}
		cmd.Println(out)

		return nil
	}

	bar := progressbar.NewOptions(len(jobs),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("converting"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	c.Progress = func(conv.Result) { _ = bar.Add(1) }

	results, err := c.ConvertAll(cmd.Context(), jobs, workers)
	_ = bar.Finish()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			cmd.PrintErrf("%s: %v\n", r.Job.Input, r.Err)
			continue
		}
		cmd.Printf("%s -> %s (%s)\n", r.Job.Input, r.Output, r.Took.Round(time.Millisecond))
	}
	if err != nil {
		return fmt.Errorf("%d of %d conversions failed", failed, len(jobs))
	}

	return nil
}
