package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"refract/internal/fetch"
	"refract/internal/logging"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var (
		outDir       string
		workers      int
		timeoutSecs  int
		maxFiles     int
		suffix       string
		skipExisting bool
		noVerify     bool
		noProgress   bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <manifest.json>",
		Short: "Bulk-download recordings listed in a JSON manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			applyIfChanged(cmd, map[string]func(){
				"workers":   func() { cfg.Fetch.Workers = workers },
				"timeout":   func() { cfg.Fetch.TimeoutSeconds = timeoutSecs },
				"max-files": func() { cfg.Fetch.MaxFiles = maxFiles },
				"suffix":    func() { cfg.Fetch.Suffix = suffix },
			})
			if outDir == "" {
				outDir = cfg.Paths.WorkDir
			}

			entries, err := fetch.LoadManifest(args[0], cfg.Fetch.Suffix)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No %q files found in the manifest.\n", cfg.Fetch.Suffix)
				return nil
			}

			attempted := len(entries)
			if cfg.Fetch.MaxFiles > 0 && attempted > cfg.Fetch.MaxFiles {
				attempted = cfg.Fetch.MaxFiles
			}

			var bar *progressbar.ProgressBar
			fetchLogger := logging.NewComponentLogger(logger, "fetch")
			if !noProgress {
				bar = progressbar.NewOptions(attempted,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("fetching"),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
				fetchLogger = logging.NewNop()
			}

			fetcher := fetch.NewFetcher(fetchLogger)
			results := fetcher.RunWithObserver(cmd.Context(), entries, fetch.Options{
				OutDir:       outDir,
				Workers:      cfg.Fetch.Workers,
				Timeout:      time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
				MaxFiles:     cfg.Fetch.MaxFiles,
				SkipExisting: skipExisting,
				Verify:       !noVerify,
			}, func(fetch.Result) {
				if bar != nil {
					_ = bar.Add(1)
				}
			})
			if bar != nil {
				_ = bar.Finish()
			}

			var downloaded, skipped, failed int
			var bytes int64
			for _, result := range results {
				switch result.Outcome {
				case fetch.OutcomeDownloaded:
					downloaded++
					bytes += result.Entry.Size
				case fetch.OutcomeSkipped:
					skipped++
				case fetch.OutcomeFailed:
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", result.Entry.Filename, result.Err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d downloaded (%s), %d skipped, %d failed\n",
				downloaded, humanize.Bytes(uint64(bytes)), skipped, failed)
			if failed > 0 {
				return fmt.Errorf("%d download(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Destination directory (default: work dir)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent downloads")
	cmd.Flags().IntVar(&timeoutSecs, "timeout", 0, "Per-request timeout in seconds")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "Download at most this many files (0 = all)")
	cmd.Flags().StringVar(&suffix, "suffix", "", "Filename suffix filter")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip files that already exist without verifying")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Disable SHA-1 and size verification")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")

	return cmd
}
