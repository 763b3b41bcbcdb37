package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nijaru/yt-transcript/batch"
	"github.com/nijaru/yt-transcript/transcription"
	"github.com/nijaru/yt-transcript/utils"
	"github.com/nijaru/yt-transcript/validation"
)

func (a *app) serviceOptions() transcription.Options {
	return transcription.Options{NoCache: a.opts.noCache, Language: a.opts.lang}
}

func (a *app) runSingle(cmd *cobra.Command, rawURL string) error {
	stderr := cmd.ErrOrStderr()

	videoID, err := validation.ExtractVideoID(rawURL)
	if err != nil {
		return failure(fmt.Errorf("could not extract video ID from: %s", rawURL))
	}

	fmt.Fprintf(stderr, "Fetching transcript for: %s\n", videoID)
	result, err := a.service.GetByID(cmd.Context(), videoID, a.serviceOptions())
	if err != nil {
		return failure(err)
	}
	if result.Source == transcription.SourceCache {
		fmt.Fprintln(stderr, "Using cached transcript")
	}

	data, err := renderTranscript(result.Transcript, a.opts.jsonOutput)
	if err != nil {
		return failure(err)
	}
	if a.opts.output != "" {
		if err := utils.WriteFileAtomic(a.opts.output, data, 0o644); err != nil {
			return failure(err)
		}
		fmt.Fprintf(stderr, "Transcript saved to: %s\n", a.opts.output)
	} else if _, err := cmd.OutOrStdout().Write(data); err != nil {
		return failure(err)
	}

	if result.Source == transcription.SourceAPI {
		fmt.Fprintf(stderr, "\n[Cost: ~$%.3f per video]\n", a.cfg.Batch.CostPerVideo)
	}
	if result.CacheErr != nil {
		return failure(fmt.Errorf("transcript was not cached: %w", result.CacheErr))
	}
	return nil
}

func (a *app) runBatch(cmd *cobra.Command) error {
	stderr := cmd.ErrOrStderr()
	runner := batch.NewRunner(a.service, batch.Config{
		Concurrency:  a.cfg.Batch.Concurrency,
		CostPerVideo: a.cfg.Batch.CostPerVideo,
	}, a.log)

	opts := batch.Options{NoCache: a.opts.noCache, Language: a.opts.lang}
	var progress *progressPrinter
	if isTerminal(stderr) {
		progress = &progressPrinter{out: stderr}
		opts.Progress = progress.update
	}

	summary, err := runner.Run(cmd.Context(), a.opts.batchFile, opts)
	progress.done()
	if err != nil {
		return failure(err)
	}

	var written map[string]string
	var writeErr error
	if a.opts.outputDir != "" {
		written, writeErr = writeOutputDir(a.opts.outputDir, summary, a.opts.jsonOutput)
	}

	if a.opts.jsonOutput {
		if err := encodeJSON(cmd.OutOrStdout(), newBatchReport(summary, written)); err != nil {
			return failure(err)
		}
	} else {
		printBatchResults(cmd.OutOrStdout(), summary, written)
	}

	if summary.Fetched > 0 {
		fmt.Fprintf(stderr, "\n[Cost: ~$%.3f for %d fetched videos]\n", summary.EstimatedCost, summary.Fetched)
	}

	switch {
	case writeErr != nil:
		return failure(writeErr)
	case summary.AllFailed():
		return failure(fmt.Errorf("all %d batch items failed", summary.Total))
	case a.opts.strict && summary.Failed > 0:
		return failure(fmt.Errorf("%d of %d batch items failed", summary.Failed, summary.Total))
	}
	return nil
}

func (a *app) showCacheStats(cmd *cobra.Command) error {
	stats, err := a.cache.Stats(cmd.Context())
	if err != nil {
		return failure(err)
	}

	if a.opts.jsonOutput {
		if err := encodeJSON(cmd.OutOrStdout(), stats); err != nil {
			return failure(err)
		}
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), statsTable(stats))
	return nil
}

func (a *app) clearCache(cmd *cobra.Command) error {
	result, err := a.cache.Clear(cmd.Context())
	if a.opts.jsonOutput {
		if encErr := encodeJSON(cmd.OutOrStdout(), result); encErr != nil && err == nil {
			err = encErr
		}
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cached %s\n", result.Deleted, plural(result.Deleted, "transcript", "transcripts"))
		if result.Failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Failed to delete %d %s\n", result.Failed, plural(result.Failed, "entry", "entries"))
		}
	}
	if err != nil {
		return failure(err)
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
