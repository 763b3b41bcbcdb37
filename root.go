package main

import (
	"strings"

	"github.com/spf13/cobra"
)

type options struct {
	batchFile   string
	noCache     bool
	cacheStats  bool
	clearCache  bool
	jsonOutput  bool
	output      string
	outputDir   string
	lang        string
	concurrency int
	strict      bool
	verbose     bool
}

func newRootCommand() *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "yt-transcript [URL]",
		Short: "Fetch YouTube transcripts via the Apify API with a local cache",
		Long: `Fetch YouTube transcripts via the Apify API.

Transcripts are cached by video ID so a video is only paid for once. The
cache lives in YT_TRANSCRIPT_CACHE_DIR (default: .cache next to the binary).
APIFY_API_TOKEN must be set to fetch transcripts that are not cached.`,
		Example: `  yt-transcript https://www.youtube.com/watch?v=dQw4w9WgXcQ
  yt-transcript https://youtu.be/dQw4w9WgXcQ --json -o transcript.json
  yt-transcript --batch urls.txt --output-dir transcripts/
  yt-transcript --cache-stats`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return usageError("expected at most one URL, got %d", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rawURL string
			if len(args) == 1 {
				rawURL = strings.TrimSpace(args[0])
			}
			if err := opts.validate(cmd, rawURL); err != nil {
				return err
			}
			return run(cmd, rawURL, &opts)
		},
	}

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: exitUsage, err: err}
	})

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.batchFile, "batch", "b", "", "File with one YouTube URL per line")
	flags.BoolVar(&opts.noCache, "no-cache", false, "Bypass the cache for this invocation")
	flags.BoolVar(&opts.cacheStats, "cache-stats", false, "Show cache entry count and size, then exit")
	flags.BoolVar(&opts.clearCache, "clear-cache", false, "Delete all cached transcripts, then exit")
	flags.BoolVarP(&opts.jsonOutput, "json", "j", false, "Output as JSON with timestamps")
	flags.StringVarP(&opts.output, "output", "o", "", "Output file path (default: stdout)")
	flags.StringVar(&opts.outputDir, "output-dir", "", "Batch: write each transcript to this directory")
	flags.StringVarP(&opts.lang, "lang", "l", "", "Preferred transcript language (e.g. 'en', 'de')")
	flags.IntVar(&opts.concurrency, "concurrency", 0, "Batch: videos fetched in parallel (default from YT_TRANSCRIPT_CONCURRENCY)")
	flags.BoolVar(&opts.strict, "strict", false, "Batch: exit non-zero if any line fails")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	return rootCmd
}

// validate rejects conflicting or incomplete flag combinations.
func (o *options) validate(cmd *cobra.Command, rawURL string) error {
	modes := 0
	for _, set := range []bool{rawURL != "", o.batchFile != "", o.cacheStats, o.clearCache} {
		if set {
			modes++
		}
	}
	switch {
	case modes == 0:
		return usageError("a URL, --batch, --cache-stats or --clear-cache is required")
	case modes > 1:
		return usageError("URL, --batch, --cache-stats and --clear-cache are mutually exclusive")
	}

	if o.output != "" && rawURL == "" {
		return usageError("--output only applies to a single URL")
	}
	if o.outputDir != "" && o.batchFile == "" {
		return usageError("--output-dir only applies to --batch")
	}
	if cmd.Flags().Changed("concurrency") && o.concurrency <= 0 {
		return usageError("--concurrency must be greater than 0")
	}
	return nil
}

func run(cmd *cobra.Command, rawURL string, opts *options) error {
	a, err := newApp(cmd, opts)
	if err != nil {
		return failure(err)
	}
	defer a.Close()

	switch {
	case opts.cacheStats:
		return a.showCacheStats(cmd)
	case opts.clearCache:
		return a.clearCache(cmd)
	case opts.batchFile != "":
		return a.runBatch(cmd)
	default:
		return a.runSingle(cmd, rawURL)
	}
}
