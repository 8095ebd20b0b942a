// Package cmd implements the CLI commands using Cobra.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vidparse/internal/config"
	"vidparse/internal/download"
	"vidparse/internal/extract"
	"vidparse/internal/history"
	"vidparse/internal/httputil"
	"vidparse/internal/merge"
	"vidparse/internal/resolve"
	"vidparse/internal/service"
	"vidparse/internal/urlparse"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags
var (
	flagDebug     bool
	flagListen    string
	flagBaseURL   string
	flagVideosDir string
	flagFFmpeg    string
	flagNoHistory bool
)

// cfg holds the loaded configuration (merged: defaults < config file < env < flags).
var cfg *config.Config

// logger is built from cfg once flags are parsed.
var logger = zap.NewNop()

var rootCmd = &cobra.Command{
	Use:   "vidparse",
	Short: "Resolve short-video share links to direct media URLs",
	Long: `vidparse turns share links from Douyin, Bilibili, Xiaohongshu, Kuaishou and
Haokan into direct video and cover URLs. It can serve the pipeline over HTTP
or download videos locally, merging separate audio and video tracks with ffmpeg.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(*cobra.Command, []string) { logger.Sync() },
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "x", false, "Debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&flagListen, "listen", "", "HTTP listen address (default :5001)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "public-base-url", "", "Base URL used in returned download links")
	rootCmd.PersistentFlags().StringVar(&flagVideosDir, "videos-dir", "", "Directory for materialized videos")
	rootCmd.PersistentFlags().StringVar(&flagFFmpeg, "ffmpeg", "", "ffmpeg binary name or path")
	rootCmd.PersistentFlags().BoolVar(&flagNoHistory, "no-history", false, "Do not record parse history")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "vidparse %s\n", Version)
	},
}

// loadConfig loads and merges configuration: defaults < config file < env < CLI flags.
func loadConfig(cmd *cobra.Command, args []string) error {
	// A missing .env is the normal case outside deployments.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// CLI flags override config file values
	if flagListen != "" {
		cfg.Listen = flagListen
	}
	if flagBaseURL != "" {
		cfg.PublicBaseURL = flagBaseURL
	}
	if flagVideosDir != "" {
		cfg.VideosDir = flagVideosDir
	}
	if flagFFmpeg != "" {
		cfg.FFmpeg = flagFFmpeg
	}
	if flagNoHistory {
		cfg.History = false
	}
	if flagDebug {
		cfg.Debug = true
	}

	// Re-validate after flag overrides
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err = newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	return nil
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// pipeline is the assembled service with the resources it owns.
type pipeline struct {
	svc       *service.Service
	merger    *merge.Merger
	history   *history.Store // nil when history is disabled
	videosDir string
}

func (p *pipeline) Close() {
	if p.history != nil {
		if err := p.history.Close(); err != nil {
			logger.Warn("closing history", zap.Error(err))
		}
	}
}

// buildPipeline wires the parser, resolver, downloader and merger from cfg.
func buildPipeline() (*pipeline, error) {
	videosDir, err := cfg.ExpandVideosDir()
	if err != nil {
		return nil, err
	}

	client := httputil.NewClient(cfg.ResolveTimeout.Duration)
	parser := urlparse.NewParser(client, logger.Named("urlparse"))
	resolver := resolve.New(extract.NewFactory(client),
		resolve.WithAttempts(cfg.PlatformAttempts()),
		resolve.WithJitter(cfg.Retry.ExtractionJitter.Duration),
		resolve.WithLogger(logger.Named("resolve")),
	)
	downloader := download.New(download.Options{
		Attempts: cfg.Retry.DownloadAttempts,
		Backoff:  cfg.Retry.DownloadBackoff.Duration,
		Timeout:  cfg.StreamTimeout.Duration,
		Logger:   logger.Named("download"),
	})
	merger := merge.New(cfg.FFmpeg, logger.Named("merge"))

	p := &pipeline{merger: merger, videosDir: videosDir}

	opts := service.Options{
		VideosDir:       videosDir,
		PublicBaseURL:   cfg.BaseURL(),
		ServableDomains: cfg.ServableDomains,
		Logger:          logger.Named("service"),
	}
	if cfg.History {
		store, err := history.OpenDefault()
		if err != nil {
			// History is optional; parsing still works without it.
			logger.Warn("history disabled", zap.Error(err))
		} else {
			p.history = store
			opts.History = store
		}
	}

	p.svc = service.New(parser, resolver, downloader, merger, opts)
	return p, nil
}
