package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vidparse/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the parse and download API over HTTP",
	Args:  cobra.NoArgs,
	RunE:  serveRun,
}

func serveRun(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	if !p.merger.Available() {
		logger.Warn("ffmpeg not found; videos with separate audio will fall back to original links",
			zap.String("ffmpeg", cfg.FFmpeg))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(p.svc, server.Options{
		Listen:    cfg.Listen,
		VideosDir: p.videosDir,
		Debug:     cfg.Debug,
		Logger:    logger.Named("http"),
	})
	return srv.Run(ctx)
}
