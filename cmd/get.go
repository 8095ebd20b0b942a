package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vidparse/internal/download"
	"vidparse/internal/media"
	"vidparse/internal/player"
	"vidparse/internal/ui"
)

var (
	flagOutput string
	flagPlay   bool
	flagPlayer string
)

var getCmd = &cobra.Command{
	Use:   "get [share text]",
	Short: "Download a shared video and its cover",
	Args:  cobra.ArbitraryArgs,
	RunE:  getRun,
}

func init() {
	getCmd.Flags().StringVarP(&flagOutput, "output", "o", ".", "Directory to save into")
	getCmd.Flags().BoolVarP(&flagPlay, "play", "p", false, "Play the video after downloading")
	getCmd.Flags().StringVar(&flagPlayer, "player", "", "Media player: mpv | vlc | iina | celluloid")
}

func getRun(cmd *cobra.Command, args []string) error {
	text, err := shareText(args)
	if err != nil {
		return err
	}
	return fetchAndPlay(text)
}

// fetchAndPlay parses text, downloads the result into flagOutput and
// optionally plays it.
func fetchAndPlay(text string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, err := p.svc.Parse(ctx, text, localClient)
	if err != nil {
		return userError(err)
	}
	fmt.Fprintf(os.Stderr, "[%s] %s\n", r.Platform, displayTitle(r))

	if r.AudioURL != "" && !p.merger.Available() {
		return fmt.Errorf("缺少音视频合并工具: %s not found", cfg.FFmpeg)
	}

	var (
		bar   *ui.Progress
		track func(string) download.ProgressFunc
	)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		bar = ui.NewProgress(os.Stderr)
		bar.Start()
		track = bar.Track
	}

	res, err := p.svc.Fetch(ctx, r, flagOutput, track)
	if bar != nil {
		bar.Stop()
	}
	if err != nil {
		return userError(err)
	}
	if res.CoverPath != "" {
		fmt.Fprintf(os.Stderr, "封面: %s\n", res.CoverPath)
	}
	fmt.Println(res.VideoPath)

	if !flagPlay {
		return nil
	}
	name := cfg.Player
	if flagPlayer != "" {
		name = flagPlayer
	}
	pl := player.New(name)
	if !pl.Available() {
		return fmt.Errorf("%s not found in PATH", pl.Name())
	}
	return pl.Play(res.VideoPath, displayTitle(r))
}

func displayTitle(r media.ParseResult) string {
	if r.Title != "" {
		return r.Title
	}
	return r.VideoID
}
